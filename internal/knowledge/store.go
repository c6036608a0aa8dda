// Package knowledge embeds a small glossary corpus and answers
// nearest-neighbour lookups against it.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

// embedBatchSize bounds how many texts are sent per batch embedding call.
const embedBatchSize = 64

// Store is the read-only knowledge index built once at startup.
type Store struct {
	docs     []domain.KnowledgeDocument
	byTerm   map[string]int
	embedder domain.Embedder
	index    Index
	logger   *slog.Logger
}

// Build embeds every document text and inserts it into index.
func Build(ctx context.Context, docs []domain.KnowledgeDocument, embedder domain.Embedder, index Index, logger *slog.Logger) (*Store, error) {
	if err := ValidateCorpus(docs); err != nil {
		return nil, err
	}

	start := time.Now()
	vectors, err := embedAll(ctx, embedder, docs)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}

	entries := make([]Entry, len(docs))
	byTerm := make(map[string]int, len(docs))
	for i, d := range docs {
		entries[i] = Entry{Position: i, Document: d, Vector: vectors[i]}
		byTerm[termKey(d.Term)] = i
	}
	if err := index.Upsert(ctx, entries); err != nil {
		return nil, fmt.Errorf("index corpus: %w", err)
	}

	logger.Info("knowledge store built",
		"documents", len(docs),
		"dimension", len(vectors[0]),
		"duration", time.Since(start),
	)

	stored := make([]domain.KnowledgeDocument, len(docs))
	copy(stored, docs)
	return &Store{
		docs:     stored,
		byTerm:   byTerm,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}, nil
}

// embeddingText is what a document is indexed under. The term leads so a
// bare-term query lands on its own definition rather than on a shorter
// text that merely mentions it.
func embeddingText(d domain.KnowledgeDocument) string {
	return d.Term + "\n" + d.Text
}

func embedAll(ctx context.Context, embedder domain.Embedder, docs []domain.KnowledgeDocument) ([][]float32, error) {
	vectors := make([][]float32, 0, len(docs))

	if batcher, ok := embedder.(domain.BatchEmbedder); ok {
		for start := 0; start < len(docs); start += embedBatchSize {
			end := min(start+embedBatchSize, len(docs))
			texts := make([]string, 0, end-start)
			for _, d := range docs[start:end] {
				texts = append(texts, embeddingText(d))
			}
			batch, err := batcher.EmbedBatch(ctx, texts)
			if err != nil {
				return nil, err
			}
			if len(batch) != len(texts) {
				return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), len(texts))
			}
			vectors = append(vectors, batch...)
		}
	} else {
		for _, d := range docs {
			v, err := embedder.Embed(ctx, embeddingText(d))
			if err != nil {
				return nil, err
			}
			vectors = append(vectors, v)
		}
	}

	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("document %q: empty embedding", docs[i].Term)
		}
	}
	return vectors, nil
}

// Nearest embeds query and returns up to k documents, closest first.
// k below 1 is treated as 1.
func (s *Store) Nearest(ctx context.Context, query string, k int) ([]domain.Match, error) {
	if k < 1 {
		k = 1
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.index.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if len(matches) == 0 {
		return nil, &domain.CorpusLookupMissError{Term: query}
	}

	s.logger.Debug("knowledge lookup",
		"query", query,
		"matched_term", matches[0].Document.Term,
		"score", matches[0].Score,
	)
	return matches, nil
}

// Terms returns the corpus terms in corpus order.
func (s *Store) Terms() []string {
	terms := make([]string, len(s.docs))
	for i, d := range s.docs {
		terms[i] = d.Term
	}
	return terms
}

// Lookup returns the document whose term equals term, ignoring case and
// surrounding whitespace.
func (s *Store) Lookup(term string) (domain.KnowledgeDocument, bool) {
	i, ok := s.byTerm[termKey(term)]
	if !ok {
		return domain.KnowledgeDocument{}, false
	}
	return s.docs[i], true
}

// Len returns the number of documents in the store.
func (s *Store) Len() int { return len(s.docs) }

// CheckReadiness reports whether the store is built and its index reachable.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if s == nil || len(s.docs) == 0 {
		return errors.New("knowledge store not built")
	}
	if p, ok := s.index.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("knowledge index: %w", err)
		}
	}
	return nil
}
