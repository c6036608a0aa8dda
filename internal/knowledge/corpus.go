package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

// LoadCorpusFile reads a JSON corpus file.
func LoadCorpusFile(path string) ([]domain.KnowledgeDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	docs, err := LoadCorpus(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

// LoadCorpus decodes a JSON array of {"term", "text"} objects and validates it.
func LoadCorpus(r io.Reader) ([]domain.KnowledgeDocument, error) {
	var docs []domain.KnowledgeDocument
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	if err := ValidateCorpus(docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// ValidateCorpus rejects empty corpora, blank fields and duplicate terms.
// Terms are compared case-insensitively.
func ValidateCorpus(docs []domain.KnowledgeDocument) error {
	if len(docs) == 0 {
		return errors.New("corpus is empty")
	}
	seen := make(map[string]int, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.Term) == "" {
			return fmt.Errorf("document %d: term is blank", i)
		}
		if strings.TrimSpace(d.Text) == "" {
			return fmt.Errorf("document %d (%s): text is blank", i, d.Term)
		}
		key := termKey(d.Term)
		if j, ok := seen[key]; ok {
			return fmt.Errorf("document %d: duplicate term %q (first seen at %d)", i, d.Term, j)
		}
		seen[key] = i
	}
	return nil
}

func termKey(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
