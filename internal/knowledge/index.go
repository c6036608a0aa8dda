package knowledge

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

// Entry is one embedded document handed to an Index.
type Entry struct {
	Position int // corpus order, used to break score ties
	Document domain.KnowledgeDocument
	Vector   []float32
}

// Index stores embedded documents and answers similarity queries.
// Implementations must be safe for concurrent Search calls once built.
type Index interface {
	Upsert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, vector []float32, k int) ([]domain.Match, error)
}

// Pinger is implemented by indexes backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MemoryIndex is a brute-force cosine similarity index held in process memory.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	entries []memoryEntry
	byTerm  map[string]int
}

type memoryEntry struct {
	position int
	doc      domain.KnowledgeDocument
	unit     []float64 // L2-normalized, nil for a zero vector
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{byTerm: make(map[string]int)}
}

// Upsert inserts entries, replacing any existing entry with the same term.
func (m *MemoryIndex) Upsert(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("entry %q has an empty vector", e.Document.Term)
		}
		if m.dim == 0 {
			m.dim = len(e.Vector)
		}
		if len(e.Vector) != m.dim {
			return fmt.Errorf("entry %q has dimension %d, index has %d", e.Document.Term, len(e.Vector), m.dim)
		}

		me := memoryEntry{position: e.Position, doc: e.Document, unit: normalize(e.Vector)}
		key := termKey(e.Document.Term)
		if i, ok := m.byTerm[key]; ok {
			m.entries[i] = me
			continue
		}
		m.byTerm[key] = len(m.entries)
		m.entries = append(m.entries, me)
	}
	return nil
}

// Search returns the k entries with the highest cosine similarity to vector.
// Equal scores keep corpus order.
func (m *MemoryIndex) Search(_ context.Context, vector []float32, k int) ([]domain.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("query has dimension %d, index has %d", len(vector), m.dim)
	}

	q := normalize(vector)
	type scored struct {
		position int
		match    domain.Match
	}
	results := make([]scored, len(m.entries))
	for i, e := range m.entries {
		var score float64
		if q != nil && e.unit != nil {
			score = floats.Dot(q, e.unit)
		}
		results[i] = scored{position: e.position, match: domain.Match{Document: e.doc, Score: score}}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].match.Score != results[j].match.Score {
			return results[i].match.Score > results[j].match.Score
		}
		return results[i].position < results[j].position
	})

	if k > len(results) {
		k = len(results)
	}
	out := make([]domain.Match, k)
	for i := range out {
		out[i] = results[i].match
	}
	return out, nil
}

// Len returns the number of indexed documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func normalize(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	norm := floats.Norm(out, 2)
	if norm == 0 {
		return nil
	}
	floats.Scale(1/norm, out)
	return out
}
