package knowledge

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// DefaultLexicalDimension is the vector size used by NewLexicalEmbedder when
// dim is not positive.
const DefaultLexicalDimension = 512

// LexicalEmbedder is a deterministic feature-hashed bag-of-words embedder.
// It needs no network and is used for offline runs and tests.
type LexicalEmbedder struct {
	dim int
}

// NewLexicalEmbedder creates a lexical embedder producing dim-sized vectors.
func NewLexicalEmbedder(dim int) *LexicalEmbedder {
	if dim <= 0 {
		dim = DefaultLexicalDimension
	}
	return &LexicalEmbedder{dim: dim}
}

// Embed hashes each lowercase token into a signed bucket with sublinear
// term frequency and returns the L2-normalized vector.
func (l *LexicalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, tok := range tokenize(text) {
		counts[tok]++
	}

	acc := make([]float64, l.dim)
	for tok, n := range counts {
		h := xxhash.Sum64String(tok)
		bucket := int(h % uint64(l.dim))
		sign := 1.0
		if h>>63 == 1 {
			sign = -1
		}
		acc[bucket] += sign * (1 + math.Log(float64(n)))
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, l.dim)
	if norm == 0 {
		return out, nil
	}
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// EmbedBatch embeds each text in order.
func (l *LexicalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := l.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
