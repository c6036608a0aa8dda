package provider

import (
	"context"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

// AsBatch returns e as a BatchEmbedder, embedding one text at a time when e
// has no batch endpoint of its own.
func AsBatch(e domain.Embedder) domain.BatchEmbedder {
	if b, ok := e.(domain.BatchEmbedder); ok {
		return b
	}
	return sequential{e}
}

type sequential struct {
	domain.Embedder
}

func (s sequential) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
