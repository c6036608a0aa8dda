package domain

import "context"

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by embedders that can embed many texts in one call.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer sends a single prompt to a chat model and returns the generated text.
type Completer interface {
	// Complete runs one independent turn with no conversation history.
	Complete(ctx context.Context, prompt string) (string, error)

	// Model returns the model identifier used for completions.
	Model() string
}
