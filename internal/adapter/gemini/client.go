// Package gemini implements the embedding and chat capabilities on top of
// the Google Gen AI SDK (Gemini API backend).
package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"google.golang.org/genai"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

const (
	providerName = "gemini"

	// DefaultChatModel is used when no chat model is configured.
	DefaultChatModel = "gemini-2.0-flash"
	// DefaultEmbeddingModel is used when no embedding model is configured.
	DefaultEmbeddingModel = "gemini-embedding-001"
)

var (
	// ErrEmptyResponse is returned when a generation carries no candidates.
	ErrEmptyResponse = errors.New("gemini: empty response")
	// ErrEmbeddingCount is returned when the number of embeddings differs from the number of inputs.
	ErrEmbeddingCount = errors.New("gemini: embedding count mismatch")
	// ErrInvalidDims is returned when dimensions does not fit the API's int32 field.
	ErrInvalidDims = errors.New("gemini: embedding dimensions out of range")
)

// Client calls the Gemini API for chat and embeddings.
type Client struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	dimensions     int
}

// ClientOption configures the Client.
type ClientOption func(*settings)

type settings struct {
	baseURL    string
	httpClient *http.Client
	client     *Client
}

// WithChatModel sets the chat model name. Empty keeps the default.
func WithChatModel(model string) ClientOption {
	return func(s *settings) {
		if model != "" {
			s.client.chatModel = model
		}
	}
}

// WithEmbeddingModel sets the embedding model name. Empty keeps the default.
func WithEmbeddingModel(model string) ClientOption {
	return func(s *settings) {
		if model != "" {
			s.client.embeddingModel = model
		}
	}
}

// WithDimensions requests embeddings of the given size.
func WithDimensions(dim int) ClientOption {
	return func(s *settings) { s.client.dimensions = dim }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) ClientOption {
	return func(s *settings) { s.baseURL = u }
}

// WithHTTPClient overrides the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(s *settings) { s.httpClient = hc }
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	c := &Client{chatModel: DefaultChatModel, embeddingModel: DefaultEmbeddingModel}
	s := &settings{client: c}
	for _, opt := range opts {
		opt(s)
	}
	if c.dimensions < 0 || c.dimensions > math.MaxInt32 {
		return nil, ErrInvalidDims
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.httpClient,
	}
	if s.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.baseURL}
	}

	genaiClient, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	c.client = genaiClient
	return c, nil
}

// Name returns the provider name used in errors and metrics.
func (c *Client) Name() string { return providerName }

// Model returns the chat model name.
func (c *Client) Model() string { return c.chatModel }

// Complete sends prompt as a single user turn and returns the generated text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.chatModel, genai.Text(prompt), nil)
	if err != nil {
		return "", domain.NewProviderError(providerName, "complete", err)
	}
	if len(resp.Candidates) == 0 {
		return "", domain.NewProviderError(providerName, "complete", ErrEmptyResponse)
	}
	return resp.Text(), nil
}

// Embed returns the embedding of a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request, preserving input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	var cfg *genai.EmbedContentConfig
	if c.dimensions > 0 {
		//nolint:gosec // G115: bounded by math.MaxInt32 in NewClient
		dim := int32(c.dimensions)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, contents, cfg)
	if err != nil {
		return nil, domain.NewProviderError(providerName, "embed", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, domain.NewProviderError(providerName, "embed",
			fmt.Errorf("%w: got %d, want %d", ErrEmbeddingCount, len(resp.Embeddings), len(texts)))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		vec := make([]float32, len(e.Values))
		copy(vec, e.Values)
		out[i] = vec
	}
	return out, nil
}
