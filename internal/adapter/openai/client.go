// Package openai implements the embedding and chat capabilities on top of
// the official OpenAI Go SDK. Any OpenAI-compatible endpoint works, which is
// how Cohere is reached.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

// CohereBaseURL is Cohere's OpenAI compatibility endpoint.
const CohereBaseURL = "https://api.cohere.ai/compatibility/v1"

// Model defaults per provider.
const (
	CohereChatModel      = "command-r-plus"
	CohereEmbeddingModel = "embed-english-v3.0"
	OpenAIChatModel      = "gpt-4o-mini"
	OpenAIEmbeddingModel = "text-embedding-3-small"
)

var (
	// ErrNoChoices is returned when a chat response carries no choices.
	ErrNoChoices = errors.New("no choices in response")
	// ErrEmbeddingCount is returned when the number of embeddings differs from the number of inputs.
	ErrEmbeddingCount = errors.New("embedding count mismatch")
)

// Client calls chat completions and embeddings through the OpenAI SDK.
type Client struct {
	sdk            openaisdk.Client
	name           string
	chatModel      string
	embeddingModel string
	dimensions     int
}

// ClientOption configures the Client.
type ClientOption func(*clientSettings)

type clientSettings struct {
	baseURL    string
	httpClient *http.Client
	client     *Client
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(u string) ClientOption {
	return func(s *clientSettings) { s.baseURL = u }
}

// WithHTTPClient overrides the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(s *clientSettings) { s.httpClient = hc }
}

// WithChatModel sets the chat model name. Empty keeps the default.
func WithChatModel(model string) ClientOption {
	return func(s *clientSettings) {
		if model != "" {
			s.client.chatModel = model
		}
	}
}

// WithEmbeddingModel sets the embedding model name. Empty keeps the default.
func WithEmbeddingModel(model string) ClientOption {
	return func(s *clientSettings) {
		if model != "" {
			s.client.embeddingModel = model
		}
	}
}

// WithDimensions requests embeddings of the given size from models that support it.
func WithDimensions(dim int) ClientOption {
	return func(s *clientSettings) { s.client.dimensions = dim }
}

// NewClient creates a client for the OpenAI API.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	return newClient("openai", apiKey, OpenAIChatModel, OpenAIEmbeddingModel, "", opts)
}

// NewCohereClient creates a client for Cohere's OpenAI compatibility API.
func NewCohereClient(apiKey string, opts ...ClientOption) *Client {
	return newClient("cohere", apiKey, CohereChatModel, CohereEmbeddingModel, CohereBaseURL, opts)
}

func newClient(name, apiKey, chatModel, embeddingModel, baseURL string, opts []ClientOption) *Client {
	c := &Client{name: name, chatModel: chatModel, embeddingModel: embeddingModel}
	s := &clientSettings{baseURL: baseURL, client: c}
	for _, opt := range opts {
		opt(s)
	}

	// Each request is a single attempt; failures surface to the caller.
	sdkOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if s.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(s.baseURL))
	}
	if s.httpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(s.httpClient))
	}
	c.sdk = openaisdk.NewClient(sdkOpts...)
	return c
}

// Name returns the provider name used in errors and metrics.
func (c *Client) Name() string { return c.name }

// Model returns the chat model name.
func (c *Client) Model() string { return c.chatModel }

// Complete sends prompt as a single user message and returns the reply text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.chatModel),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", domain.NewProviderError(c.name, "complete", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewProviderError(c.name, "complete", ErrNoChoices)
	}
	return resp.Choices[0].Message.Content, nil
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
	params := openaisdk.EmbeddingNewParams{
		Model:          openaisdk.EmbeddingModel(c.embeddingModel),
		Input:          openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	}
	if c.dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(c.dimensions))
	}

	resp, err := c.sdk.Embeddings.New(ctx, params)
	if err != nil {
		return nil, domain.NewProviderError(c.name, "embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.NewProviderError(c.name, "embed",
			fmt.Errorf("%w: got %d, want %d", ErrEmbeddingCount, len(resp.Data), len(texts)))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, domain.NewProviderError(c.name, "embed", fmt.Errorf("embedding index %d out of range", d.Index))
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}
