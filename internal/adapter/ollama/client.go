// Package ollama implements the embedding and chat capabilities against a
// local Ollama server's REST API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

const (
	providerName = "ollama"

	// DefaultChatModel is used when no chat model is configured.
	DefaultChatModel = "llama3.1:8b"
	// DefaultEmbeddingModel is used when no embedding model is configured.
	DefaultEmbeddingModel = "nomic-embed-text"
)

// ErrEmbeddingCount is returned when the number of embeddings differs from the number of inputs.
var ErrEmbeddingCount = errors.New("ollama: embedding count mismatch")

// Client implements domain.Completer and domain.BatchEmbedder using Ollama.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	chatModel      string
	embeddingModel string
	logger         *slog.Logger
}

// NewClient creates an Ollama client. Empty model names select the defaults.
func NewClient(baseURL, chatModel, embeddingModel string, timeout time.Duration, logger *slog.Logger) *Client {
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:        strings.TrimRight(baseURL, "/"),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		logger:         logger,
	}
}

// Name returns the provider name used in errors and metrics.
func (c *Client) Name() string { return providerName }

// Model returns the chat model name.
func (c *Client) Model() string { return c.chatModel }

// Complete runs a single non-streaming chat turn.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:    c.chatModel,
		Messages: []message{{Role: "user", Content: prompt}},
		Stream:   false,
	}
	var resp chatResponse
	if err := c.doRequest(ctx, "/api/chat", req, &resp); err != nil {
		return "", domain.NewProviderError(providerName, "complete", err)
	}
	return resp.Message.Content, nil
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
	var resp embedResponse
	if err := c.doRequest(ctx, "/api/embed", embedRequest{Model: c.embeddingModel, Input: texts}, &resp); err != nil {
		return nil, domain.NewProviderError(providerName, "embed", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, domain.NewProviderError(providerName, "embed",
			fmt.Errorf("%w: got %d, want %d", ErrEmbeddingCount, len(resp.Embeddings), len(texts)))
	}
	return resp.Embeddings, nil
}

func (c *Client) doRequest(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	c.logger.Debug("ollama request", "path", path, "duration", time.Since(start))
	return nil
}

// Ollama API request and response types.

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message message `json:"message"`
	Done    bool    `json:"done"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}
