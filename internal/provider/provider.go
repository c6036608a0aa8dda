// Package provider assembles the embedding and chat capabilities from the
// configured hosted providers and wraps them with rate limiting, timeouts,
// metrics and query-embedding caching.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/couchcryptid/rainfall-insights/internal/adapter/gemini"
	"github.com/couchcryptid/rainfall-insights/internal/adapter/ollama"
	"github.com/couchcryptid/rainfall-insights/internal/adapter/openai"
	"github.com/couchcryptid/rainfall-insights/internal/config"
	"github.com/couchcryptid/rainfall-insights/internal/domain"
	"github.com/couchcryptid/rainfall-insights/internal/knowledge"
	"github.com/couchcryptid/rainfall-insights/internal/observability"
)

// Set is the decorated pair of capabilities used by the service.
type Set struct {
	Embedder  domain.BatchEmbedder
	Completer domain.Completer
}

// remote is what every hosted adapter implements.
type remote interface {
	domain.BatchEmbedder
	domain.Completer
	Name() string
}

// New builds the provider set described by cfg. Embedder and completer share
// one rate limiter.
func New(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*Set, error) {
	limiter := NewLimiter(cfg.ProviderRateLimit)
	clients := make(map[string]remote)
	// Hosted SDK calls get client spans under the request that triggered them.
	hc := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	get := func(name string) (remote, error) {
		if c, ok := clients[name]; ok {
			return c, nil
		}
		c, err := newRemote(ctx, name, cfg, hc, logger)
		if err != nil {
			return nil, err
		}
		clients[name] = c
		return c, nil
	}

	chat, err := get(cfg.LLMProvider)
	if err != nil {
		return nil, err
	}
	completer := NewLimitedCompleter(
		NewTimedCompleter(chat, chat.Name(), cfg.ProviderTimeout, metrics),
		limiter,
	)

	var embedder domain.BatchEmbedder
	if cfg.EmbeddingProvider == config.ProviderLexical {
		embedder = knowledge.NewLexicalEmbedder(0)
	} else {
		emb, err := get(cfg.EmbeddingProvider)
		if err != nil {
			return nil, err
		}
		embedder = NewLimitedEmbedder(
			NewTimedEmbedder(emb, emb.Name(), cfg.ProviderTimeout, metrics),
			limiter,
		)
	}

	if cfg.EmbeddingCacheSize > 0 {
		cached, err := NewCachedEmbedder(embedder, cfg.EmbeddingCacheSize, cfg.ProviderTimeout, metrics)
		if err != nil {
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
		embedder = cached
	}

	logger.Info("providers configured",
		"llm_provider", cfg.LLMProvider,
		"chat_model", completer.Model(),
		"embedding_provider", cfg.EmbeddingProvider,
		"rate_limit", cfg.ProviderRateLimit,
		"timeout", cfg.ProviderTimeout,
		"embedding_cache_size", cfg.EmbeddingCacheSize,
		"embedding_dimensions", cfg.EmbeddingDimensions,
	)
	return &Set{Embedder: embedder, Completer: completer}, nil
}

func newRemote(ctx context.Context, name string, cfg *config.Config, hc *http.Client, logger *slog.Logger) (remote, error) {
	switch name {
	case config.ProviderCohere, config.ProviderOpenAI:
		opts := []openai.ClientOption{
			openai.WithChatModel(cfg.ChatModel),
			openai.WithEmbeddingModel(cfg.EmbeddingModel),
			openai.WithDimensions(cfg.EmbeddingDimensions),
			openai.WithHTTPClient(hc),
		}
		if cfg.LLMBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLMBaseURL))
		}
		if name == config.ProviderCohere {
			return openai.NewCohereClient(cfg.LLMAPIKey, opts...), nil
		}
		return openai.NewClient(cfg.LLMAPIKey, opts...), nil
	case config.ProviderGemini:
		opts := []gemini.ClientOption{
			gemini.WithChatModel(cfg.ChatModel),
			gemini.WithEmbeddingModel(cfg.EmbeddingModel),
			gemini.WithDimensions(cfg.EmbeddingDimensions),
			gemini.WithHTTPClient(hc),
		}
		if cfg.LLMBaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.LLMBaseURL))
		}
		client, err := gemini.NewClient(ctx, cfg.LLMAPIKey, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderOllama:
		return ollama.NewClient(cfg.OllamaURL, cfg.ChatModel, cfg.EmbeddingModel, cfg.ProviderTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
