package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Provider names accepted by LLM_PROVIDER and EMBEDDING_PROVIDER.
const (
	ProviderCohere  = "cohere"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderOllama  = "ollama"
	ProviderLexical = "lexical" // embeddings only
)

// Index backends accepted by INDEX_BACKEND.
const (
	IndexMemory = "memory"
	IndexQdrant = "qdrant"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DataPath   string
	CorpusPath string

	ForecastTimeout       time.Duration
	ForecastFullFinalYear bool

	// Hosted model configuration.
	LLMProvider        string
	EmbeddingProvider  string
	LLMAPIKey          string
	LLMBaseURL         string
	ChatModel          string
	EmbeddingModel     string
	OllamaURL          string
	ProviderTimeout    time.Duration
	ProviderRateLimit  float64
	EmbeddingCacheSize int

	// EmbeddingDimensions asks hosted models for vectors of this size; 0 keeps the model default.
	EmbeddingDimensions int

	IndexBackend     string
	QdrantAddr       string
	QdrantCollection string

	// Activity event publishing.
	EventsEnabled bool
	KafkaBrokers  []string
	KafkaTopic    string
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is read first; it never overrides
// variables already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	forecastTimeout, err := parseDuration("FORECAST_TIMEOUT", "2m")
	if err != nil {
		return nil, err
	}
	providerTimeout, err := parseDuration("PROVIDER_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	fullFinalYear, err := parseBool("FORECAST_FULL_FINAL_YEAR", false)
	if err != nil {
		return nil, err
	}
	eventsEnabled, err := parseBool("EVENTS_ENABLED", false)
	if err != nil {
		return nil, err
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("PROVIDER_RATE_LIMIT", "5"), 64)
	if err != nil || rateLimit < 0 {
		return nil, errors.New("invalid PROVIDER_RATE_LIMIT")
	}

	cacheSize, err := strconv.Atoi(sharedcfg.EnvOrDefault("EMBEDDING_CACHE_SIZE", "256"))
	if err != nil || cacheSize < 0 {
		return nil, errors.New("invalid EMBEDDING_CACHE_SIZE")
	}

	dimensions, err := strconv.Atoi(sharedcfg.EnvOrDefault("EMBEDDING_DIMENSIONS", "0"))
	if err != nil || dimensions < 0 {
		return nil, errors.New("invalid EMBEDDING_DIMENSIONS")
	}

	llmProvider := strings.ToLower(sharedcfg.EnvOrDefault("LLM_PROVIDER", ProviderCohere))
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("CO_API_KEY")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataPath:   sharedcfg.EnvOrDefault("DATA_PATH", "data/hyd-monthly-rains.csv"),
		CorpusPath: sharedcfg.EnvOrDefault("CORPUS_PATH", "data/my_db.json"),

		ForecastTimeout:       forecastTimeout,
		ForecastFullFinalYear: fullFinalYear,

		LLMProvider:        llmProvider,
		EmbeddingProvider:  strings.ToLower(sharedcfg.EnvOrDefault("EMBEDDING_PROVIDER", llmProvider)),
		LLMAPIKey:          apiKey,
		LLMBaseURL:         os.Getenv("LLM_BASE_URL"),
		ChatModel:          os.Getenv("CHAT_MODEL"),
		EmbeddingModel:     os.Getenv("EMBEDDING_MODEL"),
		OllamaURL:          sharedcfg.EnvOrDefault("OLLAMA_URL", "http://localhost:11434"),
		ProviderTimeout:    providerTimeout,
		ProviderRateLimit:  rateLimit,
		EmbeddingCacheSize: cacheSize,

		EmbeddingDimensions: dimensions,

		IndexBackend:     strings.ToLower(sharedcfg.EnvOrDefault("INDEX_BACKEND", IndexMemory)),
		QdrantAddr:       sharedcfg.EnvOrDefault("QDRANT_ADDR", "localhost:6334"),
		QdrantCollection: sharedcfg.EnvOrDefault("QDRANT_COLLECTION", "rainfall-glossary"),

		EventsEnabled: eventsEnabled,
		KafkaBrokers:  sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:    sharedcfg.EnvOrDefault("KAFKA_TOPIC", "rainfall-activity"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case ProviderCohere, ProviderOpenAI, ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("invalid LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.EmbeddingProvider {
	case ProviderCohere, ProviderOpenAI, ProviderGemini, ProviderOllama, ProviderLexical:
	default:
		return fmt.Errorf("invalid EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}
	if c.LLMAPIKey == "" && (needsKey(c.LLMProvider) || needsKey(c.EmbeddingProvider)) {
		return errors.New("LLM_API_KEY (or CO_API_KEY) is required")
	}

	switch c.IndexBackend {
	case IndexMemory:
	case IndexQdrant:
		if c.QdrantAddr == "" {
			return errors.New("QDRANT_ADDR is required")
		}
		if c.QdrantCollection == "" {
			return errors.New("QDRANT_COLLECTION is required")
		}
	default:
		return fmt.Errorf("invalid INDEX_BACKEND %q", c.IndexBackend)
	}

	if c.DataPath == "" {
		return errors.New("DATA_PATH is required")
	}
	if c.CorpusPath == "" {
		return errors.New("CORPUS_PATH is required")
	}

	if c.EventsEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required")
		}
	}
	return nil
}

func needsKey(provider string) bool {
	return provider == ProviderCohere || provider == ProviderOpenAI || provider == ProviderGemini
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}
