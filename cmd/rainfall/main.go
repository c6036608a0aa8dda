// Command rainfall serves the rainfall forecast and glossary explanation API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	httpadapter "github.com/couchcryptid/rainfall-insights/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/rainfall-insights/internal/adapter/kafka"
	"github.com/couchcryptid/rainfall-insights/internal/adapter/qdrant"
	"github.com/couchcryptid/rainfall-insights/internal/config"
	"github.com/couchcryptid/rainfall-insights/internal/dataset"
	"github.com/couchcryptid/rainfall-insights/internal/forecast"
	"github.com/couchcryptid/rainfall-insights/internal/knowledge"
	"github.com/couchcryptid/rainfall-insights/internal/observability"
	"github.com/couchcryptid/rainfall-insights/internal/pipeline"
	"github.com/couchcryptid/rainfall-insights/internal/provider"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, metrics, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) error {
	ds, err := dataset.LoadFile(cfg.DataPath)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	series, err := ds.Series()
	if err != nil {
		return fmt.Errorf("build series: %w", err)
	}
	summary := ds.Summary()
	logger.Info("dataset loaded", "path", cfg.DataPath, "first_year", summary.FirstYear, "last_year", summary.LastYear)

	docs, err := knowledge.LoadCorpusFile(cfg.CorpusPath)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	providers, err := provider.New(ctx, cfg, metrics, logger)
	if err != nil {
		return fmt.Errorf("init providers: %w", err)
	}

	// Initialize the vector index (feature-flagged via INDEX_BACKEND).
	var index knowledge.Index
	switch cfg.IndexBackend {
	case config.IndexQdrant:
		q, err := qdrant.New(cfg.QdrantAddr, cfg.QdrantCollection)
		if err != nil {
			return fmt.Errorf("connect qdrant: %w", err)
		}
		defer func() {
			if err := q.Close(); err != nil {
				logger.Error("qdrant close error", "error", err)
			}
		}()
		index = q
		logger.Info("qdrant index enabled", "addr", cfg.QdrantAddr, "collection", cfg.QdrantCollection)
	default:
		index = knowledge.NewMemoryIndex()
		logger.Info("in-memory index enabled")
	}

	store, err := knowledge.Build(ctx, docs, providers.Embedder, index, logger)
	if err != nil {
		return fmt.Errorf("build knowledge store: %w", err)
	}
	metrics.KnowledgeDocuments.Set(float64(store.Len()))

	var opts []forecast.Option
	if cfg.ForecastTimeout > 0 {
		opts = append(opts, forecast.WithTimeout(cfg.ForecastTimeout))
	}
	if cfg.ForecastFullFinalYear {
		opts = append(opts, forecast.WithFullFinalYear())
	}
	engine := forecast.NewEngine(logger, opts...)
	explainer := pipeline.New(store, nil, providers.Completer, logger)

	// Initialize activity publishing (feature-flagged via EVENTS_ENABLED).
	var publisher httpadapter.Publisher = httpadapter.NopPublisher{}
	if cfg.EventsEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = writer
		logger.Info("activity events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("activity events disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Services{
		Summary:    summary,
		Series:     series,
		Forecaster: engine,
		Explainer:  explainer,
		Ready:      store,
		Publisher:  publisher,
	}, metrics, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
