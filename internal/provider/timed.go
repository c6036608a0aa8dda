package provider

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
	"github.com/couchcryptid/rainfall-insights/internal/observability"
)

// Operation labels.
const (
	opEmbed    = "embed"
	opComplete = "complete"
)

// TimedEmbedder bounds every embedding call by a timeout and records metrics.
type TimedEmbedder struct {
	inner   domain.BatchEmbedder
	name    string
	timeout time.Duration
	metrics *observability.Metrics
}

// NewTimedEmbedder wraps inner. A zero timeout only records metrics.
func NewTimedEmbedder(inner domain.Embedder, name string, timeout time.Duration, metrics *observability.Metrics) *TimedEmbedder {
	return &TimedEmbedder{inner: AsBatch(inner), name: name, timeout: timeout, metrics: metrics}
}

func (t *TimedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := observe(ctx, t.name, opEmbed, t.timeout, t.metrics, func(ctx context.Context) error {
		var err error
		out, err = t.inner.Embed(ctx, text)
		return err
	})
	return out, err
}

func (t *TimedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := observe(ctx, t.name, opEmbed, t.timeout, t.metrics, func(ctx context.Context) error {
		var err error
		out, err = t.inner.EmbedBatch(ctx, texts)
		return err
	})
	return out, err
}

// TimedCompleter bounds every completion by a timeout and records metrics.
type TimedCompleter struct {
	inner   domain.Completer
	name    string
	timeout time.Duration
	metrics *observability.Metrics
}

// NewTimedCompleter wraps inner. A zero timeout only records metrics.
func NewTimedCompleter(inner domain.Completer, name string, timeout time.Duration, metrics *observability.Metrics) *TimedCompleter {
	return &TimedCompleter{inner: inner, name: name, timeout: timeout, metrics: metrics}
}

func (t *TimedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := observe(ctx, t.name, opComplete, t.timeout, t.metrics, func(ctx context.Context) error {
		var err error
		out, err = t.inner.Complete(ctx, prompt)
		return err
	})
	return out, err
}

func (t *TimedCompleter) Model() string { return t.inner.Model() }

func observe(ctx context.Context, name, op string, timeout time.Duration, metrics *observability.Metrics, call func(context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := call(ctx)
	metrics.ProviderDuration.WithLabelValues(name, op).Observe(time.Since(start).Seconds())

	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	metrics.ProviderRequests.WithLabelValues(name, op, outcome).Inc()

	return domain.NewProviderError(name, op, err)
}
