package provider

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

// NewLimiter returns a token bucket allowing perSecond calls per second.
// Zero disables limiting.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := max(1, int(math.Ceil(perSecond)))
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// LimitedEmbedder waits for a token before every embedding call.
type LimitedEmbedder struct {
	inner   domain.BatchEmbedder
	limiter *rate.Limiter
}

// NewLimitedEmbedder wraps inner with limiter.
func NewLimitedEmbedder(inner domain.Embedder, limiter *rate.Limiter) *LimitedEmbedder {
	return &LimitedEmbedder{inner: AsBatch(inner), limiter: limiter}
}

func (l *LimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := wait(ctx, l.limiter); err != nil {
		return nil, err
	}
	return l.inner.Embed(ctx, text)
}

func (l *LimitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := wait(ctx, l.limiter); err != nil {
		return nil, err
	}
	return l.inner.EmbedBatch(ctx, texts)
}

// LimitedCompleter waits for a token before every completion.
type LimitedCompleter struct {
	inner   domain.Completer
	limiter *rate.Limiter
}

// NewLimitedCompleter wraps inner with limiter.
func NewLimitedCompleter(inner domain.Completer, limiter *rate.Limiter) *LimitedCompleter {
	return &LimitedCompleter{inner: inner, limiter: limiter}
}

func (l *LimitedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := wait(ctx, l.limiter); err != nil {
		return "", err
	}
	return l.inner.Complete(ctx, prompt)
}

func (l *LimitedCompleter) Model() string { return l.inner.Model() }

// wait blocks for a token. A wait that would outlast the context deadline
// fails immediately and is reported as context.DeadlineExceeded.
func wait(ctx context.Context, limiter *rate.Limiter) error {
	err := limiter.Wait(ctx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("rate limit: %w", ctxErr)
	}
	return fmt.Errorf("rate limit: %w", errors.Join(context.DeadlineExceeded, err))
}
