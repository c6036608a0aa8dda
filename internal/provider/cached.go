package provider

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
	"github.com/couchcryptid/rainfall-insights/internal/observability"
)

// CachedEmbedder memoizes single-text embeddings in an LRU cache. Concurrent
// misses for the same text share one upstream call. Batch calls, which only
// happen when the corpus is indexed, bypass the cache.
type CachedEmbedder struct {
	inner   domain.BatchEmbedder
	cache   *lru.Cache[string, []float32]
	group   singleflight.Group
	timeout time.Duration
	metrics *observability.Metrics
}

// NewCachedEmbedder creates a cache decorator holding up to maxEntries vectors.
// A shared upstream call is detached from the caller that started it and is
// bounded by timeout instead; zero leaves it unbounded.
func NewCachedEmbedder(inner domain.Embedder, maxEntries int, timeout time.Duration, metrics *observability.Metrics) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](maxEntries)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: AsBatch(inner), cache: cache, timeout: timeout, metrics: metrics}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		c.metrics.EmbeddingCache.WithLabelValues("hit").Inc()
		return clone(v), nil
	}
	c.metrics.EmbeddingCache.WithLabelValues("miss").Inc()

	ch := c.group.DoChan(text, func() (any, error) {
		// Waiters share this call, so one of them going away must not fail the rest.
		loadCtx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(loadCtx, c.timeout)
			defer cancel()
		}
		vec, err := c.inner.Embed(loadCtx, text)
		if err != nil {
			return nil, err
		}
		// Failed lookups are not cached so transient provider errors can be retried.
		c.cache.Add(text, vec)
		return vec, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]float32)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedBatch(ctx, texts)
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
