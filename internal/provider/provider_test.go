package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rainfall-insights/internal/config"
	"github.com/couchcryptid/rainfall-insights/internal/domain"
	"github.com/couchcryptid/rainfall-insights/internal/knowledge"
	"github.com/couchcryptid/rainfall-insights/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEmbedder returns a one-hot vector per call and counts upstream calls.
type fakeEmbedder struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type fakeCompleter struct {
	delay time.Duration
}

func (f fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	select {
	case <-time.After(f.delay):
		return "echo: " + prompt, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (fakeCompleter) Model() string { return "fake-1" }

func TestCachedEmbedder_HitAndMiss(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	inner := &fakeEmbedder{}
	cached, err := NewCachedEmbedder(inner, 2, 0, metrics)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := cached.Embed(ctx, "Mean")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "Mean")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.EmbeddingCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.EmbeddingCache.WithLabelValues("miss")), 0)

	first[0] = 99
	third, err := cached.Embed(ctx, "Mean")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, third[0], 0, "callers cannot mutate cached vectors")
}

func TestCachedEmbedder_Evicts(t *testing.T) {
	inner := &fakeEmbedder{}
	cached, err := NewCachedEmbedder(inner, 2, 0, observability.NewMetricsForTesting())
	require.NoError(t, err)

	ctx := context.Background()
	for _, term := range []string{"a", "b", "c", "a"} {
		_, err := cached.Embed(ctx, term)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cached.Len())
	assert.Equal(t, int32(4), inner.calls.Load())
}

func TestCachedEmbedder_ErrorsNotCached(t *testing.T) {
	inner := &fakeEmbedder{err: errors.New("503")}
	cached, err := NewCachedEmbedder(inner, 4, 0, observability.NewMetricsForTesting())
	require.NoError(t, err)

	_, err = cached.Embed(context.Background(), "Mean")
	require.Error(t, err)
	_, err = cached.Embed(context.Background(), "Mean")
	require.Error(t, err)

	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, 0, cached.Len())
}

func TestCachedEmbedder_CoalescesConcurrentMisses(t *testing.T) {
	inner := &fakeEmbedder{delay: 50 * time.Millisecond}
	cached, err := NewCachedEmbedder(inner, 4, 0, observability.NewMetricsForTesting())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cached.Embed(context.Background(), "Variance")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedEmbedder_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	inner := &fakeEmbedder{delay: 100 * time.Millisecond}
	cached, err := NewCachedEmbedder(inner, 4, time.Second, observability.NewMetricsForTesting())
	require.NoError(t, err)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cached.Embed(firstCtx, "Variance")
		firstErr <- err
	}()

	// Let the first caller start the shared load before the second joins it.
	time.Sleep(20 * time.Millisecond)
	secondErr := make(chan error, 1)
	go func() {
		_, err := cached.Embed(context.Background(), "Variance")
		secondErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-firstErr, context.Canceled)
	require.NoError(t, <-secondErr)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 1, cached.Len())
}

func TestCachedEmbedder_SharedLoadBoundedByTimeout(t *testing.T) {
	inner := &fakeEmbedder{delay: time.Second}
	cached, err := NewCachedEmbedder(inner, 4, 30*time.Millisecond, observability.NewMetricsForTesting())
	require.NoError(t, err)

	_, err = cached.Embed(context.Background(), "Variance")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, cached.Len())
}

func TestCachedEmbedder_BatchBypassesCache(t *testing.T) {
	inner := &fakeEmbedder{}
	cached, err := NewCachedEmbedder(inner, 4, 0, observability.NewMetricsForTesting())
	require.NoError(t, err)

	out, err := cached.EmbedBatch(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 0, cached.Len())
}

func TestNewCachedEmbedder_InvalidSize(t *testing.T) {
	_, err := NewCachedEmbedder(&fakeEmbedder{}, 0, 0, observability.NewMetricsForTesting())
	assert.Error(t, err)
}

func TestLimited_HonoursContext(t *testing.T) {
	limiter := NewLimiter(0.001)
	emb := NewLimitedEmbedder(&fakeEmbedder{}, limiter)

	_, err := emb.Embed(context.Background(), "first")
	require.NoError(t, err, "burst allows the first call")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = emb.Embed(ctx, "second")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	comp := NewLimitedCompleter(fakeCompleter{}, limiter)
	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = comp.Complete(cancelled, "hi")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "fake-1", comp.Model())
}

func TestNewLimiter_ZeroDisables(t *testing.T) {
	limiter := NewLimiter(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}
}

func TestTimed_SuccessRecordsMetrics(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	comp := NewTimedCompleter(fakeCompleter{}, "cohere", time.Second, metrics)

	out, err := comp.Complete(context.Background(), "hi")
	require.NoError(t, err)

	assert.Equal(t, "echo: hi", out)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ProviderRequests.WithLabelValues("cohere", "complete", "success")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.ProviderDuration))
}

func TestTimed_TimeoutIsProviderError(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	comp := NewTimedCompleter(fakeCompleter{delay: time.Second}, "cohere", 10*time.Millisecond, metrics)

	_, err := comp.Complete(context.Background(), "hi")
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ProviderRequests.WithLabelValues("cohere", "complete", "timeout")), 0)
}

func TestTimed_ErrorKeepsExistingProviderError(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	original := domain.NewProviderError("openai", "embed", errors.New("401"))
	emb := NewTimedEmbedder(&fakeEmbedder{err: original}, "openai", 0, metrics)

	_, err := emb.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)

	assert.Same(t, original, err)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ProviderRequests.WithLabelValues("openai", "embed", "error")), 0)
}

func TestAsBatch(t *testing.T) {
	inner := &fakeEmbedder{}
	batch := AsBatch(inner)

	out, err := batch.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.InDelta(t, 3.0, out[2][0], 0)
	assert.Equal(t, int32(3), inner.calls.Load())

	lex := knowledge.NewLexicalEmbedder(8)
	assert.Same(t, lex, AsBatch(lex))
}

func TestNew_OllamaWithLexicalEmbeddings(t *testing.T) {
	cfg := &config.Config{
		LLMProvider:        config.ProviderOllama,
		EmbeddingProvider:  config.ProviderLexical,
		OllamaURL:          "http://localhost:11434",
		ChatModel:          "mistral",
		ProviderTimeout:    time.Second,
		ProviderRateLimit:  2,
		EmbeddingCacheSize: 8,
	}

	set, err := New(context.Background(), cfg, observability.NewMetricsForTesting(), discardLogger())
	require.NoError(t, err)

	assert.Equal(t, "mistral", set.Completer.Model())
	assert.IsType(t, &CachedEmbedder{}, set.Embedder)

	vec, err := set.Embedder.Embed(context.Background(), "Standard Deviation")
	require.NoError(t, err)
	assert.Len(t, vec, knowledge.DefaultLexicalDimension)
}

func TestNew_CohereDefaults(t *testing.T) {
	cfg := &config.Config{
		LLMProvider:       config.ProviderCohere,
		EmbeddingProvider: config.ProviderCohere,
		LLMAPIKey:         "k",
		ProviderTimeout:   time.Second,
	}

	set, err := New(context.Background(), cfg, observability.NewMetricsForTesting(), discardLogger())
	require.NoError(t, err)

	assert.Equal(t, "command-r-plus", set.Completer.Model())
	assert.IsType(t, &LimitedEmbedder{}, set.Embedder, "cache disabled at size 0")
}

func TestNew_OpenAIRequestsConfiguredDimensions(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[0.5,0.5,0.5]}],"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		LLMProvider:         config.ProviderOpenAI,
		EmbeddingProvider:   config.ProviderOpenAI,
		LLMAPIKey:           "k",
		LLMBaseURL:          srv.URL + "/",
		ProviderTimeout:     time.Second,
		EmbeddingDimensions: 3,
	}

	set, err := New(context.Background(), cfg, observability.NewMetricsForTesting(), discardLogger())
	require.NoError(t, err)

	vec, err := set.Embedder.Embed(context.Background(), "Mean")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
	assert.InDelta(t, 3.0, body["dimensions"], 0)
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := &config.Config{LLMProvider: "anthropic", EmbeddingProvider: config.ProviderLexical}
	_, err := New(context.Background(), cfg, observability.NewMetricsForTesting(), discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic")
}
