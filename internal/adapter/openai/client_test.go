package openai

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

type recorded struct {
	mu     sync.Mutex
	paths  []string
	bodies []map[string]any
	auth   []string
}

func (r *recorded) add(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	var m map[string]any
	_ = json.Unmarshal(body, &m)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, req.URL.Path)
	r.bodies = append(r.bodies, m)
	r.auth = append(r.auth, req.Header.Get("Authorization"))
}

func newTestServer(t *testing.T, rec *recorded, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const chatResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "command-r-plus",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Imagine ten friends..."}}]
}`

const embeddingResponse = `{
  "object": "list",
  "model": "embed-english-v3.0",
  "data": [
    {"object": "embedding", "index": 1, "embedding": [0.0, 1.0]},
    {"object": "embedding", "index": 0, "embedding": [1.0, 0.5]}
  ],
  "usage": {"prompt_tokens": 4, "total_tokens": 4}
}`

func TestComplete(t *testing.T) {
	rec := &recorded{}
	srv := newTestServer(t, rec, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatResponse))
	})

	client := NewCohereClient("secret", WithBaseURL(srv.URL+"/"))
	out, err := client.Complete(t.Context(), "Explain variance")
	require.NoError(t, err)

	assert.Equal(t, "Imagine ten friends...", out)
	assert.Equal(t, CohereChatModel, client.Model())
	require.Len(t, rec.paths, 1)
	assert.True(t, strings.HasSuffix(rec.paths[0], "/chat/completions"))
	assert.Equal(t, "Bearer secret", rec.auth[0])
	assert.Equal(t, "command-r-plus", rec.bodies[0]["model"])

	messages, ok := rec.bodies[0]["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "Explain variance", msg["content"])
	assert.NotContains(t, rec.bodies[0], "temperature")
}

func TestComplete_ProviderErrorNoRetry(t *testing.T) {
	rec := &recorded{}
	srv := newTestServer(t, rec, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit"}}`))
	})

	client := NewClient("secret", WithBaseURL(srv.URL+"/"), WithChatModel("gpt-4o"))
	_, err := client.Complete(t.Context(), "hi")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProvider)
	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "openai", pe.Provider)
	assert.Equal(t, "complete", pe.Op)
	assert.Len(t, rec.paths, 1)
	assert.Equal(t, "gpt-4o", client.Model())
}

func TestComplete_NoChoices(t *testing.T) {
	rec := &recorded{}
	srv := newTestServer(t, rec, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":0,"model":"m","choices":[]}`))
	})

	_, err := NewClient("k", WithBaseURL(srv.URL+"/")).Complete(t.Context(), "hi")
	assert.ErrorIs(t, err, ErrNoChoices)
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestEmbedBatch_ReordersByIndex(t *testing.T) {
	rec := &recorded{}
	srv := newTestServer(t, rec, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(embeddingResponse))
	})

	client := NewCohereClient("secret", WithBaseURL(srv.URL+"/"))
	vectors, err := client.EmbedBatch(t.Context(), []string{"mean", "variance"})
	require.NoError(t, err)

	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0.5}, vectors[0])
	assert.Equal(t, []float32{0, 1}, vectors[1])

	require.Len(t, rec.paths, 1)
	assert.True(t, strings.HasSuffix(rec.paths[0], "/embeddings"))
	assert.Equal(t, "embed-english-v3.0", rec.bodies[0]["model"])
	assert.Equal(t, "float", rec.bodies[0]["encoding_format"])
	assert.NotContains(t, rec.bodies[0], "dimensions")
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	rec := &recorded{}
	srv := newTestServer(t, rec, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(embeddingResponse))
	})

	_, err := NewClient("k", WithBaseURL(srv.URL+"/")).Embed(t.Context(), "mean")
	assert.ErrorIs(t, err, ErrEmbeddingCount)
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestEmbed_SendsDimensions(t *testing.T) {
	rec := &recorded{}
	srv := newTestServer(t, rec, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[0.25]}],"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	})

	client := NewClient("k", WithBaseURL(srv.URL+"/"), WithEmbeddingModel("text-embedding-3-large"), WithDimensions(1))
	vec, err := client.Embed(t.Context(), "mean")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.25}, vec)
	assert.Equal(t, "text-embedding-3-large", rec.bodies[0]["model"])
	assert.InDelta(t, 1.0, rec.bodies[0]["dimensions"], 0)
}
