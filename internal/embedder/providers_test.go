package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semdex/semdex-mcp/pkg/types"
)

// fakeEmbeddingServer answers the OpenAI-compatible embeddings API with
// per-input vectors derived from input order.
func fakeEmbeddingServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]interface{}{"model": req.Model}
		data := make([]map[string]interface{}, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]interface{}{
				"embedding": []float32{float32(len(req.Input[i])), 1, 2},
				"index":     i,
			}
		}
		resp["data"] = data
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestProvider(t *testing.T, endpoint string, batchSize int, cache *Cache) *HTTPProvider {
	t.Helper()
	p, err := NewHTTPProvider(HTTPOptions{
		Provider:  ProviderOpenAI,
		APIKey:    "test-key",
		Endpoint:  endpoint,
		BatchSize: batchSize,
		Timeout:   5 * time.Second,
		Cache:     cache,
	})
	require.NoError(t, err)
	return p
}

func TestHTTPProviderRequiresAPIKey(t *testing.T) {
	_, err := NewHTTPProvider(HTTPOptions{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestHTTPProviderUnknownProvider(t *testing.T) {
	_, err := NewHTTPProvider(HTTPOptions{Provider: "mystery", APIKey: "k"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestHTTPProviderDefaults(t *testing.T) {
	p, err := NewHTTPProvider(HTTPOptions{Provider: ProviderJina, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultJinaModel, p.Model())
	assert.Equal(t, JinaDimension, p.Dimension())
	assert.Equal(t, ProviderJina, p.Provider())
}

func TestHTTPProviderBatchOrder(t *testing.T) {
	var calls int32
	srv := fakeEmbeddingServer(t, &calls)
	defer srv.Close()

	p := newTestProvider(t, srv.URL, 50, nil)
	defer func() { _ = p.Close() }()

	texts := []string{"a", "bb", "ccc"}
	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)

	// The fake server encodes input length into the first component.
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), resp.Embeddings[i].Vector[0])
	}
}

func TestHTTPProviderSubBatching(t *testing.T) {
	var calls int32
	srv := fakeEmbeddingServer(t, &calls)
	defer srv.Close()

	p := newTestProvider(t, srv.URL, 2, nil)

	texts := []string{"one", "two", "three", "four", "five"}
	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	require.NoError(t, err)
	assert.Len(t, resp.Embeddings, 5)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "5 texts at batch size 2 should take 3 calls")
}

func TestHTTPProviderUsesCache(t *testing.T) {
	var calls int32
	srv := fakeEmbeddingServer(t, &calls)
	defer srv.Close()

	p := newTestProvider(t, srv.URL, 50, NewCache(100))

	texts := []string{"cached one", "cached two"}
	_, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second identical batch must be served from cache")
}

func TestHTTPProviderServerErrorIsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, 50, nil)

	_, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrServiceUnavailable)
}

func TestHTTPProviderConnectionRefusedIsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	p := newTestProvider(t, srv.URL, 50, nil)

	_, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrServiceUnavailable)
}

func TestHTTPProviderAuthErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, 50, nil)

	_, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrServiceUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "auth failures must not be retried")
}

func TestHTTPProviderRecoversAfterRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		resp := map[string]interface{}{
			"model": "m",
			"data": []map[string]interface{}{
				{"embedding": []float32{1, 2, 3}, "index": 0},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPOptions{
		Provider: ProviderOpenAI,
		APIKey:   "k",
		Endpoint: srv.URL,
		Timeout:  5 * time.Second,
		Limiter:  NewRateLimiter(100, 10),
	})
	require.NoError(t, err)

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGenerateEmbeddingSingle(t *testing.T) {
	var calls int32
	srv := fakeEmbeddingServer(t, &calls)
	defer srv.Close()

	p := newTestProvider(t, srv.URL, 50, nil)

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, float32(5), emb.Vector[0])
	assert.NotEmpty(t, emb.Hash)
}
