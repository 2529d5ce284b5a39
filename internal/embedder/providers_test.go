package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2,
	}
}

// embeddingServer answers OpenAI-style embedding requests. Each vector is
// [len(input), index] and data is returned in reverse order to exercise
// index-based reassembly.
func embeddingServer(t *testing.T, calls *atomic.Int32, inputs *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(embeddingHandler(calls, inputs))
}

func embeddingHandler(calls *atomic.Int32, inputs *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		inputs.Add(int32(len(req.Input)))

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(req.Input[i])), float32(i)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	}
}

func TestOpenAIProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("batch against compatible server", func(t *testing.T) {
		var calls, inputs atomic.Int32
		server := embeddingServer(t, &calls, &inputs)
		defer server.Close()

		p, err := NewOpenAIProvider(Config{BaseURL: server.URL + "/v1", APIKey: "test"}, NewCache(10))
		require.NoError(t, err)

		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "bbb", "cc"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 3)
		assert.Equal(t, []float32{1, 0}, resp.Embeddings[0].Vector)
		assert.Equal(t, []float32{3, 1}, resp.Embeddings[1].Vector)
		assert.Equal(t, []float32{2, 2}, resp.Embeddings[2].Vector)
		assert.Equal(t, ProviderOpenAI, resp.Provider)
		assert.Equal(t, DefaultModelName, resp.Model)
	})

	t.Run("cache hits skip the API", func(t *testing.T) {
		var calls, inputs atomic.Int32
		server := embeddingServer(t, &calls, &inputs)
		defer server.Close()

		p, err := NewOpenAIProvider(Config{BaseURL: server.URL + "/v1"}, NewCache(10))
		require.NoError(t, err)

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached"})
		require.NoError(t, err)

		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"cached", "fresh"}})
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, int32(2), inputs.Load())
		assert.Equal(t, float32(6), resp.Embeddings[0].Vector[0])
		assert.Equal(t, float32(5), resp.Embeddings[1].Vector[0])
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
		}))
		defer server.Close()

		p, err := NewOpenAIProvider(Config{BaseURL: server.URL + "/v1", APIKey: "bad"}, nil)
		require.NoError(t, err)
		p.retry = fastRetry()

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("server errors are retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"down","type":"server_error"}}`))
		}))
		defer server.Close()

		p, err := NewOpenAIProvider(Config{BaseURL: server.URL + "/v1"}, nil)
		require.NoError(t, err)
		p.retry = fastRetry()

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.Error(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})
}

func TestJinaProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("successful batch", func(t *testing.T) {
		var calls, inputs atomic.Int32
		handler := embeddingHandler(&calls, &inputs)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/embeddings", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			handler(w, r)
		}))
		defer server.Close()

		p, err := NewJinaProvider(Config{APIKey: "test-key", BaseURL: server.URL}, nil)
		require.NoError(t, err)
		defer p.Close()

		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"hello", "hi"}})
		require.NoError(t, err)
		assert.Equal(t, []float32{5, 0}, resp.Embeddings[0].Vector)
		assert.Equal(t, []float32{2, 1}, resp.Embeddings[1].Vector)
		assert.Equal(t, ProviderJina, p.Provider())
	})

	t.Run("rate limit status is retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"index": 0, "embedding": []float32{1, 2}}},
			})
		}))
		defer server.Close()

		p, err := NewJinaProvider(Config{APIKey: "k", BaseURL: server.URL}, nil)
		require.NoError(t, err)
		p.retry = fastRetry()

		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2}, emb.Vector)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("missing vector fails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"index": 0, "embedding": []float32{1}}},
			})
		}))
		defer server.Close()

		p, err := NewJinaProvider(Config{APIKey: "k", BaseURL: server.URL}, nil)
		require.NoError(t, err)
		p.retry = fastRetry()

		_, err = p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "b"}})
		assert.ErrorIs(t, err, ErrProviderFailed)
	})
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		attempts := 0
		got, err := retryWithBackoff(ctx, fastRetry(), func() (int, error) {
			attempts++
			if attempts < 3 {
				return 0, errors.New("transient")
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, attempts)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		attempts := 0
		sentinel := errors.New("bad request")
		_, err := retryWithBackoff(ctx, fastRetry(), func() (int, error) {
			attempts++
			return 0, permanent(sentinel)
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, attempts)
	})

	t.Run("context cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := retryWithBackoff(cctx, fastRetry(), func() (int, error) {
			return 0, errors.New("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRateLimiter(t *testing.T) {
	var nilLimiter *RateLimiter
	assert.NoError(t, nilLimiter.Wait(context.Background()))
	assert.Nil(t, NewRateLimiter(0, 1))

	limiter := NewRateLimiter(1000, 1)
	require.NotNil(t, limiter)
	assert.NoError(t, limiter.Wait(context.Background()))

	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := NewRateLimiter(0.001, 1)
	_ = slow.Wait(context.Background())
	assert.Error(t, slow.Wait(cctx))
}
