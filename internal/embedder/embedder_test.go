package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrag/pkg/types"
)

// recordingEmbedder returns vectors derived from each text and records batch sizes
type recordingEmbedder struct {
	batches []int
	failAt  int // batch number that fails, -1 for never
}

func (r *recordingEmbedder) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	resp, err := r.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (r *recordingEmbedder) GenerateBatch(_ context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if r.failAt == len(r.batches) {
		r.batches = append(r.batches, len(req.Texts))
		return nil, errors.New("boom")
	}
	r.batches = append(r.batches, len(req.Texts))
	out := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		out[i] = &Embedding{Vector: []float32{float32(len(text))}, Dimension: 1}
	}
	return &BatchEmbeddingResponse{Embeddings: out}, nil
}

func (r *recordingEmbedder) Dimension() int   { return 1 }
func (r *recordingEmbedder) Provider() string { return "recording" }
func (r *recordingEmbedder) Model() string    { return "recording" }
func (r *recordingEmbedder) Close() error     { return nil }

func TestComputeHash(t *testing.T) {
	h1 := ComputeHash("hello")
	h2 := ComputeHash("hello")
	h3 := ComputeHash("world")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "x"}))
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		wantErr error
	}{
		{"valid", []string{"a", "b"}, nil},
		{"empty batch", nil, ErrInvalidInput},
		{"empty text", []string{"a", ""}, ErrInvalidInput},
		{"too large", make([]string, MaxBatchSize+1), ErrBatchTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: tt.texts})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEmbedTexts(t *testing.T) {
	ctx := context.Background()

	t.Run("splits into batches and preserves order", func(t *testing.T) {
		texts := make([]string, 250)
		for i := range texts {
			texts[i] = fmt.Sprintf("%*s", i%7+1, "x")
		}
		e := &recordingEmbedder{failAt: -1}

		vectors, err := EmbedTexts(ctx, e, texts, 100)
		require.NoError(t, err)
		require.Len(t, vectors, 250)
		assert.Equal(t, []int{100, 100, 50}, e.batches)
		for i, v := range vectors {
			assert.Equal(t, float32(len(texts[i])), v[0])
		}
	})

	t.Run("batch size capped at maximum", func(t *testing.T) {
		texts := make([]string, 150)
		for i := range texts {
			texts[i] = "t"
		}
		e := &recordingEmbedder{failAt: -1}

		_, err := EmbedTexts(ctx, e, texts, 1000)
		require.NoError(t, err)
		assert.Equal(t, []int{100, 50}, e.batches)
	})

	t.Run("empty input", func(t *testing.T) {
		vectors, err := EmbedTexts(ctx, &recordingEmbedder{failAt: -1}, nil, 10)
		require.NoError(t, err)
		assert.Empty(t, vectors)
	})

	t.Run("failure in any batch fails whole call", func(t *testing.T) {
		texts := []string{"a", "b", "c"}
		e := &recordingEmbedder{failAt: 1}

		vectors, err := EmbedTexts(ctx, e, texts, 2)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrEmbedding)
		assert.Nil(t, vectors)
	})
}

func TestEmbedQuery(t *testing.T) {
	vec, err := EmbedQuery(context.Background(), &recordingEmbedder{failAt: -1}, "four")
	require.NoError(t, err)
	assert.Equal(t, []float32{4}, vec)

	_, err = EmbedQuery(context.Background(), &recordingEmbedder{failAt: 0}, "x")
	assert.ErrorIs(t, err, types.ErrEmbedding)
}

func TestCache(t *testing.T) {
	t.Run("get returns copy", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("k", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3})

		got, ok := cache.Get("k")
		require.True(t, ok)
		got.Vector[0] = 99

		again, ok := cache.Get("k")
		require.True(t, ok)
		assert.Equal(t, float32(1), again.Vector[0])
	})

	t.Run("eviction", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("a", &Embedding{Vector: []float32{1}})
		cache.Set("b", &Embedding{Vector: []float32{2}})
		cache.Set("c", &Embedding{Vector: []float32{3}})

		assert.Equal(t, 2, cache.Size())
		_, ok := cache.Get("a")
		assert.False(t, ok)
	})

	t.Run("stats and clear", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("a", &Embedding{Vector: []float32{1}})
		cache.Get("a")
		cache.Get("missing")

		hits, misses := cache.Stats()
		assert.Equal(t, int64(1), hits)
		assert.Equal(t, int64(1), misses)

		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	p := NewLocalProvider(0, NewCache(10))

	assert.Equal(t, LocalDimension, p.Dimension())
	assert.Equal(t, ProviderLocal, p.Provider())
	assert.Equal(t, LocalModel, p.Model())
	assert.NoError(t, p.Close())

	t.Run("deterministic and normalized", func(t *testing.T) {
		a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "quarterly revenue grew"})
		require.NoError(t, err)
		b, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "quarterly revenue grew"})
		require.NoError(t, err)

		assert.Equal(t, a.Vector, b.Vector)
		assert.Len(t, a.Vector, LocalDimension)
		assert.InDelta(t, 1.0, norm(a.Vector), 1e-5)
	})

	t.Run("shared vocabulary is closer", func(t *testing.T) {
		q, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "revenue growth"})
		near, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "the revenue growth was strong"})
		far, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "penguins swim in cold water"})

		assert.Greater(t, dot(q.Vector, near.Vector), dot(q.Vector, far.Vector))
	})

	t.Run("punctuation only still yields unit vector", func(t *testing.T) {
		e, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "?!..."})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, norm(e.Vector), 1e-5)
	})

	t.Run("batch preserves order", func(t *testing.T) {
		texts := []string{"one", "two", "three"}
		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: texts})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 3)
		for i, text := range texts {
			single, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
			assert.Equal(t, single.Vector, resp.Embeddings[i].Vector)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := p.GenerateBatch(cctx, BatchEmbeddingRequest{Texts: []string{"a"}})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := NormalizeVector([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
