package embedder

import (
	"context"
	"fmt"
	"sync/atomic"
)

// fetchFunc sends texts to a remote API and returns one vector per text, in order
type fetchFunc func(ctx context.Context, texts []string, model string) ([][]float32, error)

// remoteBase implements the Embedder contract on top of a fetchFunc. It handles
// validation, per-text caching, rate limiting and retries for every network
// provider.
type remoteBase struct {
	provider  string
	model     string
	dimension atomic.Int64
	cache     *Cache
	limiter   *RateLimiter
	retry     RetryConfig
	fetch     fetchFunc
}

func newRemoteBase(provider, model string, dimension int, cache *Cache, limiter *RateLimiter, fetch fetchFunc) *remoteBase {
	r := &remoteBase{
		provider: provider,
		model:    model,
		cache:    cache,
		limiter:  limiter,
		retry:    DefaultRetryConfig(),
		fetch:    fetch,
	}
	r.dimension.Store(int64(dimension))
	return r
}

// GenerateEmbedding embeds a single text
func (r *remoteBase) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := r.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}

	return resp.Embeddings[0], nil
}

// GenerateBatch embeds texts in order, only sending cache misses to the API
func (r *remoteBase) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = r.model
	}

	embeddings := make([]*Embedding, len(req.Texts))
	missIdx := make([]int, 0, len(req.Texts))
	missTexts := make([]string, 0, len(req.Texts))
	for i, text := range req.Texts {
		if r.cache != nil {
			if emb, ok := r.cache.Get(cacheKey(r.provider, model, text)); ok {
				embeddings[i] = emb
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) > 0 {
		vectors, err := retryWithBackoff(ctx, r.retry, func() ([][]float32, error) {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return r.fetch(ctx, missTexts, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrProviderFailed, r.provider, err)
		}
		if len(vectors) != len(missTexts) {
			return nil, fmt.Errorf("%w: %s returned %d vectors for %d texts",
				ErrProviderFailed, r.provider, len(vectors), len(missTexts))
		}

		for j, vector := range vectors {
			i := missIdx[j]
			emb := &Embedding{
				Vector:    vector,
				Dimension: len(vector),
				Provider:  r.provider,
				Model:     model,
				Hash:      ComputeHash(req.Texts[i]),
			}
			embeddings[i] = emb
			if r.cache != nil {
				r.cache.Set(cacheKey(r.provider, model, req.Texts[i]), emb)
			}
		}
		r.dimension.CompareAndSwap(0, int64(len(vectors[0])))
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   r.provider,
		Model:      model,
	}, nil
}

// Dimension returns the configured dimension, or the one observed on the first call
func (r *remoteBase) Dimension() int {
	return int(r.dimension.Load())
}

// Provider returns the provider name
func (r *remoteBase) Provider() string {
	return r.provider
}

// Model returns the default model name
func (r *remoteBase) Model() string {
	return r.model
}
