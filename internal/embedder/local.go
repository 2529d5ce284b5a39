package embedder

import (
	"context"
	"crypto/sha256"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalProvider produces deterministic embeddings without any network access.
// Each lowercase word is hashed into one of Dimension buckets with a sign
// taken from the hash, and the result is L2-normalized, so texts sharing
// vocabulary land close together under cosine distance.
type LocalProvider struct {
	dimension int
	cache     *Cache
}

// NewLocalProvider creates a feature-hashing provider. dimension <= 0 uses LocalDimension.
func NewLocalProvider(dimension int, cache *Cache) *LocalProvider {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{dimension: dimension, cache: cache}
}

// GenerateEmbedding generates a single embedding
func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.embed(req.Text), nil
}

// GenerateBatch generates embeddings for every text, in order
func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = l.embed(text)
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      LocalModel,
	}, nil
}

func (l *LocalProvider) embed(text string) *Embedding {
	key := cacheKey(ProviderLocal, LocalModel, text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(key); ok {
			return emb
		}
	}

	vector := hashVector(text, l.dimension)
	emb := &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  ProviderLocal,
		Model:     LocalModel,
		Hash:      ComputeHash(text),
	}
	if l.cache != nil {
		l.cache.Set(key, emb)
	}
	return emb
}

// Dimension returns the embedding dimension
func (l *LocalProvider) Dimension() int {
	return l.dimension
}

// Provider returns the provider name
func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

// Model returns the model name
func (l *LocalProvider) Model() string {
	return LocalModel
}

// Close is a no-op
func (l *LocalProvider) Close() error {
	return nil
}

// hashVector builds the signed feature-hash vector for text
func hashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)

	tokens := tokenize(text)
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(dim))
		if sum>>63 == 1 {
			vector[idx]--
		} else {
			vector[idx]++
		}
	}

	// Punctuation-only input has no tokens; spread its digest instead
	if len(tokens) == 0 {
		digest := sha256.Sum256([]byte(text))
		for i := range vector {
			vector[i] = float32(digest[i%len(digest)])/255.0 - 0.5
		}
	}

	return NormalizeVector(vector)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// NormalizeVector scales v to unit length in place and returns it.
// The zero vector is returned unchanged.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
