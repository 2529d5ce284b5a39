package embedder

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider embeds texts through the Gemini embedding API
type GeminiProvider struct {
	*remoteBase
	client *genai.Client
}

// NewGeminiProvider creates a Gemini provider from cfg, falling back to GEMINI_API_KEY
func NewGeminiProvider(ctx context.Context, cfg Config, cache *Cache) (*GeminiProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(EnvGeminiAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvGeminiAPIKey)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	dim := cfg.Dimensions
	if dim <= 0 && model == DefaultGeminiModel {
		dim = GeminiDimension
	}

	p := &GeminiProvider{client: client}
	p.remoteBase = newRemoteBase(ProviderGemini, model, dim, cache,
		NewRateLimiter(cfg.RequestsPerSecond, 1), p.fetchEmbeddings)
	return p, nil
}

func (p *GeminiProvider) fetchEmbeddings(ctx context.Context, texts []string, model string) ([][]float32, error) {
	em := p.client.EmbeddingModel(model)
	em.TaskType = genai.TaskTypeRetrievalDocument

	batch := em.NewBatch()
	for _, text := range texts {
		batch = batch.AddContent(genai.Text(text))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range res.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

// Close releases the underlying gRPC connection
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}
