package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/sashabaranov/go-openai"
)

// openAIDimensions lists native output sizes for known models
var openAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	DefaultModelName:         384,
}

// OpenAIProvider talks to the OpenAI embeddings API or any server that
// implements it (vLLM, Ollama, LocalAI, text-embeddings-inference).
type OpenAIProvider struct {
	*remoteBase
	client        *openai.Client
	requestedDims int
}

// NewOpenAIProvider creates an OpenAI-compatible provider. An API key is
// required unless BaseURL points at a self-hosted server.
func NewOpenAIProvider(cfg Config, cache *Cache) (*OpenAIProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv(EnvOpenAIBaseURL)
	}
	if apiKey == "" && baseURL == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		if baseURL != "" {
			model = DefaultModelName
		} else {
			model = DefaultOpenAIModel
		}
	}
	dim := cfg.Dimensions
	if dim <= 0 {
		dim = openAIDimensions[model]
	}

	p := &OpenAIProvider{
		client:        openai.NewClientWithConfig(clientCfg),
		requestedDims: cfg.Dimensions,
	}
	p.remoteBase = newRemoteBase(ProviderOpenAI, model, dim, cache,
		NewRateLimiter(cfg.RequestsPerSecond, 1), p.fetchEmbeddings)
	return p, nil
}

func (p *OpenAIProvider) fetchEmbeddings(ctx context.Context, texts []string, model string) ([][]float32, error) {
	req := openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	}
	if p.requestedDims > 0 {
		req.Dimensions = p.requestedDims
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && !isRetryableStatus(apiErr.HTTPStatusCode) {
			return nil, permanent(err)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) && !isRetryableStatus(reqErr.HTTPStatusCode) {
			return nil, permanent(err)
		}
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}

	return vectors, nil
}

// Close is a no-op; the HTTP client needs no teardown
func (p *OpenAIProvider) Close() error {
	return nil
}
