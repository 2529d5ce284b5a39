package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// JinaProvider calls the Jina AI embeddings endpoint
type JinaProvider struct {
	*remoteBase
	apiKey  string
	baseURL string
	client  *http.Client
}

type jinaRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type jinaResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewJinaProvider creates a Jina provider from cfg, falling back to JINA_API_KEY
func NewJinaProvider(cfg Config, cache *Cache) (*JinaProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(EnvJinaAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultJinaBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	model := cfg.Model
	if model == "" {
		model = DefaultJinaModel
	}
	dim := cfg.Dimensions
	if dim <= 0 && model == DefaultJinaModel {
		dim = JinaDimension
	}

	p := &JinaProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
	p.remoteBase = newRemoteBase(ProviderJina, model, dim, cache,
		NewRateLimiter(cfg.RequestsPerSecond, 1), p.fetchEmbeddings)
	return p, nil
}

func (p *JinaProvider) fetchEmbeddings(ctx context.Context, texts []string, model string) ([][]float32, error) {
	body, err := json.Marshal(jinaRequest{Input: texts, Model: model})
	if err != nil {
		return nil, permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("jina API status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if !isRetryableStatus(resp.StatusCode) {
			return nil, permanent(err)
		}
		return nil, err
	}

	var decoded jinaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode jina response: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range decoded.Data {
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

// Close releases idle connections
func (p *JinaProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
