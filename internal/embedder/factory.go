package embedder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Provider names
const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderJina   = "jina"
)

// Environment variables consulted by NewFromEnv and the providers
const (
	EnvProvider      = "DOCRAG_EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvGeminiAPIKey  = "GEMINI_API_KEY"
	EnvJinaAPIKey    = "JINA_API_KEY"
)

// Model defaults
const (
	// DefaultModelName is the sentence-transformers model served by most
	// self-hosted OpenAI-compatible embedding servers.
	DefaultModelName   = "paraphrase-multilingual-MiniLM-L12-v2"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultGeminiModel = "text-embedding-004"
	DefaultJinaModel   = "jina-embeddings-v3"
	LocalModel         = "feature-hash-384"

	LocalDimension  = 384
	GeminiDimension = 768
	JinaDimension   = 1024

	DefaultJinaBaseURL = "https://api.jina.ai/v1"
	DefaultTimeout     = 30 * time.Second
)

// Batch and retry limits
const (
	DefaultBatchSize  = 100
	MaxBatchSize      = 100
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// Config holds embedder configuration
type Config struct {
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	Dimensions        int
	CacheSize         int // 0 uses DefaultCacheSize, negative disables caching
	RequestsPerSecond float64
	Timeout           time.Duration
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. DOCRAG_EMBEDDING_PROVIDER (openai, gemini, jina, local)
// 2. Check for API keys: OPENAI_API_KEY, GEMINI_API_KEY, JINA_API_KEY
// 3. Default to local if no API keys found
func NewFromEnv() (Embedder, error) {
	return New(Config{Provider: DetectProvider()})
}

// New creates an embedder with explicit configuration. An empty Provider
// falls back to DetectProvider.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	switch {
	case cfg.CacheSize == 0:
		cache = NewCache(DefaultCacheSize)
	case cfg.CacheSize > 0:
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = DetectProvider()
	}

	switch provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg, cache)
	case ProviderGemini:
		return NewGeminiProvider(context.Background(), cfg, cache)
	case ProviderJina:
		return NewJinaProvider(cfg, cache)
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimensions, cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvOpenAIAPIKey) != "" || os.Getenv(EnvOpenAIBaseURL) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvGeminiAPIKey) != "" {
		return ProviderGemini
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}

	return ProviderLocal
}
