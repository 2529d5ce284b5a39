package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key read from the environment,
// e.g. DOCRAG_CHUNK_SIZE or DOCRAG_EMBEDDING_PROVIDER.
const EnvPrefix = "DOCRAG"

// Store backends
const (
	BackendSQLite   = "sqlite"
	BackendWeaviate = "weaviate"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all runtime settings
type Config struct {
	DBPath          string        `mapstructure:"db_path"`
	Collection      string        `mapstructure:"collection"`
	DataDir         string        `mapstructure:"data_dir"`
	ScrapedFilesDir string        `mapstructure:"scraped_files_dir"`
	ChunkSize       int           `mapstructure:"chunk_size"`
	ChunkOverlap    int           `mapstructure:"chunk_overlap"`
	TopK            int           `mapstructure:"top_k"`
	Workers         int           `mapstructure:"workers"`
	BatchSize       int           `mapstructure:"batch_size"`
	QueryCacheTTL   time.Duration `mapstructure:"query_cache_ttl"`

	Store     StoreConfig     `mapstructure:"store"`
	Weaviate  WeaviateConfig  `mapstructure:"weaviate"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
}

// StoreConfig selects the index backend: sqlite or weaviate
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

// WeaviateConfig locates the Weaviate server used by the weaviate backend
type WeaviateConfig struct {
	Host   string `mapstructure:"host"`
	Scheme string `mapstructure:"scheme"`
	APIKey string `mapstructure:"api_key"`
}

// EmbeddingConfig selects the embedding provider. An empty provider is
// detected from the API keys present in the environment, and an empty
// model resolves to the provider default.
type EmbeddingConfig struct {
	Provider          string  `mapstructure:"provider"`
	Model             string  `mapstructure:"model"`
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	Dimensions        int     `mapstructure:"dimensions"`
	CacheSize         int     `mapstructure:"cache_size"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// HTTPConfig configures the REST API listener
type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LogConfig sets the slog level and output format (text or json)
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db_path", filepath.Join("~", ".docrag", "docrag.db"))
	v.SetDefault("collection", "documents")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("scraped_files_dir", "./scraped_files/documents")
	v.SetDefault("chunk_size", 800)
	v.SetDefault("chunk_overlap", 150)
	v.SetDefault("top_k", 5)
	v.SetDefault("workers", 4)
	v.SetDefault("batch_size", 100)
	v.SetDefault("query_cache_ttl", 5*time.Minute)

	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("weaviate.host", "localhost:8080")
	v.SetDefault("weaviate.scheme", "http")
	v.SetDefault("weaviate.api_key", "")

	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.cache_size", 10000)
	v.SetDefault("embedding.requests_per_second", 0.0)

	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.cors_origins", []string{"http://localhost:3000", "http://localhost:3001"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Default returns the configuration with every key at its default
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		// Defaults always decode
		panic(err)
	}
	return cfg
}

// Load reads configuration from defaults, an optional config file and the
// environment, in increasing precedence. A .env file in the working directory
// is loaded into the environment first. An empty path skips the config file.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from env files without overriding variables
// that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("error loading %s: %w", file, err)
		}
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	dbPath, err := ExpandPath(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	cfg.DBPath = dbPath
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	switch {
	case c.ChunkSize < 1:
		return fmt.Errorf("%w: chunk_size must be >= 1, got %d", ErrInvalidConfig, c.ChunkSize)
	case c.ChunkOverlap < 0:
		return fmt.Errorf("%w: chunk_overlap must be >= 0, got %d", ErrInvalidConfig, c.ChunkOverlap)
	case c.ChunkOverlap >= c.ChunkSize:
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	case c.TopK < 1:
		return fmt.Errorf("%w: top_k must be >= 1, got %d", ErrInvalidConfig, c.TopK)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalidConfig, c.Workers)
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch_size must be >= 1, got %d", ErrInvalidConfig, c.BatchSize)
	}

	switch c.Store.Backend {
	case BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("%w: db_path is required for the sqlite backend", ErrInvalidConfig)
		}
	case BackendWeaviate:
		if c.Weaviate.Host == "" {
			return fmt.Errorf("%w: weaviate.host is required for the weaviate backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}

	switch c.Embedding.Provider {
	case "", "local", "openai", "gemini", "jina":
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.Embedding.Provider)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}

	return nil
}

// Directories returns the configured document directories to ingest
func (c *Config) Directories() []string {
	dirs := make([]string, 0, 2)
	for _, dir := range []string{c.DataDir, c.ScrapedFilesDir} {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// ExpandPath replaces a leading ~ with the user's home directory
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
