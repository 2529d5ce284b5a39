// Package app wires the shared docrag services together. Every surface (CLI,
// HTTP API, MCP server, watcher) builds one App at startup and closes it on
// shutdown, so the embedding model and the store are loaded exactly once.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/docrag/internal/chunker"
	"github.com/dshills/docrag/internal/config"
	"github.com/dshills/docrag/internal/embedder"
	"github.com/dshills/docrag/internal/extractor"
	"github.com/dshills/docrag/internal/indexer"
	"github.com/dshills/docrag/internal/searcher"
	"github.com/dshills/docrag/internal/storage"
	"github.com/dshills/docrag/pkg/types"
)

// Name is the application name reported by every surface
const Name = "docrag"

// Version is set at build time with -ldflags "-X github.com/dshills/docrag/internal/app.Version=..."
var Version = "dev"

// App holds the process-wide services
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    storage.Store
	Embedder embedder.Embedder
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher

	backend   string
	startedAt time.Time
}

// Status describes the index and the services behind it
type Status struct {
	Name              string        `json:"name"`
	Version           string        `json:"version"`
	Backend           string        `json:"backend"`
	Collection        string        `json:"collection"`
	Documents         int           `json:"documents"`
	Chunks            int           `json:"chunks"`
	EmbeddingProvider string        `json:"embedding_provider"`
	EmbeddingModel    string        `json:"embedding_model"`
	Dimension         int           `json:"dimension"`
	PDFToolAvailable  bool          `json:"pdf_tool_available"`
	IngestionRunning  bool          `json:"ingestion_running"`
	BuildMode         string        `json:"build_mode"`
	SQLiteDriver      string        `json:"sqlite_driver"`
	VectorExtension   bool          `json:"vector_extension"`
	Uptime            time.Duration `json:"uptime"`
}

// New opens the configured store and embedder and assembles the pipeline
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.New(EmbedderConfig(cfg))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	logger.Info("services ready",
		"backend", cfg.Store.Backend,
		"collection", cfg.Collection,
		"embedding_provider", emb.Provider(),
		"embedding_model", emb.Model(),
	)

	return Assemble(cfg, logger, store, emb, extractor.New()), nil
}

// Assemble builds an App around already constructed components
func Assemble(cfg *config.Config, logger *slog.Logger, store storage.Store, emb embedder.Embedder, ext indexer.Extractor) *App {
	if logger == nil {
		logger = slog.Default()
	}

	srch := searcher.NewSearcher(store, emb, searcher.Options{
		DefaultTopK: cfg.TopK,
		CacheTTL:    cfg.QueryCacheTTL,
		Logger:      logger,
	})

	idx := indexer.New(ext, chunker.New(cfg.ChunkSize, cfg.ChunkOverlap), emb, store, &indexer.Config{
		Workers:   cfg.Workers,
		BatchSize: cfg.BatchSize,
		Logger:    logger,
		OnChange:  srch.InvalidateCache,
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Embedder:  emb,
		Indexer:   idx,
		Searcher:  srch,
		backend:   cfg.Store.Backend,
		startedAt: time.Now(),
	}
}

// OpenStore creates the index store selected by cfg.Store.Backend
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite, "":
		return storage.NewSQLiteStore(cfg.DBPath, cfg.Collection, logger)
	case config.BackendWeaviate:
		return storage.NewWeaviateStore(ctx, storage.WeaviateConfig{
			Host:   cfg.Weaviate.Host,
			Scheme: cfg.Weaviate.Scheme,
			APIKey: cfg.Weaviate.APIKey,
		}, cfg.Collection, logger)
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalidConfig, cfg.Store.Backend)
	}
}

// EmbedderConfig maps the embedding section of cfg onto the embedder package
func EmbedderConfig(cfg *config.Config) embedder.Config {
	return embedder.Config{
		Provider:          cfg.Embedding.Provider,
		Model:             cfg.Embedding.Model,
		APIKey:            cfg.Embedding.APIKey,
		BaseURL:           cfg.Embedding.BaseURL,
		Dimensions:        cfg.Embedding.Dimensions,
		CacheSize:         cfg.Embedding.CacheSize,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	}
}

// Documents lists the ingested documents
func (a *App) Documents(ctx context.Context) ([]types.DocumentSummary, error) {
	return a.Store.ListSources(ctx)
}

// Reset removes every record from the index. Callers must have obtained
// confirmation before calling it.
func (a *App) Reset(ctx context.Context) error {
	if a.Indexer.Running() {
		return indexer.ErrIngestionInProgress
	}
	if err := a.Store.Reset(ctx); err != nil {
		return err
	}
	a.Searcher.InvalidateCache()
	a.Logger.Info("index reset", "collection", a.Config.Collection)
	return nil
}

// Status gathers counts and service information
func (a *App) Status(ctx context.Context) (*Status, error) {
	chunks, err := a.Store.Count(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := a.Store.ListSources(ctx)
	if err != nil {
		return nil, err
	}

	return &Status{
		Name:              Name,
		Version:           Version,
		Backend:           a.backend,
		Collection:        a.Config.Collection,
		Documents:         len(docs),
		Chunks:            chunks,
		EmbeddingProvider: a.Embedder.Provider(),
		EmbeddingModel:    a.Embedder.Model(),
		Dimension:         a.Embedder.Dimension(),
		PDFToolAvailable:  extractor.CheckAvailable() == nil,
		IngestionRunning:  a.Indexer.Running(),
		BuildMode:         storage.BuildMode,
		SQLiteDriver:      storage.DriverName,
		VectorExtension:   a.vectorSQL(),
		Uptime:            time.Since(a.startedAt),
	}, nil
}

// vectorSQL reports whether the SQLite store ranks with sqlite-vec
func (a *App) vectorSQL() bool {
	if s, ok := a.Store.(*storage.SQLiteStore); ok {
		return s.VectorSQL()
	}
	return false
}

// Close releases the embedder and the store
func (a *App) Close() error {
	return errors.Join(a.Embedder.Close(), a.Store.Close())
}
