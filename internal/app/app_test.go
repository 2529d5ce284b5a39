package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrag/internal/config"
	"github.com/dshills/docrag/internal/embedder"
	"github.com/dshills/docrag/internal/extractor"
	"github.com/dshills/docrag/internal/logging"
	"github.com/dshills/docrag/internal/searcher"
	"github.com/dshills/docrag/internal/storage"
	"github.com/dshills/docrag/pkg/types"
)

func setupTestApp(t *testing.T) *App {
	t.Helper()

	cfg := config.Default()
	cfg.DBPath = ":memory:"

	a, err := New(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func seed(t *testing.T, a *App, source string, texts ...string) {
	t.Helper()

	vectors, err := embedder.EmbedTexts(context.Background(), a.Embedder, texts, 0)
	require.NoError(t, err)

	records := make([]types.StoredRecord, len(texts))
	for i, text := range texts {
		records[i] = types.StoredRecord{
			ID:        types.RecordID(source, i),
			Embedding: vectors[i],
			Text:      text,
			Metadata: types.Metadata{
				Source:      source,
				FilePath:    "/docs/" + source,
				Page:        i + 1,
				ChunkIndex:  i,
				TotalChunks: len(texts),
				CharCount:   len(text),
			},
		}
	}
	require.NoError(t, a.Store.Add(context.Background(), records))
}

func TestNew_LocalSQLite(t *testing.T) {
	t.Setenv(embedder.EnvProvider, "local")
	a := setupTestApp(t)

	assert.Equal(t, embedder.ProviderLocal, a.Embedder.Provider())
	assert.IsType(t, &storage.SQLiteStore{}, a.Store)
	assert.NotNil(t, a.Indexer)
	assert.NotNil(t, a.Searcher)
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "chroma"

	_, err := OpenStore(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestEmbedderConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.Model = "custom"
	cfg.Embedding.BaseURL = "http://localhost:1234/v1"
	cfg.Embedding.RequestsPerSecond = 4

	ec := EmbedderConfig(cfg)
	assert.Equal(t, "openai", ec.Provider)
	assert.Equal(t, "custom", ec.Model)
	assert.Equal(t, "http://localhost:1234/v1", ec.BaseURL)
	assert.Equal(t, 10000, ec.CacheSize)
	assert.InDelta(t, 4.0, ec.RequestsPerSecond, 1e-9)
}

func TestStatusAndDocuments(t *testing.T) {
	t.Setenv(embedder.EnvProvider, "local")
	a := setupTestApp(t)
	ctx := context.Background()

	seed(t, a, "a.pdf", "first chunk", "second chunk")
	seed(t, a, "b.pdf", "only chunk")

	status, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, Name, status.Name)
	assert.Equal(t, config.BackendSQLite, status.Backend)
	assert.Equal(t, "documents", status.Collection)
	assert.Equal(t, 2, status.Documents)
	assert.Equal(t, 3, status.Chunks)
	assert.Equal(t, embedder.LocalDimension, status.Dimension)
	assert.False(t, status.IngestionRunning)
	assert.Equal(t, storage.BuildMode, status.BuildMode)

	docs, err := a.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "1-2", docs[0].PageRange)
}

func TestReset_PurgesQueryCache(t *testing.T) {
	t.Setenv(embedder.EnvProvider, "local")
	a := setupTestApp(t)
	ctx := context.Background()

	seed(t, a, "a.pdf", "solar panels on the roof")
	_, err := a.Searcher.Search(ctx, searcher.SearchRequest{Query: "solar panels"})
	require.NoError(t, err)
	require.Equal(t, 1, a.Searcher.CacheLen())

	require.NoError(t, a.Reset(ctx))
	assert.Zero(t, a.Searcher.CacheLen())

	count, err := a.Store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAssemble_UsesInjectedExtractor(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:", "", nil)
	require.NoError(t, err)

	cfg := config.Default()
	a := Assemble(cfg, logging.Discard(), store, embedder.NewLocalProvider(0, nil), extractor.New())
	defer func() { _ = a.Close() }()

	assert.Same(t, store, a.Store)
	assert.False(t, a.Indexer.Running())
}
