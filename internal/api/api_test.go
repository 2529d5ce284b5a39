package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrag/internal/app"
	"github.com/dshills/docrag/internal/config"
	"github.com/dshills/docrag/internal/embedder"
	"github.com/dshills/docrag/internal/logging"
	"github.com/dshills/docrag/internal/storage"
	"github.com/dshills/docrag/pkg/types"
)

// mapExtractor returns one single-page document per known file name
type mapExtractor map[string]string

func (m mapExtractor) Extract(_ context.Context, path string) (*types.Document, error) {
	text, ok := m[filepath.Base(path)]
	if !ok {
		return nil, types.ErrExtraction
	}
	return types.NewDocument(filepath.Base(path), path, []types.Page{
		{Number: 1, Text: text, CharCount: len([]rune(text))},
	}), nil
}

type testServer struct {
	app     *app.App
	router  *gin.Engine
	dataDir string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewSQLiteStore(":memory:", "", nil)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.ChunkSize = 100
	cfg.ChunkOverlap = 10

	docs := mapExtractor{
		"rust.pdf":   strings.Repeat("Rust ownership prevents data races at compile time. ", 5),
		"coffee.pdf": strings.Repeat("Espresso is brewed by forcing hot water through coffee. ", 5),
	}

	a := app.Assemble(cfg, logging.Discard(), store, embedder.NewLocalProvider(0, nil), docs)
	t.Cleanup(func() { _ = a.Close() })

	dir := t.TempDir()
	for name := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF"), 0644))
	}

	return &testServer{app: a, router: NewRouter(a), dataDir: dir}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func (ts *testServer) ingest(t *testing.T) {
	t.Helper()
	w, _ := ts.do(t, http.MethodPost, "/api/vectorize", VectorizeRequest{Directory: ts.dataDir})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRootAndHealth(t *testing.T) {
	ts := setupTestServer(t)

	w, body := ts.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, app.Version, body["version"])

	w, body = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestVectorize(t *testing.T) {
	ts := setupTestServer(t)

	w, body := ts.do(t, http.MethodPost, "/api/vectorize", VectorizeRequest{Directory: ts.dataDir})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", body["status"])
	assert.Greater(t, body["chunks"].(float64), 2.0)
	assert.Contains(t, body["message"], ts.dataDir)

	w, body = ts.do(t, http.MethodPost, "/api/vectorize", VectorizeRequest{FilePath: filepath.Join(ts.dataDir, "rust.pdf")})
	require.Equal(t, http.StatusOK, w.Code)
	stats := body["statistics"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["files_processed"])
}

func TestVectorize_Errors(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"empty body", nil, http.StatusBadRequest},
		{"neither field", VectorizeRequest{}, http.StatusBadRequest},
		{"missing directory", VectorizeRequest{Directory: filepath.Join(ts.dataDir, "nope")}, http.StatusBadRequest},
		{"unreadable file", VectorizeRequest{FilePath: filepath.Join(ts.dataDir, "other.pdf")}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := ts.do(t, http.MethodPost, "/api/vectorize", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "error", body["status"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestSearch(t *testing.T) {
	ts := setupTestServer(t)
	ts.ingest(t)

	w, body := ts.do(t, http.MethodPost, "/api/search", SearchRequest{Query: "espresso coffee water", TopK: 2})
	require.Equal(t, http.StatusOK, w.Code)

	results := body["results"].([]interface{})
	require.Len(t, results, 2)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "coffee.pdf", first["metadata"].(map[string]interface{})["source"])

	d0 := first["distance"].(float64)
	d1 := results[1].(map[string]interface{})["distance"].(float64)
	assert.LessOrEqual(t, d0, d1)
}

func TestSearch_DefaultTopK(t *testing.T) {
	ts := setupTestServer(t)
	ts.ingest(t)

	w, body := ts.do(t, http.MethodPost, "/api/search", SearchRequest{Query: "ownership"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["results"], ts.app.Config.TopK)
}

func TestSearch_Errors(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"empty query", SearchRequest{Query: " "}},
		{"negative top_k", SearchRequest{Query: "x", TopK: -1}},
		{"top_k too large", SearchRequest{Query: "x", TopK: 500}},
		{"unknown filter", SearchRequest{Query: "x", FilterBy: map[string]interface{}{"color": "red"}}},
		{"malformed", "not an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := ts.do(t, http.MethodPost, "/api/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "error", body["status"])
		})
	}
}

func TestQuery(t *testing.T) {
	ts := setupTestServer(t)
	ts.ingest(t)

	w, body := ts.do(t, http.MethodPost, "/api/query", SearchRequest{
		Query:    "rust ownership",
		TopK:     3,
		FilterBy: map[string]interface{}{"source": "rust.pdf"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	assert.True(t, strings.HasPrefix(body["context"].(string), "[1] "))
	sources := body["sources"].([]interface{})
	// Every rust.pdf chunk sits on page 1, so the citations collapse to one
	require.Len(t, sources, 1)
	src := sources[0].(map[string]interface{})
	assert.Equal(t, "rust.pdf", src["source"])
	assert.EqualValues(t, 1, src["page"])
}

func TestQuery_EmptyIndex(t *testing.T) {
	ts := setupTestServer(t)

	w, body := ts.do(t, http.MethodPost, "/api/query", SearchRequest{Query: "anything"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", body["context"])
	assert.Empty(t, body["sources"])
}

func TestDocuments(t *testing.T) {
	ts := setupTestServer(t)
	ts.ingest(t)

	w, body := ts.do(t, http.MethodGet, "/api/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)

	docs := body["documents"].([]interface{})
	require.Len(t, docs, 2)
	first := docs[0].(map[string]interface{})
	assert.Equal(t, "coffee.pdf", first["source"])
	assert.Equal(t, "1-1", first["page_range"])
	assert.Greater(t, first["total_chunks"].(float64), 0.0)
}

func TestReset(t *testing.T) {
	ts := setupTestServer(t)
	ts.ingest(t)

	w, body := ts.do(t, http.MethodPost, "/api/reset", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", body["status"])

	w, _ = ts.do(t, http.MethodPost, "/api/reset", ResetRequest{Confirm: false})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	count, err := ts.app.Store.Count(context.Background())
	require.NoError(t, err)
	require.Positive(t, count)

	w, body = ts.do(t, http.MethodPost, "/api/reset", ResetRequest{Confirm: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", body["status"])

	count, err = ts.app.Store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStatus(t *testing.T) {
	ts := setupTestServer(t)
	ts.ingest(t)

	w, body := ts.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	index := body["index"].(map[string]interface{})
	assert.EqualValues(t, 2, index["documents"])
	assert.Equal(t, embedder.ProviderLocal, index["embedding_provider"])
}

func TestCors(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCorsWildcard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CorsMiddleware([]string{"*"}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://any.test")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "http://any.test", w.Header().Get("Access-Control-Allow-Origin"))
}
