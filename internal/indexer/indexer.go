package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/docrag/internal/chunker"
	"github.com/dshills/docrag/internal/embedder"
	"github.com/dshills/docrag/internal/extractor"
	"github.com/dshills/docrag/internal/storage"
	"github.com/dshills/docrag/pkg/types"
)

const (
	// DefaultWorkers bounds concurrent document extraction
	DefaultWorkers = 4
	// DefaultBatchSize is the number of records embedded and stored per call
	DefaultBatchSize = 100
)

// ErrIngestionInProgress is returned when another ingestion run holds the lock
var ErrIngestionInProgress = errors.New("ingestion already in progress")

// Extractor turns a file into a document with page positions
type Extractor interface {
	Extract(ctx context.Context, path string) (*types.Document, error)
}

// Indexer coordinates the ingestion pipeline: extract -> chunk -> embed -> store
type Indexer struct {
	extractor Extractor
	chunker   *chunker.Chunker
	embedder  embedder.Embedder
	store     storage.Store
	logger    *slog.Logger

	workers   int
	batchSize int
	onChange  func()

	lock IndexLock
}

// Config contains configuration for the indexer
type Config struct {
	Workers   int          // Number of concurrent extraction workers (default: 4)
	BatchSize int          // Records per embedding/store call (default: 100)
	Logger    *slog.Logger // Defaults to slog.Default()
	OnChange  func()       // Called after the store content changed, e.g. to purge query caches
}

// Statistics contains statistics about one ingestion run
type Statistics struct {
	RunID          string        `json:"run_id"`
	FilesFound     int           `json:"files_found"`
	FilesProcessed int           `json:"files_processed"`
	FilesSkipped   int           `json:"files_skipped"`
	FilesFailed    int           `json:"files_failed"`
	ChunksCreated  int           `json:"chunks_created"`
	Duration       time.Duration `json:"duration"`
	ErrorMessages  []string      `json:"error_messages,omitempty"`

	startedAt time.Time
}

// DocumentResult is the outcome of extracting and chunking one file
type DocumentResult struct {
	Path    string
	Records []types.StoredRecord
	Err     error
}

// New creates a new Indexer instance
func New(ext Extractor, ch *chunker.Chunker, emb embedder.Embedder, store storage.Store, cfg *Config) *Indexer {
	if cfg == nil {
		cfg = &Config{}
	}
	if ch == nil {
		ch = chunker.New(chunker.DefaultChunkSize, chunker.DefaultOverlap)
	}

	idx := &Indexer{
		extractor: ext,
		chunker:   ch,
		embedder:  emb,
		store:     store,
		logger:    cfg.Logger,
		workers:   cfg.Workers,
		batchSize: cfg.BatchSize,
		onChange:  cfg.OnChange,
	}
	if idx.logger == nil {
		idx.logger = slog.Default()
	}
	if idx.workers <= 0 {
		idx.workers = DefaultWorkers
	}
	if idx.batchSize <= 0 {
		idx.batchSize = DefaultBatchSize
	}
	return idx
}

// Running reports whether an ingestion run currently holds the lock
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// VectorizeFile ingests a single document. Unlike directory runs, an
// extraction failure is returned to the caller because there is nothing
// else to continue with. A document without text is reported as skipped.
func (idx *Indexer) VectorizeFile(ctx context.Context, path string) (*Statistics, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: file path is required", types.ErrValidation)
	}
	if !idx.lock.TryAcquire() {
		return nil, ErrIngestionInProgress
	}
	defer idx.lock.Release()

	stats := newStatistics()
	stats.FilesFound = 1

	result := idx.processDocument(ctx, path)
	if result.Err != nil && !errors.Is(result.Err, types.ErrNoContent) {
		return nil, result.Err
	}

	if err := idx.writeResults(ctx, []DocumentResult{result}, stats); err != nil {
		return nil, err
	}
	idx.finish(stats)
	return stats, nil
}

// VectorizeDirectory ingests every PDF below dir
func (idx *Indexer) VectorizeDirectory(ctx context.Context, dir string) (*Statistics, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: directory is required", types.ErrValidation)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrValidation, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", types.ErrValidation, dir)
	}

	if !idx.lock.TryAcquire() {
		return nil, ErrIngestionInProgress
	}
	defer idx.lock.Release()

	return idx.vectorizeDirs(ctx, []string{dir})
}

// VectorizeAll ingests the PDFs of several directories in one run.
// Directories that do not exist are logged and skipped.
func (idx *Indexer) VectorizeAll(ctx context.Context, dirs ...string) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIngestionInProgress
	}
	defer idx.lock.Release()

	return idx.vectorizeDirs(ctx, dirs)
}

// Rebuild empties the store and re-ingests the given directories
func (idx *Indexer) Rebuild(ctx context.Context, dirs ...string) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIngestionInProgress
	}
	defer idx.lock.Release()

	if err := idx.store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("failed to reset index: %w", err)
	}
	idx.notifyChange()
	idx.logger.Info("index reset for rebuild")

	return idx.vectorizeDirs(ctx, dirs)
}

// RemoveFile deletes the records of a document that disappeared from disk
func (idx *Indexer) RemoveFile(ctx context.Context, path string) (int, error) {
	source := filepath.Base(path)
	removed, err := idx.store.DeleteSource(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("failed to remove %s: %w", source, err)
	}
	if removed > 0 {
		idx.notifyChange()
		idx.logger.Info("removed document", "source", source, "chunks", removed)
	}
	return removed, nil
}

func (idx *Indexer) vectorizeDirs(ctx context.Context, dirs []string) (*Statistics, error) {
	stats := newStatistics()

	var files []string
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			idx.logger.Warn("skipping missing directory", "dir", dir)
			continue
		}
		found, err := discoverFiles(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to discover files in %s: %w", dir, err)
		}
		files = append(files, found...)
	}
	stats.FilesFound = len(files)

	if len(files) == 0 {
		idx.logger.Info("no documents found", "dirs", dirs)
		idx.finish(stats)
		return stats, nil
	}

	results, err := idx.extractDocuments(ctx, files)
	if err != nil {
		return nil, err
	}
	if err := idx.writeResults(ctx, results, stats); err != nil {
		return nil, err
	}
	idx.finish(stats)
	return stats, nil
}

// discoverFiles finds all PDF files below rootPath, skipping hidden directories
func discoverFiles(rootPath string) ([]string, error) {
	var files []string

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != rootPath && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(info.Name(), ".") || !extractor.IsPDF(path) {
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// extractDocuments extracts and chunks files on a bounded worker pool.
// Per-document failures are captured in the result, only cancellation aborts.
func (idx *Indexer) extractDocuments(ctx context.Context, files []string) ([]DocumentResult, error) {
	results := make([]DocumentResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = idx.processDocument(gctx, path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (idx *Indexer) processDocument(ctx context.Context, path string) DocumentResult {
	doc, err := idx.extractor.Extract(ctx, path)
	if err != nil {
		return DocumentResult{Path: path, Err: err}
	}
	records := idx.chunker.ChunkDocument(doc)
	if len(records) == 0 {
		return DocumentResult{Path: path, Err: fmt.Errorf("%s: %w", path, types.ErrNoContent)}
	}
	return DocumentResult{Path: path, Records: records}
}

// writeResults embeds and stores every successful document. Failed documents
// are counted and logged. An embedding or store failure aborts the run.
func (idx *Indexer) writeResults(ctx context.Context, results []DocumentResult, stats *Statistics) error {
	changed := false
	defer func() {
		if changed {
			idx.notifyChange()
		}
	}()

	for _, res := range results {
		switch {
		case errors.Is(res.Err, types.ErrNoContent):
			stats.FilesSkipped++
			idx.logger.Warn("skipping document without text", "path", res.Path)
			continue
		case res.Err != nil:
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", res.Path, res.Err))
			idx.logger.Warn("skipping document", "path", res.Path, "error", res.Err)
			continue
		}

		if err := idx.writeDocument(ctx, res.Records); err != nil {
			return fmt.Errorf("failed to ingest %s: %w", res.Path, err)
		}
		changed = true
		stats.FilesProcessed++
		stats.ChunksCreated += len(res.Records)
		idx.logger.Debug("ingested document", "path", res.Path, "chunks", len(res.Records))
	}

	return nil
}

// writeDocument replaces the stored records of one source. Vectors are computed
// for the whole document before anything is written, and the new records go to
// the store in a single Add so a document is never left half written.
func (idx *Indexer) writeDocument(ctx context.Context, records []types.StoredRecord) error {
	texts := make([]string, len(records))
	for i := range records {
		texts[i] = records[i].Text
	}

	vectors, err := embedder.EmbedTexts(ctx, idx.embedder, texts, idx.batchSize)
	if err != nil {
		return err
	}
	for i := range records {
		records[i].Embedding = vectors[i]
	}

	if _, err := idx.store.DeleteSource(ctx, records[0].Metadata.Source); err != nil {
		return err
	}

	return idx.store.Add(ctx, records)
}

func (idx *Indexer) finish(stats *Statistics) {
	stats.Duration = time.Since(stats.startedAt)
	idx.logger.Info("ingestion complete",
		"run_id", stats.RunID,
		"files_found", stats.FilesFound,
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"files_failed", stats.FilesFailed,
		"chunks", stats.ChunksCreated,
		"duration", stats.Duration,
	)
}

func (idx *Indexer) notifyChange() {
	if idx.onChange != nil {
		idx.onChange()
	}
}

func newStatistics() *Statistics {
	return &Statistics{
		RunID:         uuid.NewString(),
		ErrorMessages: make([]string, 0),
		startedAt:     time.Now(),
	}
}
