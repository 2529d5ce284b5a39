package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dshills/docrag/pkg/types"
)

// SQLiteStore implements Store on a single SQLite database file
type SQLiteStore struct {
	db         *sql.DB
	collection string
	logger     *slog.Logger
	vectorSQL  bool

	// mu serializes writers; readers share it
	mu sync.RWMutex
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens (or creates) the database at dbPath and makes sure the
// named collection exists. Use ":memory:" for a throwaway store.
func NewSQLiteStore(dbPath, collection string, logger *slog.Logger) (*SQLiteStore, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", types.ErrStore, err)
	}

	ctx := context.Background()
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to apply migrations: %w", types.ErrStore, err)
	}

	s := &SQLiteStore{db: db, collection: collection, logger: logger}
	if err := ensureCollection(ctx, db, collection); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", types.ErrStore, err)
	}

	if VectorExtensionAvailable {
		s.vectorSQL = vectorFunctionsLoaded(ctx, db)
		if !s.vectorSQL {
			logger.Warn("sqlite-vec functions not registered with the driver, ranking in Go",
				"driver", DriverName)
		}
	}

	logger.Debug("sqlite store ready", "path", dbPath, "collection", collection,
		"build", BuildMode, "vector_sql", s.vectorSQL)
	return s, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func ensureCollection(ctx context.Context, q querier, name string) error {
	_, err := q.ExecContext(ctx,
		"INSERT OR IGNORE INTO collections (name, distance) VALUES (?, 'cosine')", name)
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

// Collection returns the collection name
func (s *SQLiteStore) Collection() string {
	return s.collection
}

// VectorSQL reports whether distances are computed in SQL by sqlite-vec
func (s *SQLiteStore) VectorSQL() bool {
	return s.vectorSQL
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Add upserts records in one transaction
func (s *SQLiteStore) Add(ctx context.Context, records []types.StoredRecord) error {
	if len(records) == 0 {
		return nil
	}

	dim, err := validateRecords(records)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", types.ErrStore, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.checkDimension(ctx, tx, dim); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (collection, id, source, file_path, page, chunk_index,
		                     total_chunks, char_count, text, dimension, vector, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection, id) DO UPDATE SET
			source = excluded.source,
			file_path = excluded.file_path,
			page = excluded.page,
			chunk_index = excluded.chunk_index,
			total_chunks = excluded.total_chunks,
			char_count = excluded.char_count,
			text = excluded.text,
			dimension = excluded.dimension,
			vector = excluded.vector,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare upsert: %w", types.ErrStore, err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range records {
		r := &records[i]
		m := r.Metadata
		_, err := stmt.ExecContext(ctx, s.collection, r.ID, m.Source, m.FilePath, m.Page,
			m.ChunkIndex, m.TotalChunks, m.CharCount, r.Text, len(r.Embedding),
			serializeVector(r.Embedding))
		if err != nil {
			return fmt.Errorf("%w: upsert record %s: %w", types.ErrStore, r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", types.ErrStore, err)
	}
	return nil
}

// checkDimension rejects vectors whose size differs from what the collection already holds
func (s *SQLiteStore) checkDimension(ctx context.Context, q querier, dim int) error {
	var existing int
	err := q.QueryRowContext(ctx,
		"SELECT dimension FROM records WHERE collection = ? LIMIT 1", s.collection).Scan(&existing)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read dimension: %w", types.ErrStore, err)
	}
	if existing != dim {
		return fmt.Errorf("%w: %w: collection %s holds %d-dimensional vectors, got %d (reset or rebuild after changing the embedding model)",
			types.ErrStore, ErrDimensionMismatch, s.collection, existing, dim)
	}
	return nil
}

// Query returns the topK nearest records by cosine distance
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, topK int, filter types.Filter) ([]types.SearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", types.ErrValidation)
	}
	terms, err := normalizeFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrValidation, err)
	}
	if topK <= 0 {
		return []types.SearchResult{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := searchVector(ctx, s.db, s.vectorSQL, s.collection, vector, topK, terms)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStore, err)
	}
	return results, nil
}

// ListSources aggregates records by source, ordered by source name
func (s *SQLiteStore) ListSources(ctx context.Context) ([]types.DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT source, MIN(file_path), COUNT(*),
		       MIN(CASE WHEN page > 0 THEN page END),
		       MAX(CASE WHEN page > 0 THEN page END)
		FROM records
		WHERE collection = ?
		GROUP BY source
		ORDER BY source
	`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("%w: list sources: %w", types.ErrStore, err)
	}
	defer func() { _ = rows.Close() }()

	summaries := make([]types.DocumentSummary, 0)
	for rows.Next() {
		var summary types.DocumentSummary
		var minPage, maxPage sql.NullInt64
		if err := rows.Scan(&summary.Source, &summary.FilePath, &summary.TotalChunks, &minPage, &maxPage); err != nil {
			return nil, fmt.Errorf("%w: scan source: %w", types.ErrStore, err)
		}
		if minPage.Valid && maxPage.Valid {
			summary.MinPage = int(minPage.Int64)
			summary.MaxPage = int(maxPage.Int64)
		}
		summary.PageRange = types.FormatPageRange(summary.MinPage, summary.MaxPage, minPage.Valid && maxPage.Valid)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStore, err)
	}
	return summaries, nil
}

// Reset drops the collection and recreates it empty, atomically
func (s *SQLiteStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", types.ErrStore, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE collection = ?", s.collection); err != nil {
		return fmt.Errorf("%w: delete records: %w", types.ErrStore, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", s.collection); err != nil {
		return fmt.Errorf("%w: delete collection: %w", types.ErrStore, err)
	}
	if err := ensureCollection(ctx, tx, s.collection); err != nil {
		return fmt.Errorf("%w: %w", types.ErrStore, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", types.ErrStore, err)
	}

	s.logger.Info("collection reset", "collection", s.collection)
	return nil
}

// Count returns the number of records in the collection
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE collection = ?", s.collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count records: %w", types.ErrStore, err)
	}
	return count, nil
}

// DeleteSource removes all records of a source
func (s *SQLiteStore) DeleteSource(ctx context.Context, source string) (int, error) {
	if source == "" {
		return 0, fmt.Errorf("%w: %w", types.ErrValidation, types.ErrEmptySource)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE collection = ? AND source = ?", s.collection, source)
	if err != nil {
		return 0, fmt.Errorf("%w: delete source %s: %w", types.ErrStore, source, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", types.ErrStore, err)
	}
	return int(n), nil
}

// SchemaVersion returns the applied schema version
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (string, error) {
	v, err := currentVersion(ctx, s.db)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}
