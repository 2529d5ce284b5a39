// Package storage persists embedded document chunks and answers
// nearest-neighbour queries by cosine distance.
//
// Two Store implementations share the same contract:
//   - SQLiteStore: a single database file, the default backend
//   - WeaviateStore: a Weaviate class with client-supplied vectors
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations (semver)
//   - collections: named collections and their distance space
//   - records: one row per chunk with metadata columns and the vector blob
//
// Records are keyed by (collection, id). The id is derived from the source
// name and chunk index, so re-adding a chunk overwrites it.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStore("~/.docrag/docrag.db", "documents", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := store.Add(ctx, records); err != nil {
//	    return err
//	}
//
//	results, err := store.Query(ctx, queryVector, 5, types.Filter{"source": "report.pdf"})
//
// # Filters
//
// Filters are exact-match on metadata fields (source, file_path, page,
// chunk_index, total_chunks, char_count). Unknown fields or values of the
// wrong type are rejected with ErrInvalidFilter.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite and ranks in Go. Building with
// -tags sqlite_vec switches to github.com/mattn/go-sqlite3 and ranks in SQL.
package storage
