// Package indexer runs the ingestion pipeline for PDF collections.
//
// A run discovers documents, extracts and chunks them on a bounded worker
// pool, embeds the chunks in batches and writes them to the index store:
//
//	idx := indexer.New(extractor.New(), chunker.New(800, 150), emb, store, &indexer.Config{
//	    Workers:   4,
//	    BatchSize: 100,
//	    OnChange:  searcher.InvalidateCache,
//	})
//
//	stats, err := idx.VectorizeDirectory(ctx, "./data")
//
// # Failure Isolation
//
// Extraction failures are per document: the file is logged, counted in
// Statistics.FilesFailed and the run continues. Documents without any text
// are counted as skipped. Embedding and store failures abort the run and are
// returned to the caller; a document's records are only written once all of
// its vectors were computed.
//
// # Re-ingestion
//
// Record ids are derived from (source, chunk index), so ingesting a file
// again overwrites its records. Previous records of the same source are
// deleted first, which keeps a shortened document free of stale chunks.
//
// # Concurrency
//
// Only one run may be active per Indexer. A second VectorizeFile,
// VectorizeDirectory, VectorizeAll or Rebuild call fails immediately with
// ErrIngestionInProgress.
package indexer
