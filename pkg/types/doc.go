// Package types provides shared type definitions for the docrag pipeline.
//
// This package defines domain types used across multiple components of docrag,
// including extracted documents, chunks, stored records, and retrieval results.
//
// # Core Types
//
// Document is the output of PDF extraction. Its FullText is the cleaned text of
// every non-empty page joined with PageSeparator, and Pages records how many
// characters each page contributed:
//
//	doc := &types.Document{
//	    Source:   "handbook.pdf",
//	    FilePath: "/data/handbook.pdf",
//	    Pages: []types.Page{
//	        {Number: 1, Text: "Intro.", CharCount: 6},
//	    },
//	}
//
// Chunk is a positioned substring of FullText. Start and End are character
// offsets into FullText, so the page a chunk came from can always be resolved
// again from the page index.
//
// StoredRecord is what the index store persists: the chunk text, its embedding
// and its Metadata. Record ids are derived from Source and ChunkIndex, so
// ingesting the same document twice overwrites instead of duplicating.
//
// # Retrieval
//
// SearchResult carries the cosine distance reported by the store (lower is more
// similar). RetrievalContext is the assembled answer context: numbered excerpts
// plus a list of Source citations deduplicated by (source, page).
//
// # Errors
//
// The pipeline classifies failures with four sentinel errors that callers test
// with errors.Is:
//
//	ErrExtraction  // document unreadable or not a PDF
//	ErrEmbedding   // embedding model failed
//	ErrStore       // persistence or query failure
//	ErrValidation  // bad request at the trigger boundary
//
// ErrNoContent is not a failure: it means a document had no extractable text
// and should be skipped.
package types
