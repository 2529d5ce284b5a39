package types

import "errors"

// Pipeline error taxonomy
var (
	// ErrExtraction is returned when a document cannot be read or parsed
	ErrExtraction = errors.New("extraction failed")
	// ErrNoContent signals a readable document without any extractable text
	ErrNoContent = errors.New("no usable content")
	// ErrEmbedding is returned when the embedding model fails
	ErrEmbedding = errors.New("embedding failed")
	// ErrStore is returned when the index store fails to persist or query
	ErrStore = errors.New("index store failure")
	// ErrValidation is returned when a request is rejected before any work starts
	ErrValidation = errors.New("validation failed")

	// Record validation errors
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrEmptySource     = errors.New("source cannot be empty")
	ErrMissingVector   = errors.New("embedding vector is required")
	ErrInvalidChunkIdx = errors.New("chunk index must be >= 0")
)
