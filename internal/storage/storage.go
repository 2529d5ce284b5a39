package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/dshills/docrag/pkg/types"
)

var (
	// ErrInvalidFilter is returned when a filter names an unknown field or carries a value of the wrong type
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrDimensionMismatch is returned when records do not match the dimension already stored in the collection
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// DefaultCollection is the collection name used when none is configured
const DefaultCollection = "documents"

// Store persists embedded chunks in a single named collection and answers
// nearest-neighbour queries by cosine distance.
type Store interface {
	// Add inserts records, overwriting any record with the same id. Empty input is a no-op.
	Add(ctx context.Context, records []types.StoredRecord) error

	// Query returns up to topK records ordered by ascending cosine distance,
	// restricted to records whose metadata matches every filter entry.
	// An empty collection yields an empty slice, not an error.
	Query(ctx context.Context, vector []float32, topK int, filter types.Filter) ([]types.SearchResult, error)

	// ListSources aggregates records by source
	ListSources(ctx context.Context) ([]types.DocumentSummary, error)

	// Reset drops every record and leaves an empty, usable collection
	Reset(ctx context.Context) error

	// Count returns the exact number of stored records
	Count(ctx context.Context) (int, error)

	// DeleteSource removes every record of a source and returns how many were removed
	DeleteSource(ctx context.Context, source string) (int, error)

	// Close releases the underlying connection
	Close() error
}

// filterTerm is one validated, type-normalized filter entry
type filterTerm struct {
	field  string
	str    string
	num    int64
	isText bool
}

// normalizeFilter validates filter keys against the metadata fields and
// converts values to their column types. Terms are sorted by field name.
func normalizeFilter(filter types.Filter) ([]filterTerm, error) {
	if len(filter) == 0 {
		return nil, nil
	}

	terms := make([]filterTerm, 0, len(filter))
	for key, value := range filter {
		if !types.IsMetadataField(key) {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidFilter, key)
		}

		term := filterTerm{field: key}
		if types.IsIntField(key) {
			n, err := toInt64(value)
			if err != nil {
				return nil, fmt.Errorf("%w: field %q: %w", ErrInvalidFilter, key, err)
			}
			term.num = n
		} else {
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: field %q expects a string, got %T", ErrInvalidFilter, key, value)
			}
			term.str = s
			term.isText = true
		}
		terms = append(terms, term)
	}

	sort.Slice(terms, func(i, j int) bool { return terms[i].field < terms[j].field })
	return terms, nil
}

// toInt64 accepts the integer shapes produced by Go callers and JSON decoding
func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expects an integer, got %v", v)
		}
		return int64(v), nil
	case interface{ Int64() (int64, error) }:
		return v.Int64()
	default:
		return 0, fmt.Errorf("expects an integer, got %T", value)
	}
}

// validateRecords checks each record and that all share one dimension
func validateRecords(records []types.StoredRecord) (int, error) {
	dim := 0
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return 0, fmt.Errorf("%w: record %d: %w", types.ErrStore, i, err)
		}
		if records[i].ID == "" {
			return 0, fmt.Errorf("%w: record %d has no id", types.ErrStore, i)
		}
		if dim == 0 {
			dim = len(records[i].Embedding)
		} else if len(records[i].Embedding) != dim {
			return 0, fmt.Errorf("%w: %w: record %d has %d dimensions, expected %d",
				types.ErrStore, ErrDimensionMismatch, i, len(records[i].Embedding), dim)
		}
	}
	return dim, nil
}
