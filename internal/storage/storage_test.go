package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrag/pkg/types"
)

func TestNormalizeFilter(t *testing.T) {
	tests := []struct {
		name    string
		filter  types.Filter
		want    []filterTerm
		wantErr bool
	}{
		{name: "nil", filter: nil, want: nil},
		{
			name:   "string field",
			filter: types.Filter{"source": "a.pdf"},
			want:   []filterTerm{{field: "source", str: "a.pdf", isText: true}},
		},
		{
			name:   "int from json float",
			filter: types.Filter{"page": float64(3)},
			want:   []filterTerm{{field: "page", num: 3}},
		},
		{
			name:   "sorted by field",
			filter: types.Filter{"source": "a.pdf", "chunk_index": 2},
			want: []filterTerm{
				{field: "chunk_index", num: 2},
				{field: "source", str: "a.pdf", isText: true},
			},
		},
		{
			name:   "json number",
			filter: types.Filter{"page": json.Number("7")},
			want:   []filterTerm{{field: "page", num: 7}},
		},
		{name: "unknown field", filter: types.Filter{"author": "x"}, wantErr: true},
		{name: "fractional page", filter: types.Filter{"page": 1.5}, wantErr: true},
		{name: "string for int field", filter: types.Filter{"page": "3"}, wantErr: true},
		{name: "int for string field", filter: types.Filter{"source": 3}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeFilter(tt.filter)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFilter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateRecords(t *testing.T) {
	good := record("a.pdf", 0, 1, []float32{1, 0})

	dim, err := validateRecords([]types.StoredRecord{good})
	require.NoError(t, err)
	assert.Equal(t, 2, dim)

	_, err = validateRecords([]types.StoredRecord{good, record("a.pdf", 1, 1, []float32{1, 0, 0})})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.ErrorIs(t, err, types.ErrStore)

	missing := good
	missing.Embedding = nil
	_, err = validateRecords([]types.StoredRecord{missing})
	assert.ErrorIs(t, err, types.ErrMissingVector)
}

// record builds a stored record with a deterministic id
func record(source string, chunkIndex, page int, vector []float32) types.StoredRecord {
	return types.StoredRecord{
		ID:        types.RecordID(source, chunkIndex),
		Embedding: vector,
		Text:      source + " chunk",
		Metadata: types.Metadata{
			Source:      source,
			FilePath:    "/docs/" + source,
			Page:        page,
			ChunkIndex:  chunkIndex,
			TotalChunks: 3,
			CharCount:   11,
		},
	}
}
