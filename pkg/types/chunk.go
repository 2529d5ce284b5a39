package types

import (
	"strconv"

	"github.com/google/uuid"
)

// Chunk is a trimmed, positioned fragment of Document.FullText
type Chunk struct {
	Text      string
	Start     int // Offset of the fragment start in FullText
	End       int // Offset one past the fragment end in FullText, before trimming
	Index     int // 0-based over emitted chunks only
	CharCount int
}

// Metadata is attached to every stored chunk. It doubles as the citation record
// and as the set of keys accepted by exact-match filters.
type Metadata struct {
	Source      string `json:"source"`
	FilePath    string `json:"file_path"`
	Page        int    `json:"page"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	CharCount   int    `json:"char_count"`
}

// Metadata field names, usable as filter keys
const (
	FieldSource      = "source"
	FieldFilePath    = "file_path"
	FieldPage        = "page"
	FieldChunkIndex  = "chunk_index"
	FieldTotalChunks = "total_chunks"
	FieldCharCount   = "char_count"
)

// MetadataFields lists every filterable metadata key
var MetadataFields = []string{
	FieldSource, FieldFilePath, FieldPage, FieldChunkIndex, FieldTotalChunks, FieldCharCount,
}

// IsMetadataField reports whether key names a Metadata field
func IsMetadataField(key string) bool {
	for _, f := range MetadataFields {
		if f == key {
			return true
		}
	}
	return false
}

// IsIntField reports whether the metadata field holds an integer
func IsIntField(key string) bool {
	return key != FieldSource && key != FieldFilePath
}

// AsMap returns the metadata keyed by field name
func (m Metadata) AsMap() map[string]any {
	return map[string]any{
		FieldSource:      m.Source,
		FieldFilePath:    m.FilePath,
		FieldPage:        m.Page,
		FieldChunkIndex:  m.ChunkIndex,
		FieldTotalChunks: m.TotalChunks,
		FieldCharCount:   m.CharCount,
	}
}

// Key returns the "source_chunkIndex" string that record ids are derived from
func (m Metadata) Key() string {
	return m.Source + "_" + strconv.Itoa(m.ChunkIndex)
}

// StoredRecord is the unit persisted by the index store
type StoredRecord struct {
	ID        string
	Embedding []float32
	Text      string
	Metadata  Metadata
}

// Validate checks that a record can be written to the store
func (r *StoredRecord) Validate() error {
	if r.Text == "" {
		return ErrEmptyText
	}
	if r.Metadata.Source == "" {
		return ErrEmptySource
	}
	if r.Metadata.ChunkIndex < 0 {
		return ErrInvalidChunkIdx
	}
	if len(r.Embedding) == 0 {
		return ErrMissingVector
	}
	return nil
}

// Filter is an exact-match metadata filter. Every entry must match.
type Filter map[string]any

// RecordNamespace scopes the name-based UUIDs used as record ids
var RecordNamespace = uuid.MustParse("6f1d8a62-3c1e-5b0f-9a57-0d8c3e2b7a41")

// RecordID derives the deterministic record id for a chunk of a source.
// The same source and chunk index always map to the same id.
func RecordID(source string, chunkIndex int) string {
	key := Metadata{Source: source, ChunkIndex: chunkIndex}.Key()
	return uuid.NewSHA1(RecordNamespace, []byte(key)).String()
}
