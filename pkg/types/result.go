package types

import "fmt"

// SearchResult is a single ranked hit from the index store
type SearchResult struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Distance *float64 `json:"distance"` // Cosine distance, nil when the store did not report one
}

// Source is a citation kept in a RetrievalContext
type Source struct {
	Source         string   `json:"source"`
	FilePath       string   `json:"file_path"`
	Page           int      `json:"page"`
	ChunkIndex     int      `json:"chunk_index"`
	RelevanceScore *float64 `json:"relevance_score"`
}

// RetrievalContext is the assembled, citation-annotated context for a query
type RetrievalContext struct {
	Context string   `json:"context"`
	Sources []Source `json:"sources"`
}

// DocumentSummary is the per-source inventory entry reported by list operations
type DocumentSummary struct {
	Source      string `json:"source"`
	FilePath    string `json:"file_path"`
	TotalChunks int    `json:"total_chunks"`
	MinPage     int    `json:"-"`
	MaxPage     int    `json:"-"`
	PageRange   string `json:"page_range"`
}

// FormatPageRange renders a "min-max" page range, or "N/A" when no page was recorded
func FormatPageRange(minPage, maxPage int, ok bool) string {
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%d-%d", minPage, maxPage)
}
