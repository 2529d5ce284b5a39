package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/dshills/docrag/pkg/types"
)

const (
	// DefaultChunkSize is the target maximum chunk length in characters
	DefaultChunkSize = 800

	// DefaultOverlap is the number of characters repeated at the start of the next chunk
	DefaultOverlap = 150
)

// separatorWidth is the rune length of types.PageSeparator
var separatorWidth = utf8.RuneCountInString(types.PageSeparator)

// Chunker splits document text into overlapping, boundary-aware chunks
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. A non-positive size falls back to DefaultChunkSize and a
// negative overlap is treated as zero.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{size: size, overlap: overlap}
}

// Size returns the configured chunk size
func (c *Chunker) Size() int {
	return c.size
}

// Overlap returns the configured overlap
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split divides text into chunks covering the whole text
func (c *Chunker) Split(text string) []types.Chunk {
	runes := []rune(text)
	n := len(runes)
	chunks := make([]types.Chunk, 0, n/c.size+1)

	start := 0
	for start < n {
		end := start + c.size
		final := end >= n

		if final {
			end = n
		} else {
			lastPeriod := lastIndex(runes, '.', start, end)
			lastNewline := lastIndex(runes, '\n', start, end)

			if lastPeriod > start && lastPeriod > lastNewline {
				end = lastPeriod + 1
			} else if lastNewline > start {
				end = lastNewline + 1
			}
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, types.Chunk{
				Text:      piece,
				Start:     start,
				End:       end,
				Index:     len(chunks),
				CharCount: utf8.RuneCountInString(piece),
			})
		}

		if final {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// ChunkDocument splits a document and attaches metadata and record ids.
// The returned records have no embeddings yet.
func (c *Chunker) ChunkDocument(doc *types.Document) []types.StoredRecord {
	if doc == nil {
		return nil
	}

	chunks := c.Split(doc.FullText)
	records := make([]types.StoredRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = types.StoredRecord{
			ID:   types.RecordID(doc.Source, chunk.Index),
			Text: chunk.Text,
			Metadata: types.Metadata{
				Source:      doc.Source,
				FilePath:    doc.FilePath,
				Page:        PageForOffset(chunk.Start, doc.Pages),
				ChunkIndex:  chunk.Index,
				TotalChunks: len(chunks),
				CharCount:   chunk.CharCount,
			},
		}
	}
	return records
}

// PageForOffset returns the number of the page containing a character offset of
// the joined document text. Offsets past the last page resolve to the last page,
// and an empty page index resolves to page 1.
func PageForOffset(offset int, pages []types.Page) int {
	current := 0
	for _, page := range pages {
		current += page.CharCount + separatorWidth
		if offset < current {
			return page.Number
		}
	}
	if len(pages) > 0 {
		return pages[len(pages)-1].Number
	}
	return 1
}

// lastIndex returns the index of the last r in runes[lo:hi], or -1
func lastIndex(runes []rune, r rune, lo, hi int) int {
	for i := hi - 1; i >= lo; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
