package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrag/pkg/types"
)

func TestNew(t *testing.T) {
	c := New(0, -1)
	assert.Equal(t, DefaultChunkSize, c.Size())
	assert.Equal(t, 0, c.Overlap())

	c = New(100, 20)
	assert.Equal(t, 100, c.Size())
	assert.Equal(t, 20, c.Overlap())
}

func TestSplit_PrefersPeriodBoundary(t *testing.T) {
	text := "Sentence one. Sentence two. Sentence three."
	chunks := New(20, 5).Split(text)

	require.Len(t, chunks, 4)

	assert.Equal(t, "Sentence one.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 13, chunks[0].End)

	// Next window starts overlap characters before the previous cut
	assert.Equal(t, 13-5, chunks[1].Start)
	assert.Equal(t, "one. Sentence two.", chunks[1].Text)

	assert.Equal(t, "two.", chunks[2].Text)
	assert.Equal(t, "Sentence three.", chunks[3].Text)
	assert.Equal(t, len(text), chunks[3].End)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, len(chunk.Text), chunk.CharCount)
	}
}

func TestSplit_NewlineBoundary(t *testing.T) {
	chunks := New(15, 0).Split("First line\nSecond. Third part")

	require.Len(t, chunks, 3)
	assert.Equal(t, "First line", chunks[0].Text)
	assert.Equal(t, 11, chunks[0].End)
	assert.Equal(t, "Second.", chunks[1].Text)
	assert.Equal(t, "Third part", chunks[2].Text)
}

func TestSplit_PeriodBeatsEarlierNewline(t *testing.T) {
	chunks := New(20, 3).Split("Line one\nLine two. More words here and there")

	require.NotEmpty(t, chunks)
	assert.Equal(t, "Line one\nLine two.", chunks[0].Text)
	assert.Equal(t, 18, chunks[0].End)
}

func TestSplit_RawCutWithoutBoundary(t *testing.T) {
	text := strings.Repeat("abcdefghij", 5)
	chunks := New(20, 5).Split(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, text[0:20], chunks[0].Text)
	assert.Equal(t, 15, chunks[1].Start)
	assert.Equal(t, text[30:50], chunks[2].Text)
}

func TestSplit_ShortDocumentSingleChunk(t *testing.T) {
	chunks := New(800, 150).Split("Hello world.")

	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello world.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 12, chunks[0].End)
}

func TestSplit_EmptyAndWhitespace(t *testing.T) {
	c := New(10, 2)
	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("      \n\n     \t   "))
}

func TestSplit_WhitespaceWindowDropped(t *testing.T) {
	// The middle window is blank and must not consume a chunk index
	text := "Alpha." + strings.Repeat(" ", 12) + "Omega."
	chunks := New(6, 0).Split(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Alpha.", chunks[0].Text)
	assert.Equal(t, "Omega.", chunks[1].Text)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestSplit_OverlapNotSmallerThanChunk(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
	}{
		{"overlap equals size", 10, 10, strings.Repeat("x", 95)},
		{"overlap exceeds size", 5, 10, "a. b. c. d. e. f."},
		{"size one", 1, 0, "abc"},
		{"short period chunks", 50, 40, strings.Repeat("Hi. ", 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := New(tt.size, tt.overlap).Split(tt.text)
			require.NotEmpty(t, chunks)

			for i := 1; i < len(chunks); i++ {
				assert.Greater(t, chunks[i].Start, chunks[i-1].Start, "cursor must move forward")
			}
			assert.Equal(t, len(tt.text), chunks[len(chunks)-1].End)
		})
	}
}

func TestSplit_TerminationBound(t *testing.T) {
	text := strings.Repeat("abcdefghij", 37)
	for _, tc := range []struct{ size, overlap int }{{20, 5}, {7, 6}, {100, 0}, {13, 12}} {
		chunks := New(tc.size, tc.overlap).Split(text)
		step := tc.size - tc.overlap
		bound := (len(text) + step - 1) / step
		assert.LessOrEqual(t, len(chunks), bound, "size=%d overlap=%d", tc.size, tc.overlap)
	}
}

func TestSplit_Coverage(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 30) +
		"\nFinal paragraph without a period"
	overlap := 25
	chunks := New(120, overlap).Split(text)
	require.NotEmpty(t, chunks)

	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len(text), chunks[len(chunks)-1].End)
	for i := 1; i < len(chunks); i++ {
		// Consecutive spans leave no gap
		assert.LessOrEqual(t, chunks[i].Start, chunks[i-1].End)
		assert.GreaterOrEqual(t, chunks[i].Start, chunks[i-1].End-overlap)
	}
}

func TestSplit_MultibyteText(t *testing.T) {
	text := "Größe ändern. Überprüfung läuft. Ende."
	chunks := New(16, 4).Split(text)
	require.NotEmpty(t, chunks)

	assert.Equal(t, "Größe ändern.", chunks[0].Text)
	assert.Equal(t, 13, chunks[0].CharCount)
	for _, chunk := range chunks {
		assert.True(t, strings.Contains(text, chunk.Text))
	}
}

func TestPageForOffset(t *testing.T) {
	pages := []types.Page{
		{Number: 1, Text: "Intro.", CharCount: 6},
		{Number: 3, Text: "Body text", CharCount: 9},
	}

	tests := []struct {
		name     string
		offset   int
		pages    []types.Page
		expected int
	}{
		{"start of document", 0, pages, 1},
		{"inside separator", 7, pages, 1},
		{"first char of second page", 8, pages, 3},
		{"end of second page", 18, pages, 3},
		{"past all pages", 500, pages, 3},
		{"no pages", 42, nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PageForOffset(tt.offset, tt.pages))
		})
	}
}

func TestChunkDocument(t *testing.T) {
	doc := types.NewDocument("guide.pdf", "/docs/guide.pdf", []types.Page{
		{Number: 1, Text: "Page one talks about setup.", CharCount: 27},
		{Number: 2, Text: "Page two covers usage in depth.", CharCount: 31},
	})

	records := New(30, 5).ChunkDocument(doc)
	require.NotEmpty(t, records)

	for i, rec := range records {
		assert.Equal(t, types.RecordID("guide.pdf", i), rec.ID)
		assert.Equal(t, "guide.pdf", rec.Metadata.Source)
		assert.Equal(t, "/docs/guide.pdf", rec.Metadata.FilePath)
		assert.Equal(t, i, rec.Metadata.ChunkIndex)
		assert.Equal(t, len(records), rec.Metadata.TotalChunks)
		assert.Equal(t, len(rec.Text), rec.Metadata.CharCount)
		assert.Nil(t, rec.Embedding)
	}

	assert.Equal(t, 1, records[0].Metadata.Page)
	assert.Equal(t, 2, records[len(records)-1].Metadata.Page)
}

func TestChunkDocument_StableIDs(t *testing.T) {
	doc := types.NewDocument("a.pdf", "/a.pdf", []types.Page{
		{Number: 1, Text: strings.Repeat("Words and more words. ", 20), CharCount: 440},
	})
	c := New(100, 20)

	first := c.ChunkDocument(doc)
	second := c.ChunkDocument(doc)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestChunkDocument_Nil(t *testing.T) {
	assert.Nil(t, New(10, 0).ChunkDocument(nil))
}
