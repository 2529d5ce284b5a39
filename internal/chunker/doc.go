// Package chunker splits extracted document text into overlapping chunks.
//
// Chunks are cut by character count with a preference for natural boundaries:
// the last period inside the window wins, then the last newline, and only when
// neither exists is the text cut at the raw window size. Each chunk is trimmed;
// chunks that are empty after trimming are dropped and do not consume an index.
//
// # Basic Usage
//
//	c := chunker.New(800, 150)
//	records := c.ChunkDocument(doc)
//	for _, rec := range records {
//	    fmt.Printf("%s page %d chunk %d/%d\n",
//	        rec.Metadata.Source, rec.Metadata.Page,
//	        rec.Metadata.ChunkIndex+1, rec.Metadata.TotalChunks)
//	}
//
// # Overlap
//
// The next window starts overlap characters before the previous cut. When the
// previous chunk was shorter than the overlap (an early period boundary, for
// example) the cursor simply moves to the cut instead, so chunking always makes
// forward progress and terminates.
//
// # Offsets and Pages
//
// All offsets count characters (runes), matching Page.CharCount. A chunk's page
// is the page containing its start offset, found by walking the page index and
// adding each page's length plus the two-character page separator.
package chunker
