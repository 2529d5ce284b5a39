package types

import "unicode/utf8"

// PageSeparator joins page texts in Document.FullText
const PageSeparator = "\n\n"

// Page is one page of extracted text.
// CharCount is the length of Text in characters (runes), not bytes.
type Page struct {
	Number    int // 1-based page number in the source file
	Text      string
	CharCount int
}

// Document is the immutable result of extracting a single source file
type Document struct {
	Source     string // File name, used as the grouping key
	FilePath   string
	Pages      []Page // Only pages that yielded text, ordered by Number
	FullText   string
	TotalChars int // Length of FullText in characters
}

// NewDocument builds a Document from cleaned pages, joining them with PageSeparator
func NewDocument(source, filePath string, pages []Page) *Document {
	size := 0
	for i := range pages {
		size += len(pages[i].Text)
	}
	if len(pages) > 1 {
		size += (len(pages) - 1) * len(PageSeparator)
	}

	buf := make([]byte, 0, size)
	for i := range pages {
		if i > 0 {
			buf = append(buf, PageSeparator...)
		}
		buf = append(buf, pages[i].Text...)
	}

	return &Document{
		Source:     source,
		FilePath:   filePath,
		Pages:      pages,
		FullText:   string(buf),
		TotalChars: utf8.RuneCount(buf),
	}
}

// TotalPages returns the number of pages that contributed text
func (d *Document) TotalPages() int {
	return len(d.Pages)
}
