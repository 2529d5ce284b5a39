// Package extractor turns PDF files into cleaned, page-indexed text.
//
// Extraction shells out to pdftotext (poppler-utils) once per document and
// splits its output on form feeds, one segment per page. Every page is
// normalised with CleanText; pages that end up empty are left out of the page
// index entirely rather than kept as placeholders.
//
// # Usage
//
//	ext := extractor.New()
//	doc, err := ext.Extract(ctx, "/data/handbook.pdf")
//	switch {
//	case errors.Is(err, types.ErrNoContent):
//	    // scanned or empty PDF, skip it
//	case err != nil:
//	    // wraps types.ErrExtraction
//	}
//
// # Testing
//
// The external tool is reached through the CommandRunner interface, so tests
// substitute a fake runner and never need poppler installed:
//
//	ext := extractor.NewWithRunner(fakeRunner)
package extractor
