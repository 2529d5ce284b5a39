package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dshills/docrag/pkg/types"
)

// PDFToolName is the executable used for text extraction
const PDFToolName = "pdftotext"

// Extension is the file extension recognised as a PDF document
const Extension = ".pdf"

var (
	// ErrPDFToolNotFound is returned when pdftotext is not installed
	ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")
	// ErrNotAFile is returned when the path points at a directory
	ErrNotAFile = errors.New("path is not a regular file")
)

// Extractor reads PDF documents into types.Document values
type Extractor struct {
	runner CommandRunner
}

// New creates an Extractor that runs pdftotext via os/exec
func New() *Extractor {
	return &Extractor{runner: ExecRunner{}}
}

// NewWithRunner creates an Extractor with a custom command runner
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// CheckAvailable reports whether pdftotext can be found on PATH
func CheckAvailable() error {
	if _, err := LookPath(PDFToolName); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions describes how to install the extraction tool
func InstallInstructions() string {
	return "pdftotext is required for PDF extraction.\n" +
		"  macOS:         brew install poppler\n" +
		"  Debian/Ubuntu: apt install poppler-utils\n" +
		"  Fedora:        dnf install poppler-utils"
}

// IsPDF reports whether path has the PDF extension (case-insensitive)
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension)
}

// Extract reads the document at path.
// It returns an error wrapping types.ErrExtraction when the file cannot be read
// or parsed, and types.ErrNoContent when no page yields text.
func (e *Extractor) Extract(ctx context.Context, path string) (*types.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrExtraction, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrExtraction, path, ErrNotAFile)
	}

	out, err := e.runner.Run(ctx, PDFToolName, "-enc", "UTF-8", path, "-")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", types.ErrExtraction, ErrPDFToolNotFound)
		}
		return nil, fmt.Errorf("%w: %s: pdftotext failed: %v", types.ErrExtraction, path, err)
	}

	pages := SplitPages(string(out))
	if len(pages) == 0 {
		return nil, fmt.Errorf("%s: %w", path, types.ErrNoContent)
	}

	return types.NewDocument(filepath.Base(path), path, pages), nil
}

// SplitPages splits pdftotext output on form feeds and cleans each page.
// Pages without text are skipped; page numbers keep their position in the file.
func SplitPages(raw string) []types.Page {
	segments := strings.Split(raw, "\f")
	pages := make([]types.Page, 0, len(segments))
	for i, segment := range segments {
		text := CleanText(segment)
		if text == "" {
			continue
		}
		pages = append(pages, types.Page{
			Number:    i + 1,
			Text:      text,
			CharCount: utf8.RuneCountInString(text),
		})
	}
	return pages
}
