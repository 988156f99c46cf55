package parser

import (
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/fingest/internal/doctree"
	"github.com/dgallion1/fingest/internal/layout"
)

var (
	// ErrUnreadable means the input cannot be opened as a document at all.
	// It is the only failure that aborts a whole ingestion.
	ErrUnreadable = errors.New("unreadable document")

	// ErrNoRenderer is returned by Page.Render when no rasterizer is available.
	ErrNoRenderer = errors.New("page rendering unavailable")
)

// Page is read-only access to one page of a document.
type Page interface {
	Number() int // 1-based
	Text() (string, error)
	Spans() ([]layout.Span, error)
	Render(scale float64) (image.Image, error)
}

// Document is a paged source. Implementations must be safe for concurrent
// use by multiple page workers.
type Document interface {
	NumPages() int
	Page(n int) (Page, error) // 1-based
	Close() error
}

// Parser converts a previously written report back into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// IsPDF reports whether filename names a PDF.
func IsPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// ForReport returns the parser for a saved report file.
func ForReport(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported report extension: %s", ext)
	}
}
