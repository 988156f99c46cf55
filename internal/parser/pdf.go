package parser

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	fitz "github.com/gen2brain/go-fitz"
	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dgallion1/fingest/internal/layout"
)

// PDFOptions configures how pages are read.
type PDFOptions struct {
	FallbackPdftotext bool
	PdftotextTimeout  time.Duration // per page; 0 means 30s
	Layout            layout.Options
	Log               *slog.Logger
}

// PDFDocument reads pages through two backends: the pure-Go content stream
// reader for the text layer and glyph positions, and MuPDF for rendering and
// as a text fallback. Either backend alone is enough to open the file.
type PDFDocument struct {
	mu     sync.Mutex
	ctx    context.Context // bounds external subprocesses
	path   string
	temp   bool
	file   *os.File
	reader *pdflib.Reader
	mupdf  *fitz.Document
	pages  int
	opts   PDFOptions
	log    *slog.Logger
}

// ReadPDF copies r to a temp file and opens it. The temp file is removed on Close.
// Cancelling ctx stops any subprocess the document runs.
func ReadPDF(ctx context.Context, r io.Reader, opts PDFOptions) (*PDFDocument, error) {
	// Both backends need a seekable file on disk.
	tmp, err := os.CreateTemp("", "fingest-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	doc, err := OpenPDF(ctx, tmpPath, opts)
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	doc.temp = true
	return doc, nil
}

// OpenPDF opens the PDF at path. Cancelling ctx stops any subprocess the
// document runs.
func OpenPDF(ctx context.Context, path string, opts PDFOptions) (*PDFDocument, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	if opts.Layout == (layout.Options{}) {
		opts.Layout = layout.DefaultOptions()
	}
	if opts.PdftotextTimeout <= 0 {
		opts.PdftotextTimeout = 30 * time.Second
	}
	d := &PDFDocument{ctx: ctx, path: path, opts: opts, log: log.With("pdf", path)}

	count, countErr := countPages(path)
	if countErr != nil {
		d.log.Warn("pdfcpu preflight failed", "error", countErr)
	}

	f, reader, err := openContentReader(path)
	if err != nil {
		d.log.Warn("content stream reader unavailable", "error", err)
	} else {
		d.file, d.reader = f, reader
	}

	mupdf, err := fitz.New(path)
	if err != nil {
		d.log.Warn("mupdf unavailable", "error", err)
	} else {
		d.mupdf = mupdf
	}

	if d.reader == nil && d.mupdf == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreadable, path)
	}

	switch {
	case countErr == nil && count > 0:
		d.pages = count
	case d.reader != nil:
		d.pages = d.reader.NumPage()
	default:
		d.pages = d.mupdf.NumPage()
	}
	if d.pages <= 0 {
		d.Close()
		return nil, fmt.Errorf("%w: no pages in %s", ErrUnreadable, path)
	}
	return d, nil
}

func countPages(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(f, conf)
}

func openContentReader(path string) (f *os.File, r *pdflib.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf reader panic: %v", rec)
		}
	}()
	return pdflib.Open(path)
}

func (d *PDFDocument) NumPages() int { return d.pages }

func (d *PDFDocument) Page(n int) (Page, error) {
	if n < 1 || n > d.pages {
		return nil, fmt.Errorf("page %d out of range [1,%d]", n, d.pages)
	}
	return &pdfPage{doc: d, num: n}, nil
}

// Close releases both backends and removes the temp copy, if any.
func (d *PDFDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	if d.mupdf != nil {
		if err := d.mupdf.Close(); err != nil {
			firstErr = err
		}
		d.mupdf = nil
	}
	if d.file != nil {
		if err := d.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		d.file, d.reader = nil, nil
	}
	if d.temp {
		os.Remove(d.path)
		d.temp = false
	}
	return firstErr
}

type pdfPage struct {
	doc *PDFDocument
	num int
}

func (p *pdfPage) Number() int { return p.num }

// Text returns the page's text layer, falling through the backends until one
// yields mostly printable text.
func (p *pdfPage) Text() (string, error) {
	d := p.doc
	d.mu.Lock()
	defer d.mu.Unlock()

	var lastErr error
	var best string
	ok := false
	for _, source := range []func() (string, error){p.plainText, p.mupdfText, p.pdftotext} {
		text, err := source()
		if err != nil {
			lastErr = err
			continue
		}
		ok = true
		if strings.TrimSpace(text) == "" {
			continue
		}
		if PrintableRatio(text) >= 0.9 {
			return text, nil
		}
		if best == "" {
			best = text
		}
	}
	if ok || lastErr == nil {
		return best, nil
	}
	return "", fmt.Errorf("page %d text: %w", p.num, lastErr)
}

func (p *pdfPage) plainText() (text string, err error) {
	r := p.doc.reader
	if r == nil {
		return "", fmt.Errorf("content stream reader unavailable")
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("plain text panic: %v", rec)
		}
	}()
	page := r.Page(p.num)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func (p *pdfPage) mupdfText() (string, error) {
	if p.doc.mupdf == nil {
		return "", fmt.Errorf("mupdf unavailable")
	}
	return p.doc.mupdf.Text(p.num - 1)
}

func (p *pdfPage) pdftotext() (string, error) {
	if !p.doc.opts.FallbackPdftotext {
		return "", fmt.Errorf("pdftotext fallback disabled")
	}
	parent := p.doc.ctx
	if parent == nil {
		parent = context.Background()
	}
	if err := parent.Err(); err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	ctx, cancel := context.WithTimeout(parent, p.doc.opts.PdftotextTimeout)
	defer cancel()

	page := strconv.Itoa(p.num)
	cmd := exec.CommandContext(ctx, "pdftotext", "-f", page, "-l", page, "-layout", p.doc.path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

// Spans returns word-level positioned text. Glyph positions from the content
// stream are preferred; MuPDF's positioned HTML is used when they are missing.
func (p *pdfPage) Spans() ([]layout.Span, error) {
	d := p.doc
	d.mu.Lock()
	defer d.mu.Unlock()

	glyphs, err := p.glyphs()
	if err == nil && len(glyphs) > 0 {
		return layout.MergeGlyphs(glyphs, d.opts.Layout), nil
	}
	if d.mupdf == nil {
		if err == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("page %d spans: %w", p.num, err)
	}
	html, herr := d.mupdf.HTML(p.num-1, false)
	if herr != nil {
		return nil, fmt.Errorf("page %d html: %w", p.num, herr)
	}
	return ParseMuPDFHTML(html)
}

func (p *pdfPage) glyphs() (spans []layout.Span, err error) {
	r := p.doc.reader
	if r == nil {
		return nil, fmt.Errorf("content stream reader unavailable")
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("content panic: %v", rec)
		}
	}()
	page := r.Page(p.num)
	if page.V.IsNull() {
		return nil, nil
	}
	for _, t := range page.Content().Text {
		// PDF user space grows upward; flip so rows sort top to bottom.
		spans = append(spans, layout.Span{Text: t.S, X: t.X, Y: -t.Y, Width: t.W, FontSize: t.FontSize})
	}
	return spans, nil
}

// Render rasterizes the page at 72*scale DPI.
func (p *pdfPage) Render(scale float64) (image.Image, error) {
	d := p.doc
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mupdf == nil {
		return nil, ErrNoRenderer
	}
	img, err := d.mupdf.ImageDPI(p.num-1, 72*scale)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", p.num, err)
	}
	return img, nil
}
