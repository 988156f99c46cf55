package parser

import (
	"fmt"
	"image"

	"github.com/dgallion1/fingest/internal/layout"
)

// MemoryPage is a Page backed by values already in memory. Nil Image means
// the page cannot be rendered.
type MemoryPage struct {
	Num      int
	Content  string
	SpanList []layout.Span
	Image    image.Image
	TextErr  error
	SpansErr error
}

func (p *MemoryPage) Number() int { return p.Num }

func (p *MemoryPage) Text() (string, error) {
	if p.TextErr != nil {
		return "", p.TextErr
	}
	return p.Content, nil
}

func (p *MemoryPage) Spans() ([]layout.Span, error) {
	if p.SpansErr != nil {
		return nil, p.SpansErr
	}
	return p.SpanList, nil
}

func (p *MemoryPage) Render(scale float64) (image.Image, error) {
	if p.Image == nil {
		return nil, ErrNoRenderer
	}
	return p.Image, nil
}

// MemoryDocument serves a fixed list of pages. A non-nil entry in Errs
// makes Page(n) fail for that page.
type MemoryDocument struct {
	Pages []Page
	Errs  map[int]error
}

func (d *MemoryDocument) NumPages() int { return len(d.Pages) }

func (d *MemoryDocument) Page(n int) (Page, error) {
	if err := d.Errs[n]; err != nil {
		return nil, err
	}
	if n < 1 || n > len(d.Pages) {
		return nil, fmt.Errorf("page %d out of range [1,%d]", n, len(d.Pages))
	}
	return d.Pages[n-1], nil
}

func (d *MemoryDocument) Close() error { return nil }
