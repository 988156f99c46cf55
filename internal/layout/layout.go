// Package layout turns positioned text spans into lines and blocks and
// measures the structural features of a page.
package layout

import (
	"math"
	"sort"
	"strings"
)

// Span is a run of text with its position on the page. Y grows downward and
// refers to the baseline; X is the left edge.
type Span struct {
	Text     string
	X, Y     float64
	Width    float64
	FontSize float64
}

// Right returns the x coordinate of the span's right edge.
func (s Span) Right() float64 { return s.X + s.Width }

// Line is a row of spans sorted left to right.
type Line struct {
	Spans []Span
	Y     float64
}

// Left returns the x of the first span.
func (l Line) Left() float64 {
	if len(l.Spans) == 0 {
		return 0
	}
	return l.Spans[0].X
}

// Height approximates line height from the largest font on the line.
func (l Line) Height() float64 {
	h := 0.0
	for _, s := range l.Spans {
		h = math.Max(h, s.FontSize)
	}
	return h
}

// Block is a run of vertically adjacent lines.
type Block struct {
	Lines []Line
}

// Options tunes grouping tolerances.
type Options struct {
	RowTolerance   float64 // max |dy| for two spans to share a line
	WordGapFactor  float64 // glyphs closer than factor*fontSize merge into one span
	SpaceGapFactor float64 // merged glyphs further apart than this get a space
	BlockGapFactor float64 // a gap above factor*lineHeight starts a new block
}

func DefaultOptions() Options {
	return Options{
		RowTolerance:   2.0,
		WordGapFactor:  1.0,
		SpaceGapFactor: 0.15,
		BlockGapFactor: 1.5,
	}
}

// GroupLines buckets spans into rows by y within opts.RowTolerance, sorts
// rows top to bottom and spans within a row by x.
func GroupLines(spans []Span, opts Options) []Line {
	if len(spans) == 0 {
		return nil
	}
	type bucket struct {
		yMin, yMax float64
		spans      []Span
	}
	var buckets []*bucket
	for _, s := range spans {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		var found *bucket
		for _, b := range buckets {
			if s.Y >= b.yMin-opts.RowTolerance && s.Y <= b.yMax+opts.RowTolerance {
				found = b
				break
			}
		}
		if found == nil {
			buckets = append(buckets, &bucket{yMin: s.Y, yMax: s.Y, spans: []Span{s}})
			continue
		}
		found.spans = append(found.spans, s)
		found.yMin = math.Min(found.yMin, s.Y)
		found.yMax = math.Max(found.yMax, s.Y)
	}

	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].yMin < buckets[j].yMin })

	lines := make([]Line, 0, len(buckets))
	for _, b := range buckets {
		sort.SliceStable(b.spans, func(i, j int) bool { return b.spans[i].X < b.spans[j].X })
		lines = append(lines, Line{Spans: b.spans, Y: b.yMin})
	}
	return lines
}

// MergeGlyphs joins per-character spans (as produced by content-stream
// decoding) into word-level spans. Input order does not matter.
func MergeGlyphs(glyphs []Span, opts Options) []Span {
	var out []Span
	for _, line := range GroupLines(glyphs, opts) {
		var cur *Span
		for _, g := range line.Spans {
			if cur != nil {
				threshold := opts.WordGapFactor * cur.FontSize
				if cur.FontSize == 0 {
					threshold = 3.0
				}
				gap := g.X - cur.Right()
				if gap <= threshold {
					if gap > opts.SpaceGapFactor*cur.FontSize && cur.FontSize > 0 {
						cur.Text += " "
					}
					cur.Text += g.Text
					cur.Width = g.Right() - cur.X
					cur.FontSize = math.Max(cur.FontSize, g.FontSize)
					continue
				}
				out = append(out, *cur)
			}
			g := g
			cur = &g
		}
		if cur != nil {
			out = append(out, *cur)
		}
	}
	return out
}

// GroupBlocks splits lines into blocks wherever the vertical gap between
// consecutive lines exceeds opts.BlockGapFactor times the line height.
func GroupBlocks(lines []Line, opts Options) []Block {
	var blocks []Block
	var cur []Line
	for i, l := range lines {
		if i > 0 {
			prev := lines[i-1]
			h := prev.Height()
			if h == 0 {
				h = 10
			}
			if l.Y-prev.Y > opts.BlockGapFactor*h {
				blocks = append(blocks, Block{Lines: cur})
				cur = nil
			}
		}
		cur = append(cur, l)
	}
	if len(cur) > 0 {
		blocks = append(blocks, Block{Lines: cur})
	}
	return blocks
}

// FontVariance is the population variance of span font sizes.
func FontVariance(spans []Span) float64 {
	var sizes []float64
	for _, s := range spans {
		if s.FontSize > 0 {
			sizes = append(sizes, s.FontSize)
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range sizes {
		mean += v
	}
	mean /= float64(len(sizes))
	variance := 0.0
	for _, v := range sizes {
		variance += (v - mean) * (v - mean)
	}
	return variance / float64(len(sizes))
}

// Aligned reports whether the block's lines reuse left edges: fewer distinct
// (rounded) x positions than len(lines)*ratio.
func (b Block) Aligned(ratio float64) bool {
	if len(b.Lines) == 0 {
		return false
	}
	distinct := map[int]struct{}{}
	for _, l := range b.Lines {
		distinct[int(math.Round(l.Left()))] = struct{}{}
	}
	return float64(len(distinct)) < float64(len(b.Lines))*ratio
}

// Render joins each line's spans with the separator chosen by sep for the
// horizontal gap between them, one line per row.
func Render(lines []Line, sep func(gap float64) string) string {
	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for j, s := range l.Spans {
			if j > 0 {
				sb.WriteString(sep(s.X - l.Spans[j-1].Right()))
			}
			sb.WriteString(strings.TrimSpace(s.Text))
		}
	}
	return sb.String()
}
