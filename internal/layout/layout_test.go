package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func glyphs(text string, x, y, size float64) []Span {
	var out []Span
	for _, r := range text {
		out = append(out, Span{Text: string(r), X: x, Y: y, Width: size * 0.5, FontSize: size})
		x += size * 0.5
	}
	return out
}

func TestGroupLines_SortsRowsAndSpans(t *testing.T) {
	spans := []Span{
		{Text: "right", X: 200, Y: 10.5, Width: 30, FontSize: 10},
		{Text: "below", X: 10, Y: 30, Width: 30, FontSize: 10},
		{Text: "left", X: 10, Y: 10, Width: 30, FontSize: 10},
		{Text: "  ", X: 300, Y: 10, Width: 5, FontSize: 10},
	}
	lines := GroupLines(spans, DefaultOptions())

	require.Len(t, lines, 2)
	require.Len(t, lines[0].Spans, 2)
	assert.Equal(t, "left", lines[0].Spans[0].Text)
	assert.Equal(t, "right", lines[0].Spans[1].Text)
	assert.Equal(t, "below", lines[1].Spans[0].Text)
}

func TestMergeGlyphs_JoinsWordsAndSplitsColumns(t *testing.T) {
	var in []Span
	in = append(in, glyphs("Revenue", 10, 50, 10)...)
	in = append(in, glyphs("1,234", 200, 50, 10)...)

	spans := MergeGlyphs(in, DefaultOptions())

	require.Len(t, spans, 2)
	assert.Equal(t, "Revenue", spans[0].Text)
	assert.Equal(t, "1,234", spans[1].Text)
	assert.InDelta(t, 35.0, spans[0].Width, 0.001)
}

func TestMergeGlyphs_InsertsSpaceForWordGap(t *testing.T) {
	in := glyphs("Net", 10, 50, 10)
	in = append(in, glyphs("income", 10+15+3, 50, 10)...)

	spans := MergeGlyphs(in, DefaultOptions())

	require.Len(t, spans, 1)
	assert.Equal(t, "Net income", spans[0].Text)
}

func TestGroupBlocks_SplitsOnLargeGap(t *testing.T) {
	lines := []Line{
		{Y: 10, Spans: []Span{{Text: "a", X: 10, FontSize: 10}}},
		{Y: 22, Spans: []Span{{Text: "b", X: 10, FontSize: 10}}},
		{Y: 80, Spans: []Span{{Text: "c", X: 10, FontSize: 10}}},
	}
	blocks := GroupBlocks(lines, DefaultOptions())

	require.Len(t, blocks, 2)
	assert.Len(t, blocks[0].Lines, 2)
	assert.Len(t, blocks[1].Lines, 1)
}

func TestFontVariance(t *testing.T) {
	spans := []Span{{FontSize: 10}, {FontSize: 10}, {FontSize: 16}, {FontSize: 16}, {FontSize: 0}}
	assert.InDelta(t, 9.0, FontVariance(spans), 1e-9)
	assert.Equal(t, 0.0, FontVariance(nil))
}

func TestBlockAligned(t *testing.T) {
	line := func(x float64) Line { return Line{Spans: []Span{{Text: "x", X: x}}} }

	aligned := Block{Lines: []Line{line(10), line(10.2), line(80), line(80)}}
	assert.True(t, aligned.Aligned(0.8), "2 distinct lefts over 4 lines")

	ragged := Block{Lines: []Line{line(10), line(30), line(50)}}
	assert.False(t, ragged.Aligned(0.8))

	single := Block{Lines: []Line{line(10)}}
	assert.False(t, single.Aligned(0.8))
}

func TestRender_UsesGapSeparator(t *testing.T) {
	lines := []Line{{Spans: []Span{
		{Text: "項目", X: 0, Width: 20},
		{Text: "2023", X: 100, Width: 20},
		{Text: "2024", X: 125, Width: 20},
	}}}
	sep := func(gap float64) string {
		if gap > 60 {
			return " | "
		}
		return " "
	}
	assert.Equal(t, "項目 | 2023 2024", Render(lines, sep))
}
