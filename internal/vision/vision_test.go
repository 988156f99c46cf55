package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whitePage(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	return g
}

// grid draws a ruled table: n horizontal and n vertical 2px lines.
func grid(w, h, n int) *image.Gray {
	g := whitePage(w, h)
	for i := range n {
		y := 40 + i*((h-80)/n)
		x := 40 + i*((w-80)/n)
		for d := range 2 {
			for xx := 30; xx < w-30; xx++ {
				g.SetGray(xx, y+d, color.Gray{})
			}
			for yy := 30; yy < h-30; yy++ {
				g.SetGray(x+d, yy, color.Gray{})
			}
		}
	}
	return g
}

func TestDarkFraction(t *testing.T) {
	g := whitePage(10, 10)
	for x := range 10 {
		g.SetGray(x, 0, color.Gray{Y: 10})
	}
	assert.InDelta(t, 0.1, DarkFraction(g, 128), 1e-9)
	assert.Equal(t, 0.0, DarkFraction(image.NewGray(image.Rect(0, 0, 0, 0)), 128))
}

func TestCountSegments_SyntheticEdges(t *testing.T) {
	edges := image.NewGray(image.Rect(0, 0, 400, 400))
	for i := range 6 {
		for k := 20; k < 380; k++ {
			edges.Pix[(30+i*60)*edges.Stride+k] = 255
			edges.Pix[k*edges.Stride+(30+i*60)] = 255
		}
	}

	n := CountSegments(edges, DefaultHoughOptions())
	assert.GreaterOrEqual(t, n, 12)
	assert.Zero(t, CountSegments(image.NewGray(image.Rect(0, 0, 200, 200)), DefaultHoughOptions()))
}

func TestCountSegments_ShortLinesIgnored(t *testing.T) {
	edges := image.NewGray(image.Rect(0, 0, 300, 300))
	for k := 10; k < 60; k++ {
		edges.Pix[100*edges.Stride+k] = 255
	}
	assert.Zero(t, CountSegments(edges, DefaultHoughOptions()))
}

func TestMeasure_RuledPageHasLines(t *testing.T) {
	f := Measure(grid(500, 500, 8), DefaultOptions())
	assert.True(t, f.HasLines, "segments=%d", f.LineSegments)
	assert.Greater(t, f.TextDensity, 0.0)
	assert.Equal(t, 500, f.Width)

	blank := Measure(whitePage(300, 300), DefaultOptions())
	assert.False(t, blank.HasLines)
	assert.Zero(t, blank.TextDensity)
}

func TestBinarize_OutputIsTwoLevel(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			g.SetGray(x, y, color.Gray{Y: uint8(x * 4)})
		}
	}
	g.SetGray(32, 32, color.Gray{Y: 0})

	out := Binarize(g, 5, 10)
	for _, v := range out.Pix {
		require.True(t, v == 0 || v == 255)
	}
	assert.Equal(t, uint8(0), out.GrayAt(32, 32).Y)
}

func TestEnhance_PreservesBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	out := Enhance(img, DefaultEnhanceOptions())
	assert.Equal(t, img.Bounds(), out.Bounds())
}

func TestEqualizeLocal_StretchesLowContrast(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			g.SetGray(x, y, color.Gray{Y: uint8(100 + (x % 2) * 20)})
		}
	}
	out := EqualizeLocal(g, 4, 40.0)
	lo, hi := out.GrayAt(0, 10).Y, out.GrayAt(1, 10).Y
	assert.Greater(t, int(hi)-int(lo), 20)
}
