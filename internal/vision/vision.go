// Package vision holds the raster operations used for page analysis and
// recognition preprocessing.
package vision

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

// Gray converts img to an 8-bit grayscale image.
func Gray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	return rgbaToGray(effect.Grayscale(img))
}

func rgbaToGray(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := src.At(x, y).RGBA()
			dst.SetGray(x, y, color.Gray{Y: uint8(r >> 8)})
		}
	}
	return dst
}

// DarkFraction is the share of pixels darker than level.
func DarkFraction(g *image.Gray, level uint8) float64 {
	b := g.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	dark := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[(y-b.Min.Y)*g.Stride : (y-b.Min.Y)*g.Stride+b.Dx()]
		for _, v := range row {
			if v < level {
				dark++
			}
		}
	}
	return float64(dark) / float64(total)
}

// Edges runs a Sobel filter over g and keeps strong responses.
func Edges(g *image.Gray, level uint8) *image.Gray {
	return segment.Threshold(effect.Sobel(g), level)
}

// Features are the visual measurements of a rendered page.
type Features struct {
	TextDensity  float64 `json:"text_density"`
	LineSegments int     `json:"line_segments"`
	HasLines     bool    `json:"has_lines"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
}

// Options tunes Measure.
type Options struct {
	DarkLevel   uint8
	EdgeLevel   uint8
	MinSegments int // more than this many segments means the page has ruling lines
	Hough       HoughOptions
}

func DefaultOptions() Options {
	return Options{
		DarkLevel:   128,
		EdgeLevel:   128,
		MinSegments: 10,
		Hough:       DefaultHoughOptions(),
	}
}

// Measure computes text density and line-segment features of a rendered page.
func Measure(img image.Image, opts Options) Features {
	g := Gray(img)
	b := g.Bounds()
	n := CountSegments(Edges(g, opts.EdgeLevel), opts.Hough)
	return Features{
		TextDensity:  DarkFraction(g, opts.DarkLevel),
		LineSegments: n,
		HasLines:     n > opts.MinSegments,
		Width:        b.Dx(),
		Height:       b.Dy(),
	}
}
