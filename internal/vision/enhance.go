package vision

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
)

// EnhanceOptions controls the recognition preprocessing chain.
type EnhanceOptions struct {
	DenoiseRadius float64 // median filter radius
	Tiles         int     // local-contrast grid is Tiles x Tiles
	ClipLimit     float64 // histogram clip, as a multiple of the mean bin height
	WindowRadius  float64 // adaptive threshold neighborhood radius
	Offset        int     // pixels darker than local mean minus Offset become ink
}

func DefaultEnhanceOptions() EnhanceOptions {
	return EnhanceOptions{
		DenoiseRadius: 1,
		Tiles:         8,
		ClipLimit:     2.0,
		WindowRadius:  15,
		Offset:        10,
	}
}

// Enhance prepares a rendered page for character recognition: denoise, local
// contrast equalization, sharpening, then adaptive binarization.
func Enhance(img image.Image, opts EnhanceOptions) *image.Gray {
	g := Gray(img)
	g = Gray(effect.Median(g, opts.DenoiseRadius))
	g = EqualizeLocal(g, opts.Tiles, opts.ClipLimit)
	g = Gray(effect.Sharpen(g))
	return Binarize(g, opts.WindowRadius, opts.Offset)
}

// Binarize thresholds each pixel against the mean of its neighborhood.
func Binarize(g *image.Gray, radius float64, offset int) *image.Gray {
	mean := Gray(blur.Box(g, radius))
	b := g.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := int(g.GrayAt(x, y).Y)
			m := int(mean.GrayAt(x, y).Y)
			if v < m-offset {
				out.SetGray(x, y, color.Gray{Y: 0})
			} else {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// EqualizeLocal is contrast-limited adaptive histogram equalization: each
// tile gets a clipped, equalized mapping and pixels blend the mappings of
// the four nearest tile centers.
func EqualizeLocal(g *image.Gray, tiles int, clip float64) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if tiles < 1 || w < tiles || h < tiles {
		return g
	}
	tw, th := (w+tiles-1)/tiles, (h+tiles-1)/tiles

	maps := make([][256]uint8, tiles*tiles)
	for ty := range tiles {
		for tx := range tiles {
			maps[ty*tiles+tx] = tileMapping(g, tx*tw, ty*th, min((tx+1)*tw, w), min((ty+1)*th, h), clip)
		}
	}

	out := image.NewGray(b)
	for y := range h {
		fy := (float64(y)+0.5)/float64(th) - 0.5
		y0 := clampInt(int(math.Floor(fy)), 0, tiles-1)
		y1 := clampInt(y0+1, 0, tiles-1)
		wy := clampFloat(fy-float64(y0), 0, 1)
		for x := range w {
			fx := (float64(x)+0.5)/float64(tw) - 0.5
			x0 := clampInt(int(math.Floor(fx)), 0, tiles-1)
			x1 := clampInt(x0+1, 0, tiles-1)
			wx := clampFloat(fx-float64(x0), 0, 1)

			v := g.Pix[y*g.Stride+x]
			top := (1-wx)*float64(maps[y0*tiles+x0][v]) + wx*float64(maps[y0*tiles+x1][v])
			bottom := (1-wx)*float64(maps[y1*tiles+x0][v]) + wx*float64(maps[y1*tiles+x1][v])
			out.Pix[y*out.Stride+x] = uint8((1-wy)*top + wy*bottom + 0.5)
		}
	}
	return out
}

func tileMapping(g *image.Gray, x0, y0, x1, y1 int, clip float64) [256]uint8 {
	var hist [256]int
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[g.Pix[y*g.Stride+x]]++
			n++
		}
	}
	var m [256]uint8
	if n == 0 {
		for i := range m {
			m[i] = uint8(i)
		}
		return m
	}

	limit := int(clip * float64(n) / 256)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i, c := range hist {
		if c > limit {
			excess += c - limit
			hist[i] = limit
		}
	}
	bonus, rest := excess/256, excess%256
	for i := range hist {
		hist[i] += bonus
		if i < rest {
			hist[i]++
		}
	}

	cum := 0
	for i, c := range hist {
		cum += c
		m[i] = uint8(clampInt(cum*255/n, 0, 255))
	}
	return m
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
