package vision

import (
	"image"
	"math"
	"sort"
)

// HoughOptions mirrors the usual probabilistic-Hough parameters.
type HoughOptions struct {
	Threshold int     // minimum accumulator votes for a candidate line
	MinLength int     // shortest segment counted, in pixels
	MaxGap    int     // largest gap bridged inside one segment
	ThetaStep float64 // angular resolution in degrees
	MaxLines  int     // cap on candidate lines examined
}

func DefaultHoughOptions() HoughOptions {
	return HoughOptions{
		Threshold: 100,
		MinLength: 100,
		MaxGap:    10,
		ThetaStep: 1,
		MaxLines:  400,
	}
}

type houghPeak struct {
	theta, rho, votes int
}

// CountSegments runs a Hough transform over a binary edge map (non-zero is
// an edge) and counts the line segments found along the strongest lines.
func CountSegments(edges *image.Gray, opts HoughOptions) int {
	if opts.ThetaStep <= 0 {
		opts.ThetaStep = 1
	}
	b := edges.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	var xs, ys []int
	for y := 0; y < h; y++ {
		row := edges.Pix[y*edges.Stride : y*edges.Stride+w]
		for x, v := range row {
			if v > 0 {
				xs = append(xs, x)
				ys = append(ys, y)
			}
		}
	}
	if len(xs) == 0 {
		return 0
	}

	nTheta := int(180 / opts.ThetaStep)
	cosT := make([]float64, nTheta)
	sinT := make([]float64, nTheta)
	for t := range nTheta {
		rad := float64(t) * opts.ThetaStep * math.Pi / 180
		cosT[t], sinT[t] = math.Cos(rad), math.Sin(rad)
	}
	diag := int(math.Ceil(math.Hypot(float64(w), float64(h))))
	nRho := 2*diag + 1

	acc := make([]int, nTheta*nRho)
	for i := range xs {
		x, y := float64(xs[i]), float64(ys[i])
		for t := range nTheta {
			rho := int(math.Round(x*cosT[t]+y*sinT[t])) + diag
			acc[t*nRho+rho]++
		}
	}

	var peaks []houghPeak
	for t := range nTheta {
		for r := range nRho {
			v := acc[t*nRho+r]
			if v < opts.Threshold || !isLocalMax(acc, nTheta, nRho, t, r) {
				continue
			}
			peaks = append(peaks, houghPeak{theta: t, rho: r - diag, votes: v})
		}
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].votes > peaks[j].votes })
	if opts.MaxLines > 0 && len(peaks) > opts.MaxLines {
		peaks = peaks[:opts.MaxLines]
	}

	count := 0
	for _, p := range peaks {
		count += traceSegments(edges, cosT[p.theta], sinT[p.theta], float64(p.rho), opts)
	}
	return count
}

func isLocalMax(acc []int, nTheta, nRho, t, r int) bool {
	v := acc[t*nRho+r]
	for dt := -1; dt <= 1; dt++ {
		tt := t + dt
		if tt < 0 || tt >= nTheta {
			continue
		}
		for dr := -1; dr <= 1; dr++ {
			rr := r + dr
			if rr < 0 || rr >= nRho || (dt == 0 && dr == 0) {
				continue
			}
			n := acc[tt*nRho+rr]
			// Ties resolve toward the lower index so a plateau yields one peak.
			if n > v || (n == v && (dt < 0 || (dt == 0 && dr < 0))) {
				return false
			}
		}
	}
	return true
}

// traceSegments walks the line x*cos+y*sin=rho across the image and counts
// runs of edge pixels at least MinLength long, bridging gaps up to MaxGap.
func traceSegments(edges *image.Gray, cos, sin, rho float64, opts HoughOptions) int {
	b := edges.Bounds()
	w, h := b.Dx(), b.Dy()
	// Closest point on the line to the origin, then step along the direction.
	x0, y0 := rho*cos, rho*sin
	dx, dy := -sin, cos
	span := math.Hypot(float64(w), float64(h))

	count, run, gap := 0, 0, 0
	inRun := false
	for s := -span; s <= span; s++ {
		x := int(math.Round(x0 + s*dx))
		y := int(math.Round(y0 + s*dy))
		if x < 0 || y < 0 || x >= w || y >= h {
			continue
		}
		if edgeNear(edges, x, y, cos, sin) {
			if !inRun {
				inRun, run = true, 0
			}
			run += gap + 1
			gap = 0
			continue
		}
		if inRun {
			gap++
			if gap > opts.MaxGap {
				if run >= opts.MinLength {
					count++
				}
				inRun, run, gap = false, 0, 0
			}
		}
	}
	if inRun && run >= opts.MinLength {
		count++
	}
	return count
}

// edgeNear checks the pixel and its neighbors across the line direction.
func edgeNear(edges *image.Gray, x, y int, cos, sin float64) bool {
	b := edges.Bounds()
	for _, d := range []float64{0, -1, 1} {
		xx := x + int(math.Round(d*cos))
		yy := y + int(math.Round(d*sin))
		if xx < 0 || yy < 0 || xx >= b.Dx() || yy >= b.Dy() {
			continue
		}
		if edges.Pix[yy*edges.Stride+xx] > 0 {
			return true
		}
	}
	return false
}
