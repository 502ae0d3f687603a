package raster

import "math"

// BoxBlur applies a separable sliding-window box blur of the given radius to
// src (row-major, len(src) == g.Len()), x-wrapping and y-clamping, writing
// into dst. src and dst must not alias. Runs in O(W·H) regardless of radius.
func (g Grid) BoxBlur(src []float32, radius int, dst []float32) {
	if radius <= 0 {
		copy(dst, src)
		return
	}
	tmp := make([]float32, g.Len())
	g.boxBlurHorizontal(src, radius, tmp)
	g.boxBlurVertical(tmp, radius, dst)
}

// boxBlurHorizontal blurs along x with wrap, using a running-sum window.
func (g Grid) boxBlurHorizontal(src []float32, radius int, dst []float32) {
	win := 2*radius + 1
	for y := 0; y < g.H; y++ {
		row := y * g.W
		var sum float32
		for dx := -radius; dx <= radius; dx++ {
			xi := ((dx % g.W) + g.W) % g.W
			sum += src[row+xi]
		}
		for x := 0; x < g.W; x++ {
			dst[row+x] = sum / float32(win)
			outX := ((x - radius) % g.W + g.W) % g.W
			inX := ((x + radius + 1) % g.W + g.W) % g.W
			sum += src[row+inX] - src[row+outX]
		}
	}
}

// boxBlurVertical blurs along y with clamp (no wrap): the window sum slides
// down each column, with out-of-range rows clamped to the first or last row
// at the poles.
func (g Grid) boxBlurVertical(src []float32, radius int, dst []float32) {
	for x := 0; x < g.W; x++ {
		var sum float32
		win := 2*radius + 1
		for dy := -radius; dy <= radius; dy++ {
			yi := clampInt(dy, 0, g.H-1)
			sum += src[yi*g.W+x]
		}
		for y := 0; y < g.H; y++ {
			dst[y*g.W+x] = sum / float32(win)
			outY := clampInt(y-radius, 0, g.H-1)
			inY := clampInt(y+radius+1, 0, g.H-1)
			sum += src[inY*g.W+x] - src[outY*g.W+x]
		}
	}
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

// GaussianRadius returns the box-blur radius that approximates a Gaussian of
// standard deviation sigma: r = round(sigma * sqrt(3)).
func GaussianRadius(sigma float64) int {
	if sigma <= 0 {
		return 0
	}
	r := sigma * math.Sqrt(3)
	return int(math.Round(r))
}

// GaussianBlur approximates a Gaussian blur of standard deviation sigma with
// three repeated box blurs of radius GaussianRadius(sigma), per spec §4.1.
func (g Grid) GaussianBlur(src []float32, sigma float64, dst []float32) {
	r := GaussianRadius(sigma)
	if r <= 0 {
		copy(dst, src)
		return
	}
	a := make([]float32, g.Len())
	b := make([]float32, g.Len())
	g.BoxBlur(src, r, a)
	g.BoxBlur(a, r, b)
	g.BoxBlur(b, r, dst)
}
