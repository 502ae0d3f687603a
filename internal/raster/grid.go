// Package raster implements the shared grid-addressing and signal-processing
// primitives every pipeline stage builds on: x-wrap/y-clamp index math,
// 4- and 8-connected neighbor enumeration, separable box/Gaussian blur, and
// a two-pass chamfer distance transform.
package raster

// Grid describes a W×H row-major raster. The x-axis wraps (longitude); the
// y-axis clamps at the poles and never wraps (latitude).
type Grid struct {
	W, H int
}

// Idx returns the flat index for (x, y), wrapping x into [0, W) and
// reporting ok=false if y falls outside [0, H).
func (g Grid) Idx(x, y int) (idx int, ok bool) {
	if y < 0 || y >= g.H {
		return 0, false
	}
	x = ((x % g.W) + g.W) % g.W
	return y*g.W + x, true
}

// XY recovers the (x, y) coordinate for a flat index produced by Idx.
func (g Grid) XY(i int) (x, y int) {
	return i % g.W, i / g.W
}

// Len is the total pixel count W*H.
func (g Grid) Len() int { return g.W * g.H }

var offsets4 = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

var offsets8 = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// Neighbors4 appends the in-range 4-connected neighbor indices of (x, y) to
// dst and returns the extended slice. x wraps; out-of-range y is dropped.
func (g Grid) Neighbors4(x, y int, dst []int) []int {
	for _, o := range offsets4 {
		if idx, ok := g.Idx(x+o[0], y+o[1]); ok {
			dst = append(dst, idx)
		}
	}
	return dst
}

// Neighbors8 appends the in-range 8-connected neighbor indices of (x, y) to
// dst and returns the extended slice.
func (g Grid) Neighbors8(x, y int, dst []int) []int {
	for _, o := range offsets8 {
		if idx, ok := g.Idx(x+o[0], y+o[1]); ok {
			dst = append(dst, idx)
		}
	}
	return dst
}

// Neighbors8Coords appends the in-range 8-connected neighbor coordinates
// (not flat indices) of (x, y), useful when the caller also needs dx/dy.
func (g Grid) Neighbors8Coords(x, y int) [][2]int {
	out := make([][2]int, 0, 8)
	for _, o := range offsets8 {
		nx, ny := x+o[0], y+o[1]
		if _, ok := g.Idx(nx, ny); ok {
			nx = ((nx % g.W) + g.W) % g.W
			out = append(out, [2]int{nx, ny})
		}
	}
	return out
}
