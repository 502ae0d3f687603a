package raster

// DistanceContext holds the buffers a ChamferDistance pass needs, reused
// across calls so repeated stages (coast distance, river distance, ...)
// don't re-allocate per call. Mirrors the teacher's DistanceContext
// buffer-reuse idiom, adapted to the chamfer algorithm.
type DistanceContext struct {
	dist []float32
}

// NewDistanceContext preallocates buffers sized for a grid of the given
// pixel count.
func NewDistanceContext(n int) *DistanceContext {
	return &DistanceContext{dist: make([]float32, n)}
}

const infDist = float32(1 << 30)

// chamfer step costs: 1 for axis-aligned, sqrt2 for diagonal.
const chamferAxis = float32(1.0)

var chamferDiag = float32(1.4142135)

// ChamferDistance computes, for every pixel, the chamfer (1-cost) distance
// to the nearest mask[i]==true pixel, via a forward then backward raster
// sweep over 8-neighborhoods. Wrap is not applied (per spec §4.1 — the
// transform is a local feature at short range, wrap artifacts are
// negligible and skipping them keeps the sweep a simple two-pass scan).
func (g Grid) ChamferDistance(mask []bool, ctx *DistanceContext) []float32 {
	if ctx == nil || len(ctx.dist) != g.Len() {
		ctx = NewDistanceContext(g.Len())
	}
	d := ctx.dist
	for i, m := range mask {
		if m {
			d[i] = 0
		} else {
			d[i] = infDist
		}
	}

	// Forward pass: top-left to bottom-right, neighbors already visited
	// are up/left/up-left/up-right.
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			i := y*g.W + x
			if d[i] == 0 {
				continue
			}
			best := d[i]
			if x > 0 {
				best = minF(best, d[i-1]+chamferAxis)
			}
			if y > 0 {
				best = minF(best, d[i-g.W]+chamferAxis)
				if x > 0 {
					best = minF(best, d[i-g.W-1]+chamferDiag)
				}
				if x < g.W-1 {
					best = minF(best, d[i-g.W+1]+chamferDiag)
				}
			}
			d[i] = best
		}
	}

	// Backward pass: bottom-right to top-left.
	for y := g.H - 1; y >= 0; y-- {
		for x := g.W - 1; x >= 0; x-- {
			i := y*g.W + x
			if d[i] == 0 {
				continue
			}
			best := d[i]
			if x < g.W-1 {
				best = minF(best, d[i+1]+chamferAxis)
			}
			if y < g.H-1 {
				best = minF(best, d[i+g.W]+chamferAxis)
				if x < g.W-1 {
					best = minF(best, d[i+g.W+1]+chamferDiag)
				}
				if x > 0 {
					best = minF(best, d[i+g.W-1]+chamferDiag)
				}
			}
			d[i] = best
		}
	}

	out := make([]float32, g.Len())
	copy(out, d)
	return out
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
