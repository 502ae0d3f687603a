package previewgen

import (
	"math"

	"github.com/MeKo-Tech/worldforge/internal/prng"
)

// plateField assigns each cell to its nearest plate seed (x-wrapped
// Euclidean distance, Voronoi-style) and records, per cell, a stress value
// derived from the distance to the nearest plate boundary and that
// boundary's kind.
type plateField struct {
	cols, rows int
	plateOf    []int
	boundary   []BoundaryKind
	stress     []float64
}

type plateSeed struct {
	x, y float64
}

func buildPlateField(cols, rows, plateCount int, seed int64) *plateField {
	stream := prng.NewHashStream(seed, 0x91A7E)
	seeds := make([]plateSeed, plateCount)
	for i := range seeds {
		seeds[i] = plateSeed{x: stream.Float64() * float64(cols), y: stream.Float64() * float64(rows)}
	}

	// Deterministic per-pair boundary kind, derived from a hash of the
	// unordered pair rather than stored in an adjacency object graph (spec
	// §5's "no ownership cycles" preference for id-indexed arrays).
	kindOf := func(a, b int) BoundaryKind {
		if a > b {
			a, b = b, a
		}
		h := stream.HashPair(uint64(a), uint64(b))
		switch h % 3 {
		case 0:
			return BoundaryConvergent
		case 1:
			return BoundaryDivergent
		default:
			return BoundaryTransform
		}
	}

	pf := &plateField{
		cols:     cols,
		rows:     rows,
		plateOf:  make([]int, cols*rows),
		boundary: make([]BoundaryKind, cols*rows),
		stress:   make([]float64, cols*rows),
	}

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			idx := y*cols + x
			best, second := -1, -1
			bestD, secondD := math.Inf(1), math.Inf(1)
			for i, s := range seeds {
				d := wrapDist2D(float64(x), float64(y), s.x, s.y, float64(cols))
				if d < bestD {
					second, secondD = best, bestD
					best, bestD = i, d
				} else if d < secondD {
					second, secondD = i, d
				}
			}
			pf.plateOf[idx] = best
			// Stress is highest right at a plate boundary (bestD ~ secondD)
			// and decays with the gap between the two nearest plates.
			gap := math.Sqrt(secondD) - math.Sqrt(bestD)
			span := float64(cols+rows) / float64(plateCount)
			pf.stress[idx] = clampUnit(1 - gap/span)
			if second >= 0 {
				pf.boundary[idx] = kindOf(best, second)
			}
		}
	}
	return pf
}

// wrapDist2D returns squared Euclidean distance treating the x axis as
// periodic with period width, matching the equirectangular grid's wrap
// convention used throughout the stage library.
func wrapDist2D(x1, y1, x2, y2, width float64) float64 {
	dx := math.Abs(x1 - x2)
	if dx > width/2 {
		dx = width - dx
	}
	dy := y1 - y2
	return dx*dx + dy*dy
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
