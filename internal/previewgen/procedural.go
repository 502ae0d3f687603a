package previewgen

import (
	"context"
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/MeKo-Tech/worldforge/internal/mask"
)

// parallelRows splits [0,rows) across GOMAXPROCS goroutines and calls fn for
// each row range, matching spec.md §4.14's "ownership-free parallel map over
// grid indices": every row is independent, so no cell ever reads another
// goroutine's write within the same pass.
func parallelRows(rows int, fn func(y0, y1 int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > rows {
		workers = rows
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (rows + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		y0 := w * chunk
		y1 := y0 + chunk
		if y0 >= rows {
			break
		}
		if y1 > rows {
			y1 = rows
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			fn(y0, y1)
		}(y0, y1)
	}
	wg.Wait()
}

// runProcedural implements spec.md §4.14's procedural mode: plate sampling,
// domain-warped continental noise, ridged mountain noise keyed by boundary
// kind, hypsometric remap, coastline cleanup, thermal erosion, continental
// shelf, moisture, and final cell assembly.
func runProcedural(ctx context.Context, req Request, report func(percent int, stage string), cancelled func() bool) (*Grid, error) {
	cols, rows := req.Cols, req.Rows

	plates := buildPlateField(cols, rows, req.PlateCount, req.Seed)
	report(10, "plates")
	if cancelled() {
		return nil, errCancelled
	}

	elevation := domainWarpedElevation(cols, rows, req.Seed)
	addRidgedMountains(elevation, plates, cols, rows)
	hypsometricRemap(elevation)
	report(30, "noise")
	if cancelled() {
		return nil, errCancelled
	}

	land := make([]bool, cols*rows)
	for i, e := range elevation {
		land[i] = e > 0
	}
	land = coastlineCleanup(cols, rows, land, 4)
	report(45, "coastline")
	if cancelled() {
		return nil, errCancelled
	}

	thermalErosion(elevation, cols, rows, land, 20)
	report(60, "erosion")
	if cancelled() {
		return nil, errCancelled
	}

	shelf := continentalShelfBFS(cols, rows, land)
	report(70, "shelf")
	if cancelled() {
		return nil, errCancelled
	}

	moisture, oceanProx := moistureAndOceanProximity(cols, rows, land)
	report(85, "moisture")
	if cancelled() {
		return nil, errCancelled
	}

	grid := assembleCells(cols, rows, req.Seed, elevation, plates, land, shelf, moisture, oceanProx)
	report(100, "assemble")
	return grid, nil
}

// domainWarpedElevation samples two offset noise fields to warp the lookup
// coordinates into a third, per SPEC_FULL.md's "domain warp = two offset
// noise samples feeding a third" decision, reusing the teacher's
// grid-aligned Perlin generator so adjacent tiles would agree at a seam.
func domainWarpedElevation(cols, rows int, seed int64) []float64 {
	warpX := mask.GeneratePerlinNoiseWithOffset(cols, rows, float64(cols)/3, seed^0x5151, 0, 0)
	warpY := mask.GeneratePerlinNoiseWithOffset(cols, rows, float64(cols)/3, seed^0x2424, 0, 0)
	base := mask.GeneratePerlinNoiseWithOffset(cols*2, rows*2, float64(cols)/2, seed, 0, 0)

	out := make([]float64, cols*rows)
	baseBounds := base.Bounds()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			idx := y*cols + x
			wx := (float64(warpX.GrayAt(x, y).Y) - 127.5) / 127.5
			wy := (float64(warpY.GrayAt(x, y).Y) - 127.5) / 127.5

			sx := x*2 + int(wx*float64(cols)/6)
			sy := y*2 + int(wy*float64(rows)/6)
			sx = ((sx % baseBounds.Dx()) + baseBounds.Dx()) % baseBounds.Dx()
			sy = clampInt(sy, 0, baseBounds.Dy()-1)

			v := float64(base.GrayAt(sx, sy).Y)/127.5 - 1
			out[idx] = v
		}
	}
	return out
}

// addRidgedMountains adds |noise| rectified ridges at convergent
// boundaries, a rift dip at divergent boundaries, and a mild perturbation
// at transform boundaries, scaled by the boundary's stress.
func addRidgedMountains(elevation []float64, plates *plateField, cols, rows int) {
	ridgeNoise := mask.GeneratePerlinNoiseWithOffset(cols, rows, float64(cols)/8, 0x52494447, 0, 0)
	for i := range elevation {
		n := float64(ridgeNoise.GrayAt(i%cols, i/cols).Y)/127.5 - 1
		ridged := 1 - math.Abs(n)
		s := plates.stress[i]
		switch plates.boundary[i] {
		case BoundaryConvergent:
			elevation[i] += ridged * s * 0.6
		case BoundaryDivergent:
			elevation[i] -= ridged * s * 0.4
		case BoundaryTransform:
			elevation[i] += n * s * 0.15
		}
	}
}

// hypsometricRemap reshapes a roughly uniform distribution into a bimodal
// ocean-basin / continental-plateau one (spec.md's glossary entry for
// "Hypsometric remap").
func hypsometricRemap(elevation []float64) {
	for i, e := range elevation {
		clamped := clampF(e, -1, 1)
		elevation[i] = math.Copysign(math.Pow(math.Abs(clamped), 0.6), clamped)
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

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// coastlineCleanup runs `passes` rounds of parallel read/write majority-vote
// smoothing over the land/water boolean field (spec.md's "four passes of
// parallel read/write" morphological cleanup), each pass reading the
// previous pass's snapshot only.
func coastlineCleanup(cols, rows int, land []bool, passes int) []bool {
	toGray := func(mk []bool) *image.Gray {
		g := image.NewGray(image.Rect(0, 0, cols, rows))
		for i, v := range mk {
			if v {
				g.Pix[i] = 255
			}
		}
		return g
	}
	current := land
	for p := 0; p < passes; p++ {
		snapshot := toGray(current)
		blurred := mask.BoxBlurSigma(snapshot, 1.2)
		antialiased := mask.ApplyThresholdWithAntialias(blurred, 128)
		next := make([]bool, cols*rows)
		parallelRows(rows, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				for x := 0; x < cols; x++ {
					i := y*cols + x
					next[i] = antialiased.GrayAt(x, y).Y >= 128
				}
			}
		})
		current = next
	}
	return current
}

// thermalErosion sequentially transfers elevation from each land cell to its
// lowest land neighbor once it exceeds a talus threshold, spec.md's
// "sequential neighbor transfers" (deliberately not parallelized: transfers
// must serialize to avoid double-counting mass moved in the same pass).
func thermalErosion(elevation []float64, cols, rows int, land []bool, iterations int) {
	const talus = 0.05
	const transferRate = 0.3
	for it := 0; it < iterations; it++ {
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				i := y*cols + x
				if !land[i] {
					continue
				}
				lowestI, lowestE := -1, elevation[i]
				for _, n := range neighbors8Wrap(x, y, cols, rows) {
					if land[n] && elevation[n] < lowestE {
						lowestI, lowestE = n, elevation[n]
					}
				}
				if lowestI < 0 {
					continue
				}
				diff := elevation[i] - lowestE
				if diff > talus {
					moved := (diff - talus) * transferRate
					elevation[i] -= moved
					elevation[lowestI] += moved
				}
			}
		}
	}
}

func neighbors8Wrap(x, y, cols, rows int) []int {
	out := make([]int, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		ny := y + dy
		if ny < 0 || ny >= rows {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx := ((x+dx)%cols + cols) % cols
			out = append(out, ny*cols+nx)
		}
	}
	return out
}

// continentalShelfBFS expands a band of "shallow" cells outward from every
// land cell by breadth-first search, spec.md's "BFS continental shelf".
func continentalShelfBFS(cols, rows int, land []bool) []float64 {
	const shelfWidth = 6
	dist := make([]int, cols*rows)
	for i := range dist {
		dist[i] = -1
	}
	queue := make([]int, 0, cols*rows/4)
	for i, v := range land {
		if v {
			dist[i] = 0
			queue = append(queue, i)
		}
	}
	for head := 0; head < len(queue); head++ {
		i := queue[head]
		if dist[i] >= shelfWidth {
			continue
		}
		x, y := i%cols, i/cols
		for _, n := range neighbors8Wrap(x, y, cols, rows) {
			if dist[n] == -1 {
				dist[n] = dist[i] + 1
				queue = append(queue, n)
			}
		}
	}
	shelf := make([]float64, cols*rows)
	for i, d := range dist {
		if land[i] || d < 0 {
			continue
		}
		if d <= shelfWidth {
			shelf[i] = 1 - float64(d)/float64(shelfWidth)
		}
	}
	return shelf
}

// moistureAndOceanProximity computes, for every cell in parallel, a
// moisture estimate (nearer ocean = wetter, tempered by prevailing wind
// latitude banding) and an ocean-proximity scalar.
func moistureAndOceanProximity(cols, rows int, land []bool) (moisture, oceanProx []float64) {
	moisture = make([]float64, cols*rows)
	oceanProx = make([]float64, cols*rows)
	const searchRadius = 16

	parallelRows(rows, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < cols; x++ {
				i := y*cols + x
				if !land[i] {
					moisture[i] = 1
					oceanProx[i] = 1
					continue
				}
				best := math.Inf(1)
				for r := 1; r <= searchRadius; r++ {
					found := false
					for dy := -r; dy <= r; dy++ {
						ny := y + dy
						if ny < 0 || ny >= rows {
							continue
						}
						for dx := -r; dx <= r; dx++ {
							nx := ((x+dx)%cols + cols) % cols
							ni := ny*cols + nx
							if !land[ni] {
								d := math.Hypot(float64(dx), float64(dy))
								if d < best {
									best = d
									found = true
								}
							}
						}
					}
					if found {
						break
					}
				}
				if math.IsInf(best, 1) {
					best = float64(searchRadius)
				}
				prox := clampUnit(1 - best/float64(searchRadius))
				oceanProx[i] = prox
				latBand := 1 - math.Abs(float64(y)/float64(rows)*2-1)
				moisture[i] = clampUnit(prox*0.7 + latBand*0.3)
			}
		}
	})
	return moisture, oceanProx
}

var errCancelled = errCancelledType{}

type errCancelledType struct{}

func (errCancelledType) Error() string { return "previewgen: cancelled" }
