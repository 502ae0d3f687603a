package stage

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/worldforge/internal/prng"
	"github.com/MeKo-Tech/worldforge/internal/raster"
	"github.com/MeKo-Tech/worldforge/internal/types"
)

const seedsStreamPurpose = 0xC0FFEE

// RunSeeds implements stage 7 (spec §4.8): weighted Poisson-disk dart
// throwing over land pixels weighted by suitability, with a per-component
// island guarantee.
func RunSeeds(planetDir string, cfg Config, progress ProgressFunc) error {
	if progress == nil {
		progress = noopProgress
	}
	land, w, h, err := loadLandmask(planetDir)
	if err != nil {
		return fmt.Errorf("stage seeds: landmask.png missing: %w", err)
	}
	n := w * h
	suit, err := loadFloat32Plane(worldgenPath(planetDir, SuitabilityFile), n)
	if err != nil {
		return fmt.Errorf("stage seeds: suitability.bin missing: %w", err)
	}
	grid := gridOf(w, h)
	progress(10)

	type candidate struct {
		idx    int
		weight float32
	}
	candidates := make([]candidate, 0, n/4)
	var totalWeight float64
	for i := 0; i < n; i++ {
		if land[i] && suit[i] > 0.01 {
			candidates = append(candidates, candidate{idx: i, weight: suit[i]})
			totalWeight += float64(suit[i])
		}
	}
	progress(20)

	seeds := make([]types.Seed, 0, cfg.TargetCount)
	if len(candidates) == 0 || totalWeight <= 0 {
		if err := saveJSON(worldgenPath(planetDir, SeedsFile), seeds); err != nil {
			return fmt.Errorf("stage seeds: writing seeds.json: %w", err)
		}
		progress(100)
		return nil
	}

	cdf := make([]float64, len(candidates))
	var running float64
	for i, c := range candidates {
		running += float64(c.weight)
		cdf[i] = running / totalWeight
	}

	cellSize := cfg.RMin
	if cellSize <= 0 {
		cellSize = 1
	}
	spatial := newSpatialGrid(cellSize, w)
	stream := prng.NewHashStream(cfg.Seed, seedsStreamPurpose)

	maxAttempts := 50 * cfg.TargetCount
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var nextID uint32

	for attempt := 0; attempt < maxAttempts && len(seeds) < cfg.TargetCount; attempt++ {
		r := stream.Float64()
		ci := bisectCDF(cdf, r)
		idx := candidates[ci].idx
		x, y := grid.XY(idx)
		localR := cfg.RMax - (cfg.RMax-cfg.RMin)*float64(suit[idx])

		if spatial.tooClose(w, x, y, localR) {
			continue
		}
		seeds = append(seeds, types.Seed{ID: nextID, X: uint32(x), Y: uint32(y)})
		spatial.insert(x, y, nextID)
		nextID++

		if attempt%64 == 0 {
			progress(20 + int(60*float64(len(seeds))/float64(cfg.TargetCount)))
		}
	}
	progress(85)

	// Island guarantee: every 4-connected land component gets ≥1 seed.
	components := connectedComponents4(grid, land)
	covered := make(map[int]bool, len(components))
	for _, s := range seeds {
		idx, _ := grid.Idx(int(s.X), int(s.Y))
		for ci, comp := range components {
			if comp[idx] {
				covered[ci] = true
				break
			}
		}
	}
	for ci, comp := range components {
		if covered[ci] {
			continue
		}
		best := -1
		var bestSuit float32 = -1
		for i, inComp := range comp {
			if inComp && suit[i] > bestSuit {
				bestSuit = suit[i]
				best = i
			}
		}
		if best >= 0 {
			x, y := grid.XY(best)
			seeds = append(seeds, types.Seed{ID: nextID, X: uint32(x), Y: uint32(y)})
			nextID++
		}
	}
	progress(95)

	if err := saveJSON(worldgenPath(planetDir, SeedsFile), seeds); err != nil {
		return fmt.Errorf("stage seeds: writing seeds.json: %w", err)
	}
	progress(100)
	return nil
}

func bisectCDF(cdf []float64, r float64) int {
	lo, hi := 0, len(cdf)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if cdf[mid] < r {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// spatialGrid buckets accepted seed points by cell for fast radius queries.
type spatialGrid struct {
	cellSize float64
	worldW   int
	buckets  map[[2]int][][2]int
}

func newSpatialGrid(cellSize float64, worldW int) *spatialGrid {
	return &spatialGrid{cellSize: cellSize, worldW: worldW, buckets: make(map[[2]int][][2]int)}
}

func (sg *spatialGrid) cellOf(x, y int) [2]int {
	return [2]int{int(float64(x) / sg.cellSize), int(float64(y) / sg.cellSize)}
}

func (sg *spatialGrid) insert(x, y int, _ uint32) {
	c := sg.cellOf(x, y)
	sg.buckets[c] = append(sg.buckets[c], [2]int{x, y})
}

func (sg *spatialGrid) tooClose(worldW, x, y int, radius float64) bool {
	c := sg.cellOf(x, y)
	span := int(math.Ceil(radius/sg.cellSize)) + 1
	for dx := -span; dx <= span; dx++ {
		for dy := -span; dy <= span; dy++ {
			bucket, ok := sg.buckets[[2]int{c[0] + dx, c[1] + dy}]
			if !ok {
				continue
			}
			for _, p := range bucket {
				if wrapDist(worldW, x, y, p[0], p[1]) < radius {
					return true
				}
			}
		}
	}
	return false
}

func wrapDist(worldW, x1, y1, x2, y2 int) float64 {
	dx := math.Abs(float64(x1 - x2))
	if dx > float64(worldW)/2 {
		dx = float64(worldW) - dx
	}
	dy := float64(y1 - y2)
	return math.Sqrt(dx*dx + dy*dy)
}

// connectedComponents4 returns one []bool membership mask per 4-connected
// (x-wrapping) land component.
func connectedComponents4(grid raster.Grid, land []bool) [][]bool {
	n := len(land)
	visited := make([]bool, n)
	var comps [][]bool
	stack := make([]int, 0, 256)
	for start := 0; start < n; start++ {
		if !land[start] || visited[start] {
			continue
		}
		comp := make([]bool, n)
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp[i] = true
			x, y := grid.XY(i)
			for _, ni := range grid.Neighbors4(x, y, nil) {
				if land[ni] && !visited[ni] {
					visited[ni] = true
					stack = append(stack, ni)
				}
			}
		}
		comps = append(comps, comp)
	}
	return comps
}
