package stage

import (
	"fmt"
	"sort"

	"github.com/MeKo-Tech/worldforge/internal/types"
)

type edgeKey struct{ a, b uint32 }

type edgeAccum struct {
	rawCount     int
	crossesRiver bool
	heightSum    float64
}

// RunAdjacency implements stage 10 (spec §4.11): scans every land pixel and
// its 8-neighbors, accumulating a symmetric border-length/river-crossing/
// mean-height record per unordered province pair.
func RunAdjacency(planetDir string, cfg Config, progress ProgressFunc) error {
	if progress == nil {
		progress = noopProgress
	}
	img, err := loadPNG(worldgenPath(planetDir, ProvinceIDFile))
	if err != nil {
		return fmt.Errorf("stage adjacency: province_id.png missing: %w", err)
	}
	labels, w, h := unpackIDImage(img)
	height, _, _, err := loadHeight16(planetDir)
	if err != nil {
		return fmt.Errorf("stage adjacency: height16.png missing: %w", err)
	}
	riverMask, _, _, err := loadGray8(worldgenPath(planetDir, RiverMaskFile))
	if err != nil {
		return fmt.Errorf("stage adjacency: river_mask.png missing: %w", err)
	}
	grid := gridOf(w, h)
	n := w * h
	progress(10)

	edges := make(map[edgeKey]*edgeAccum)
	for i := 0; i < n; i++ {
		a := labels[i]
		if a == types.UnlabeledProvince {
			continue
		}
		x, y := grid.XY(i)
		for _, ni := range grid.Neighbors8(x, y, nil) {
			b := labels[ni]
			if b == types.UnlabeledProvince || b == a {
				continue
			}
			lo, hi := a, b
			if lo > hi {
				lo, hi = hi, lo
			}
			key := edgeKey{lo, hi}
			acc, ok := edges[key]
			if !ok {
				acc = &edgeAccum{}
				edges[key] = acc
			}
			acc.rawCount++
			acc.heightSum += float64(height[i])
			if riverMask[i] > 0 || riverMask[ni] > 0 {
				acc.crossesRiver = true
			}
		}
		if i%4096 == 0 {
			progress(10 + int(70*float64(i)/float64(n)))
		}
	}
	progress(85)

	byProvince := make(map[uint32][]types.NeighborEdge)
	for key, acc := range edges {
		sharedBorder := uint32(acc.rawCount / 2)
		meanHeight := acc.heightSum / float64(acc.rawCount)
		byProvince[key.a] = append(byProvince[key.a], types.NeighborEdge{
			NeighborID: key.b, SharedBorderLen: sharedBorder,
			CrossesRiver: acc.crossesRiver, MeanBorderHeight: meanHeight,
		})
		byProvince[key.b] = append(byProvince[key.b], types.NeighborEdge{
			NeighborID: key.a, SharedBorderLen: sharedBorder,
			CrossesRiver: acc.crossesRiver, MeanBorderHeight: meanHeight,
		})
	}

	var result []types.ProvinceAdjacencyEntry
	for pid, neighbors := range byProvince {
		sort.Slice(neighbors, func(i, j int) bool {
			return neighbors[i].SharedBorderLen > neighbors[j].SharedBorderLen
		})
		result = append(result, types.ProvinceAdjacencyEntry{ProvinceID: pid, Neighbors: neighbors})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProvinceID < result[j].ProvinceID })

	if err := saveJSON(worldgenPath(planetDir, AdjacencyFile), result); err != nil {
		return fmt.Errorf("stage adjacency: writing adjacency.json: %w", err)
	}
	progress(100)
	return nil
}
