package stage

import (
	"fmt"
)

// RunRivers implements stage 4 (spec §4.5): D8 single-flow-direction
// hydrology with topological flow accumulation.
func RunRivers(planetDir string, cfg Config, progress ProgressFunc) error {
	if progress == nil {
		progress = noopProgress
	}
	land, w, h, err := loadLandmask(planetDir)
	if err != nil {
		return fmt.Errorf("stage rivers: landmask.png missing: %w", err)
	}
	height, _, _, err := loadHeight16(planetDir)
	if err != nil {
		return fmt.Errorf("stage rivers: height16.png missing: %w", err)
	}
	grid := gridOf(w, h)
	n := w * h
	progress(10)

	downstream := make([]int, n)
	for i := range downstream {
		downstream[i] = -1
	}
	indegree := make([]int, n)

	for i := 0; i < n; i++ {
		if !land[i] {
			continue
		}
		x, y := grid.XY(i)
		best := -1
		var bestH uint16 = height[i]
		for _, ni := range grid.Neighbors8(x, y, nil) {
			if !land[ni] {
				continue
			}
			if height[ni] < bestH {
				bestH = height[ni]
				best = ni
			}
		}
		downstream[i] = best
		if best >= 0 {
			indegree[best]++
		}
	}
	progress(40)

	accumulation := make([]int, n)
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if land[i] {
			accumulation[i] = 1
			if indegree[i] == 0 {
				queue = append(queue, i)
			}
		}
	}

	head := 0
	for head < len(queue) {
		i := queue[head]
		head++
		d := downstream[i]
		if d < 0 {
			continue
		}
		accumulation[d] += accumulation[i]
		indegree[d]--
		if indegree[d] == 0 {
			queue = append(queue, d)
		}
	}
	progress(80)

	mask := make([]uint8, n)
	for i := 0; i < n; i++ {
		if land[i] && accumulation[i] > cfg.RiverThreshold {
			mask[i] = 255
		}
	}

	if err := saveGray8(worldgenPath(planetDir, RiverMaskFile), mask, w, h); err != nil {
		return fmt.Errorf("stage rivers: writing river_mask.png: %w", err)
	}
	progress(100)
	return nil
}
