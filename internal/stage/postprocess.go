package stage

import (
	"fmt"

	"github.com/MeKo-Tech/worldforge/internal/raster"
	"github.com/MeKo-Tech/worldforge/internal/types"
)

// RunPostprocess implements stage 9 (spec §4.10): contiguity enforcement,
// tiny-province merge, and iterative border smoothing.
func RunPostprocess(planetDir string, cfg Config, progress ProgressFunc) error {
	if progress == nil {
		progress = noopProgress
	}
	img, err := loadPNG(worldgenPath(planetDir, ProvinceIDFile))
	if err != nil {
		return fmt.Errorf("stage postprocess: province_id.png missing: %w", err)
	}
	labels, w, h := unpackIDImage(img)
	grid := gridOf(w, h)
	progress(10)

	labels = enforceContiguity(grid, labels)
	progress(40)

	labels = mergeTinyProvinces(grid, labels, cfg.MinArea)
	progress(65)

	for it := 0; it < cfg.SmoothIterations; it++ {
		labels = smoothBordersOnce(grid, labels)
		progress(65 + (it+1)*30/maxInt(cfg.SmoothIterations, 1))
	}

	if err := savePNG(worldgenPath(planetDir, ProvinceIDFile), packIDImage(labels, w, h)); err != nil {
		return fmt.Errorf("stage postprocess: writing province_id.png: %w", err)
	}
	progress(100)
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// enforceContiguity keeps only the largest 8-connected component per label
// value, relabeling every pixel of smaller components to the most frequent
// non-self neighbor label.
func enforceContiguity(grid raster.Grid, labels []uint32) []uint32 {
	n := len(labels)
	visited := make([]bool, n)
	out := make([]uint32, n)
	copy(out, labels)

	byLabel := make(map[uint32][][]int)
	stack := make([]int, 0, 256)
	for start := 0; start < n; start++ {
		lbl := labels[start]
		if lbl == types.UnlabeledProvince || visited[start] {
			continue
		}
		comp := make([]int, 0, 64)
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, i)
			x, y := grid.XY(i)
			for _, ni := range grid.Neighbors8(x, y, nil) {
				if labels[ni] == lbl && !visited[ni] {
					visited[ni] = true
					stack = append(stack, ni)
				}
			}
		}
		byLabel[lbl] = append(byLabel[lbl], comp)
	}

	for lbl, comps := range byLabel {
		if len(comps) <= 1 {
			continue
		}
		largest := 0
		for i, c := range comps {
			if len(c) > len(comps[largest]) {
				largest = i
			}
		}
		for ci, comp := range comps {
			if ci == largest {
				continue
			}
			for _, i := range comp {
				out[i] = mostFrequentNeighborLabel(grid, out, i, lbl)
			}
		}
	}
	return out
}

func mostFrequentNeighborLabel(grid raster.Grid, labels []uint32, i int, self uint32) uint32 {
	x, y := grid.XY(i)
	counts := make(map[uint32]int)
	for _, ni := range grid.Neighbors8(x, y, nil) {
		l := labels[ni]
		if l == self || l == types.UnlabeledProvince {
			continue
		}
		counts[l]++
	}
	var best uint32 = self
	bestCount := -1
	for l, c := range counts {
		if c > bestCount {
			bestCount = c
			best = l
		}
	}
	return best
}

// mergeTinyProvinces repeatedly merges provinces below minArea into the
// neighbor with the longest shared border, until none remain (or no
// progress can be made).
func mergeTinyProvinces(grid raster.Grid, labels []uint32, minArea int) []uint32 {
	out := make([]uint32, len(labels))
	copy(out, labels)

	for {
		areas := make(map[uint32]int)
		for _, l := range out {
			if l != types.UnlabeledProvince {
				areas[l]++
			}
		}
		var tiny []uint32
		for l, a := range areas {
			if a < minArea {
				tiny = append(tiny, l)
			}
		}
		if len(tiny) == 0 {
			break
		}
		progressedAny := false
		for _, l := range tiny {
			border := make(map[uint32]int)
			for i, v := range out {
				if v != l {
					continue
				}
				x, y := grid.XY(i)
				for _, ni := range grid.Neighbors8(x, y, nil) {
					nl := out[ni]
					if nl != l && nl != types.UnlabeledProvince {
						border[nl]++
					}
				}
			}
			if len(border) == 0 {
				continue
			}
			var best uint32
			bestCount := -1
			for nl, c := range border {
				if c > bestCount {
					bestCount = c
					best = nl
				}
			}
			for i, v := range out {
				if v == l {
					out[i] = best
				}
			}
			progressedAny = true
		}
		if !progressedAny {
			break
		}
	}
	return out
}

// smoothBordersOnce performs one pass of majority-vote border smoothing,
// reading from a snapshot of the input and writing into a fresh buffer.
func smoothBordersOnce(grid raster.Grid, labels []uint32) []uint32 {
	snapshot := make([]uint32, len(labels))
	copy(snapshot, labels)
	out := make([]uint32, len(labels))
	copy(out, labels)

	for i, self := range snapshot {
		if self == types.UnlabeledProvince {
			continue
		}
		x, y := grid.XY(i)
		counts := make(map[uint32]int)
		for _, ni := range grid.Neighbors8(x, y, nil) {
			counts[snapshot[ni]]++
		}
		for l, c := range counts {
			if l != self && l != types.UnlabeledProvince && c >= 6 {
				out[i] = l
				break
			}
		}
	}
	return out
}
