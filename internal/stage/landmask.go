package stage

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/worldforge/internal/raster"
)

// RunLandmask implements stage 2 (spec §4.3): HSV-based water classification
// followed by morphological cleanup and island/hole removal.
func RunLandmask(planetDir string, cfg Config, progress ProgressFunc) error {
	if progress == nil {
		progress = noopProgress
	}
	img, err := loadPNG(worldgenPath(planetDir, AlbedoFlatFile))
	if err != nil {
		return fmt.Errorf("stage landmask: albedo_flat.png missing: %w", err)
	}
	w, h, r, g, b := rgbImageToPlanes(img)
	grid := gridOf(w, h)
	n := w * h
	progress(10)

	water := make([]bool, n)
	for i := 0; i < n; i++ {
		hh, s, v := rgbToHSV(r[i], g[i], b[i])
		hueMatch := hueDist(hh, cfg.WaterHue) <= cfg.WaterHueTol
		satOK := s >= cfg.WaterSatMin
		valOK := v >= cfg.WaterValMin
		blueDominant := b[i] > r[i] && b[i] > g[i] && s >= 0.1
		iceSnow := v > 0.8 && s < 0.25
		water[i] = ((hueMatch && satOK && valOK) || blueDominant) && !iceSnow
	}
	progress(30)

	land := make([]bool, n)
	for i := range water {
		land[i] = !water[i]
	}

	// Close: dilate then erode, radius 2.
	land = dilate(grid, land, 2)
	land = erode(grid, land, 2)
	progress(50)

	// Open: erode then dilate, radius 1.
	land = erode(grid, land, 1)
	land = dilate(grid, land, 1)
	progress(65)

	// Remove land islands below MinIslandArea.
	land = removeSmallComponents(grid, land, cfg.MinIslandArea, true)
	progress(80)

	// Remove water holes below MinHoleArea (i.e. tiny non-land components).
	notLand := make([]bool, n)
	for i := range land {
		notLand[i] = !land[i]
	}
	notLand = removeSmallComponents(grid, notLand, cfg.MinHoleArea, true)
	for i := range land {
		land[i] = !notLand[i]
	}
	progress(95)

	if err := saveLandmask(planetDir, land, w, h); err != nil {
		return fmt.Errorf("stage landmask: writing landmask.png: %w", err)
	}
	progress(100)
	return nil
}

// rgbToHSV converts [0,1] RGB to hue in degrees [0,360), saturation and
// value in [0,1].
func rgbToHSV(r, g, b float32) (h, s, v float64) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	maxv := math.Max(rf, math.Max(gf, bf))
	minv := math.Min(rf, math.Min(gf, bf))
	delta := maxv - minv
	v = maxv
	if maxv <= 0 {
		return 0, 0, 0
	}
	s = delta / maxv
	if delta == 0 {
		return 0, s, v
	}
	switch maxv {
	case rf:
		h = 60 * math.Mod((gf-bf)/delta, 6)
	case gf:
		h = 60 * ((bf-rf)/delta + 2)
	case bf:
		h = 60 * ((rf-gf)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return
}

func hueDist(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// dilate grows a boolean mask by radius using 8-connected structuring.
func dilate(grid raster.Grid, mask []bool, radius int) []bool {
	out := make([]bool, len(mask))
	copy(out, mask)
	for it := 0; it < radius; it++ {
		next := make([]bool, len(out))
		for i, v := range out {
			if v {
				next[i] = true
				continue
			}
			x, y := grid.XY(i)
			set := false
			for _, c := range grid.Neighbors8Coords(x, y) {
				ni, _ := grid.Idx(c[0], c[1])
				if out[ni] {
					set = true
					break
				}
			}
			next[i] = set
		}
		out = next
	}
	return out
}

// erode shrinks a boolean mask by radius using 8-connected structuring.
func erode(grid raster.Grid, mask []bool, radius int) []bool {
	out := make([]bool, len(mask))
	copy(out, mask)
	for it := 0; it < radius; it++ {
		next := make([]bool, len(out))
		for i, v := range out {
			if !v {
				continue
			}
			x, y := grid.XY(i)
			keep := true
			for _, c := range grid.Neighbors8Coords(x, y) {
				ni, _ := grid.Idx(c[0], c[1])
				if !out[ni] {
					keep = false
					break
				}
			}
			next[i] = keep
		}
		out = next
	}
	return out
}

// removeSmallComponents 4-connected-with-x-wrap flood-fills mask==true
// components and zeroes out every component smaller than minArea.
func removeSmallComponents(grid raster.Grid, mask []bool, minArea int, fourConnected bool) []bool {
	n := len(mask)
	visited := make([]bool, n)
	out := make([]bool, n)
	copy(out, mask)
	stack := make([]int, 0, 256)
	component := make([]int, 0, 256)

	for start := 0; start < n; start++ {
		if !mask[start] || visited[start] {
			continue
		}
		component = component[:0]
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, i)
			x, y := grid.XY(i)
			var neigh []int
			if fourConnected {
				neigh = grid.Neighbors4(x, y, nil)
			} else {
				neigh = grid.Neighbors8(x, y, nil)
			}
			for _, ni := range neigh {
				if mask[ni] && !visited[ni] {
					visited[ni] = true
					stack = append(stack, ni)
				}
			}
		}
		if len(component) < minArea {
			for _, i := range component {
				out[i] = false
			}
		}
	}
	return out
}
