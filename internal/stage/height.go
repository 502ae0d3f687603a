package stage

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/worldforge/internal/prng"
	"github.com/MeKo-Tech/worldforge/internal/raster"
	"github.com/MeKo-Tech/worldforge/internal/types"
)

const heightStreamPurpose = 0xBEEF

// RunHeight implements stage 3 (spec §4.4): reconstructs a plausible height
// field from albedo texture/shading cues plus a seeded hash-noise field,
// deterministic given cfg.Seed.
func RunHeight(planetDir string, cfg Config, progress ProgressFunc) error {
	if progress == nil {
		progress = noopProgress
	}
	img, err := loadPNG(worldgenPath(planetDir, AlbedoFlatFile))
	if err != nil {
		return fmt.Errorf("stage height: albedo_flat.png missing: %w", err)
	}
	land, w, h, err := loadLandmask(planetDir)
	if err != nil {
		return fmt.Errorf("stage height: landmask.png missing: %w", err)
	}
	grid := gridOf(w, h)
	n := w * h
	progress(5)

	_, _, r, g, b := rgbImageToPlanes(img)
	luma := make([]float32, n)
	for i := 0; i < n; i++ {
		luma[i] = 0.299*r[i] + 0.587*g[i] + 0.114*b[i]
	}
	progress(15)

	texture := localStdDev8(grid, luma)
	progress(25)

	blurredLuma := make([]float32, n)
	grid.GaussianBlur(luma, 3, blurredLuma)
	shading := make([]float32, n)
	for i := range luma {
		shading[i] = absF(luma[i] - blurredLuma[i])
	}
	progress(35)

	mountain := make([]float32, n)
	for i := range mountain {
		mountain[i] = texture[i] * shading[i]
	}
	normalize01(mountain)
	blurredMountain := make([]float32, n)
	grid.GaussianBlur(mountain, 5, blurredMountain)
	for i := range blurredMountain {
		blurredMountain[i] = smoothstep(blurredMountain[i])
	}
	progress(50)

	noise := hashNoiseField(grid, cfg.Seed)
	blurredNoise := make([]float32, n)
	grid.GaussianBlur(noise, 10, blurredNoise)
	progress(60)

	distWater := grid.ChamferDistance(invertBool(land), nil)
	distLand := grid.ChamferDistance(land, nil)
	progress(75)

	elevation := make([]float32, n)
	for i := 0; i < n; i++ {
		noiseVal := blurredNoise[i] * 0.15
		if land[i] {
			ms := blurredMountain[i]
			coastFade := smoothstep(clamp01(distWater[i] / 80))
			elevation[i] = (0.15 + 0.7*ms + noiseVal) * coastFade
		} else {
			elevation[i] = -0.3*float32(math.Sqrt(float64(clamp01(distLand[i]/150)))) + 0.5*noiseVal
		}
	}
	progress(90)

	height := make([]uint16, n)
	for i, e := range elevation {
		if e >= 0 {
			v := e
			if v > 1 {
				v = 1
			}
			height[i] = types.SeaLevel + uint16(v*float32(math.MaxUint16-types.SeaLevel))
		} else {
			v := -e
			if v > 1 {
				v = 1
			}
			height[i] = uint16((1 - v) * float32(types.SeaLevel-1))
		}
	}

	if err := saveHeight16(planetDir, height, w, h); err != nil {
		return fmt.Errorf("stage height: writing height16.png: %w", err)
	}
	progress(100)
	return nil
}

func invertBool(b []bool) []bool {
	out := make([]bool, len(b))
	for i, v := range b {
		out[i] = !v
	}
	return out
}

func absF(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func smoothstep(t float32) float32 {
	t = clamp01(t)
	return t * t * (3 - 2*t)
}

func normalize01(plane []float32) {
	var minv, maxv float32 = plane[0], plane[0]
	for _, v := range plane {
		if v < minv {
			minv = v
		}
		if v > maxv {
			maxv = v
		}
	}
	rng := maxv - minv
	if rng <= 0 {
		for i := range plane {
			plane[i] = 0
		}
		return
	}
	for i, v := range plane {
		plane[i] = (v - minv) / rng
	}
}

// localStdDev8 computes the std-dev of luminance over each pixel's
// 8-neighborhood (plus itself).
func localStdDev8(grid raster.Grid, luma []float32) []float32 {
	out := make([]float32, len(luma))
	for i := range luma {
		x, y := grid.XY(i)
		neigh := grid.Neighbors8(x, y, nil)
		sum := luma[i]
		count := float32(1)
		for _, ni := range neigh {
			sum += luma[ni]
			count++
		}
		mean := sum / count
		var varSum float32
		diff := luma[i] - mean
		varSum += diff * diff
		for _, ni := range neigh {
			diff = luma[ni] - mean
			varSum += diff * diff
		}
		out[i] = float32(math.Sqrt(float64(varSum / count)))
	}
	return out
}

// hashNoiseField draws one PCG32 sample per pixel, deterministic in seed.
func hashNoiseField(grid raster.Grid, seed int64) []float32 {
	stream := prng.NewHashStream(seed, heightStreamPurpose)
	out := make([]float32, grid.Len())
	for i := range out {
		out[i] = float32(stream.Float64Signed())
	}
	return out
}
