package stage

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/worldforge/internal/raster"
)

// waterHeuristic provides a cheap water/land test good enough for the
// Normalize stage's "protect water from the lighting correction" step. The
// real landmask classification (with morphology and island/hole cleanup)
// happens in the Landmask stage; Normalize only needs a rough mask so the
// ocean doesn't drag the coastal lighting average down.
func waterHeuristic(r, g, b float32) bool {
	return b > r && b > g
}

// RunNormalize implements stage 1 (spec §4.2): removes baked directional
// lighting from the input albedo, leaving water pixels' original color
// untouched.
func RunNormalize(planetDir string, cfg Config, progress ProgressFunc) error {
	if progress == nil {
		progress = noopProgress
	}
	if err := ensureWorldgenDir(planetDir); err != nil {
		return err
	}
	img, err := loadPNG(BaseImageRelFallback(planetDir))
	if err != nil {
		return fmt.Errorf("stage normalize: loading base image: %w", err)
	}
	progress(10)

	w, h, r, g, b := rgbImageToPlanes(img)
	grid := gridOf(w, h)
	n := w * h

	water := make([]bool, n)
	for i := 0; i < n; i++ {
		water[i] = waterHeuristic(r[i], g[i], b[i])
	}
	progress(20)

	outR := make([]float32, n)
	outG := make([]float32, n)
	outB := make([]float32, n)

	planes := [3][]float32{r, g, b}
	outs := [3][]float32{outR, outG, outB}

	for c := 0; c < 3; c++ {
		normalizeChannel(grid, planes[c], water, outs[c])
		progress(20 + (c+1)*20)
	}

	// Restore original water color.
	for i := 0; i < n; i++ {
		if water[i] {
			outR[i], outG[i], outB[i] = r[i], g[i], b[i]
		}
	}
	progress(90)

	out := planesToRGBImage(w, h, outR, outG, outB)
	if err := savePNG(worldgenPath(planetDir, AlbedoFlatFile), out); err != nil {
		return fmt.Errorf("stage normalize: writing albedo_flat.png: %w", err)
	}
	progress(100)
	return nil
}

// normalizeChannel linearizes, replaces water with the land mean, blurs
// (sigma=60), divides the linear original by the blur, rescales to max=1,
// and converts back to sRGB gamma.
func normalizeChannel(grid raster.Grid, src []float32, water []bool, dst []float32) {
	n := len(src)
	linear := make([]float32, n)
	var sum float64
	var count int
	for i, v := range src {
		lv := float32(math.Pow(float64(v), 2.2))
		linear[i] = lv
		if !water[i] {
			sum += float64(lv)
			count++
		}
	}
	landMean := float32(0.5)
	if count > 0 {
		landMean = float32(sum / float64(count))
	}

	forBlur := make([]float32, n)
	for i := range linear {
		if water[i] {
			forBlur[i] = landMean
		} else {
			forBlur[i] = linear[i]
		}
	}

	blurred := make([]float32, n)
	grid.GaussianBlur(forBlur, 60, blurred)

	divided := make([]float32, n)
	var maxV float32
	for i := range linear {
		divided[i] = linear[i] / (blurred[i] + 0.01)
		if divided[i] > maxV {
			maxV = divided[i]
		}
	}
	if maxV <= 0 {
		maxV = 1
	}
	for i := range divided {
		rescaled := divided[i] / maxV
		dst[i] = float32(math.Pow(float64(rescaled), 1/2.2))
	}
}

// BaseImageRelFallback resolves the path to the decoded base input image.
// The orchestrator decodes whatever format textures/base.* is in (JPEG or
// PNG) into worldgen/_input.png once, before Normalize ever runs (see
// internal/pipeline.PreparePlanet), so by the time this stage runs, the
// base image on disk is always the PNG worldgen expects.
func BaseImageRelFallback(planetDir string) string {
	return worldgenPath(planetDir, "_input.png")
}
