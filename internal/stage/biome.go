package stage

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/worldforge/internal/raster"
	"github.com/MeKo-Tech/worldforge/internal/types"
)

// RunBiome implements stage 5 (spec §4.6): latitude/elevation/rainfall-proxy
// classification cascade, with an optional color-biased override.
func RunBiome(planetDir string, cfg Config, progress ProgressFunc) error {
	if progress == nil {
		progress = noopProgress
	}
	land, w, h, err := loadLandmask(planetDir)
	if err != nil {
		return fmt.Errorf("stage biome: landmask.png missing: %w", err)
	}
	height, _, _, err := loadHeight16(planetDir)
	if err != nil {
		return fmt.Errorf("stage biome: height16.png missing: %w", err)
	}
	grid := gridOf(w, h)
	n := w * h
	progress(10)

	coastDist := grid.ChamferDistance(invertBool(land), nil)
	maxCoast := maxOf(coastDist)
	progress(25)

	elevNorm := make([]float32, n)
	for i := range elevNorm {
		if height[i] >= types.SeaLevel {
			elevNorm[i] = float32(height[i]-types.SeaLevel) / float32(math.MaxUint16-types.SeaLevel)
		}
	}
	slope := centralDiffSlope(grid, elevNorm)
	progress(45)

	var rgbImg [][3]float32
	if cfg.ColorBiased {
		rgbImg = loadAlbedoRGBPlanes(planetDir, n)
	}
	progress(55)

	biome := make([]uint8, n)
	for i := 0; i < n; i++ {
		if !land[i] {
			biome[i] = types.BiomeOcean
			continue
		}
		_, y := grid.XY(i)
		lat := float32(y) / float32(h-1)
		if h == 1 {
			lat = 0.5
		}
		temp := 1 - 2*absF(lat-0.5)
		coastProx := float32(1)
		if maxCoast > 0 {
			coastProx = 1 - clamp01(coastDist[i]/maxCoast)
		}
		rain := 0.5 + 0.3*coastProx - 0.2*elevNorm[i]

		procedural := classifyBiome(elevNorm[i], slope[i], temp, rain)
		biome[i] = procedural

		if cfg.ColorBiased && rgbImg != nil {
			colorClass, score := classifyBiomeByColor(rgbImg[i])
			// Penalize disagreement with the procedural prior by 0.15, per
			// spec §9; override only when the color match clearly wins.
			if colorClass != procedural {
				priorScore := 0.0
				if proto, ok := biomeHSVPrototypes[procedural]; ok {
					ph, ps, pv := rgbToHSV(rgbImg[i][0], rgbImg[i][1], rgbImg[i][2])
					priorScore = 1 - (hueDist(ph, proto[0])/180+math.Abs(ps-proto[1])+math.Abs(pv-proto[2]))/3
				}
				if score-0.15 > priorScore {
					biome[i] = colorClass
				}
			}
		}
	}
	progress(90)

	if err := saveGray8(worldgenPath(planetDir, BiomeFile), biome, w, h); err != nil {
		return fmt.Errorf("stage biome: writing biome.png: %w", err)
	}
	progress(100)
	return nil
}

func classifyBiome(elev, slope, temp, rain float32) uint8 {
	switch {
	case elev > 0.75 || slope > 0.05:
		return types.BiomeMountain
	case temp < 0.15:
		return types.BiomeIceTundra
	case temp < 0.3:
		return types.BiomeTaiga
	case temp > 0.7 && rain < 0.3:
		return types.BiomeDesert
	case temp > 0.7 && rain > 0.5:
		return types.BiomeTropical
	case temp > 0.5 && rain < 0.4:
		return types.BiomeSavanna
	case rain > 0.5:
		return types.BiomeTemperate
	default:
		return types.BiomeGrassland
	}
}

// biomeHSVPrototypes are fixed reference hues for the optional color-biased
// variant (spec §4.6, §9 open question — defaults off).
var biomeHSVPrototypes = map[uint8][3]float64{
	types.BiomeIceTundra: {200, 0.1, 0.95},
	types.BiomeTaiga:     {130, 0.4, 0.4},
	types.BiomeDesert:    {45, 0.6, 0.8},
	types.BiomeTropical:  {110, 0.7, 0.5},
	types.BiomeSavanna:   {55, 0.5, 0.65},
	types.BiomeTemperate: {100, 0.5, 0.5},
	types.BiomeGrassland: {80, 0.45, 0.6},
	types.BiomeMountain:  {0, 0.05, 0.5},
}

func classifyBiomeByColor(rgb [3]float32) (uint8, float64) {
	h, s, v := rgbToHSV(rgb[0], rgb[1], rgb[2])
	var best uint8
	bestScore := math.Inf(1)
	for class, proto := range biomeHSVPrototypes {
		dh := hueDist(h, proto[0]) / 180
		ds := math.Abs(s - proto[1])
		dv := math.Abs(v - proto[2])
		d := dh + ds + dv
		if d < bestScore {
			bestScore = d
			best = class
		}
	}
	return best, 1 - bestScore/3
}

func loadAlbedoRGBPlanes(planetDir string, n int) [][3]float32 {
	img, err := loadPNG(worldgenPath(planetDir, AlbedoFlatFile))
	if err != nil {
		return nil
	}
	_, _, r, g, b := rgbImageToPlanes(img)
	if len(r) != n {
		return nil
	}
	out := make([][3]float32, n)
	for i := range out {
		out[i] = [3]float32{r[i], g[i], b[i]}
	}
	return out
}

func maxOf(plane []float32) float32 {
	var m float32
	for _, v := range plane {
		if v > m {
			m = v
		}
	}
	return m
}

// centralDiffSlope computes a central-difference gradient magnitude on the
// normalized elevation plane, x-wrapping / y-clamping per the grid's own
// addressing rules, scaled down to the same rough units biome/suitability
// both read slope in.
func centralDiffSlope(grid raster.Grid, elev []float32) []float32 {
	out := make([]float32, len(elev))
	for i := range elev {
		x, y := grid.XY(i)
		xp, _ := grid.Idx(x+1, y)
		xm, _ := grid.Idx(x-1, y)
		dx := elev[xp] - elev[xm]

		y0, y1 := y-1, y+1
		if y0 < 0 {
			y0 = 0
		}
		if y1 > grid.H-1 {
			y1 = grid.H - 1
		}
		ip, _ := grid.Idx(x, y1)
		im, _ := grid.Idx(x, y0)
		dy := elev[ip] - elev[im]

		out[i] = float32(math.Sqrt(float64(dx*dx+dy*dy))) * 0.5
	}
	return out
}
