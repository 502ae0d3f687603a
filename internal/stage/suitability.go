package stage

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/worldforge/internal/types"
)

// biomeWeight is the fixed suitability table from spec §4.7.
var biomeWeight = map[uint8]float32{
	types.BiomeGrassland:  0.90,
	types.BiomeTemperate:  0.80,
	types.BiomeSavanna:    0.60,
	types.BiomeTropical:   0.50,
	types.BiomeTaiga:      0.30,
	types.BiomeDesert:     0.15,
	types.BiomeIceTundra:  0.10,
	types.BiomeMountain:   0.05,
}

const otherBiomeWeight = 0.40

// RunSuitability implements stage 6 (spec §4.7): a weighted blend of river
// proximity, coast proximity, flatness, mid-elevation preference, and biome
// weight, computed for land only.
func RunSuitability(planetDir string, cfg Config, progress ProgressFunc) error {
	if progress == nil {
		progress = noopProgress
	}
	land, w, h, err := loadLandmask(planetDir)
	if err != nil {
		return fmt.Errorf("stage suitability: landmask.png missing: %w", err)
	}
	height, _, _, err := loadHeight16(planetDir)
	if err != nil {
		return fmt.Errorf("stage suitability: height16.png missing: %w", err)
	}
	riverMask, _, _, err := loadGray8(worldgenPath(planetDir, RiverMaskFile))
	if err != nil {
		return fmt.Errorf("stage suitability: river_mask.png missing: %w", err)
	}
	biome, _, _, err := loadGray8(worldgenPath(planetDir, BiomeFile))
	if err != nil {
		return fmt.Errorf("stage suitability: biome.png missing: %w", err)
	}
	grid := gridOf(w, h)
	n := w * h
	progress(10)

	riverBool := make([]bool, n)
	for i, v := range riverMask {
		riverBool[i] = v > 0
	}
	distRiver := grid.ChamferDistance(riverBool, nil)
	distWater := grid.ChamferDistance(invertBool(land), nil)
	progress(35)

	elevNorm := make([]float32, n)
	for i := range elevNorm {
		if height[i] >= types.SeaLevel {
			elevNorm[i] = float32(height[i]-types.SeaLevel) / float32(math.MaxUint16-types.SeaLevel)
		}
	}
	slope := centralDiffSlope(grid, elevNorm)
	progress(55)

	suit := make([]float32, n)
	for i := 0; i < n; i++ {
		if !land[i] {
			continue
		}
		riverProx := 1 - clamp01(distRiver[i]/100)
		coastProx := 1 - clamp01(distWater[i]/150)
		flat := float32(1) - 20*slope[i]
		if flat < 0 {
			flat = 0
		}
		elevMid := 1 - 2*absF(elevNorm[i]-0.3)
		bw, ok := biomeWeight[biome[i]]
		if !ok {
			bw = otherBiomeWeight
		}
		v := 0.30*riverProx + 0.15*coastProx + 0.25*flat + 0.10*elevMid + 0.20*bw
		suit[i] = clamp01(v)
	}
	progress(90)

	if err := saveFloat32Plane(worldgenPath(planetDir, SuitabilityFile), suit); err != nil {
		return fmt.Errorf("stage suitability: writing suitability.bin: %w", err)
	}
	progress(100)
	return nil
}
