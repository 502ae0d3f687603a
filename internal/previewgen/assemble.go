package previewgen

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/worldforge/internal/prng"
)

// Biome classes for TerrainCell.Biome, distinct from internal/types' pipeline
// biome classes: the preview generator runs independently of the 12-stage
// pipeline and needs only a coarse palette for its own color string.
const (
	PreviewBiomeOcean uint8 = iota
	PreviewBiomeShelf
	PreviewBiomeDesert
	PreviewBiomeGrassland
	PreviewBiomeForest
	PreviewBiomeTundra
	PreviewBiomeMountain
	PreviewBiomeIce
)

// assembleCells runs the final parallel cell-assembly pass, deriving every
// remaining TerrainCell field from the fields computed in earlier passes.
func assembleCells(cols, rows int, seed int64, elevation []float64, plates *plateField, land []bool, shelf, moisture, oceanProx []float64) *Grid {
	cells := make([]TerrainCell, cols*rows)
	stream := prng.NewHashStream(seed, 0x5EED)

	parallelRows(rows, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			latBand := 1 - math.Abs(float64(y)/float64(rows)*2-1)
			for x := 0; x < cols; x++ {
				i := y*cols + x
				e := elevation[i]
				temperature := clampUnit(latBand*0.8 + (1-clampUnit(e))*0.2)
				radiation := clampUnit(latBand)
				volcanism := clampUnit(plates.stress[i] * boundaryVolcanismFactor(plates.boundary[i]))
				wind := clampUnit(0.4 + 0.6*math.Abs(math.Sin(float64(y)/float64(rows)*math.Pi*3)))

				c := TerrainCell{
					Elevation:         e,
					Stress:            plates.stress[i],
					Volcanism:         volcanism,
					Radiation:         radiation,
					Temperature:       temperature,
					Precipitation:     moisture[i],
					WindExposure:      wind,
					WaterTableDepth:   clampUnit(1 - moisture[i]),
					RiverFlow:         0,
					Lake:              false,
					VegetationDensity: vegetationDensity(e, temperature, moisture[i], land[i]),
					SoilType:          soilTypeOf(e, moisture[i], land[i]),
					MineralDeposits:   clampUnit(volcanism*0.6 + oceanProx[i]*0.1),
				}
				c.Biome = classifyPreviewBiome(c, land[i], shelf[i])
				c.Color = colorForBiome(c.Biome, c.Elevation)
				cells[i] = c
			}
		}
	})

	// A handful of river threads are seeded at high-elevation land cells and
	// traced downhill to the nearest lower neighbor, marking RiverFlow along
	// the path — a light-weight analog of the pipeline's full D8 hydrology
	// (spec.md §4.4), proportionate to a quick-preview generator.
	traceRivers(cells, cols, rows, elevation, land, stream, int(math.Sqrt(float64(cols*rows)))/4)

	return &Grid{Cols: cols, Rows: rows, Cells: cells}
}

func boundaryVolcanismFactor(k BoundaryKind) float64 {
	switch k {
	case BoundaryConvergent:
		return 1.0
	case BoundaryDivergent:
		return 0.6
	default:
		return 0.1
	}
}

func vegetationDensity(elevation, temperature, moisture float64, land bool) float64 {
	if !land {
		return 0
	}
	v := moisture * (1 - math.Abs(temperature-0.55)) * clampUnit(1-elevation*0.5)
	return clampUnit(v)
}

func soilTypeOf(elevation, moisture float64, land bool) SoilType {
	if !land {
		return SoilRock
	}
	switch {
	case elevation > 0.6:
		return SoilRock
	case moisture < 0.2:
		return SoilSand
	case moisture > 0.75:
		return SoilPeat
	case moisture > 0.45:
		return SoilLoam
	default:
		return SoilClay
	}
}

func classifyPreviewBiome(c TerrainCell, land bool, shelf float64) uint8 {
	if !land {
		if shelf > 0 {
			return PreviewBiomeShelf
		}
		return PreviewBiomeOcean
	}
	if c.Elevation > 0.55 {
		return PreviewBiomeMountain
	}
	if c.Temperature < 0.18 {
		return PreviewBiomeIce
	}
	if c.Temperature < 0.35 {
		return PreviewBiomeTundra
	}
	if c.Precipitation < 0.25 {
		return PreviewBiomeDesert
	}
	if c.Precipitation > 0.55 {
		return PreviewBiomeForest
	}
	return PreviewBiomeGrassland
}

func colorForBiome(biome uint8, elevation float64) string {
	base := map[uint8][3]uint8{
		PreviewBiomeOcean:     {24, 62, 117},
		PreviewBiomeShelf:     {58, 110, 165},
		PreviewBiomeDesert:    {212, 184, 122},
		PreviewBiomeGrassland: {122, 168, 77},
		PreviewBiomeForest:    {52, 101, 54},
		PreviewBiomeTundra:    {158, 168, 152},
		PreviewBiomeMountain:  {120, 112, 104},
		PreviewBiomeIce:       {230, 238, 242},
	}[biome]
	shade := clampUnit(0.6 + elevation*0.4)
	r := uint8(float64(base[0]) * shade)
	g := uint8(float64(base[1]) * shade)
	b := uint8(float64(base[2]) * shade)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// traceRivers walks count threads downhill from high-elevation starting
// points, incrementing RiverFlow along the path until reaching water or a
// local minimum.
func traceRivers(cells []TerrainCell, cols, rows int, elevation []float64, land []bool, stream *prng.PCG32, count int) {
	if count < 1 {
		count = 1
	}
	for t := 0; t < count; t++ {
		x := stream.IntN(cols)
		y := stream.IntN(rows)
		i := y*cols + x
		if !land[i] || elevation[i] < 0.3 {
			continue
		}
		for steps := 0; steps < cols+rows; steps++ {
			cells[i].RiverFlow = clampUnit(cells[i].RiverFlow + 0.2)
			if !land[i] {
				break
			}
			cx, cy := i%cols, i/cols
			nextI, nextE := -1, elevation[i]
			for _, n := range neighbors8Wrap(cx, cy, cols, rows) {
				if elevation[n] < nextE {
					nextI, nextE = n, elevation[n]
				}
			}
			if nextI < 0 {
				cells[i].Lake = land[i]
				break
			}
			i = nextI
		}
	}
}
