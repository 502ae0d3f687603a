// Package previewgen implements the preview terrain generator (spec §4.14):
// a parallel per-cell world generator used for quick previews, independent
// of the 12-stage pipeline. It shares one TerrainCell assembly pass across
// two input modes (procedural plate noise, or downsampled image).
package previewgen

// BoundaryKind classifies the plate-tectonic relationship nearest a cell in
// procedural mode; it selects which flavor of ridged noise gets added.
type BoundaryKind uint8

const (
	BoundaryNone BoundaryKind = iota
	BoundaryConvergent
	BoundaryDivergent
	BoundaryTransform
)

// SoilType is a coarse classification driven by elevation and moisture.
type SoilType uint8

const (
	SoilRock SoilType = iota
	SoilSand
	SoilClay
	SoilLoam
	SoilPeat
)

// TerrainCell is the per-cell record assembled by both generator modes.
type TerrainCell struct {
	Elevation        float64 `json:"elevation"`        // -1..1, 0 = sea level
	Stress           float64 `json:"stress"`            // 0..1, plate boundary proximity
	Volcanism        float64 `json:"volcanism"`         // 0..1
	Radiation        float64 `json:"radiation"`         // 0..1, latitude-driven insolation proxy
	Temperature       float64 `json:"temperature"`      // 0..1
	Precipitation    float64 `json:"precipitation"`     // 0..1
	WindExposure     float64 `json:"windExposure"`      // 0..1
	WaterTableDepth  float64 `json:"waterTableDepth"`   // 0..1, 0 = at surface
	RiverFlow        float64 `json:"riverFlow"`         // 0..1
	Lake             bool    `json:"lake"`
	VegetationDensity float64 `json:"vegetationDensity"` // 0..1
	SoilType         SoilType `json:"soilType"`
	MineralDeposits  float64 `json:"mineralDeposits"` // 0..1
	Biome            uint8   `json:"biome"`
	Color            string  `json:"color"` // "#rrggbb"
}

// Grid is the assembled cols x rows field of cells, row-major.
type Grid struct {
	Cols  int           `json:"cols"`
	Rows  int           `json:"rows"`
	Cells []TerrainCell `json:"cells"`
}

func (g *Grid) at(x, y int) int { return y*g.Cols + x }

// Request configures a single generation run.
type Request struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
	Seed int64 `json:"seed"`

	// Image, when non-empty, selects image-driven mode: decodes Image as
	// a PNG/JPEG and downsamples it to Cols x Rows before reading luma.
	Image []byte `json:"-"`

	PlateCount int `json:"plateCount"`
}

// DefaultRequest fills in the procedural-mode defaults spec.md leaves open.
func DefaultRequest() Request {
	return Request{Cols: 128, Rows: 64, Seed: 1, PlateCount: 12}
}
