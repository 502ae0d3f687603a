// Package stage implements the twelve pure pipeline stages (spec §4.2–4.13).
// Every stage is a single entry point: (inputs on disk, config) -> outputs
// on disk, reporting progress through a callback. Stages never talk to each
// other directly; the pipeline orchestrator sequences them via the on-disk
// layout.
package stage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/worldforge/internal/raster"
	"github.com/MeKo-Tech/worldforge/internal/types"
)

// ProgressFunc reports 0..100 progress within a single stage run.
type ProgressFunc func(percent int)

func noopProgress(int) {}

// On-disk filenames under <planetDir>/worldgen, per spec §6.
const (
	BaseImageRel      = "textures/base.jpg"
	WorldgenDir       = "worldgen"
	AlbedoFlatFile    = "albedo_flat.png"
	LandmaskFile      = "landmask.png"
	HeightFile        = "height16.png"
	RiverMaskFile     = "river_mask.png"
	BiomeFile         = "biome.png"
	SuitabilityFile   = "suitability.bin"
	SeedsFile         = "seeds.json"
	ProvinceIDFile    = "province_id.png"
	DuchyIDFile       = "duchy_id.png"
	KingdomIDFile     = "kingdom_id.png"
	AdjacencyFile     = "adjacency.json"
	ProvincesFile     = "provinces.json"
	DuchiesFile       = "duchies.json"
	KingdomsFile      = "kingdoms.json"
)

// Config collects every stage's tunables. Unused fields for a given stage
// are simply ignored; this mirrors the teacher's single flat options-struct
// style (GeneratorOptions in internal/pipeline/generator.go) rather than one
// struct per stage.
type Config struct {
	Seed int64 `json:"seed"`

	// Landmask
	WaterHue         float64 `json:"waterHue"`
	WaterHueTol      float64 `json:"waterHueTol"`
	WaterSatMin      float64 `json:"waterSatMin"`
	WaterValMin      float64 `json:"waterValMin"`
	MinIslandArea    int     `json:"minIslandArea"`
	MinHoleArea      int     `json:"minHoleArea"`

	// Rivers
	RiverThreshold int `json:"riverThreshold"`

	// Biome
	ColorBiased bool `json:"colorBiased"`

	// Seeds
	TargetCount int     `json:"targetCount"`
	RMin        float64 `json:"rMin"`
	RMax        float64 `json:"rMax"`

	// Partition
	CostSlope float64 `json:"costSlope"`
	CostRiver float64 `json:"costRiver"`
	CostRidge float64 `json:"costRidge"`

	// Postprocess
	MinArea         int `json:"minArea"`
	SmoothIterations int `json:"smoothIterations"`

	// Clustering
	DuchySizeMax   int `json:"duchySizeMax"`
	DuchySizeMin   int `json:"duchySizeMin"`   // advisory only, see spec §9 open question
	KingdomSizeMax int `json:"kingdomSizeMax"`
	KingdomSizeMin int `json:"kingdomSizeMin"` // advisory only
}

// DefaultConfig returns the default tunables named throughout spec §4.
func DefaultConfig() Config {
	return Config{
		Seed:             1,
		WaterHue:         210,
		WaterHueTol:      35,
		WaterSatMin:      0.25,
		WaterValMin:      0.2,
		MinIslandArea:    32,
		MinHoleArea:      32,
		RiverThreshold:   120,
		ColorBiased:      false,
		TargetCount:      64,
		RMin:             6,
		RMax:             40,
		CostSlope:        1.0,
		CostRiver:        2.5,
		CostRidge:        1.0,
		MinArea:          16,
		SmoothIterations: 2,
		DuchySizeMax:     8,
		DuchySizeMin:     2,
		KingdomSizeMax:   6,
		KingdomSizeMin:   1,
	}
}

// --- shared disk I/O helpers ---

func worldgenPath(planetDir, name string) string {
	return filepath.Join(planetDir, WorldgenDir, name)
}

func ensureWorldgenDir(planetDir string) error {
	return os.MkdirAll(filepath.Join(planetDir, WorldgenDir), 0o755)
}

// loadPNG decodes a PNG file into an image.Image.
func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}

// savePNG atomically writes img as a PNG to path (write-temp-then-rename,
// matching the ledger's durability idiom).
func savePNG(path string, img image.Image) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// rgbImageToPlanes splits an RGBA image into three float32 [0,1] planes.
func rgbImageToPlanes(img image.Image) (w, h int, r, g, b []float32) {
	bounds := img.Bounds()
	w, h = bounds.Dx(), bounds.Dy()
	r = make([]float32, w*h)
	g = make([]float32, w*h)
	b = make([]float32, w*h)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			r[i] = float32(cr>>8) / 255
			g[i] = float32(cg>>8) / 255
			b[i] = float32(cb>>8) / 255
			i++
		}
	}
	return
}

// planesToRGBImage packs three float32 [0,1] planes into an *image.NRGBA.
func planesToRGBImage(w, h int, r, g, b []float32) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		x, y := i%w, i/w
		img.Set(x, y, color.NRGBA{
			R: clamp8(r[i]), G: clamp8(g[i]), B: clamp8(b[i]), A: 255,
		})
	}
	return img
}

func clamp8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// loadLandmask decodes landmask.png (L8, 0|255) into a []bool, true = land.
func loadLandmask(planetDir string) ([]bool, int, int, error) {
	img, err := loadPNG(worldgenPath(planetDir, LandmaskFile))
	if err != nil {
		return nil, 0, 0, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := make([]bool, w*h)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gr, _, _, _ := img.At(x, y).RGBA()
			mask[i] = gr>>8 >= 128
			i++
		}
	}
	return mask, w, h, nil
}

func saveLandmask(planetDir string, mask []bool, w, h int) error {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i, v := range mask {
		x, y := i%w, i/w
		if v {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return savePNG(worldgenPath(planetDir, LandmaskFile), img)
}

// loadHeight16 decodes height16.png (L16) into a []uint16.
func loadHeight16(planetDir string) ([]uint16, int, int, error) {
	img, err := loadPNG(worldgenPath(planetDir, HeightFile))
	if err != nil {
		return nil, 0, 0, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]uint16, w*h)
	gray16, ok := img.(*image.Gray16)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if ok {
				out[i] = gray16.Gray16At(x, y).Y
			} else {
				v, _, _, _ := img.At(x, y).RGBA()
				out[i] = uint16(v)
			}
			i++
		}
	}
	return out, w, h, nil
}

func saveHeight16(planetDir string, height []uint16, w, h int) error {
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for i, v := range height {
		x, y := i%w, i/w
		img.SetGray16(x, y, color.Gray16{Y: v})
	}
	return savePNG(worldgenPath(planetDir, HeightFile), img)
}

func loadGray8(path string) ([]uint8, int, int, error) {
	img, err := loadPNG(path)
	if err != nil {
		return nil, 0, 0, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]uint8, w*h)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v, _, _, _ := img.At(x, y).RGBA()
			out[i] = uint8(v >> 8)
			i++
		}
	}
	return out, w, h, nil
}

func saveGray8(path string, vals []uint8, w, h int) error {
	img := image.NewGray(image.Rect(0, 0, w, h))
	copy(img.Pix, vals)
	return savePNG(path, img)
}

// saveFloat32Plane writes a raw little-endian f32 plane (suitability.bin).
func saveFloat32Plane(path string, plane []float32) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	buf := make([]byte, 4)
	for _, v := range plane {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := f.Write(buf); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func loadFloat32Plane(path string, n int) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) != n*4 {
		return nil, fmt.Errorf("stage: %s: expected %d bytes, got %d", path, n*4, len(data))
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

func saveJSON(path string, v interface{}) error {
	tmp := path + ".tmp"
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func loadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// packIDImage renders a uint32 id plane (types.UnlabeledProvince = black)
// as a packed RGB8 image, per spec §6's province/duchy/kingdom encoding.
func packIDImage(ids []uint32, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, id := range ids {
		x, y := i%w, i/w
		if id == types.UnlabeledProvince {
			img.Set(x, y, color.NRGBA{A: 255})
			continue
		}
		r, g, b := types.PackID(id)
		img.Set(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
	}
	return img
}

func unpackIDImage(img image.Image) (ids []uint32, w, h int) {
	b := img.Bounds()
	w, h = b.Dx(), b.Dy()
	ids = make([]uint32, w*h)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			rr, gg, bb := uint8(r>>8), uint8(g>>8), uint8(bl>>8)
			if rr == 0 && gg == 0 && bb == 0 {
				ids[i] = types.UnlabeledProvince
			} else {
				ids[i] = types.UnpackID(rr, gg, bb)
			}
			i++
		}
	}
	return
}

func gridOf(w, h int) raster.Grid { return raster.Grid{W: w, H: h} }
