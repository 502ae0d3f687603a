package previewgen

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// runImageDriven implements spec.md §4.14's image-driven mode: elevation is
// read from pixel luma after downsampling to cols x rows with bilinear
// scaling, water is detected by a dominant-blue heuristic, and every later
// pass (erosion, shelf, moisture, assembly) runs on that elevation field
// exactly as in procedural mode.
func runImageDriven(ctx context.Context, req Request, report func(percent int, stage string), cancelled func() bool) (*Grid, error) {
	cols, rows := req.Cols, req.Rows

	src, _, err := image.Decode(bytes.NewReader(req.Image))
	if err != nil {
		return nil, err
	}
	report(10, "decode")
	if cancelled() {
		return nil, errCancelled
	}

	dst := image.NewRGBA(image.Rect(0, 0, cols, rows))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	report(25, "downsample")
	if cancelled() {
		return nil, errCancelled
	}

	elevation := make([]float64, cols*rows)
	land := make([]bool, cols*rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			i := y*cols + x
			r, g, b, _ := dst.At(x, y).RGBA()
			r8, g8, b8 := uint8(r>>8), uint8(g>>8), uint8(b>>8)
			luma := 0.299*float64(r8) + 0.587*float64(g8) + 0.114*float64(b8)
			elevation[i] = luma/127.5 - 1

			blueDominant := b8 > r8 && b8 > g8 && int(b8)-int(r8) > 15
			land[i] = !blueDominant
		}
	}
	report(40, "classify")
	if cancelled() {
		return nil, errCancelled
	}

	// Plates are irrelevant in image-driven mode (stress/boundary/volcanism
	// have no tectonic signal to read from a photo), so a neutral all-zero
	// field stands in — assembleCells still needs the shape to run unmodified.
	plates := &plateField{
		cols: cols, rows: rows,
		plateOf:  make([]int, cols*rows),
		boundary: make([]BoundaryKind, cols*rows),
		stress:   make([]float64, cols*rows),
	}

	land = coastlineCleanup(cols, rows, land, 4)
	report(55, "coastline")
	if cancelled() {
		return nil, errCancelled
	}

	thermalErosion(elevation, cols, rows, land, 10)
	report(70, "erosion")
	if cancelled() {
		return nil, errCancelled
	}

	shelf := continentalShelfBFS(cols, rows, land)
	report(80, "shelf")
	if cancelled() {
		return nil, errCancelled
	}

	moisture, oceanProx := moistureAndOceanProximity(cols, rows, land)
	report(90, "moisture")
	if cancelled() {
		return nil, errCancelled
	}

	grid := assembleCells(cols, rows, req.Seed, elevation, plates, land, shelf, moisture, oceanProx)
	report(100, "assemble")
	return grid, nil
}
