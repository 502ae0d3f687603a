package previewgen

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/worldforge/internal/mask"
)

// RenderPreviewPNG rasterizes a Grid's per-cell colors into an NRGBA image
// and darkens a band near coastlines with internal/mask's soft
// edge-darkening pass (ApplySoftEdgeMask) driven by a Euclidean distance
// transform of the land mask — a cheap coastal vignette at one pixel per
// grid cell. No HTTP handler serves this image.
func RenderPreviewPNG(g *Grid) *image.NRGBA {
	base := image.NewNRGBA(image.Rect(0, 0, g.Cols, g.Rows))
	land := image.NewGray(image.Rect(0, 0, g.Cols, g.Rows))

	for y := 0; y < g.Rows; y++ {
		for x := 0; x < g.Cols; x++ {
			c := g.Cells[g.at(x, y)]
			r, gr, b := hexToRGB(c.Color)
			base.SetNRGBA(x, y, color.NRGBA{R: r, G: gr, B: b, A: 255})
			if c.Biome != PreviewBiomeOcean && c.Biome != PreviewBiomeShelf {
				land.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	maxDim := g.Cols
	if g.Rows > maxDim {
		maxDim = g.Rows
	}
	ctx := mask.NewDistanceContext(maxDim)
	dist := mask.EuclideanDistanceTransformWithContext(land, 8.0, ctx)
	vignette := mask.DistanceToIntensity(dist, 1.6)

	return mask.ApplySoftEdgeMask(base, vignette, 0.35)
}

func hexToRGB(s string) (r, g, b uint8) {
	if len(s) != 7 || s[0] != '#' {
		return 0, 0, 0
	}
	parse := func(hi, lo byte) uint8 {
		return hexDigit(hi)<<4 | hexDigit(lo)
	}
	return parse(s[1], s[2]), parse(s[3], s[4]), parse(s[5], s[6])
}

func hexDigit(b byte) uint8 {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	default:
		return 0
	}
}
