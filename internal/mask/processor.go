// Package mask holds the grayscale/NRGBA image-space primitives previewgen
// composes into a preview terrain render: Perlin noise fields, box-blur
// smoothing, antialiased thresholding, a Euclidean distance transform, and
// the soft-edge darkening pass used for the coastal vignette.
package mask

import (
	"image"
	"image/color"
	"math"

	"github.com/aquilax/go-perlin"
)

// GeneratePerlinNoiseWithOffset generates Perlin noise aligned to a global grid.
// Offsets allow adjacent tiles to sample the same underlying noise field to avoid seams.
func GeneratePerlinNoiseWithOffset(
	width, height int,
	scale float64,
	seed int64,
	offsetX, offsetY int,
) *image.Gray {
	// Create Perlin noise generator with octaves, alpha, and beta parameters
	// alpha: persistence (how much each octave contributes)
	// beta: lacunarity (frequency multiplier between octaves)
	// n: number of octaves
	p := perlin.NewPerlin(2.0, 2.0, 3, seed)

	noise := image.NewGray(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// Sample Perlin noise at normalized coordinates
			nx := float64(offsetX+x) / scale
			ny := float64(offsetY+y) / scale

			// Get noise value (range approximately -1 to 1)
			val := p.Noise2D(nx, ny)

			// Normalize to 0-255 range
			normalized := (val + 1.0) / 2.0
			gray := uint8(math.Max(0, math.Min(255, normalized*255)))

			noise.SetGray(x, y, color.Gray{Y: gray})
		}
	}

	return noise
}

// ApplyThresholdWithAntialias applies a threshold with smooth antialiased edges.
// Uses a fixed transition zone with cubic interpolation (smoothstep) for natural-looking edges.
// The transition zone is 20 gray levels on each side of the threshold value.
func ApplyThresholdWithAntialias(mask *image.Gray, threshold uint8) *image.Gray {
	bounds := mask.Bounds()
	result := image.NewGray(bounds)

	// Transition zone: 20 gray levels on each side of threshold
	const transitionWidth = 20

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			val := mask.GrayAt(x, y).Y

			// Smooth threshold with cubic interpolation
			lower := int(threshold) - transitionWidth
			upper := int(threshold) + transitionWidth

			var outVal uint8
			if int(val) <= lower {
				outVal = 0
			} else if int(val) >= upper {
				outVal = 255
			} else {
				// Cubic interpolation: smoothstep (3t² - 2t³)
				t := float32(int(val)-lower) / float32(2*transitionWidth)
				smoothT := t * t * (3.0 - 2.0*t)
				outVal = uint8((smoothT) * 255.0)
			}
			result.SetGray(x, y, color.Gray{Y: outVal})
		}
	}

	return result
}

// BoxBlur applies a fast box blur with the given radius using a sliding window algorithm.
// This is significantly faster than Gaussian blur (O(1) per pixel vs O(k) per pixel).
// The blur is applied in two separable passes (horizontal then vertical).
func BoxBlur(mask *image.Gray, radius int) *image.Gray {
	if radius < 1 {
		// No blur needed, return a copy
		bounds := mask.Bounds()
		dst := image.NewGray(bounds)
		copy(dst.Pix, mask.Pix)
		return dst
	}

	bounds := mask.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// Temporary buffer for horizontal pass
	temp := image.NewGray(bounds)

	// Horizontal pass
	for y := 0; y < height; y++ {
		// Sliding window sum
		sum := 0
		count := 0

		// Initialize window
		for x := -radius; x <= radius; x++ {
			if x >= 0 && x < width {
				idx := y*mask.Stride + x
				sum += int(mask.Pix[idx])
				count++
			}
		}

		// First pixel
		temp.Pix[y*temp.Stride] = uint8(sum / count)

		// Slide window across row
		for x := 1; x < width; x++ {
			// Remove left pixel from window
			leftX := x - radius - 1
			if leftX >= 0 {
				idx := y*mask.Stride + leftX
				sum -= int(mask.Pix[idx])
				count--
			}

			// Add right pixel to window
			rightX := x + radius
			if rightX < width {
				idx := y*mask.Stride + rightX
				sum += int(mask.Pix[idx])
				count++
			}

			temp.Pix[y*temp.Stride+x] = uint8(sum / count)
		}
	}

	// Vertical pass (on temp -> dst)
	dst := image.NewGray(bounds)

	for x := 0; x < width; x++ {
		// Sliding window sum
		sum := 0
		count := 0

		// Initialize window
		for y := -radius; y <= radius; y++ {
			if y >= 0 && y < height {
				idx := y*temp.Stride + x
				sum += int(temp.Pix[idx])
				count++
			}
		}

		// First pixel
		dst.Pix[x] = uint8(sum / count)

		// Slide window down column
		for y := 1; y < height; y++ {
			// Remove top pixel from window
			topY := y - radius - 1
			if topY >= 0 {
				idx := topY*temp.Stride + x
				sum -= int(temp.Pix[idx])
				count--
			}

			// Add bottom pixel to window
			bottomY := y + radius
			if bottomY < height {
				idx := bottomY*temp.Stride + x
				sum += int(temp.Pix[idx])
				count++
			}

			dst.Pix[y*dst.Stride+x] = uint8(sum / count)
		}
	}

	return dst
}

// BoxBlurSigma applies a 3-pass box blur to approximate a Gaussian blur.
// This is optimized for small sigma values (σ < 5) and provides significant
// performance improvement over true Gaussian blur while maintaining good quality.
//
// The function converts sigma to box radius using the formula:
// r = sqrt((12 * σ² / N) + 1) where N = 3 (number of passes)
//
// Expected speedup: 3-7x faster than Gaussian blur for σ < 5.
func BoxBlurSigma(mask *image.Gray, sigma float32) *image.Gray {
	if sigma <= 0 {
		// No blur needed, return a copy
		bounds := mask.Bounds()
		dst := image.NewGray(bounds)
		copy(dst.Pix, mask.Pix)
		return dst
	}

	// Convert sigma to box radius for 3-pass approximation
	// Formula: r = sqrt((12 * σ² / N) + 1) where N = 3
	sigmaSquared := float64(sigma) * float64(sigma)
	radiusFloat := math.Sqrt((12.0*sigmaSquared)/3.0 + 1.0)
	radius := int(radiusFloat)

	// Ensure minimum radius of 1
	if radius < 1 {
		radius = 1
	}

	// Apply box blur 3 times to approximate Gaussian
	result := BoxBlur(mask, radius)
	result = BoxBlur(result, radius)
	result = BoxBlur(result, radius)

	return result
}
