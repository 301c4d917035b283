/**
 * Preprocessing Variant Generator.
 *
 * Produces a deterministic ordered sequence of candidate renderings of the
 * source image, simpler transforms first. Each variant is derived
 * independently from the downscaled grayscale base; a failed derivation
 * degrades to the unmodified base for that slot instead of aborting the
 * sequence.
 */

package ocr

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/docuflow/ocr-worker/internal/logging"
)

// Variant is one candidate preprocessed rendering of the source image. The
// tag identifies the transform for diagnostics only.
type Variant struct {
	Tag   string
	Image *image.Gray
}

// Skew correction is skipped inside this dead zone to avoid resampling
// already-upright pages.
const skewDeadZoneDegrees = 0.5

// Generator derives preprocessing variants from a source image.
type Generator struct {
	maxDimension int
	logger       *logging.Logger
}

// NewGenerator creates a variant generator. maxDimension caps the longer
// image side before any variant is derived; zero selects the default of 2000.
func NewGenerator(maxDimension int) *Generator {
	if maxDimension <= 0 {
		maxDimension = 2000
	}
	return &Generator{
		maxDimension: maxDimension,
		logger:       logging.NewLogger("VariantGenerator"),
	}
}

// Generate returns the ordered variant sequence for src. The result is never
// empty: the grayscale downscale of the input is always variant 0.
func (g *Generator) Generate(src image.Image) []Variant {
	resized := ResizeToCap(src, g.maxDimension)
	base := grayscale(resized)

	variants := []Variant{{Tag: "grayscale", Image: base}}

	derive := func(tag string, fn func() *image.Gray) {
		img := g.safeDerive(tag, fn)
		if img == nil {
			img = base
		}
		variants = append(variants, Variant{Tag: tag, Image: img})
	}

	derive("otsu", func() *image.Gray {
		return otsuThreshold(gaussianSmooth(base))
	})
	derive("color-segment", func() *image.Gray {
		return otsuThreshold(segmentByColor(resized))
	})
	derive("adaptive", func() *image.Gray {
		return adaptiveThreshold(base, 11, 2)
	})
	derive("equalize", func() *image.Gray {
		return otsuThreshold(equalizeHist(base))
	})
	derive("clahe", func() *image.Gray {
		return otsuThreshold(claheEqualize(base, 2.0, 8))
	})
	derive("sharpen", func() *image.Gray {
		return otsuThreshold(grayscale(effect.Sharpen(base)))
	})
	derive("denoise", func() *image.Gray {
		return otsuThreshold(grayscale(effect.Median(base, 3)))
	})
	derive("open", func() *image.Gray {
		return morphOpen(otsuThreshold(gaussianSmooth(base)))
	})

	deskewed := g.safeDerive("deskew-base", func() *image.Gray {
		return deskew(base)
	})
	if deskewed == nil {
		deskewed = base
	}
	derive("deskew", func() *image.Gray {
		return otsuThreshold(deskewed)
	})
	derive("deskew-denoise", func() *image.Gray {
		return morphOpen(otsuThreshold(grayscale(effect.Median(deskewed, 3))))
	})

	return variants
}

// safeDerive runs one transform, converting panics and nil results into a
// logged per-slot failure.
func (g *Generator) safeDerive(tag string, fn func() *image.Gray) (out *image.Gray) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("Variant derivation failed, using base image", "variant", tag, "error", fmt.Sprint(r))
			out = nil
		}
	}()
	return fn()
}

// ResizeToCap downscales img so its longer side does not exceed maxDimension,
// preserving aspect ratio. Images already within the cap are returned as-is.
func ResizeToCap(img image.Image, maxDimension int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxDimension && b.Dy() <= maxDimension {
		return img
	}
	return imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
}

// grayscale converts any image to 8-bit grayscale using BT.601 luminance.
func grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, gr, bl, _ := img.At(x, y).RGBA()
			lum := (299*(r>>8) + 587*(gr>>8) + 114*(bl>>8)) / 1000
			out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: uint8(lum)})
		}
	}
	return out
}

// gaussianSmooth applies a light blur before global thresholding, matching
// the 3x3 Gaussian used on the production path.
func gaussianSmooth(img *image.Gray) *image.Gray {
	return grayscale(blur.Gaussian(img, 1.0))
}

// otsuThreshold binarizes a grayscale image using automatic bimodal-histogram
// threshold selection. Foreground maps to black (0), background to white (255).
func otsuThreshold(img *image.Gray) *image.Gray {
	var hist [256]int
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return img
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[img.GrayAt(x, y).Y]++
		}
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}

	var sumB, wB float64
	var maxVariance float64
	threshold := 0
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		variance := wB * wF * (mB - mF) * (mB - mF)
		if variance > maxVariance {
			maxVariance = variance
			threshold = t
		}
	}

	return applyThreshold(img, uint8(threshold))
}

func applyThreshold(img *image.Gray, threshold uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := uint8(0)
			if img.GrayAt(x, y).Y > threshold {
				v = 255
			}
			out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: v})
		}
	}
	return out
}

// adaptiveThreshold binarizes against a local mean over a block x block
// window, offset by c. Robust to uneven illumination where a single global
// threshold fails.
func adaptiveThreshold(img *image.Gray, block, c int) *image.Gray {
	if block%2 == 0 {
		block++
	}
	half := block / 2
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))

	// Summed-area table for O(1) window means.
	integral := make([][]int64, h+1)
	for i := range integral {
		integral[i] = make([]int64, w+1)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			integral[y+1][x+1] = int64(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y) +
				integral[y][x+1] + integral[y+1][x] - integral[y][x]
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x1 := clampInt(x-half, 0, w-1)
			y1 := clampInt(y-half, 0, h-1)
			x2 := clampInt(x+half, 0, w-1)
			y2 := clampInt(y+half, 0, h-1)
			area := int64(x2-x1+1) * int64(y2-y1+1)
			windowSum := integral[y2+1][x2+1] - integral[y1][x2+1] - integral[y2+1][x1] + integral[y1][x1]
			mean := windowSum / area

			v := uint8(0)
			if int64(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y) > mean-int64(c) {
				v = 255
			}
			out.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return out
}

// equalizeHist applies global histogram equalization.
func equalizeHist(img *image.Gray) *image.Gray {
	var hist [256]int
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return img
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[img.GrayAt(x, y).Y]++
		}
	}

	var lut [256]uint8
	cdf := 0
	for i := 0; i < 256; i++ {
		cdf += hist[i]
		lut[i] = uint8(math.Round(255 * float64(cdf) / float64(total)))
	}

	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: lut[img.GrayAt(x, y).Y]})
		}
	}
	return out
}

// claheEqualize applies contrast-limited adaptive histogram equalization over
// a tiles x tiles grid with bilinear interpolation between tile mappings.
func claheEqualize(img *image.Gray, clipLimit float64, tiles int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if tiles < 1 || w < tiles || h < tiles {
		return equalizeHist(img)
	}

	tileW := (w + tiles - 1) / tiles
	tileH := (h + tiles - 1) / tiles

	// Per-tile clipped cumulative LUTs.
	luts := make([][][256]uint8, tiles)
	for ty := 0; ty < tiles; ty++ {
		luts[ty] = make([][256]uint8, tiles)
		for tx := 0; tx < tiles; tx++ {
			x1 := tx * tileW
			y1 := ty * tileH
			x2 := minInt(x1+tileW, w)
			y2 := minInt(y1+tileH, h)

			var hist [256]int
			count := (x2 - x1) * (y2 - y1)
			for y := y1; y < y2; y++ {
				for x := x1; x < x2; x++ {
					hist[img.GrayAt(b.Min.X+x, b.Min.Y+y).Y]++
				}
			}

			// Clip and redistribute the excess uniformly.
			limit := int(clipLimit * float64(count) / 256)
			if limit < 1 {
				limit = 1
			}
			excess := 0
			for i := 0; i < 256; i++ {
				if hist[i] > limit {
					excess += hist[i] - limit
					hist[i] = limit
				}
			}
			bonus := excess / 256
			for i := 0; i < 256; i++ {
				hist[i] += bonus
			}

			cdf := 0
			for i := 0; i < 256; i++ {
				cdf += hist[i]
				luts[ty][tx][i] = uint8(math.Round(255 * float64(cdf) / float64(count)))
			}
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := img.GrayAt(b.Min.X+x, b.Min.Y+y).Y

			// Position relative to tile centers.
			fx := (float64(x) - float64(tileW)/2) / float64(tileW)
			fy := (float64(y) - float64(tileH)/2) / float64(tileH)
			tx0 := clampInt(int(math.Floor(fx)), 0, tiles-1)
			ty0 := clampInt(int(math.Floor(fy)), 0, tiles-1)
			tx1 := clampInt(tx0+1, 0, tiles-1)
			ty1 := clampInt(ty0+1, 0, tiles-1)
			wx := fx - math.Floor(fx)
			wy := fy - math.Floor(fy)
			if fx < 0 {
				wx = 0
			}
			if fy < 0 {
				wy = 0
			}

			top := (1-wx)*float64(luts[ty0][tx0][v]) + wx*float64(luts[ty0][tx1][v])
			bottom := (1-wx)*float64(luts[ty1][tx0][v]) + wx*float64(luts[ty1][tx1][v])
			out.SetGray(x, y, color.Gray{Y: uint8(math.Round((1-wy)*top + wy*bottom))})
		}
	}
	return out
}

// segmentByColor isolates near-black and near-white pixels (ink on paper)
// from colored backgrounds, painting everything else white. The result is a
// grayscale image suitable for global thresholding.
func segmentByColor(img image.Image) *image.Gray {
	const (
		blackValueMax      = 80.0 / 255.0  // V below this is ink regardless of hue
		whiteSaturationMax = 30.0 / 255.0  // low-saturation...
		whiteValueMin      = 200.0 / 255.0 // ...bright pixels are paper
	)

	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: 255})
				continue
			}
			_, s, v := c.Hsv()
			if v <= blackValueMax || (s <= whiteSaturationMax && v >= whiteValueMin) {
				lum := uint8(math.Round(255 * (0.299*c.R + 0.587*c.G + 0.114*c.B)))
				out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: lum})
			} else {
				out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// morphOpen applies a morphological opening (erosion then dilation) to a
// binary image, removing isolated specks smaller than the structuring radius.
func morphOpen(img *image.Gray) *image.Gray {
	return grayscale(effect.Dilate(effect.Erode(img, 1), 1))
}

// estimateSkewDegrees estimates the dominant text-block angle from the ink
// pixel coordinates of a grayscale image using second-order central moments
// of the inverted automatic threshold. The returned angle is the rotation
// (in degrees, imaging's counter-clockwise convention) that uprights the
// text; zero when no ink is found.
func estimateSkewDegrees(img *image.Gray) float64 {
	binary := otsuThreshold(img)
	b := binary.Bounds()

	var n, sumX, sumY float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if binary.GrayAt(x, y).Y == 0 { // ink
				n++
				sumX += float64(x)
				sumY += float64(y)
			}
		}
	}
	if n == 0 {
		return 0
	}

	meanX := sumX / n
	meanY := sumY / n
	var mu11, mu20, mu02 float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if binary.GrayAt(x, y).Y == 0 {
				dx := float64(x) - meanX
				dy := float64(y) - meanY
				mu11 += dx * dy
				mu20 += dx * dx
				mu02 += dy * dy
			}
		}
	}

	angle := 0.5 * math.Atan2(2*mu11, mu20-mu02) * 180 / math.Pi
	if angle > 45 {
		angle -= 90
	} else if angle < -45 {
		angle += 90
	}
	return angle
}

// deskew rotates the image to correct its estimated skew. Angles inside the
// dead zone leave the image untouched.
func deskew(img *image.Gray) *image.Gray {
	angle := estimateSkewDegrees(img)
	if math.Abs(angle) <= skewDeadZoneDegrees {
		return img
	}
	rotated := imaging.Rotate(img, angle, color.White)
	return grayscale(rotated)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
