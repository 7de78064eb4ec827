package imaging

import (
	"fmt"
	"image"
	"math"
)

const (
	// CartoonEdgeThreshold is the gradient magnitude above which the
	// cartoon filter draws an outline.
	CartoonEdgeThreshold = 80

	// SketchEdgeThreshold is the gradient magnitude above which the sketch
	// filter draws a stroke. It is lower than the cartoon threshold, so
	// sketches carry denser line work.
	SketchEdgeThreshold = 30

	// SaturationBoost scales each channel's distance from its pixel's gray.
	SaturationBoost = 1.5

	// QuantizeLevels is the number of output levels per channel for the
	// cartoon filter's flat color regions.
	QuantizeLevels = 8
)

// Style names a stylization filter.
type Style string

const (
	StyleCartoon Style = "cartoon"
	StyleSketch  Style = "sketch"
)

// Stylize runs edge detection on img and applies the named filter.
func Stylize(img *RasterImage, style Style) (*RasterImage, error) {
	grad := DetectEdges(img)
	switch style {
	case StyleCartoon:
		return Cartoonize(img, grad)
	case StyleSketch:
		return Sketch(img, grad)
	default:
		return nil, fmt.Errorf("unknown style: %s", style)
	}
}

// Cartoonize paints edge pixels (magnitude > CartoonEdgeThreshold) opaque
// black and flattens every other pixel: saturation is boosted by
// SaturationBoost, clamped to [0,255], then each channel is floored to one of
// QuantizeLevels evenly spaced levels. Output alpha is always 255.
//
// The result has the same dimensions as img; img and grad are not modified.
func Cartoonize(img *RasterImage, grad *GradientMap) (*RasterImage, error) {
	if err := checkGradient(img, grad); err != nil {
		return nil, err
	}

	w, h := img.Width(), img.Height()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	src := img.pix

	for y := 0; y < h; y++ {
		srow := src.Pix[y*src.Stride:]
		drow := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			if grad.Mag[y*w+x] > CartoonEdgeThreshold {
				drow[i], drow[i+1], drow[i+2], drow[i+3] = 0, 0, 0, 255
				continue
			}
			r, g, b := CartoonColor(srow[i], srow[i+1], srow[i+2])
			drow[i], drow[i+1], drow[i+2], drow[i+3] = r, g, b, 255
		}
	}
	return newRaster(out, img.SourceSize, img.SourceFormat), nil
}

// CartoonColor applies the cartoon filter's saturation boost and
// quantization to a single pixel.
func CartoonColor(r, g, b uint8) (uint8, uint8, uint8) {
	gray := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	return quantize(boost(r, gray)), quantize(boost(g, gray)), quantize(boost(b, gray))
}

func boost(c uint8, gray float64) float64 {
	v := gray + (float64(c)-gray)*SaturationBoost
	return math.Max(0, math.Min(255, v))
}

func quantize(v float64) uint8 {
	const step = 256 / QuantizeLevels
	return uint8(math.Floor(v/step) * step)
}

// Sketch renders img as pencil strokes on white paper. Every pixel starts
// white; pixels whose magnitude exceeds SketchEdgeThreshold are shaded gray
// at max(0, 255 - magnitude), so stronger edges give darker strokes. Output
// alpha is always 255.
//
// The result has the same dimensions as img; img and grad are not modified.
func Sketch(img *RasterImage, grad *GradientMap) (*RasterImage, error) {
	if err := checkGradient(img, grad); err != nil {
		return nil, err
	}

	w, h := img.Width(), img.Height()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		drow := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			v := uint8(255)
			if m := grad.Mag[y*w+x]; m > SketchEdgeThreshold {
				v = uint8(max(0, 255-m))
			}
			drow[i], drow[i+1], drow[i+2], drow[i+3] = v, v, v, 255
		}
	}
	return newRaster(out, img.SourceSize, img.SourceFormat), nil
}

func checkGradient(img *RasterImage, grad *GradientMap) error {
	if grad == nil {
		return fmt.Errorf("gradient map is nil")
	}
	if grad.Width != img.Width() || grad.Height != img.Height() {
		return fmt.Errorf("gradient map is %dx%d, image is %dx%d",
			grad.Width, grad.Height, img.Width(), img.Height())
	}
	return nil
}
