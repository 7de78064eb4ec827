package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"
)

// solidRaster returns a w×h RasterImage filled with c.
func solidRaster(w, h int, c color.NRGBA) *RasterImage {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return NewRasterImage(img, 0, "")
}

// splitRaster returns a w×h RasterImage whose left half is left and right
// half is right, giving a hard vertical edge at x = w/2.
func splitRaster(w, h int, left, right color.NRGBA) *RasterImage {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetNRGBA(x, y, left)
			} else {
				img.SetNRGBA(x, y, right)
			}
		}
	}
	return NewRasterImage(img, 0, "")
}

// writeTestPNG encodes a solid w×h PNG to a temp file and returns its path.
// The file is removed when the test finishes.
func writeTestPNG(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	tmpFile, err := os.CreateTemp(t.TempDir(), "test-image-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	if err := png.Encode(tmpFile, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return tmpFile.Name()
}

var (
	black = color.NRGBA{0, 0, 0, 255}
	white = color.NRGBA{255, 255, 255, 255}
)
