package imaging

import (
	"image"
	"image/color"
	"testing"
)

// patternRaster returns a deterministic noisy image so that almost every
// interior pixel has a non-zero gradient.
func patternRaster(w, h int) *RasterImage {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*37 + y*91 + x*y*13) % 256)
			img.SetNRGBA(x, y, color.NRGBA{v, 255 - v, v / 2, 255})
		}
	}
	return NewRasterImage(img, 0, "")
}

func TestLuminance(t *testing.T) {
	img := solidRaster(3, 2, color.NRGBA{130, 40, 200, 7})
	gray := Luminance(img)

	if gray.Width != 3 || gray.Height != 2 || len(gray.Pix) != 6 {
		t.Fatalf("unexpected map shape: %dx%d len=%d", gray.Width, gray.Height, len(gray.Pix))
	}
	// 0.299*130 + 0.587*40 + 0.114*200 = 85.15, alpha ignored
	for i, v := range gray.Pix {
		if v != 85 {
			t.Errorf("pixel %d: got %d, want 85", i, v)
		}
	}
}

func TestLuminance_Weights(t *testing.T) {
	tests := []struct {
		c    color.NRGBA
		want uint8
	}{
		{color.NRGBA{0, 0, 0, 255}, 0},
		{color.NRGBA{255, 0, 0, 255}, 76},
		{color.NRGBA{0, 255, 0, 255}, 149},
		{color.NRGBA{0, 0, 255, 255}, 29},
		{color.NRGBA{255, 0, 0, 0}, 76},
	}
	for _, tt := range tests {
		gray := Luminance(solidRaster(1, 1, tt.c))
		if gray.At(0, 0) != tt.want {
			t.Errorf("%v: got %d, want %d", tt.c, gray.At(0, 0), tt.want)
		}
	}
}

func TestSobel_BorderIsZero(t *testing.T) {
	sizes := [][2]int{{1, 1}, {2, 2}, {3, 3}, {17, 9}, {64, 48}}
	for _, size := range sizes {
		w, h := size[0], size[1]
		grad := DetectEdges(patternRaster(w, h))

		if grad.Width != w || grad.Height != h || len(grad.Mag) != w*h {
			t.Fatalf("%dx%d: gradient map has wrong shape", w, h)
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if x != 0 && y != 0 && x != w-1 && y != h-1 {
					continue
				}
				if m := grad.At(x, y); m != 0 {
					t.Errorf("%dx%d: border pixel (%d,%d) = %d, want 0", w, h, x, y, m)
				}
			}
		}
	}
}

func TestSobel_UniformImageHasNoEdges(t *testing.T) {
	grad := DetectEdges(solidRaster(20, 20, color.NRGBA{128, 64, 32, 255}))
	for i, m := range grad.Mag {
		if m != 0 {
			t.Fatalf("pixel %d: magnitude %d, want 0", i, m)
		}
	}
}

func TestSobel_VerticalEdge(t *testing.T) {
	img := splitRaster(6, 4, black, white)
	grad := DetectEdges(img)
	v := int32(luma(255, 255, 255))

	tests := []struct {
		x, y int
		want int32
	}{
		{1, 1, 0},     // both neighbors black
		{2, 1, 4 * v}, // left column black, right column white
		{3, 2, 4 * v},
		{4, 2, 0}, // both neighbors white
	}
	for _, tt := range tests {
		if got := grad.At(tt.x, tt.y); got != tt.want {
			t.Errorf("(%d,%d): got %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestSobel_L1Magnitude(t *testing.T) {
	// A bright top-left corner weighs -1 in both kernels. The L1 magnitude is
	// 200 where the Euclidean norm would be about 141.
	gray := &GrayscaleMap{Width: 3, Height: 3, Pix: []uint8{
		100, 0, 0,
		0, 0, 0,
		0, 0, 0,
	}}
	grad := Sobel(gray)
	// Gx = -1*100 = -100, Gy = -1*100 = -100
	if got := grad.At(1, 1); got != 200 {
		t.Errorf("center magnitude: got %d, want 200", got)
	}
}

func TestSobel_UnclampedMagnitude(t *testing.T) {
	// Checkerboard rows give the maximum response, well above 255.
	gray := &GrayscaleMap{Width: 3, Height: 3, Pix: []uint8{
		0, 0, 255,
		0, 0, 255,
		0, 0, 255,
	}}
	grad := Sobel(gray)
	if got := grad.At(1, 1); got != 1020 {
		t.Errorf("center magnitude: got %d, want 1020", got)
	}
}

func TestGradientMap_Image(t *testing.T) {
	grad := &GradientMap{Width: 3, Height: 1, Mag: []int32{0, 100, 900}}
	img := grad.Image()

	want := []uint8{0, 100, 255}
	for x, w := range want {
		if got := img.GrayAt(x, 0).Y; got != w {
			t.Errorf("x=%d: got %d, want %d", x, got, w)
		}
	}
}
