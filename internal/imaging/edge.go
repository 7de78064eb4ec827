package imaging

import "image"

// GrayscaleMap is a 1-channel luminance buffer derived from a RasterImage.
// Pix holds one byte per pixel in row-major order.
type GrayscaleMap struct {
	Width  int
	Height int
	Pix    []uint8
}

// At returns the luminance at (x, y).
func (g *GrayscaleMap) At(x, y int) uint8 { return g.Pix[y*g.Width+x] }

// GradientMap holds the per-pixel Sobel gradient magnitude |Gx| + |Gy| of a
// GrayscaleMap. Values are not clamped and may exceed 255 (the maximum is
// 2040). The outermost ring of pixels is always 0.
type GradientMap struct {
	Width  int
	Height int
	Mag    []int32
}

// At returns the gradient magnitude at (x, y).
func (g *GradientMap) At(x, y int) int32 { return g.Mag[y*g.Width+x] }

// Image renders the magnitudes as a grayscale image, saturating at 255.
func (g *GradientMap) Image() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	for i, m := range g.Mag {
		out.Pix[i] = uint8(clamp(int(m), 0, 255))
	}
	return out
}

// Luminance converts img to grayscale using ITU-R BT.601 weights
// (0.299*R + 0.587*G + 0.114*B), truncating to 8 bits. Alpha is ignored.
func Luminance(img *RasterImage) *GrayscaleMap {
	w, h := img.Width(), img.Height()
	gray := &GrayscaleMap{Width: w, Height: h, Pix: make([]uint8, w*h)}

	pix := img.pix.Pix
	stride := img.pix.Stride
	for y := 0; y < h; y++ {
		row := pix[y*stride : y*stride+w*4]
		for x := 0; x < w; x++ {
			i := x * 4
			gray.Pix[y*w+x] = luma(row[i], row[i+1], row[i+2])
		}
	}
	return gray
}

func luma(r, g, b uint8) uint8 {
	return uint8(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
}

var (
	sobelX = [3][3]int32{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY = [3][3]int32{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// Sobel convolves gray with the 3x3 Sobel kernels and returns the L1
// magnitude |Gx| + |Gy| at every interior pixel. Border pixels are not
// convolved (no clamping or reflection) and are reported as 0.
func Sobel(gray *GrayscaleMap) *GradientMap {
	w, h := gray.Width, gray.Height
	grad := &GradientMap{Width: w, Height: h, Mag: make([]int32, w*h)}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var gx, gy int32
			for ky := -1; ky <= 1; ky++ {
				row := (y + ky) * w
				for kx := -1; kx <= 1; kx++ {
					v := int32(gray.Pix[row+x+kx])
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			grad.Mag[y*w+x] = abs32(gx) + abs32(gy)
		}
	}
	return grad
}

// DetectEdges runs Luminance followed by Sobel.
func DetectEdges(img *RasterImage) *GradientMap {
	return Sobel(Luminance(img))
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
