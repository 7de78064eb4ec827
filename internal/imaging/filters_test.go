package imaging

import (
	"bytes"
	"image/color"
	"testing"
)

func TestCartoonColor_Quantization(t *testing.T) {
	tests := []struct {
		name string
		in   [3]uint8
		want [3]uint8
	}{
		// gray = 85.15; boosted (152.4, 17.4, 257.4 -> 255)
		{"saturated purple", [3]uint8{130, 40, 200}, [3]uint8{128, 0, 224}},
		{"black", [3]uint8{0, 0, 0}, [3]uint8{0, 0, 0}},
		{"white clamps before flooring", [3]uint8{255, 255, 255}, [3]uint8{224, 224, 224}},
		{"pure red overshoots", [3]uint8{255, 0, 0}, [3]uint8{224, 0, 0}},
		{"just below boundary", [3]uint8{63, 63, 63}, [3]uint8{32, 32, 32}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := CartoonColor(tt.in[0], tt.in[1], tt.in[2])
			if got := [3]uint8{r, g, b}; got != tt.want {
				t.Errorf("CartoonColor(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCartoonColor_LevelsAreMultiplesOf32(t *testing.T) {
	for v := 0; v < 256; v += 5 {
		r, g, b := CartoonColor(uint8(v), uint8(255-v), uint8(v/3))
		for _, c := range []uint8{r, g, b} {
			if c%32 != 0 {
				t.Fatalf("input %d produced off-grid level %d", v, c)
			}
		}
	}
}

func TestCartoonize(t *testing.T) {
	img := splitRaster(6, 4, black, color.NRGBA{255, 255, 255, 10})
	out, err := Cartoonize(img, DetectEdges(img))
	if err != nil {
		t.Fatalf("Cartoonize failed: %v", err)
	}
	if out.Width() != 6 || out.Height() != 4 {
		t.Fatalf("dimensions changed: %dx%d", out.Width(), out.Height())
	}

	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{2, 1, color.NRGBA{0, 0, 0, 255}},       // edge
		{3, 2, color.NRGBA{0, 0, 0, 255}},       // edge
		{0, 0, color.NRGBA{0, 0, 0, 255}},       // border, black source
		{5, 3, color.NRGBA{224, 224, 224, 255}}, // border, white source, alpha forced opaque
		{4, 1, color.NRGBA{224, 224, 224, 255}}, // interior non-edge
	}
	for _, tt := range tests {
		if got := out.NRGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("(%d,%d): got %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestCartoonize_ThresholdIsStrict(t *testing.T) {
	img := solidRaster(3, 1, color.NRGBA{130, 40, 200, 255})
	grad := &GradientMap{Width: 3, Height: 1, Mag: []int32{80, 81, 0}}

	out, err := Cartoonize(img, grad)
	if err != nil {
		t.Fatalf("Cartoonize failed: %v", err)
	}
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{128, 0, 224, 255}) {
		t.Errorf("magnitude 80 should not be an edge, got %v", got)
	}
	if got := out.NRGBAAt(1, 0); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("magnitude 81 should be an edge, got %v", got)
	}
}

func TestSketch(t *testing.T) {
	img := solidRaster(6, 1, color.NRGBA{40, 80, 120, 0})
	grad := &GradientMap{Width: 6, Height: 1, Mag: []int32{0, 30, 31, 100, 255, 1020}}

	out, err := Sketch(img, grad)
	if err != nil {
		t.Fatalf("Sketch failed: %v", err)
	}

	want := []uint8{255, 255, 224, 155, 0, 0}
	for x, w := range want {
		got := out.NRGBAAt(x, 0)
		if got != (color.NRGBA{w, w, w, 255}) {
			t.Errorf("x=%d (mag %d): got %v, want gray %d", x, grad.Mag[x], got, w)
		}
	}
}

func TestSketch_UniformImageIsBlankPaper(t *testing.T) {
	img := solidRaster(10, 10, color.NRGBA{12, 200, 99, 255})
	out, err := Sketch(img, DetectEdges(img))
	if err != nil {
		t.Fatalf("Sketch failed: %v", err)
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if got := out.NRGBAAt(x, y); got != white {
				t.Fatalf("(%d,%d): got %v, want white", x, y, got)
			}
		}
	}
}

func TestFilters_ArePure(t *testing.T) {
	img := patternRaster(32, 24)
	before := append([]byte(nil), img.pix.Pix...)

	for _, style := range []Style{StyleCartoon, StyleSketch} {
		t.Run(string(style), func(t *testing.T) {
			a, err := Stylize(img, style)
			if err != nil {
				t.Fatalf("first run failed: %v", err)
			}
			b, err := Stylize(img, style)
			if err != nil {
				t.Fatalf("second run failed: %v", err)
			}
			if !bytes.Equal(a.pix.Pix, b.pix.Pix) {
				t.Error("repeated runs produced different output")
			}
			if a.Width() != img.Width() || a.Height() != img.Height() {
				t.Errorf("filter changed geometry: %dx%d", a.Width(), a.Height())
			}
		})
	}

	if !bytes.Equal(before, img.pix.Pix) {
		t.Error("filters modified the source buffer")
	}
}

func TestFilters_RejectMismatchedGradient(t *testing.T) {
	img := solidRaster(4, 4, white)
	grad := &GradientMap{Width: 3, Height: 4, Mag: make([]int32, 12)}

	if _, err := Cartoonize(img, grad); err == nil {
		t.Error("Cartoonize should reject a mismatched gradient map")
	}
	if _, err := Sketch(img, grad); err == nil {
		t.Error("Sketch should reject a mismatched gradient map")
	}
	if _, err := Sketch(img, nil); err == nil {
		t.Error("Sketch should reject a nil gradient map")
	}
}

func TestStylize_UnknownStyle(t *testing.T) {
	if _, err := Stylize(solidRaster(2, 2, white), Style("oil")); err == nil {
		t.Error("Stylize should reject unknown styles")
	}
}
