package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ErrInvalidGeometry is returned when a resolved or requested geometry has a
// non-positive width or height, or a source rectangle falls outside the image.
var ErrInvalidGeometry = errors.New("invalid geometry")

// RasterImage is a decoded pixel buffer with 4 interleaved 8-bit channels
// (R, G, B, A) in straight (non-premultiplied) alpha.
//
// A RasterImage is immutable once constructed. Every transform in this package
// returns a new RasterImage; none of them write into their input. The
// underlying buffer is an *image.NRGBA whose bounds always start at (0,0).
type RasterImage struct {
	pix *image.NRGBA

	// SourceSize is the byte length of the encoded source, or 0 when the
	// image was produced in memory.
	SourceSize int64

	// SourceFormat is the declared format of the encoded source
	// ("jpeg", "png", "webp", "gif", "bmp"), or "" when unknown.
	SourceFormat string
}

// NewRasterImage copies img into a new straight-alpha buffer anchored at (0,0).
//
// The copy decouples the RasterImage from img, so later writes to img are
// never observed through the returned value.
func NewRasterImage(img image.Image, sourceSize int64, sourceFormat string) *RasterImage {
	return &RasterImage{
		pix:          imaging.Clone(img),
		SourceSize:   sourceSize,
		SourceFormat: sourceFormat,
	}
}

// newRaster wraps a freshly allocated buffer owned by the caller. The buffer
// must not be retained or written after the call.
func newRaster(pix *image.NRGBA, sourceSize int64, sourceFormat string) *RasterImage {
	if pix.Rect.Min != (image.Point{}) {
		pix = imaging.Clone(pix)
	}
	return &RasterImage{pix: pix, SourceSize: sourceSize, SourceFormat: sourceFormat}
}

// Width returns the image width in pixels.
func (r *RasterImage) Width() int { return r.pix.Rect.Dx() }

// Height returns the image height in pixels.
func (r *RasterImage) Height() int { return r.pix.Rect.Dy() }

// Bounds returns the image bounds, always anchored at (0,0).
func (r *RasterImage) Bounds() image.Rectangle { return r.pix.Rect }

// Image exposes the pixel buffer as an image.Image for encoders and other
// read-only consumers. Callers must not type-assert and mutate it.
func (r *RasterImage) Image() image.Image { return r.pix }

// NRGBAAt returns the straight-alpha color at (x, y).
func (r *RasterImage) NRGBAAt(x, y int) color.NRGBA { return r.pix.NRGBAAt(x, y) }

// Opaque reports whether every pixel has full alpha.
func (r *RasterImage) Opaque() bool { return r.pix.Opaque() }

// Rect is an integer rectangle inside a RasterImage's coordinate space.
//
// A Rect is valid for an image of size W×H when 0 ≤ X, 0 ≤ Y, X+Width ≤ W and
// Y+Height ≤ H, and both Width and Height are positive.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FullRect returns the rectangle covering an entire w×h image.
func FullRect(w, h int) Rect {
	return Rect{Width: w, Height: h}
}

// Within reports whether r is a non-empty rectangle inside a w×h image.
func (r Rect) Within(w, h int) bool {
	return r.X >= 0 && r.Y >= 0 && r.Width > 0 && r.Height > 0 &&
		r.X+r.Width <= w && r.Y+r.Height <= h
}

// Rectangle converts r to the standard library representation.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}
