package encoding

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/chai2010/webp"
	"golang.org/x/image/bmp"

	"github.com/ironsheep/image-pipeline-mcp/internal/imaging"
)

// ErrEmptyOutput is returned when an encoder finishes without writing bytes.
var ErrEmptyOutput = errors.New("encoder produced no output")

// Rasterizer converts between encoded bytes and RasterImages.
type Rasterizer interface {
	Decode(data []byte) (*imaging.RasterImage, error)
	Encode(img *imaging.RasterImage, plan Plan) ([]byte, error)
}

// Codec is the default Rasterizer. Decoding supports JPEG, PNG, GIF, BMP and
// WebP; encoding supports every Format.
//
// JPEG and BMP have no alpha channel: transparent pixels are composited onto
// black. GIF output is palettized to 256 colors with Floyd-Steinberg
// dithering.
type Codec struct{}

// NewCodec returns the default Rasterizer.
func NewCodec() *Codec { return &Codec{} }

// Decode implements Rasterizer.
func (c *Codec) Decode(data []byte) (*imaging.RasterImage, error) {
	return imaging.Decode(data)
}

// Encode implements Rasterizer.
func (c *Codec) Encode(img *imaging.RasterImage, plan Plan) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, img.Image(), plan.Format, plan.Quality); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", plan.Format, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", plan.Format, ErrEmptyOutput)
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, img image.Image, f Format, quality float64) error {
	switch f {
	case JPEG:
		return jpeg.Encode(buf, img, &jpeg.Options{Quality: percent(quality)})
	case PNG:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		if quality < 1 {
			enc.CompressionLevel = png.BestCompression
		}
		return enc.Encode(buf, img)
	case WebP:
		return webp.Encode(buf, img, &webp.Options{
			Lossless: quality >= 1,
			Quality:  float32(percent(quality)),
		})
	case GIF:
		return gif.Encode(buf, img, &gif.Options{NumColors: 256})
	case BMP:
		return bmp.Encode(buf, img)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// percent maps a [0,1] quality factor to the 1-100 scale used by encoders.
func percent(q float64) int {
	p := int(math.Round(q * 100))
	return max(1, min(p, 100))
}
