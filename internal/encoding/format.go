package encoding

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned for format names the codec cannot write.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Format is an output container format.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
	GIF  Format = "gif"
	BMP  Format = "bmp"
)

// Formats lists every format the codec can encode.
var Formats = []Format{JPEG, PNG, WebP, GIF, BMP}

// ParseFormat accepts a format name ("jpeg", "jpg", "png", ...) or a MIME
// type ("image/jpeg"). Matching is case-insensitive.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "image/")
	switch name {
	case "jpeg", "jpg":
		return JPEG, nil
	case "png", "webp", "gif", "bmp":
		return Format(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// MIMEType returns "image/<format>".
func (f Format) MIMEType() string { return "image/" + string(f) }

// Extension returns the file extension without the dot. JPEG uses "jpg".
func (f Format) Extension() string {
	if f == JPEG {
		return "jpg"
	}
	return string(f)
}

// Lossy reports whether the format honors a quality factor below 1.
func (f Format) Lossy() bool { return f == JPEG || f == WebP }
