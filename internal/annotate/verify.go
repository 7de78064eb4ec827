package annotate

import (
	"math"
	"strconv"

	"github.com/ironsheep/image-pipeline-mcp/internal/imaging"
)

// Status is the verdict of Verify.
type Status string

const (
	StatusValid   Status = "valid"
	StatusWarning Status = "warning"
	StatusInvalid Status = "invalid"
)

const (
	// MinDimension is the smallest width or height not flagged as low
	// resolution.
	MinDimension = 100

	// MinFileSize is the smallest encoded size not flagged as suspicious.
	MinFileSize = 1024
)

// Issue messages reported by Verify.
const (
	IssueLowResolution = "Low resolution"
	IssueTooSmall      = "Potentially corrupted or empty"
	IssueUnreadable    = "Could not load image file"
)

// Verification is the result of checking a source image.
type Verification struct {
	Status Status   `json:"status" yaml:"status"`
	Issues []string `json:"issues" yaml:"issues"`
	Width  int      `json:"width,omitempty" yaml:"width,omitempty"`
	Height int      `json:"height,omitempty" yaml:"height,omitempty"`
}

// Verify flags decoded images that are smaller than MinDimension on either
// axis or whose encoded size is below MinFileSize.
func Verify(size int64, img *imaging.RasterImage) Verification {
	v := Verification{
		Status: StatusValid,
		Issues: []string{},
		Width:  img.Width(),
		Height: img.Height(),
	}
	if v.Width < MinDimension || v.Height < MinDimension {
		v.Issues = append(v.Issues, IssueLowResolution)
	}
	if size < MinFileSize {
		v.Issues = append(v.Issues, IssueTooSmall)
	}
	if len(v.Issues) > 0 {
		v.Status = StatusWarning
	}
	return v
}

// VerifyBytes decodes data and verifies it. Undecodable data is invalid.
func VerifyBytes(data []byte) Verification {
	img, err := imaging.Decode(data)
	if err != nil {
		return Verification{Status: StatusInvalid, Issues: []string{IssueUnreadable}}
	}
	return Verify(int64(len(data)), img)
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with binary units and at most two
// decimals: 0 → "0 Bytes", 1536 → "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + sizeUnits[i]
}
