package pipeline

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ironsheep/image-pipeline-mcp/internal/encoding"
	"github.com/ironsheep/image-pipeline-mcp/internal/imaging"
)

// Operation is the transform applied to every image of a request.
type Operation string

const (
	OpConvert          Operation = "convert"
	OpCompress         Operation = "compress"
	OpUpscale          Operation = "upscale"
	OpCartoon          Operation = "cartoon"
	OpSketch           Operation = "sketch"
	OpRemoveBackground Operation = "remove-bg"
)

// Operations lists every operation the orchestrator recognizes.
var Operations = []Operation{OpConvert, OpCompress, OpUpscale, OpCartoon, OpSketch, OpRemoveBackground}

// ParseOperation validates an operation tag.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Operations {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedOperation, s)
}

// Settings is the settings bundle shared by every image of a request.
//
// Zero values mean "not given": Quality 0 falls back to 90 for convert and
// UpscaleFactor 0 falls back to 2.
type Settings struct {
	Format        string                   `json:"format" yaml:"format" validate:"omitempty,oneof=jpeg jpg png webp gif bmp"`
	Quality       int                      `json:"quality" yaml:"quality" validate:"omitempty,min=10,max=100"`
	Mode          encoding.CompressionMode `json:"mode" yaml:"mode"`
	CustomQuality int                      `json:"customQuality" yaml:"customQuality" validate:"min=0,max=100"`
	UpscaleFactor int                      `json:"upscaleFactor" yaml:"upscaleFactor" validate:"omitempty,oneof=2 4"`
	Options       encoding.CompressOptions `json:"options" yaml:"options"`
	Resize        ResizeSettings           `json:"resize" yaml:"resize"`
}

// ResizeSettings is the optional resize part of Settings. A Width or Height
// of 0 means the dimension was not given.
type ResizeSettings struct {
	Width               Dimension `json:"width" yaml:"width" validate:"min=0"`
	Height              Dimension `json:"height" yaml:"height" validate:"min=0"`
	MaintainAspectRatio bool      `json:"maintainAspectRatio" yaml:"maintainAspectRatio"`
	Fit                 string    `json:"fit" yaml:"fit" validate:"omitempty,oneof=cover contain fill"`
}

// DefaultSettings returns the settings a fresh session starts with.
func DefaultSettings() Settings {
	return Settings{
		Format:        string(encoding.JPEG),
		Quality:       encoding.DefaultConvertQuality,
		Mode:          encoding.ModeSmart,
		CustomQuality: 85,
		UpscaleFactor: encoding.DefaultUpscaleFactor,
		Options: encoding.CompressOptions{
			RemoveMetadata: true,
			OptimizeColors: true,
		},
		Resize: ResizeSettings{MaintainAspectRatio: true},
	}
}

var validate = validator.New()

// Validate checks field ranges. Errors wrap ErrInvalidSettings.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

// ResizeSpec converts the resize settings for the geometry resolver. It
// returns nil when neither dimension is given.
func (s Settings) ResizeSpec() (*imaging.ResizeSpec, error) {
	r := s.Resize
	if r.Width <= 0 && r.Height <= 0 {
		return nil, nil
	}
	fit, err := imaging.ParseFitMode(r.Fit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return &imaging.ResizeSpec{
		Width:               int(r.Width),
		Height:              int(r.Height),
		MaintainAspectRatio: r.MaintainAspectRatio,
		Fit:                 fit,
	}, nil
}

// Dimension is a requested pixel size. It unmarshals from a JSON number, a
// numeric string, "" or null. Anything that is not a positive number
// becomes 0 ("not given"); fractions are truncated.
type Dimension int

// UnmarshalJSON implements json.Unmarshaler.
func (d *Dimension) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.HasPrefix(raw, []byte(`"`)) {
		s, err := strconv.Unquote(string(raw))
		if err != nil {
			return fmt.Errorf("invalid dimension %s: %w", raw, err)
		}
		raw = []byte(strings.TrimSpace(s))
	}
	*d = parseDimension(string(raw))
	return nil
}

// UnmarshalText lets Dimension decode from form values and YAML scalars.
func (d *Dimension) UnmarshalText(text []byte) error {
	*d = parseDimension(strings.TrimSpace(string(text)))
	return nil
}

func parseDimension(s string) Dimension {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v <= 0 || v > math.MaxInt32 {
		return 0
	}
	return Dimension(v)
}

// Request is one pipeline invocation: an operation and its settings.
type Request struct {
	Operation Operation `json:"operation" yaml:"operation"`
	Settings  Settings  `json:"settings" yaml:"settings"`
}
