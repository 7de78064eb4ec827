package encoding

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Plan is the Encoder Selector's output: what to write and how to name it.
type Plan struct {
	Format    Format  `json:"format"`
	MIMEType  string  `json:"mime_type"`
	Quality   float64 `json:"quality"` // normalized to [0,1]
	Extension string  `json:"extension"`
	Prefix    string  `json:"prefix"`
}

// FileName builds "<sanitized base>_<prefix>.<extension>" from the original
// file name.
func (p Plan) FileName(original string) string {
	return FileName(original, p.Prefix, p.Extension)
}

func newPlan(f Format, quality float64, prefix string) Plan {
	return Plan{
		Format:    f,
		MIMEType:  f.MIMEType(),
		Quality:   quality,
		Extension: f.Extension(),
		Prefix:    prefix,
	}
}

// DefaultConvertQuality is used when a convert request carries no quality.
const DefaultConvertQuality = 90

// ConvertPlan re-encodes to format. PNG is always written at quality 1;
// other formats use quality/100.
func ConvertPlan(format string, quality int) (Plan, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return Plan{}, err
	}
	return newPlan(f, convertQuality(f, quality), "converted"), nil
}

// StylizedPlan follows the convert rules but names the output after the
// filter that produced it.
func StylizedPlan(format string, quality int, style string) (Plan, error) {
	p, err := ConvertPlan(format, quality)
	if err != nil {
		return Plan{}, err
	}
	p.Prefix = style
	return p, nil
}

// BackgroundRemovedPlan writes lossless PNG, the only format that keeps the
// cut-out transparency.
func BackgroundRemovedPlan() Plan {
	return newPlan(PNG, 1, "bg_removed")
}

func convertQuality(f Format, quality int) float64 {
	if f == PNG {
		return 1
	}
	if quality <= 0 {
		quality = DefaultConvertQuality
	}
	return float64(min(quality, 100)) / 100
}

// CompressionMode selects the base quality of a compress request.
type CompressionMode string

const (
	ModeSmart      CompressionMode = "smart"
	ModeAggressive CompressionMode = "aggressive"
	ModeBalanced   CompressionMode = "balanced"
	ModeCustom     CompressionMode = "custom"
)

// modeQuality is the base quality per named mode. Unknown modes use
// defaultModeQuality.
var modeQuality = map[CompressionMode]float64{
	ModeSmart:      0.75,
	ModeAggressive: 0.60,
	ModeBalanced:   0.80,
}

const (
	defaultModeQuality = 0.85
	minQuality         = 0.1
)

// CompressOptions are the post-options of a compress request. Each enabled
// option attenuates the quality multiplicatively.
type CompressOptions struct {
	RemoveMetadata      bool `json:"removeMetadata" mapstructure:"removeMetadata"`
	OptimizeColors      bool `json:"optimizeColors" mapstructure:"optimizeColors"`
	ProgressiveEncoding bool `json:"progressiveEncoding" mapstructure:"progressiveEncoding"`
	StripAlpha          bool `json:"stripAlpha" mapstructure:"stripAlpha"`
}

// CompressionQuality returns the quality factor for a compress request:
// the mode's base quality (customQuality/100 for custom), attenuated by
// removeMetadata ×0.95, optimizeColors ×0.90, progressiveEncoding ×0.98 and
// stripAlpha ×0.85, and floored at 0.1.
func CompressionQuality(mode CompressionMode, customQuality int, opts CompressOptions) float64 {
	q, ok := modeQuality[mode]
	switch {
	case mode == ModeCustom:
		q = float64(customQuality) / 100
	case !ok:
		q = defaultModeQuality
	}

	if opts.RemoveMetadata {
		q *= 0.95
	}
	if opts.OptimizeColors {
		q *= 0.90
	}
	if opts.ProgressiveEncoding {
		q *= 0.98
	}
	if opts.StripAlpha {
		q *= 0.85
	}
	return math.Max(minQuality, q)
}

// CompressPlan keeps the source format and derives the quality from the
// compression mode. A missing source type is treated as JPEG.
func CompressPlan(sourceMIME string, mode CompressionMode, customQuality int, opts CompressOptions) (Plan, error) {
	f := JPEG
	if sourceMIME != "" {
		parsed, err := ParseFormat(sourceMIME)
		if err != nil {
			return Plan{}, err
		}
		f = parsed
	}
	return newPlan(f, CompressionQuality(mode, customQuality, opts), "compressed"), nil
}

// DefaultUpscaleFactor is used when an upscale request carries no factor.
const DefaultUpscaleFactor = 2

// UpscalePlan keeps PNG, WebP and JPEG sources in their format and writes
// anything else as PNG. PNG is written at quality 1, the others at 0.95.
func UpscalePlan(sourceMIME string, factor int) (Plan, error) {
	if factor == 0 {
		factor = DefaultUpscaleFactor
	}
	if factor != 2 && factor != 4 {
		return Plan{}, fmt.Errorf("upscale factor must be 2 or 4, got %d", factor)
	}

	f := PNG
	if parsed, err := ParseFormat(sourceMIME); err == nil {
		switch parsed {
		case PNG, WebP, JPEG:
			f = parsed
		}
	}

	quality := 0.95
	if f == PNG {
		quality = 1
	}
	return newPlan(f, quality, fmt.Sprintf("upscaled_%dx", factor)), nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Sanitize replaces every character outside [A-Za-z0-9._-] with '_'.
func Sanitize(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// BaseName strips the last extension from a file name. An empty result
// becomes "image".
func BaseName(name string) string {
	if i := strings.LastIndex(name, "."); i != -1 {
		name = name[:i]
	}
	if name == "" {
		return "image"
	}
	return name
}

// FileName returns Sanitize(BaseName(original)) + "_" + prefix + "." + ext.
func FileName(original, prefix, ext string) string {
	return Sanitize(BaseName(original)) + "_" + prefix + "." + ext
}
