package imaging

import (
	"fmt"
	"math"
)

// FitMode reconciles the source aspect ratio with a requested width and height.
type FitMode string

const (
	// FitCover fills the requested box exactly, cropping the source centrally
	// along its wider axis.
	FitCover FitMode = "cover"

	// FitContain shrinks the requested box to the largest size that keeps the
	// source aspect ratio. Letterboxing is left to the caller.
	FitContain FitMode = "contain"

	// FitFill stretches the whole source to the requested box.
	FitFill FitMode = "fill"
)

// ParseFitMode accepts "cover", "contain" or "fill". The empty string selects
// FitCover.
func ParseFitMode(s string) (FitMode, error) {
	switch FitMode(s) {
	case "":
		return FitCover, nil
	case FitCover, FitContain, FitFill:
		return FitMode(s), nil
	default:
		return "", fmt.Errorf("unknown fit mode: %s", s)
	}
}

// ResizeSpec describes a requested resize. A Width or Height of 0 (or less)
// means the dimension was not given.
type ResizeSpec struct {
	Width               int
	Height              int
	MaintainAspectRatio bool
	Fit                 FitMode
}

// Geometry is the output of ResolveGeometry: the size of the buffer to produce
// and the part of the source to sample it from.
type Geometry struct {
	TargetWidth  int  `json:"target_width"`
	TargetHeight int  `json:"target_height"`
	Source       Rect `json:"source"`
}

// Identity reports whether g resamples the full w×h source to the same size.
func (g Geometry) Identity(w, h int) bool {
	return g.TargetWidth == w && g.TargetHeight == h && g.Source == FullRect(w, h)
}

// DefaultMaxPixels is the largest target buffer ResolveGeometry accepts when
// no limit is given: 100 megapixels.
const DefaultMaxPixels = 100_000_000

// ResolveGeometry computes the target size and source rectangle for a w×h
// source.
//
// Rules, in priority order:
//
//  1. upscaleFactor > 0: target is (w*f, h*f) from the full source; resize is
//     ignored.
//  2. resize with both dimensions: cover crops centrally to the target aspect,
//     contain shrinks the target to preserve the source aspect, fill stretches.
//  3. resize with one dimension: the other is derived from the source aspect
//     when MaintainAspectRatio is set, otherwise kept from the source.
//  4. nothing requested: identity.
//
// Targets are clamped to at least 1 pixel. A target of more than maxPixels
// pixels (DefaultMaxPixels when maxPixels <= 0) is rejected with
// ErrInvalidGeometry before anything is allocated. The function is pure.
func ResolveGeometry(w, h, upscaleFactor int, resize *ResizeSpec, maxPixels int) (Geometry, error) {
	if w <= 0 || h <= 0 {
		return Geometry{}, fmt.Errorf("%w: source is %dx%d", ErrInvalidGeometry, w, h)
	}

	g := Geometry{TargetWidth: w, TargetHeight: h, Source: FullRect(w, h)}

	switch {
	case upscaleFactor > 0:
		g.TargetWidth = w * upscaleFactor
		g.TargetHeight = h * upscaleFactor

	case resize != nil && resize.Width > 0 && resize.Height > 0:
		rw, rh := resize.Width, resize.Height
		aspect := float64(w) / float64(h)
		targetAspect := float64(rw) / float64(rh)

		g.TargetWidth, g.TargetHeight = rw, rh
		switch resize.Fit {
		case FitContain:
			if aspect > targetAspect {
				g.TargetHeight = roundDim(float64(rw) / aspect)
			} else {
				g.TargetWidth = roundDim(float64(rh) * aspect)
			}
		case FitFill:
			// full source stretched to the requested box
		default:
			g.Source = coverRect(w, h, targetAspect, aspect)
		}

	case resize != nil && resize.Width > 0:
		g.TargetWidth = resize.Width
		if resize.MaintainAspectRatio {
			g.TargetHeight = roundDim(float64(h) * float64(resize.Width) / float64(w))
		}

	case resize != nil && resize.Height > 0:
		g.TargetHeight = resize.Height
		if resize.MaintainAspectRatio {
			g.TargetWidth = roundDim(float64(w) * float64(resize.Height) / float64(h))
		}
	}

	g.TargetWidth = max(g.TargetWidth, 1)
	g.TargetHeight = max(g.TargetHeight, 1)

	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if int64(g.TargetWidth)*int64(g.TargetHeight) > int64(maxPixels) {
		return Geometry{}, fmt.Errorf("%w: target %dx%d exceeds %d pixels",
			ErrInvalidGeometry, g.TargetWidth, g.TargetHeight, maxPixels)
	}

	if !g.Source.Within(w, h) {
		return Geometry{}, fmt.Errorf("%w: source rect %s outside %dx%d", ErrInvalidGeometry, g.Source, w, h)
	}
	return g, nil
}

// coverRect returns the largest centered crop of a w×h source whose aspect
// ratio matches targetAspect.
func coverRect(w, h int, targetAspect, aspect float64) Rect {
	if aspect > targetAspect {
		sw := clamp(roundDim(float64(h)*targetAspect), 1, w)
		return Rect{X: (w - sw) / 2, Y: 0, Width: sw, Height: h}
	}
	sh := clamp(roundDim(float64(w)/targetAspect), 1, h)
	return Rect{X: 0, Y: (h - sh) / 2, Width: w, Height: sh}
}

func roundDim(v float64) int {
	return int(math.Round(v))
}
