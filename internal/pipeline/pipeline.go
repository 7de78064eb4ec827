package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/image-pipeline-mcp/internal/annotate"
	"github.com/ironsheep/image-pipeline-mcp/internal/encoding"
	"github.com/ironsheep/image-pipeline-mcp/internal/imaging"
)

// Source is one input image. Either Data (encoded bytes) or Image (already
// decoded pixels) must be set; Image wins when both are.
type Source struct {
	// Name is the original file name, used to build the output name.
	Name string

	// MIMEType is the declared type of the source ("image/png"). When empty
	// the type detected while decoding is used.
	MIMEType string

	Data  []byte
	Image *imaging.RasterImage

	// Annotation, when set, supplies the result's ALT text.
	Annotation *annotate.Annotation
}

// ProcessedResult is the complete output of one image's pipeline run. It is
// never modified after Process returns it.
type ProcessedResult struct {
	Name      string    `json:"name" yaml:"name"`
	FileName  string    `json:"file_name" yaml:"file_name"`
	MIMEType  string    `json:"mime_type" yaml:"mime_type"`
	Operation Operation `json:"operation" yaml:"operation"`
	Quality   float64   `json:"quality" yaml:"quality"`
	Width     int       `json:"width" yaml:"width"`
	Height    int       `json:"height" yaml:"height"`

	OriginalSize  int64  `json:"original_size" yaml:"original_size"`
	ProcessedSize int64  `json:"processed_size" yaml:"processed_size"`
	AltText       string `json:"alt_text" yaml:"alt_text"`

	// Original is the decoded source. The caller retains ownership.
	Original *imaging.RasterImage `json:"-" yaml:"-"`

	// Data is the encoded output.
	Data []byte `json:"-" yaml:"-"`
}

// Dimensions returns "{width}x{height}" of the output.
func (r *ProcessedResult) Dimensions() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// BackgroundRemover cuts the subject out of an image and returns a new image
// with a transparent background.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, img *imaging.RasterImage) (*imaging.RasterImage, error)
}

// Pipeline runs one image at a time through geometry, resampling, optional
// stylization and encoding. A Pipeline holds no per-image state, so one
// value can serve concurrent Process calls.
type Pipeline struct {
	resampler imaging.Resampler
	codec     encoding.Rasterizer
	remover   BackgroundRemover
	maxPixels int
	log       *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithResampler replaces the default Lanczos resampler.
func WithResampler(r imaging.Resampler) Option {
	return func(p *Pipeline) { p.resampler = r }
}

// WithRasterizer replaces the default codec.
func WithRasterizer(c encoding.Rasterizer) Option {
	return func(p *Pipeline) { p.codec = c }
}

// WithBackgroundRemover enables the remove-bg operation.
func WithBackgroundRemover(r BackgroundRemover) Option {
	return func(p *Pipeline) { p.remover = r }
}

// WithMaxPixels bounds the size of any buffer a transform produces. Images
// whose target would exceed n pixels fail with KindInvalidGeometry. n <= 0
// selects imaging.DefaultMaxPixels.
func WithMaxPixels(n int) Option {
	return func(p *Pipeline) { p.maxPixels = n }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		resampler: &imaging.ImagingResampler{Filter: imaging.FilterLanczos},
		codec:     encoding.NewCodec(),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs req on src. Every failure is returned as a *ProcessingError.
func (p *Pipeline) Process(ctx context.Context, src Source, req Request) (*ProcessedResult, error) {
	start := time.Now()
	log := p.log.With(zap.String("image", src.Name), zap.String("operation", string(req.Operation)))

	res, err := p.process(ctx, src, req, log)
	if err != nil {
		pe := fail(src.Name, KindInternal, err)
		log.Warn("image failed", zap.String("kind", string(pe.Kind)), zap.Error(pe.Err))
		return nil, pe
	}

	log.Debug("image processed",
		zap.String("file", res.FileName),
		zap.String("dimensions", res.Dimensions()),
		zap.Float64("quality", res.Quality),
		zap.Int64("bytes", res.ProcessedSize),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, src Source, req Request, log *zap.Logger) (*ProcessedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	op, err := ParseOperation(string(req.Operation))
	if err != nil {
		return nil, err
	}
	if op == OpRemoveBackground && p.remover == nil {
		return nil, fmt.Errorf("%w: %s needs a background remover", ErrUnsupportedOperation, op)
	}
	settings := req.Settings
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	img := src.Image
	if img == nil {
		if img, err = p.codec.Decode(src.Data); err != nil {
			return nil, &ProcessingError{Kind: KindDecodeFailure, Image: src.Name, Err: err}
		}
		log.Debug("decoded", zap.String("format", img.SourceFormat), zap.Int("width", img.Width()), zap.Int("height", img.Height()))
	}
	original := img

	mime := src.MIMEType
	if mime == "" && img.SourceFormat != "" {
		mime = "image/" + img.SourceFormat
	}

	plan, err := planFor(op, settings, mime)
	if err != nil {
		return nil, err
	}

	if op == OpRemoveBackground {
		if img, err = p.remover.RemoveBackground(ctx, img); err != nil {
			return nil, fmt.Errorf("background removal failed: %w", err)
		}
	}

	factor := 0
	var resize *imaging.ResizeSpec
	if op == OpUpscale {
		factor = settings.UpscaleFactor
		if factor == 0 {
			factor = encoding.DefaultUpscaleFactor
		}
	} else if resize, err = settings.ResizeSpec(); err != nil {
		return nil, err
	}

	geom, err := imaging.ResolveGeometry(img.Width(), img.Height(), factor, resize, p.maxPixels)
	if err != nil {
		return nil, err
	}
	if !geom.Identity(img.Width(), img.Height()) {
		if img, err = p.resampler.Resample(img, geom.Source, geom.TargetWidth, geom.TargetHeight); err != nil {
			return nil, err
		}
		log.Debug("resampled", zap.Stringer("source", geom.Source), zap.Int("width", img.Width()), zap.Int("height", img.Height()))
	}

	switch op {
	case OpCartoon, OpSketch:
		if img, err = imaging.Stylize(img, imaging.Style(op)); err != nil {
			return nil, err
		}
		log.Debug("stylized", zap.String("style", string(op)))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := p.codec.Encode(img, plan)
	if err != nil {
		return nil, &ProcessingError{Kind: KindEncodeFailure, Image: src.Name, Err: err}
	}

	return &ProcessedResult{
		Name:          src.Name,
		FileName:      plan.FileName(src.Name),
		MIMEType:      plan.MIMEType,
		Operation:     op,
		Quality:       plan.Quality,
		Width:         img.Width(),
		Height:        img.Height(),
		OriginalSize:  sourceSize(src, original),
		ProcessedSize: int64(len(data)),
		AltText:       altText(src),
		Original:      original,
		Data:          data,
	}, nil
}

// planFor selects the encoder plan for op.
func planFor(op Operation, s Settings, sourceMIME string) (encoding.Plan, error) {
	switch op {
	case OpConvert:
		return encoding.ConvertPlan(s.Format, s.Quality)
	case OpCompress:
		return encoding.CompressPlan(sourceMIME, s.Mode, s.CustomQuality, s.Options)
	case OpUpscale:
		plan, err := encoding.UpscalePlan(sourceMIME, s.UpscaleFactor)
		if err != nil {
			return plan, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
		return plan, nil
	case OpCartoon, OpSketch:
		return encoding.StylizedPlan(s.Format, s.Quality, string(op))
	case OpRemoveBackground:
		return encoding.BackgroundRemovedPlan(), nil
	default:
		return encoding.Plan{}, fmt.Errorf("%w: %q", ErrUnsupportedOperation, op)
	}
}

func sourceSize(src Source, img *imaging.RasterImage) int64 {
	if len(src.Data) > 0 {
		return int64(len(src.Data))
	}
	return img.SourceSize
}

// altText prefers the paired annotation, then the file name without its
// extension, then "Image".
func altText(src Source) string {
	if src.Annotation != nil && src.Annotation.AltText != "" {
		return src.Annotation.AltText
	}
	name := src.Name
	if i := strings.LastIndex(name, "."); i != -1 {
		name = name[:i]
	}
	if name == "" {
		return "Image"
	}
	return name
}
