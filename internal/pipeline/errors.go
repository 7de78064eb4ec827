package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ironsheep/image-pipeline-mcp/internal/encoding"
	"github.com/ironsheep/image-pipeline-mcp/internal/imaging"
)

var (
	// ErrUnsupportedOperation is returned for operation tags the orchestrator
	// does not recognize, or cannot run with its current collaborators.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrInvalidSettings is returned when a settings bundle fails validation.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrBatchTooLarge is returned when a batch exceeds the runner's maximum.
	ErrBatchTooLarge = errors.New("batch too large")
)

// ErrorKind classifies a per-image failure.
type ErrorKind string

const (
	KindDecodeFailure        ErrorKind = "DecodeFailure"
	KindEncodeFailure        ErrorKind = "EncodeFailure"
	KindInvalidGeometry      ErrorKind = "InvalidGeometry"
	KindUnsupportedOperation ErrorKind = "UnsupportedOperation"
	KindInvalidSettings      ErrorKind = "InvalidSettings"
	KindCanceled             ErrorKind = "Canceled"
	KindInternal             ErrorKind = "Internal"
)

// ProcessingError is the failure of one image's pipeline run.
type ProcessingError struct {
	Kind  ErrorKind
	Image string
	Err   error
}

func (e *ProcessingError) Error() string {
	if e.Image == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Image, e.Kind, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// fail wraps err as a ProcessingError for image. The kind is derived from
// err unless it cannot be classified, in which case fallback is used.
func fail(image string, fallback ErrorKind, err error) *ProcessingError {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe
	}
	kind := KindOf(err)
	if kind == KindInternal {
		kind = fallback
	}
	return &ProcessingError{Kind: kind, Image: image, Err: err}
}

// KindOf classifies err. A nil error has no kind; errors no sentinel
// matches are KindInternal.
func KindOf(err error) ErrorKind {
	var pe *ProcessingError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return pe.Kind
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, imaging.ErrDecode):
		return KindDecodeFailure
	case errors.Is(err, imaging.ErrInvalidGeometry):
		return KindInvalidGeometry
	case errors.Is(err, encoding.ErrEmptyOutput), errors.Is(err, encoding.ErrUnsupportedFormat):
		return KindEncodeFailure
	case errors.Is(err, ErrUnsupportedOperation):
		return KindUnsupportedOperation
	case errors.Is(err, ErrInvalidSettings), errors.Is(err, ErrBatchTooLarge):
		return KindInvalidSettings
	default:
		return KindInternal
	}
}
