package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryNotFound    Category = "not-found"
	CategoryUnsupported Category = "unsupported-format"
	CategoryBadInput    Category = "bad-input"
	CategoryIO          Category = "io"
	CategoryPipeline    Category = "pipeline"
	CategoryCache       Category = "cache"
)

// ImageError is the structured error type used throughout the module.
type ImageError struct {
	Category Category
	Op       string // operation name
	URI      string // image URI, when known
	Err      error
}

func (e *ImageError) Error() string {
	if e.URI != "" {
		return fmt.Sprintf("[%s] %s (%s): %v", e.Category, e.Op, e.URI, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// New creates an ImageError.
func New(category Category, op string, err error) *ImageError {
	return &ImageError{Category: category, Op: op, Err: err}
}

// NewURI creates an ImageError carrying the URI it relates to.
func NewURI(category Category, op, uri string, err error) *ImageError {
	return &ImageError{Category: category, Op: op, URI: uri, Err: err}
}

// Wrap wraps an existing error with context.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var ie *ImageError
	if errors.As(err, &ie) {
		return ie.Category == cat
	}
	return false
}

// IsNotFound reports whether err means the URI could not be resolved.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound) || errors.Is(err, ErrNotFound)
}

// IsUnsupported reports whether err means no implementation could handle the
// format or reach the requested flavor.
func IsUnsupported(err error) bool {
	return IsCategory(err, CategoryUnsupported) || errors.Is(err, ErrUnsupportedFormat)
}

// Sentinel errors for common failure modes.
var (
	ErrNotFound          = errors.New("image not found")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrNoPreloader       = errors.New("no preloader recognized the format")
	ErrNoPipeline        = errors.New("no suitable loader/converter combination available")
	ErrBadFlavor         = errors.New("image flavor does not match")
	ErrEmptyInput        = errors.New("empty input")
	ErrStreamConsumed    = errors.New("source stream already consumed")
)
