package core

import "context"

// DefaultPreloaderPriority is the priority assigned to the bundled
// preloaders.  Lower values are consulted earlier.
const DefaultPreloaderPriority = 1000

// Preloader sniffs a stream's format and extracts intrinsic metadata without
// a full decode.  Implementations live in adapters/preloader/.
type Preloader interface {
	// Priority orders preloaders; lower runs first.  Registration order
	// breaks ties.
	Priority() int
	// PreloadImage peeks a bounded header of src.  It returns (nil, nil)
	// when it does not recognize the format, in which case it must not
	// have consumed the stream.
	PreloadImage(ctx context.Context, uri string, src *Source, imageContext ImageContext) (*ImageInfo, error)
}

// Loader fully decodes a stream into a specific flavor.
type Loader interface {
	// TargetFlavor is the flavor of the images this loader produces.
	TargetFlavor() Flavor
	// UsagePenalty ranks this loader against competing ones.
	UsagePenalty() Penalty
	// LoadImage decodes the image identified by info.  It fails with a
	// bad-input condition when info's MIME type does not match.
	LoadImage(ctx context.Context, info *ImageInfo, hints Hints, session SessionContext) (Image, error)
}

// LoaderFactory creates Loaders for the formats and flavors it supports.
// Implementations live in adapters/loader/.
type LoaderFactory interface {
	// SupportedMimeTypes lists the MIME types this factory can decode.
	SupportedMimeTypes() []string
	// SupportedFlavors lists the flavors this factory can produce for a
	// MIME type.
	SupportedFlavors(mime string) []Flavor
	// IsAvailable reports whether the backing implementation is usable in
	// this process (e.g. a native library is present).
	IsAvailable() bool
	// IsSupported reports whether this factory can handle the concrete
	// image described by info.
	IsSupported(info *ImageInfo) bool
	// NewLoader creates a loader producing the given flavor.
	NewLoader(flavor Flavor) Loader
}

// Converter transforms an already-loaded image from one flavor to another.
// Implementations live in adapters/converter/.
type Converter interface {
	// SourceFlavor is the flavor this converter accepts.
	SourceFlavor() Flavor
	// TargetFlavor is the flavor this converter produces.
	TargetFlavor() Flavor
	// ConversionPenalty is the base cost of applying this converter.
	ConversionPenalty() Penalty
	// Convert transforms img.  It fails with a bad-input condition when
	// img's actual flavor does not satisfy SourceFlavor.
	Convert(ctx context.Context, img Image, hints Hints) (Image, error)
}

// ImageContext provides session-independent information.
type ImageContext interface {
	// SourceResolution is the assumed resolution in dpi for formats that
	// do not carry one.
	SourceResolution() float64
}

// SessionContext resolves URIs to streams for the duration of one session.
// Implemented outside the core; see the root package for defaults.
type SessionContext interface {
	ImageContext

	// NeedSource resolves uri to a stream, creating it if necessary.  It
	// fails with a not-found condition when the URI cannot be resolved.
	NeedSource(uri string) (*Source, error)
	// ReturnSource hands a source back after preloading so it can be
	// reused by a later full load.
	ReturnSource(uri string, src *Source)
	// GetSource returns the source currently associated with uri without
	// resolving, or nil.
	GetSource(uri string) *Source
	// TargetResolution is the resolution in dpi images are rendered at.
	TargetResolution() float64
}

// TimestampProvider supplies the clock the cache compares entry timestamps
// against for staleness checks.
type TimestampProvider interface {
	TimeStamp() int64
}

// TimestampFunc adapts a function to a TimestampProvider.
type TimestampFunc func() int64

func (f TimestampFunc) TimeStamp() int64 { return f() }

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
}

// NopLogger discards all log output.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
