package config

import "errors"

// Config is the top-level configuration struct.  All fields have safe
// defaults so callers can start with Config{} and override only what they
// need.
type Config struct {
	// SourceResolution is the resolution in dpi assumed for images whose
	// format does not carry one.  Default: 72.
	SourceResolution float64

	// TargetResolution is the resolution in dpi images are rendered at.
	// Default: 72.
	TargetResolution float64

	// HeaderPeekBytes bounds how far a preloader may look into a stream
	// while sniffing the format.  Default: 64 KiB.
	HeaderPeekBytes int

	// CacheEnabled turns metadata and image memoization on.  Default: true.
	CacheEnabled bool

	// BatchWorkers is the worker count for batch cache warm-up.
	// Default: 4.
	BatchWorkers int

	// MaxRawBytes caps how many bytes a raw pass-through load may buffer.
	// Zero means no cap.  Default: 0.
	MaxRawBytes int64

	// LogLevel: "debug", "info", "warn", "error".
	LogLevel string
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		SourceResolution: 72,
		TargetResolution: 72,
		HeaderPeekBytes:  64 * 1024,
		CacheEnabled:     true,
		BatchWorkers:     4,
		LogLevel:         "info",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.SourceResolution <= 0 {
		return errors.New("config: SourceResolution must be positive")
	}
	if c.TargetResolution <= 0 {
		return errors.New("config: TargetResolution must be positive")
	}
	if c.HeaderPeekBytes <= 0 {
		return errors.New("config: HeaderPeekBytes must be positive")
	}
	if c.BatchWorkers <= 0 {
		return errors.New("config: BatchWorkers must be positive")
	}
	if c.MaxRawBytes < 0 {
		return errors.New("config: MaxRawBytes must not be negative")
	}
	return nil
}
