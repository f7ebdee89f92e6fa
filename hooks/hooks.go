// Package hooks provides production-ready Logger and cache-listener
// implementations.
package hooks

import (
	"log/slog"

	"github.com/Skryldev/image-loader/cache"
	"github.com/Skryldev/image-loader/core"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...any) { s.log.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...any)  { s.log.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...any)  { s.log.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...any) { s.log.Error(msg, fields...) }

var _ core.Logger = (*SlogLogger)(nil)

// ── Logging cache listener ────────────────────────────────────────────────────

// LoggingListener logs cache events at debug level.
type LoggingListener struct {
	logger core.Logger
}

// NewLoggingListener creates a LoggingListener.
func NewLoggingListener(l core.Logger) *LoggingListener { return &LoggingListener{logger: l} }

func (h *LoggingListener) InvalidHit(uri string) {
	h.logger.Debug("cache.invalid_hit", "uri", uri)
}

func (h *LoggingListener) CacheHitImageInfo(uri string) {
	h.logger.Debug("cache.info.hit", "uri", uri)
}

func (h *LoggingListener) CacheMissImageInfo(uri string) {
	h.logger.Debug("cache.info.miss", "uri", uri)
}

func (h *LoggingListener) CacheHitImage(key core.ImageKey) {
	h.logger.Debug("cache.image.hit", "uri", key.URI, "flavor", key.Flavor)
}

func (h *LoggingListener) CacheMissImage(key core.ImageKey) {
	h.logger.Debug("cache.image.miss", "uri", key.URI, "flavor", key.Flavor)
}

var _ cache.Listener = (*LoggingListener)(nil)
