package cache

import (
	"sync"

	"github.com/Skryldev/image-loader/core"
)

// Statistics gathers cache hit/miss counters.  Register it as a listener;
// safe for concurrent use.
type Statistics struct {
	mu sync.Mutex

	invalidHits      int
	infoCacheHits    int
	infoCacheMisses  int
	imageCacheHits   int
	imageCacheMisses int

	// Per-key detail, only recorded when enabled at construction.
	imageHitDetail  map[core.ImageKey]int
	imageMissDetail map[core.ImageKey]int
}

// NewStatistics creates a statistics listener.  Pass detailed=true to also
// record hit/miss counts per image key.
func NewStatistics(detailed bool) *Statistics {
	s := &Statistics{}
	if detailed {
		s.imageHitDetail = make(map[core.ImageKey]int)
		s.imageMissDetail = make(map[core.ImageKey]int)
	}
	return s
}

// Reset clears all gathered counters.
func (s *Statistics) Reset() {
	s.mu.Lock()
	s.invalidHits = 0
	s.infoCacheHits = 0
	s.infoCacheMisses = 0
	s.imageCacheHits = 0
	s.imageCacheMisses = 0
	if s.imageHitDetail != nil {
		s.imageHitDetail = make(map[core.ImageKey]int)
		s.imageMissDetail = make(map[core.ImageKey]int)
	}
	s.mu.Unlock()
}

// InvalidHit implements Listener.
func (s *Statistics) InvalidHit(string) {
	s.mu.Lock()
	s.invalidHits++
	s.mu.Unlock()
}

// CacheHitImageInfo implements Listener.
func (s *Statistics) CacheHitImageInfo(string) {
	s.mu.Lock()
	s.infoCacheHits++
	s.mu.Unlock()
}

// CacheMissImageInfo implements Listener.
func (s *Statistics) CacheMissImageInfo(string) {
	s.mu.Lock()
	s.infoCacheMisses++
	s.mu.Unlock()
}

// CacheHitImage implements Listener.
func (s *Statistics) CacheHitImage(key core.ImageKey) {
	s.mu.Lock()
	s.imageCacheHits++
	if s.imageHitDetail != nil {
		s.imageHitDetail[key]++
	}
	s.mu.Unlock()
}

// CacheMissImage implements Listener.
func (s *Statistics) CacheMissImage(key core.ImageKey) {
	s.mu.Lock()
	s.imageCacheMisses++
	if s.imageMissDetail != nil {
		s.imageMissDetail[key]++
	}
	s.mu.Unlock()
}

// InvalidHits returns the number of stale entries detected.
func (s *Statistics) InvalidHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidHits
}

// ImageInfoCacheHits returns the number of metadata cache hits.
func (s *Statistics) ImageInfoCacheHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infoCacheHits
}

// ImageInfoCacheMisses returns the number of metadata cache misses.
func (s *Statistics) ImageInfoCacheMisses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infoCacheMisses
}

// ImageCacheHits returns the number of loaded-image cache hits.
func (s *Statistics) ImageCacheHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imageCacheHits
}

// ImageCacheMisses returns the number of loaded-image cache misses.
func (s *Statistics) ImageCacheMisses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imageCacheMisses
}

// ImageHitDetail returns a copy of the per-key hit counts, or nil when
// detail recording is disabled.
func (s *Statistics) ImageHitDetail() map[core.ImageKey]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyDetail(s.imageHitDetail)
}

// ImageMissDetail returns a copy of the per-key miss counts, or nil when
// detail recording is disabled.
func (s *Statistics) ImageMissDetail() map[core.ImageKey]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyDetail(s.imageMissDetail)
}

func copyDetail(m map[core.ImageKey]int) map[core.ImageKey]int {
	if m == nil {
		return nil
	}
	out := make(map[core.ImageKey]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ Listener = (*Statistics)(nil)
