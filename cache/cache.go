// Package cache memoizes image metadata by URI and fully-loaded images by
// (URI, flavor) key.
package cache

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Skryldev/image-loader/core"
)

// Listener receives cache events for statistics gathering.  Listeners are
// best-effort: a panicking or slow listener must never fail or corrupt the
// cache operation itself.
type Listener interface {
	InvalidHit(uri string)
	CacheHitImageInfo(uri string)
	CacheMissImageInfo(uri string)
	CacheHitImage(key core.ImageKey)
	CacheMissImage(key core.ImageKey)
}

// InfoProvider performs the actual preload when the cache has no usable
// entry.  The image manager implements it.
type InfoProvider interface {
	PreloadImage(ctx context.Context, uri string, session core.SessionContext) (*core.ImageInfo, error)
}

type infoEntry struct {
	info      *core.ImageInfo
	timestamp int64
	mutable   bool
}

// ImageCache deduplicates and memoizes image metadata and fully-loaded
// images.  Safe for concurrent use; same-URI concurrent preloads collapse to
// a single preload in flight.
type ImageCache struct {
	mu     sync.RWMutex
	infos  map[string]*infoEntry
	images map[core.ImageKey]core.Image

	group singleflight.Group

	lmu       sync.RWMutex
	listeners []Listener

	timestamps core.TimestampProvider
	logger     core.Logger
}

// New returns an empty cache.  The default timestamp provider reports a
// constant, so nothing is ever considered stale until a provider tied to
// resource change detection is installed.
func New() *ImageCache {
	return &ImageCache{
		infos:      make(map[string]*infoEntry),
		images:     make(map[core.ImageKey]core.Image),
		timestamps: core.TimestampFunc(func() int64 { return 0 }),
		logger:     core.NopLogger{},
	}
}

// SetLogger attaches a structured logger.
func (c *ImageCache) SetLogger(l core.Logger) {
	if l != nil {
		c.logger = l
	}
}

// SetTimestampProvider installs the clock used for staleness comparison.
func (c *ImageCache) SetTimestampProvider(p core.TimestampProvider) {
	if p != nil {
		c.timestamps = p
	}
}

// AddListener registers a statistics listener.
func (c *ImageCache) AddListener(l Listener) {
	c.lmu.Lock()
	c.listeners = append(c.listeners, l)
	c.lmu.Unlock()
}

// NeedImageInfo returns the cached metadata for uri, preloading and storing
// it on a miss.  Entries for mutable sources (local files) are re-preloaded
// when the timestamp provider has advanced past the entry's recorded
// timestamp; entries for immutable/remote sources never go stale.
func (c *ImageCache) NeedImageInfo(ctx context.Context, uri string, session core.SessionContext, provider InfoProvider) (*core.ImageInfo, error) {
	mutable := isMutableURI(uri)

	c.mu.RLock()
	entry := c.infos[uri]
	c.mu.RUnlock()

	if entry != nil {
		if entry.mutable && c.timestamps.TimeStamp() > entry.timestamp {
			c.notify(func(l Listener) { l.InvalidHit(uri) })
			c.Invalidate(uri)
		} else {
			c.notify(func(l Listener) { l.CacheHitImageInfo(uri) })
			return entry.info, nil
		}
	}

	// Collapse concurrent preloads of the same URI into one flight.
	v, err, _ := c.group.Do(uri, func() (any, error) {
		// Another caller may have filled the entry while we queued.
		c.mu.RLock()
		if e := c.infos[uri]; e != nil {
			c.mu.RUnlock()
			c.notify(func(l Listener) { l.CacheHitImageInfo(uri) })
			return e.info, nil
		}
		c.mu.RUnlock()

		c.notify(func(l Listener) { l.CacheMissImageInfo(uri) })
		info, err := provider.PreloadImage(ctx, uri, session)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.infos[uri] = &infoEntry{
			info:      info,
			timestamp: c.timestamps.TimeStamp(),
			mutable:   mutable,
		}
		c.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.ImageInfo), nil
}

// GetImage returns the memoized image for key, or nil.
func (c *ImageCache) GetImage(key core.ImageKey) core.Image {
	c.mu.RLock()
	img := c.images[key]
	c.mu.RUnlock()
	if img != nil {
		c.notify(func(l Listener) { l.CacheHitImage(key) })
	} else {
		c.notify(func(l Listener) { l.CacheMissImage(key) })
	}
	return img
}

// PutImage memoizes a fully-loaded image.  Images that report themselves
// uncacheable are ignored.
func (c *ImageCache) PutImage(key core.ImageKey, img core.Image) {
	if img == nil || !img.Cacheable() {
		return
	}
	c.mu.Lock()
	c.images[key] = img
	c.mu.Unlock()
}

// Invalidate removes the metadata entry and every loaded image for uri.
func (c *ImageCache) Invalidate(uri string) {
	c.mu.Lock()
	delete(c.infos, uri)
	for key := range c.images {
		if key.URI == uri {
			delete(c.images, key)
		}
	}
	c.mu.Unlock()
}

// Clear empties the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.infos = make(map[string]*infoEntry)
	c.images = make(map[core.ImageKey]core.Image)
	c.mu.Unlock()
}

// notify invokes fn on every listener, swallowing panics so a broken
// listener can never fail the cache operation.
func (c *ImageCache) notify(fn func(Listener)) {
	c.lmu.RLock()
	listeners := c.listeners
	c.lmu.RUnlock()
	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Warn("cache.listener.panic", "panic", r)
				}
			}()
			fn(l)
		}()
	}
}

// isMutableURI reports whether the underlying resource can change under the
// cache: local files can, anything with a non-file scheme is treated as
// immutable.
func isMutableURI(uri string) bool {
	i := strings.Index(uri, "://")
	if i < 0 {
		return true
	}
	return strings.EqualFold(uri[:i], "file")
}
