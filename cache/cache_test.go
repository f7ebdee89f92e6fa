package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Skryldev/image-loader/cache"
	"github.com/Skryldev/image-loader/core"
)

// countingProvider counts preloads and can simulate slow resolution.
type countingProvider struct {
	calls int32
	delay time.Duration
}

func (p *countingProvider) PreloadImage(ctx context.Context, uri string, _ core.SessionContext) (*core.ImageInfo, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return core.NewImageInfo(uri, "image/png"), nil
}

type cacheableImage struct {
	info      *core.ImageInfo
	cacheable bool
}

func (i *cacheableImage) Info() *core.ImageInfo { return i.info }
func (i *cacheableImage) Flavor() core.Flavor   { return core.FlavorBuffered }
func (i *cacheableImage) Cacheable() bool       { return i.cacheable }

func TestNeedImageInfo_PreloadsOnce(t *testing.T) {
	c := cache.New()
	p := &countingProvider{}
	ctx := context.Background()

	first, err := c.NeedImageInfo(ctx, "a.png", nil, p)
	if err != nil {
		t.Fatalf("NeedImageInfo: %v", err)
	}
	second, err := c.NeedImageInfo(ctx, "a.png", nil, p)
	if err != nil {
		t.Fatalf("NeedImageInfo: %v", err)
	}
	if first != second {
		t.Error("repeated lookups must return the identical entry")
	}
	if got := atomic.LoadInt32(&p.calls); got != 1 {
		t.Errorf("preload calls: got %d, want 1", got)
	}
}

func TestNeedImageInfo_ConcurrentLookupsCollapse(t *testing.T) {
	c := cache.New()
	p := &countingProvider{delay: 20 * time.Millisecond}
	ctx := context.Background()

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if _, err := c.NeedImageInfo(ctx, "a.png", nil, p); err != nil {
				t.Errorf("NeedImageInfo: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := atomic.LoadInt32(&p.calls); got != 1 {
		t.Errorf("concurrent preload calls: got %d, want 1", got)
	}
}

func TestNeedImageInfo_MutableEntryGoesStale(t *testing.T) {
	c := cache.New()
	var now int64
	c.SetTimestampProvider(core.TimestampFunc(func() int64 { return atomic.LoadInt64(&now) }))
	p := &countingProvider{}
	ctx := context.Background()

	// Schemeless URIs are treated as local files, i.e. mutable.
	if _, err := c.NeedImageInfo(ctx, "local.png", nil, p); err != nil {
		t.Fatal(err)
	}
	if _, err := c.NeedImageInfo(ctx, "local.png", nil, p); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&p.calls); got != 1 {
		t.Fatalf("fresh entry re-preloaded: %d calls", got)
	}

	// The resource changed: the provider clock advances past the entry.
	atomic.AddInt64(&now, 1)
	if _, err := c.NeedImageInfo(ctx, "local.png", nil, p); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&p.calls); got != 2 {
		t.Errorf("stale entry must be re-preloaded: got %d calls, want 2", got)
	}
}

func TestNeedImageInfo_RemoteEntryNeverStale(t *testing.T) {
	c := cache.New()
	var now int64
	c.SetTimestampProvider(core.TimestampFunc(func() int64 { return atomic.LoadInt64(&now) }))
	p := &countingProvider{}
	ctx := context.Background()

	if _, err := c.NeedImageInfo(ctx, "https://example.com/a.png", nil, p); err != nil {
		t.Fatal(err)
	}
	atomic.AddInt64(&now, 100)
	if _, err := c.NeedImageInfo(ctx, "https://example.com/a.png", nil, p); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&p.calls); got != 1 {
		t.Errorf("remote entries must never go stale: got %d calls", got)
	}
}

func TestImageCache_PutGetInvalidate(t *testing.T) {
	c := cache.New()
	info := core.NewImageInfo("a.png", "image/png")
	img := &cacheableImage{info: info, cacheable: true}
	key := core.NewImageKey("a.png", core.FlavorBuffered)

	if got := c.GetImage(key); got != nil {
		t.Fatal("empty cache must miss")
	}
	c.PutImage(key, img)
	if got := c.GetImage(key); got != core.Image(img) {
		t.Error("stored image not returned")
	}

	c.Invalidate("a.png")
	if got := c.GetImage(key); got != nil {
		t.Error("invalidation must drop loaded images for the URI")
	}
}

func TestImageCache_UncacheableImageIgnored(t *testing.T) {
	c := cache.New()
	info := core.NewImageInfo("a.png", "image/png")
	key := core.NewImageKey("a.png", core.FlavorBuffered)

	c.PutImage(key, &cacheableImage{info: info, cacheable: false})
	if got := c.GetImage(key); got != nil {
		t.Error("uncacheable images must not be memoized")
	}
}

func TestStatistics_CountsEvents(t *testing.T) {
	c := cache.New()
	stats := cache.NewStatistics(true)
	c.AddListener(stats)
	p := &countingProvider{}
	ctx := context.Background()

	if _, err := c.NeedImageInfo(ctx, "a.png", nil, p); err != nil {
		t.Fatal(err)
	}
	if _, err := c.NeedImageInfo(ctx, "a.png", nil, p); err != nil {
		t.Fatal(err)
	}
	if got := stats.ImageInfoCacheMisses(); got != 1 {
		t.Errorf("info misses: got %d, want 1", got)
	}
	if got := stats.ImageInfoCacheHits(); got != 1 {
		t.Errorf("info hits: got %d, want 1", got)
	}

	key := core.NewImageKey("a.png", core.FlavorBuffered)
	c.GetImage(key)
	c.PutImage(key, &cacheableImage{info: core.NewImageInfo("a.png", "image/png"), cacheable: true})
	c.GetImage(key)
	if got := stats.ImageCacheMisses(); got != 1 {
		t.Errorf("image misses: got %d, want 1", got)
	}
	if got := stats.ImageCacheHits(); got != 1 {
		t.Errorf("image hits: got %d, want 1", got)
	}
	if got := stats.ImageHitDetail()[key]; got != 1 {
		t.Errorf("per-key hit detail: got %d, want 1", got)
	}

	stats.Reset()
	if stats.ImageInfoCacheHits() != 0 || stats.ImageCacheHits() != 0 {
		t.Error("Reset must zero all counters")
	}
}

// panicListener always panics; the cache must shrug it off.
type panicListener struct{}

func (panicListener) InvalidHit(string)            { panic("boom") }
func (panicListener) CacheHitImageInfo(string)     { panic("boom") }
func (panicListener) CacheMissImageInfo(string)    { panic("boom") }
func (panicListener) CacheHitImage(core.ImageKey)  { panic("boom") }
func (panicListener) CacheMissImage(core.ImageKey) { panic("boom") }

func TestListenerPanicDoesNotFailOperation(t *testing.T) {
	c := cache.New()
	c.AddListener(panicListener{})
	stats := cache.NewStatistics(false)
	c.AddListener(stats)
	p := &countingProvider{}

	info, err := c.NeedImageInfo(context.Background(), "a.png", nil, p)
	if err != nil || info == nil {
		t.Fatalf("operation failed under a panicking listener: %v", err)
	}
	if got := stats.ImageInfoCacheMisses(); got != 1 {
		t.Error("listeners after the panicking one must still be notified")
	}
}

func TestImageCache_Clear(t *testing.T) {
	c := cache.New()
	p := &countingProvider{}
	ctx := context.Background()
	if _, err := c.NeedImageInfo(ctx, "a.png", nil, p); err != nil {
		t.Fatal(err)
	}
	c.Clear()
	if _, err := c.NeedImageInfo(ctx, "a.png", nil, p); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&p.calls); got != 2 {
		t.Errorf("cleared cache must preload again: got %d calls", got)
	}
}
