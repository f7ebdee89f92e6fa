// Package imageloader loads images of arbitrary formats into the in-memory
// representation a caller asks for, routing each load through the cheapest
// combination of registered loaders and converters.
package imageloader

import (
	"context"

	"github.com/gammazero/workerpool"

	"github.com/Skryldev/image-loader/adapters/converter"
	"github.com/Skryldev/image-loader/adapters/loader"
	"github.com/Skryldev/image-loader/adapters/preloader"
	"github.com/Skryldev/image-loader/cache"
	"github.com/Skryldev/image-loader/config"
	"github.com/Skryldev/image-loader/core"
	apperrors "github.com/Skryldev/image-loader/errors"
	"github.com/Skryldev/image-loader/pipeline"
	"github.com/Skryldev/image-loader/utils"
)

// Re-export the bundled flavors for convenience.
var (
	FlavorBuffered = core.FlavorBuffered
	FlavorGray     = core.FlavorGray
	FlavorRaw      = core.FlavorRaw
	FlavorVips     = core.FlavorVips
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// decodableMimes are the formats the pure-Go decoders can turn into pixels.
var decodableMimes = []string{
	utils.MimePNG,
	utils.MimeJPEG,
	utils.MimeGIF,
	utils.MimeBMP,
	utils.MimeTIFF,
	utils.MimeWebP,
	utils.MimeICO,
}

// ImageManager is the primary entry point.  It owns the implementation
// registry, the session-spanning cache, and the pipeline factory.  Safe for
// concurrent use across sessions.
type ImageManager struct {
	cfg      config.Config
	registry *core.Registry
	cache    *cache.ImageCache
	factory  *pipeline.Factory
	logger   core.Logger
}

// imageContext adapts the configuration to core.ImageContext for preloading.
type imageContext struct {
	resolution float64
}

func (c imageContext) SourceResolution() float64 { return c.resolution }

// New creates a fully wired ImageManager with the bundled preloaders,
// loaders, and converters registered.  Pass a custom config.Config to
// override defaults.
func New(cfg config.Config) (*ImageManager, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	registry := core.NewRegistry()
	m := &ImageManager{
		cfg:      cfg,
		registry: registry,
		cache:    cache.New(),
		factory:  pipeline.NewFactory(registry, nil),
		logger:   core.NopLogger{},
	}

	peek := cfg.HeaderPeekBytes
	registry.RegisterPreloader(&preloader.PNG{Peek: peek})
	registry.RegisterPreloader(&preloader.JPEG{Peek: peek})
	registry.RegisterPreloader(&preloader.GIF{Peek: peek})
	registry.RegisterPreloader(&preloader.BMP{Peek: peek})
	registry.RegisterPreloader(&preloader.TIFF{Peek: peek})
	registry.RegisterPreloader(&preloader.WebP{Peek: peek})
	registry.RegisterPreloader(&preloader.ICO{Peek: peek})
	registry.RegisterPreloader(&preloader.EPS{Peek: peek})

	registry.RegisterLoaderFactory(loader.NewNativeFactory())
	registry.RegisterLoaderFactory(loader.NewRawFactory(cfg.MaxRawBytes))

	for _, mime := range decodableMimes {
		registry.RegisterConverter(converter.NewRawToBuffered(mime))
	}
	registry.RegisterConverter(converter.NewBufferedToRaw())
	registry.RegisterConverter(converter.NewBildGrayscale())
	registry.RegisterConverter(converter.NewImagingGrayscale())

	return m, nil
}

// NewWithDefaults creates an ImageManager with the default configuration.
func NewWithDefaults() *ImageManager {
	m, err := New(config.Default())
	if err != nil {
		panic(err) // defaults always validate
	}
	return m
}

// SetLogger attaches a structured logger to the manager and its subsystems.
func (m *ImageManager) SetLogger(l core.Logger) {
	if l == nil {
		l = core.NopLogger{}
	}
	m.logger = l
	m.registry.SetLogger(l)
	m.cache.SetLogger(l)
	m.factory.SetLogger(l)
}

// Registry exposes the implementation registry for custom registrations and
// penalty overrides.
func (m *ImageManager) Registry() *core.Registry { return m.registry }

// Cache exposes the session-spanning cache for listener registration and
// invalidation.
func (m *ImageManager) Cache() *cache.ImageCache { return m.cache }

// PipelineFactory exposes the pipeline factory for direct candidate queries.
func (m *ImageManager) PipelineFactory() *pipeline.Factory { return m.factory }

// NewSession creates a DefaultSessionContext using the manager's configured
// resolutions.
func (m *ImageManager) NewSession() *DefaultSessionContext {
	return NewSessionContext(m.cfg.SourceResolution, m.cfg.TargetResolution)
}

// GetImageInfo returns the intrinsic metadata for uri, consulting the cache
// first when enabled.
func (m *ImageManager) GetImageInfo(ctx context.Context, uri string, session core.SessionContext) (*core.ImageInfo, error) {
	if m.cfg.CacheEnabled {
		return m.cache.NeedImageInfo(ctx, uri, session, m)
	}
	return m.PreloadImage(ctx, uri, session)
}

// PreloadImage resolves uri and asks the registered preloaders, in priority
// order, to identify the stream.  The source stays with the session for a
// later full load.  Bypasses the cache; most callers want GetImageInfo.
func (m *ImageManager) PreloadImage(ctx context.Context, uri string, session core.SessionContext) (*core.ImageInfo, error) {
	src, err := session.NeedSource(uri)
	if err != nil {
		return nil, err
	}
	for _, p := range m.registry.Preloaders() {
		info, err := p.PreloadImage(ctx, uri, src, imageContext{m.cfg.SourceResolution})
		if err != nil {
			utils.CloseQuietly(src)
			session.ReturnSource(uri, nil)
			return nil, err
		}
		if info == nil {
			continue
		}
		m.logger.Debug("preload.hit", "uri", uri, "mime", info.MimeType,
			"preloader", core.ImplementationName(p))
		session.ReturnSource(uri, src)
		return info, nil
	}
	utils.CloseQuietly(src)
	session.ReturnSource(uri, nil)
	return nil, apperrors.NewURI(apperrors.CategoryUnsupported, "manager.preload", uri, apperrors.ErrNoPreloader)
}

// GetImage loads the image described by info in the requested flavor.
func (m *ImageManager) GetImage(ctx context.Context, info *core.ImageInfo, flavor core.Flavor, hints core.Hints, session core.SessionContext) (core.Image, error) {
	return m.GetImageAny(ctx, info, []core.Flavor{flavor}, hints, session)
}

// GetImageAny loads the image described by info in whichever of the accepted
// flavors is cheapest to produce.  Flavors earlier in the slice win penalty
// ties.
func (m *ImageManager) GetImageAny(ctx context.Context, info *core.ImageInfo, flavors []core.Flavor, hints core.Hints, session core.SessionContext) (core.Image, error) {
	if len(flavors) == 0 {
		return nil, apperrors.NewURI(apperrors.CategoryBadInput, "manager.get", info.URI, apperrors.ErrBadFlavor)
	}
	if m.cfg.CacheEnabled {
		for _, flavor := range flavors {
			if img := m.cache.GetImage(core.NewImageKey(info.URI, flavor)); img != nil {
				return img, nil
			}
		}
	}
	hints = m.prepareHints(hints, session)
	candidates := m.factory.DetermineCandidatePipelines(info, flavors)
	pipe := m.choosePipeline(candidates)
	if pipe == nil {
		return nil, apperrors.NewURI(apperrors.CategoryUnsupported, "manager.get", info.URI, apperrors.ErrNoPipeline)
	}
	img, err := pipe.Execute(ctx, info, hints, session)
	if err != nil {
		return nil, err
	}
	m.cacheImage(img)
	return img, nil
}

// GetImageFromURI is the one-call path: preload then load in the requested
// flavor.
func (m *ImageManager) GetImageFromURI(ctx context.Context, uri string, flavor core.Flavor, session core.SessionContext) (core.Image, error) {
	info, err := m.GetImageInfo(ctx, uri, session)
	if err != nil {
		return nil, err
	}
	return m.GetImage(ctx, info, flavor, nil, session)
}

// ConvertImage transforms an already-loaded image into one of the accepted
// flavors.  An image already satisfying one of them is returned as is.
func (m *ImageManager) ConvertImage(ctx context.Context, img core.Image, flavors []core.Flavor, hints core.Hints) (core.Image, error) {
	if len(flavors) == 0 {
		return nil, apperrors.NewURI(apperrors.CategoryBadInput, "manager.convert", img.Info().URI, apperrors.ErrBadFlavor)
	}
	for _, flavor := range flavors {
		if img.Flavor().Satisfies(flavor) {
			return img, nil
		}
	}
	candidates := m.factory.DetermineCandidatePipelinesFromImage(img, flavors)
	pipe := m.choosePipeline(candidates)
	if pipe == nil {
		return nil, apperrors.NewURI(apperrors.CategoryUnsupported, "manager.convert", img.Info().URI, apperrors.ErrNoPipeline)
	}
	out, err := pipe.ExecuteFromImage(ctx, img, hints)
	if err != nil {
		return nil, err
	}
	m.cacheImage(out)
	return out, nil
}

// BatchResult is one outcome of PreloadBatch, index-aligned with its input.
type BatchResult struct {
	URI  string
	Info *core.ImageInfo
	Err  error
}

// PreloadBatch warms the metadata cache for many URIs concurrently using a
// bounded worker pool.
func (m *ImageManager) PreloadBatch(ctx context.Context, uris []string, session core.SessionContext) []BatchResult {
	results := make([]BatchResult, len(uris))
	wp := workerpool.New(m.cfg.BatchWorkers)
	for i, uri := range uris {
		i, uri := i, uri
		wp.Submit(func() {
			info, err := m.GetImageInfo(ctx, uri, session)
			results[i] = BatchResult{URI: uri, Info: info, Err: err}
		})
	}
	wp.StopWait()
	return results
}

// choosePipeline picks the winner among index-aligned candidates: lowest
// total penalty, scanning from the back so that on ties the pipeline for the
// earliest requested flavor wins.  Ineligible (infinite) candidates never
// win.
func (m *ImageManager) choosePipeline(candidates []*pipeline.Pipeline) *pipeline.Pipeline {
	var chosen *pipeline.Pipeline
	lowest := core.Infinite
	for i := len(candidates) - 1; i >= 0; i-- {
		p := candidates[i]
		if p == nil {
			continue
		}
		penalty := p.ConversionPenalty(m.registry)
		if penalty.IsInfinite() {
			continue
		}
		if penalty.Value() <= lowest {
			lowest = penalty.Value()
			chosen = p
		}
	}
	return chosen
}

// cacheImage memoizes a loaded image under its actual flavor.
func (m *ImageManager) cacheImage(img core.Image) {
	if !m.cfg.CacheEnabled || img == nil || !img.Cacheable() {
		return
	}
	m.cache.PutImage(core.NewImageKey(img.Info().URI, img.Flavor()), img)
}

// prepareHints fills in the resolution hints loaders and converters consult,
// leaving caller-provided values untouched.
func (m *ImageManager) prepareHints(hints core.Hints, session core.SessionContext) core.Hints {
	out := make(core.Hints, len(hints)+2)
	for k, v := range hints {
		out[k] = v
	}
	if _, ok := out[core.HintSourceResolution]; !ok {
		out[core.HintSourceResolution] = session.SourceResolution()
	}
	if _, ok := out[core.HintTargetResolution]; !ok {
		out[core.HintTargetResolution] = session.TargetResolution()
	}
	return out
}

var _ cache.InfoProvider = (*ImageManager)(nil)
