//go:build cgo

// Package vips plugs libvips in as an alternative decode path.  It is opt-in
// because it needs cgo and a process-wide libvips startup: start a Backend
// and wire it in with Register(manager.Registry(), backend).
package vips

import (
	"bytes"
	"context"
	"image/png"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/image-loader/core"
	apperrors "github.com/Skryldev/image-loader/errors"
	"github.com/Skryldev/image-loader/utils"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	MaxCacheSize int
	MaxWorkers   int
	ReportLeaks  bool
}

// Backend owns the libvips runtime.  Safe for concurrent use across
// goroutines.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
		CollectStats:     true,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// vipsMimes are the formats routed through libvips.
var vipsMimes = []string{utils.MimeJPEG, utils.MimePNG, utils.MimeWebP}

// Register wires the libvips decode path into a registry: a loader factory
// producing the vips flavor plus converters bridging it to the buffered and
// raw flavors.  The backend must stay alive as long as the registry is used.
func Register(registry *core.Registry, backend *Backend) {
	registry.RegisterLoaderFactory(NewLoaderFactory(backend))
	registry.RegisterConverter(NewToBuffered())
	for _, mime := range vipsMimes {
		registry.RegisterConverter(NewFromRaw(mime))
	}
}

func supportsMime(mime string) bool {
	for _, m := range vipsMimes {
		if m == mime {
			return true
		}
	}
	return false
}

// Image wraps a *govips.ImageRef in the vips flavor.  It holds native memory
// outside the Go heap, so the cache never memoizes it.
type Image struct {
	info *core.ImageInfo
	ref  *govips.ImageRef
}

func newImage(info *core.ImageInfo, ref *govips.ImageRef) *Image {
	img := &Image{info: info, ref: ref}
	runtime.SetFinalizer(ref, func(r *govips.ImageRef) { r.Close() })
	return img
}

func (v *Image) Info() *core.ImageInfo { return v.info }
func (v *Image) Flavor() core.Flavor   { return core.FlavorVips }
func (v *Image) Cacheable() bool       { return false }
func (v *Image) Ref() *govips.ImageRef { return v.ref }
func (v *Image) Close()                { v.ref.Close() }

// LoaderFactory decodes directly into the vips flavor.
type LoaderFactory struct {
	backend *Backend
}

func NewLoaderFactory(backend *Backend) *LoaderFactory {
	return &LoaderFactory{backend: backend}
}

func (f *LoaderFactory) SupportedMimeTypes() []string {
	out := make([]string, len(vipsMimes))
	copy(out, vipsMimes)
	return out
}

func (f *LoaderFactory) SupportedFlavors(mime string) []core.Flavor {
	if !supportsMime(mime) {
		return nil
	}
	return []core.Flavor{core.FlavorVips}
}

func (f *LoaderFactory) IsAvailable() bool { return f.backend != nil }

func (f *LoaderFactory) IsSupported(info *core.ImageInfo) bool {
	return supportsMime(info.MimeType)
}

func (f *LoaderFactory) NewLoader(flavor core.Flavor) core.Loader {
	return &vipsLoader{flavor: flavor}
}

type vipsLoader struct {
	flavor core.Flavor
}

func (l *vipsLoader) TargetFlavor() core.Flavor  { return l.flavor }
func (l *vipsLoader) UsagePenalty() core.Penalty { return core.NewPenalty(20) }

func (l *vipsLoader) LoadImage(ctx context.Context, info *core.ImageInfo, hints core.Hints, session core.SessionContext) (core.Image, error) {
	src, err := session.NeedSource(info.URI)
	if err != nil {
		return nil, err
	}
	buf, err := utils.DrainReader(ctx, src.Reader(), 32*1024)
	if err != nil {
		return nil, apperrors.NewURI(apperrors.CategoryIO, "loader.vips", info.URI, err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)
	ref, err := govips.NewImageFromBuffer(raw)
	if err != nil {
		return nil, apperrors.NewURI(apperrors.CategoryIO, "loader.vips", info.URI, err)
	}
	return newImage(info, ref), nil
}

// ToBuffered converts a vips image into a plain pixel buffer by exporting to
// PNG and decoding it back.  Expensive; priced above the pure-Go routes.
type ToBuffered struct{}

func NewToBuffered() *ToBuffered { return &ToBuffered{} }

func (c *ToBuffered) SourceFlavor() core.Flavor       { return core.FlavorVips }
func (c *ToBuffered) TargetFlavor() core.Flavor       { return core.FlavorBuffered }
func (c *ToBuffered) ConversionPenalty() core.Penalty { return core.NewPenalty(40) }

func (c *ToBuffered) Convert(ctx context.Context, img core.Image, hints core.Hints) (core.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vi, ok := img.(*Image)
	if !ok {
		return nil, apperrors.NewURI(apperrors.CategoryBadInput, "convert.vips-to-buffered", img.Info().URI, apperrors.ErrBadFlavor)
	}
	data, _, err := vi.ref.ExportPng(govips.NewPngExportParams())
	if err != nil {
		return nil, apperrors.NewURI(apperrors.CategoryPipeline, "convert.vips-to-buffered", img.Info().URI, err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewURI(apperrors.CategoryPipeline, "convert.vips-to-buffered", img.Info().URI, err)
	}
	return core.NewImageBuffered(img.Info(), decoded), nil
}

// FromRaw converts encoded bytes of one MIME type into the vips flavor
// without an intermediate pixel buffer.
type FromRaw struct {
	mime string
}

func NewFromRaw(mime string) *FromRaw { return &FromRaw{mime: mime} }

func (c *FromRaw) SourceFlavor() core.Flavor       { return core.RawFlavor(c.mime) }
func (c *FromRaw) TargetFlavor() core.Flavor       { return core.FlavorVips }
func (c *FromRaw) ConversionPenalty() core.Penalty { return core.NewPenalty(25) }

func (c *FromRaw) Convert(ctx context.Context, img core.Image, hints core.Hints) (core.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, ok := img.(*core.ImageRaw)
	if !ok {
		return nil, apperrors.NewURI(apperrors.CategoryBadInput, "convert.raw-to-vips", img.Info().URI, apperrors.ErrBadFlavor)
	}
	ref, err := govips.NewImageFromBuffer(raw.Data())
	if err != nil {
		return nil, apperrors.NewURI(apperrors.CategoryPipeline, "convert.raw-to-vips", img.Info().URI, err)
	}
	return newImage(img.Info(), ref), nil
}
