package core

import (
	"bytes"
	"image"
	"io"
)

// Flavor identifies a concrete in-memory representation of image data.  The
// optional Mime field refines a flavor to a particular source format, e.g.
// the raw-bytes flavor of a PNG versus that of a TIFF.
type Flavor struct {
	Name string
	Mime string
}

// Well-known flavors produced by the bundled adapters.
var (
	// FlavorBuffered is a fully decoded image.Image pixel buffer.
	FlavorBuffered = Flavor{Name: "buffered"}
	// FlavorGray is a decoded grayscale pixel buffer.
	FlavorGray = Flavor{Name: "gray"}
	// FlavorRaw is the undecoded, encoded byte stream of an image.
	FlavorRaw = Flavor{Name: "raw"}
	// FlavorVips is a libvips image reference (see adapters/vips).
	FlavorVips = Flavor{Name: "vips"}
)

// RawFlavor returns the raw flavor refined to a MIME type.
func RawFlavor(mime string) Flavor {
	return Flavor{Name: FlavorRaw.Name, Mime: mime}
}

// String returns the canonical label used for graph vertices, cache keys,
// and logging.
func (f Flavor) String() string {
	if f.Mime != "" {
		return f.Mime + ";" + f.Name
	}
	return f.Name
}

// IsEmpty reports whether f is the zero flavor.
func (f Flavor) IsEmpty() bool { return f.Name == "" }

// Satisfies reports whether an image in flavor f can be used where target is
// requested.  A MIME-refined flavor satisfies its unrefined parent, but not
// the other way around.
func (f Flavor) Satisfies(target Flavor) bool {
	if f.Name != target.Name {
		return false
	}
	if target.Mime == "" {
		return true
	}
	return f.Mime == target.Mime
}

// MptPerInch is the number of millipoints per inch.
const MptPerInch = 72000

// Size holds the intrinsic dimensions of an image in pixels and millipoints
// together with its resolution.  Pixel and millipoint values are kept
// consistent through CalcSizeFromPixels.
type Size struct {
	WidthPx  int
	HeightPx int

	DpiHorizontal float64
	DpiVertical   float64

	WidthMpt  int
	HeightMpt int
}

// NewSize returns a Size for the given pixel dimensions at the given
// resolution with the millipoint dimensions derived.
func NewSize(widthPx, heightPx int, dpi float64) *Size {
	s := &Size{WidthPx: widthPx, HeightPx: heightPx}
	s.SetResolution(dpi, dpi)
	s.CalcSizeFromPixels()
	return s
}

// SetResolution sets the horizontal and vertical resolution in dpi.
func (s *Size) SetResolution(horizontal, vertical float64) {
	if horizontal <= 0 {
		horizontal = 72
	}
	if vertical <= 0 {
		vertical = horizontal
	}
	s.DpiHorizontal = horizontal
	s.DpiVertical = vertical
}

// CalcSizeFromPixels derives the millipoint dimensions from the pixel
// dimensions and resolution: mpt = px * 72000 / dpi, rounded half up.
func (s *Size) CalcSizeFromPixels() {
	s.WidthMpt = int(float64(s.WidthPx)*MptPerInch/s.DpiHorizontal + 0.5)
	s.HeightMpt = int(float64(s.HeightPx)*MptPerInch/s.DpiVertical + 0.5)
}

// CalcPixelsFromSize derives the pixel dimensions from the millipoint
// dimensions and resolution.
func (s *Size) CalcPixelsFromSize() {
	s.WidthPx = int(float64(s.WidthMpt)*s.DpiHorizontal/MptPerInch + 0.5)
	s.HeightPx = int(float64(s.HeightMpt)*s.DpiVertical/MptPerInch + 0.5)
}

// Custom-object keys used by the bundled implementations.
const (
	// CustomOriginalImage holds an Image a preloader fully decoded as a
	// side effect of sniffing, so a later loader can reuse it.
	CustomOriginalImage = "originalImage"
)

// ImageInfo carries the intrinsic metadata of one image, created once per
// URI by a preloader.  It is immutable after creation except for the custom
// object bag, which must not gain entries after the first full load.
type ImageInfo struct {
	URI      string
	MimeType string
	Size     *Size

	custom map[string]any
}

// NewImageInfo creates an ImageInfo for the given URI and MIME type.
func NewImageInfo(uri, mimeType string) *ImageInfo {
	return &ImageInfo{URI: uri, MimeType: mimeType}
}

// SetCustom attaches a format-specific side-channel object for later reuse
// by a loader.  Must only be called during preloading.
func (i *ImageInfo) SetCustom(key string, value any) {
	if i.custom == nil {
		i.custom = make(map[string]any, 2)
	}
	i.custom[key] = value
}

// Custom returns the custom object stored under key, or nil.
func (i *ImageInfo) Custom(key string) any {
	return i.custom[key]
}

// OriginalImage returns the image a preloader attached during sniffing, if
// any.
func (i *ImageInfo) OriginalImage() Image {
	img, _ := i.custom[CustomOriginalImage].(Image)
	return img
}

func (i *ImageInfo) String() string {
	return i.URI + " (" + i.MimeType + ")"
}

// ImageKey identifies a fully-loaded image in the cache by URI and flavor.
type ImageKey struct {
	URI    string
	Flavor string
}

// NewImageKey builds the cache key for an image at the given flavor.
func NewImageKey(uri string, flavor Flavor) ImageKey {
	return ImageKey{URI: uri, Flavor: flavor.String()}
}

// Hints carries optional directives for loaders and converters.
type Hints map[string]any

// Well-known hint keys.
const (
	HintSourceResolution = "source-resolution"
	HintTargetResolution = "target-resolution"
)

// Image is a fully-loaded image in a particular flavor.
type Image interface {
	// Info returns the metadata the image was loaded from.
	Info() *ImageInfo
	// Flavor identifies the in-memory representation.
	Flavor() Flavor
	// Cacheable reports whether the image may be memoized by the cache.
	Cacheable() bool
}

// ImageBuffered is an Image backed by a decoded image.Image pixel buffer.
type ImageBuffered struct {
	info   *ImageInfo
	img    image.Image
	flavor Flavor
}

// NewImageBuffered wraps a decoded pixel buffer.
func NewImageBuffered(info *ImageInfo, img image.Image) *ImageBuffered {
	return &ImageBuffered{info: info, img: img, flavor: FlavorBuffered}
}

// NewImageGray wraps a decoded grayscale pixel buffer.
func NewImageGray(info *ImageInfo, img image.Image) *ImageBuffered {
	return &ImageBuffered{info: info, img: img, flavor: FlavorGray}
}

func (b *ImageBuffered) Info() *ImageInfo   { return b.info }
func (b *ImageBuffered) Flavor() Flavor     { return b.flavor }
func (b *ImageBuffered) Cacheable() bool    { return true }
func (b *ImageBuffered) Image() image.Image { return b.img }

// ImageRaw is an Image holding the undecoded, encoded bytes.
type ImageRaw struct {
	info *ImageInfo
	data []byte
	mime string
}

// NewImageRaw wraps encoded bytes in the raw flavor refined by mime.
func NewImageRaw(info *ImageInfo, data []byte, mime string) *ImageRaw {
	return &ImageRaw{info: info, data: data, mime: mime}
}

func (r *ImageRaw) Info() *ImageInfo { return r.info }
func (r *ImageRaw) Flavor() Flavor   { return RawFlavor(r.mime) }
func (r *ImageRaw) Cacheable() bool  { return true }
func (r *ImageRaw) MimeType() string { return r.mime }

// Data returns the encoded bytes.  Callers must not modify the slice.
func (r *ImageRaw) Data() []byte { return r.data }

// NewReader returns a fresh reader over the encoded bytes.
func (r *ImageRaw) NewReader() io.Reader { return bytes.NewReader(r.data) }
