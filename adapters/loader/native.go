// Package loader contains the bundled loader factories.  A loader performs
// the full decode of a stream once a preloader has identified the format.
package loader

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/biessek/golang-ico" // ICO decoder
	_ "golang.org/x/image/bmp"        // BMP decoder
	_ "golang.org/x/image/tiff"       // TIFF decoder
	_ "golang.org/x/image/webp"       // WebP decoder

	"github.com/Skryldev/image-loader/core"
	apperrors "github.com/Skryldev/image-loader/errors"
	"github.com/Skryldev/image-loader/utils"
)

// nativeMimes are the formats the registered stdlib and x/image decoders
// handle.
var nativeMimes = []string{
	utils.MimePNG,
	utils.MimeJPEG,
	utils.MimeGIF,
	utils.MimeBMP,
	utils.MimeTIFF,
	utils.MimeWebP,
	utils.MimeICO,
}

// NativeFactory produces loaders that decode into an image.Image pixel
// buffer using the pure-Go decoders.
type NativeFactory struct{}

func NewNativeFactory() *NativeFactory { return &NativeFactory{} }

func (f *NativeFactory) SupportedMimeTypes() []string {
	out := make([]string, len(nativeMimes))
	copy(out, nativeMimes)
	return out
}

func (f *NativeFactory) SupportedFlavors(mime string) []core.Flavor {
	for _, m := range nativeMimes {
		if m == mime {
			return []core.Flavor{core.FlavorBuffered}
		}
	}
	return nil
}

func (f *NativeFactory) IsAvailable() bool { return true }

func (f *NativeFactory) IsSupported(info *core.ImageInfo) bool {
	return len(f.SupportedFlavors(info.MimeType)) > 0
}

func (f *NativeFactory) NewLoader(flavor core.Flavor) core.Loader {
	return &nativeLoader{flavor: flavor}
}

type nativeLoader struct {
	flavor core.Flavor
}

func (l *nativeLoader) TargetFlavor() core.Flavor  { return l.flavor }
func (l *nativeLoader) UsagePenalty() core.Penalty { return core.ZeroPenalty }

func (l *nativeLoader) LoadImage(ctx context.Context, info *core.ImageInfo, hints core.Hints, session core.SessionContext) (core.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// A preloader may have fully decoded the image while sniffing.
	if orig := info.OriginalImage(); orig != nil && orig.Flavor().Satisfies(l.flavor) {
		return orig, nil
	}
	src, err := session.NeedSource(info.URI)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(src.Reader())
	if err != nil {
		return nil, apperrors.NewURI(apperrors.CategoryIO, "loader.native", info.URI, err)
	}
	return core.NewImageBuffered(info, img), nil
}
