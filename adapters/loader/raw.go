package loader

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Skryldev/image-loader/core"
	apperrors "github.com/Skryldev/image-loader/errors"
	"github.com/Skryldev/image-loader/utils"
)

// rawMimes are the formats handed through undecoded.  EPS in particular has
// no pixel decoder, so the raw flavor is its only exit.
var rawMimes = []string{
	utils.MimePNG,
	utils.MimeJPEG,
	utils.MimeGIF,
	utils.MimeBMP,
	utils.MimeTIFF,
	utils.MimeWebP,
	utils.MimeICO,
	utils.MimeEPS,
}

// RawFactory produces loaders that read the encoded byte stream without
// decoding it, yielding raw-flavor images refined by MIME type.  maxBytes
// caps how much a single load may buffer; zero disables the cap.
type RawFactory struct {
	maxBytes int64
}

func NewRawFactory(maxBytes int64) *RawFactory { return &RawFactory{maxBytes: maxBytes} }

func (f *RawFactory) SupportedMimeTypes() []string {
	out := make([]string, len(rawMimes))
	copy(out, rawMimes)
	return out
}

func (f *RawFactory) SupportedFlavors(mime string) []core.Flavor {
	for _, m := range rawMimes {
		if m == mime {
			return []core.Flavor{core.RawFlavor(mime)}
		}
	}
	return nil
}

func (f *RawFactory) IsAvailable() bool { return true }

func (f *RawFactory) IsSupported(info *core.ImageInfo) bool {
	return len(f.SupportedFlavors(info.MimeType)) > 0
}

func (f *RawFactory) NewLoader(flavor core.Flavor) core.Loader {
	return &rawLoader{flavor: flavor, maxBytes: f.maxBytes}
}

type rawLoader struct {
	flavor   core.Flavor
	maxBytes int64
}

func (l *rawLoader) TargetFlavor() core.Flavor  { return l.flavor }
func (l *rawLoader) UsagePenalty() core.Penalty { return core.ZeroPenalty }

func (l *rawLoader) LoadImage(ctx context.Context, info *core.ImageInfo, hints core.Hints, session core.SessionContext) (core.Image, error) {
	src, err := session.NeedSource(info.URI)
	if err != nil {
		return nil, err
	}
	var r io.Reader = src.Reader()
	if l.maxBytes > 0 {
		// One byte of headroom so a stream of exactly maxBytes still loads.
		r = &utils.LimitedReader{R: r, Max: l.maxBytes + 1}
	}
	buf, err := utils.DrainReader(ctx, r, 0)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, apperrors.NewURI(apperrors.CategoryBadInput, "loader.raw", info.URI,
				fmt.Errorf("stream exceeds %d byte cap", l.maxBytes))
		}
		return nil, apperrors.NewURI(apperrors.CategoryIO, "loader.raw", info.URI, err)
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)
	if len(data) == 0 {
		return nil, apperrors.NewURI(apperrors.CategoryBadInput, "loader.raw", info.URI, apperrors.ErrEmptyInput)
	}
	return core.NewImageRaw(info, data, info.MimeType), nil
}
