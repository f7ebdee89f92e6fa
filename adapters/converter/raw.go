// Package converter contains the bundled flavor converters.  Converters are
// the graph edges the pipeline factory routes over; their penalties steer
// path selection toward the cheapest decode route.
package converter

import (
	"context"
	"image"
	"image/png"

	"github.com/Skryldev/image-loader/core"
	apperrors "github.com/Skryldev/image-loader/errors"
	"github.com/Skryldev/image-loader/utils"
)

// RawToBuffered decodes a raw-flavor image of one decodable MIME type into a
// pixel buffer.  One instance per MIME type is registered so formats without
// a pixel decoder never route through it.
type RawToBuffered struct {
	mime string
}

func NewRawToBuffered(mime string) *RawToBuffered { return &RawToBuffered{mime: mime} }

func (c *RawToBuffered) SourceFlavor() core.Flavor       { return core.RawFlavor(c.mime) }
func (c *RawToBuffered) TargetFlavor() core.Flavor       { return core.FlavorBuffered }
func (c *RawToBuffered) ConversionPenalty() core.Penalty { return core.NewPenalty(10) }

func (c *RawToBuffered) Convert(ctx context.Context, img core.Image, hints core.Hints) (core.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, ok := img.(*core.ImageRaw)
	if !ok {
		return nil, apperrors.NewURI(apperrors.CategoryBadInput, "convert.raw-to-buffered", img.Info().URI, apperrors.ErrBadFlavor)
	}
	decoded, _, err := image.Decode(raw.NewReader())
	if err != nil {
		return nil, apperrors.NewURI(apperrors.CategoryPipeline, "convert.raw-to-buffered", img.Info().URI, err)
	}
	return core.NewImageBuffered(img.Info(), decoded), nil
}

// BufferedToRaw re-encodes a pixel buffer as PNG bytes.  This is a lossy
// round trip for non-PNG sources and priced accordingly.
type BufferedToRaw struct{}

func NewBufferedToRaw() *BufferedToRaw { return &BufferedToRaw{} }

func (c *BufferedToRaw) SourceFlavor() core.Flavor       { return core.FlavorBuffered }
func (c *BufferedToRaw) TargetFlavor() core.Flavor       { return core.RawFlavor(utils.MimePNG) }
func (c *BufferedToRaw) ConversionPenalty() core.Penalty { return core.NewPenalty(50) }

func (c *BufferedToRaw) Convert(ctx context.Context, img core.Image, hints core.Hints) (core.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buffered, ok := img.(*core.ImageBuffered)
	if !ok {
		return nil, apperrors.NewURI(apperrors.CategoryBadInput, "convert.buffered-to-raw", img.Info().URI, apperrors.ErrBadFlavor)
	}
	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	if err := png.Encode(buf, buffered.Image()); err != nil {
		return nil, apperrors.NewURI(apperrors.CategoryPipeline, "convert.buffered-to-raw", img.Info().URI, err)
	}
	return core.NewImageRaw(img.Info(), utils.CloneBytes(buf.Bytes()), utils.MimePNG), nil
}
