package converter

import (
	"context"
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"

	"github.com/Skryldev/image-loader/core"
	apperrors "github.com/Skryldev/image-loader/errors"
)

// BildGrayscale converts a pixel buffer to grayscale using bild.  It is the
// cheaper of the two bundled grayscale converters and wins path selection
// unless an additional penalty reorders them.
type BildGrayscale struct{}

func NewBildGrayscale() *BildGrayscale { return &BildGrayscale{} }

func (c *BildGrayscale) SourceFlavor() core.Flavor       { return core.FlavorBuffered }
func (c *BildGrayscale) TargetFlavor() core.Flavor       { return core.FlavorGray }
func (c *BildGrayscale) ConversionPenalty() core.Penalty { return core.NewPenalty(15) }

func (c *BildGrayscale) Convert(ctx context.Context, img core.Image, hints core.Hints) (core.Image, error) {
	buffered, err := bufferedInput(ctx, img, "convert.gray.bild")
	if err != nil {
		return nil, err
	}
	return core.NewImageGray(img.Info(), effect.Grayscale(buffered)), nil
}

// ImagingGrayscale converts a pixel buffer to grayscale using imaging.
type ImagingGrayscale struct{}

func NewImagingGrayscale() *ImagingGrayscale { return &ImagingGrayscale{} }

func (c *ImagingGrayscale) SourceFlavor() core.Flavor       { return core.FlavorBuffered }
func (c *ImagingGrayscale) TargetFlavor() core.Flavor       { return core.FlavorGray }
func (c *ImagingGrayscale) ConversionPenalty() core.Penalty { return core.NewPenalty(20) }

func (c *ImagingGrayscale) Convert(ctx context.Context, img core.Image, hints core.Hints) (core.Image, error) {
	buffered, err := bufferedInput(ctx, img, "convert.gray.imaging")
	if err != nil {
		return nil, err
	}
	return core.NewImageGray(img.Info(), imaging.Grayscale(buffered)), nil
}

func bufferedInput(ctx context.Context, img core.Image, op string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buffered, ok := img.(*core.ImageBuffered)
	if !ok || !img.Flavor().Satisfies(core.FlavorBuffered) {
		return nil, apperrors.NewURI(apperrors.CategoryBadInput, op, img.Info().URI, apperrors.ErrBadFlavor)
	}
	return buffered.Image(), nil
}
