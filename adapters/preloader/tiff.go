package preloader

import (
	"context"
	"image"

	"golang.org/x/image/tiff"

	"github.com/Skryldev/image-loader/core"
	"github.com/Skryldev/image-loader/utils"
)

// TIFF sniffs TIFF streams.  Files that place the IFD past the header window
// need a larger Peek than the default.
type TIFF struct {
	Peek int
}

func NewTIFF() *TIFF { return &TIFF{} }

func (p *TIFF) Priority() int { return core.DefaultPreloaderPriority }

func (p *TIFF) PreloadImage(ctx context.Context, uri string, src *core.Source, imageContext core.ImageContext) (*core.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decodeConfigPreload(src, uri, utils.MimeTIFF, p.Peek, imageContext, func(header []byte) (image.Config, error) {
		return tiff.DecodeConfig(headerReader(header))
	})
}
