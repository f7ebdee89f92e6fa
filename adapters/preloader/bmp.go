package preloader

import (
	"context"
	"image"

	"golang.org/x/image/bmp"

	"github.com/Skryldev/image-loader/core"
	"github.com/Skryldev/image-loader/utils"
)

// BMP sniffs Windows bitmap streams.
type BMP struct {
	Peek int
}

func NewBMP() *BMP { return &BMP{} }

func (p *BMP) Priority() int { return core.DefaultPreloaderPriority }

func (p *BMP) PreloadImage(ctx context.Context, uri string, src *core.Source, imageContext core.ImageContext) (*core.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decodeConfigPreload(src, uri, utils.MimeBMP, p.Peek, imageContext, func(header []byte) (image.Config, error) {
		return bmp.DecodeConfig(headerReader(header))
	})
}
