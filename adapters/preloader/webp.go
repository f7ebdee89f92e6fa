package preloader

import (
	"context"
	"image"

	"golang.org/x/image/webp"

	"github.com/Skryldev/image-loader/core"
	"github.com/Skryldev/image-loader/utils"
)

// WebP sniffs RIFF/WEBP streams.
type WebP struct {
	Peek int
}

func NewWebP() *WebP { return &WebP{} }

func (p *WebP) Priority() int { return core.DefaultPreloaderPriority }

func (p *WebP) PreloadImage(ctx context.Context, uri string, src *core.Source, imageContext core.ImageContext) (*core.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decodeConfigPreload(src, uri, utils.MimeWebP, p.Peek, imageContext, func(header []byte) (image.Config, error) {
		return webp.DecodeConfig(headerReader(header))
	})
}
