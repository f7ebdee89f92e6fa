package preloader

import (
	"context"
	"image"
	"image/gif"

	"github.com/Skryldev/image-loader/core"
	"github.com/Skryldev/image-loader/utils"
)

// GIF sniffs GIF87a/GIF89a streams.  GIF carries no resolution metadata, so
// the context's source resolution applies.
type GIF struct {
	Peek int
}

func NewGIF() *GIF { return &GIF{} }

func (p *GIF) Priority() int { return core.DefaultPreloaderPriority }

func (p *GIF) PreloadImage(ctx context.Context, uri string, src *core.Source, imageContext core.ImageContext) (*core.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decodeConfigPreload(src, uri, utils.MimeGIF, p.Peek, imageContext, func(header []byte) (image.Config, error) {
		return gif.DecodeConfig(headerReader(header))
	})
}
