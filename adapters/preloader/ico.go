package preloader

import (
	"context"
	"image"

	ico "github.com/biessek/golang-ico"

	"github.com/Skryldev/image-loader/core"
	"github.com/Skryldev/image-loader/utils"
)

// ICO sniffs Windows icon streams.  The ICO magic is weak (four low bytes),
// so this preloader runs after the stronger-magic formats.
type ICO struct {
	Peek int
}

func NewICO() *ICO { return &ICO{} }

// Priority is above the default so stronger signatures get checked first.
func (p *ICO) Priority() int { return core.DefaultPreloaderPriority + 100 }

func (p *ICO) PreloadImage(ctx context.Context, uri string, src *core.Source, imageContext core.ImageContext) (*core.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decodeConfigPreload(src, uri, utils.MimeICO, p.Peek, imageContext, func(header []byte) (image.Config, error) {
		return ico.DecodeConfig(headerReader(header))
	})
}
