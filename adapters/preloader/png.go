package preloader

import (
	"context"
	"encoding/binary"
	"image/png"

	"github.com/Skryldev/image-loader/core"
	apperrors "github.com/Skryldev/image-loader/errors"
	"github.com/Skryldev/image-loader/utils"
)

// PNG sniffs PNG streams.  Besides the IHDR dimensions it reads the optional
// pHYs chunk to recover the intrinsic resolution.
type PNG struct {
	Peek int
}

func NewPNG() *PNG { return &PNG{} }

func (p *PNG) Priority() int { return core.DefaultPreloaderPriority }

func (p *PNG) PreloadImage(ctx context.Context, uri string, src *core.Source, imageContext core.ImageContext) (*core.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	header, ok, err := sniff(src, utils.MimePNG, p.Peek)
	if err != nil || !ok {
		return nil, err
	}
	cfg, err := png.DecodeConfig(headerReader(header))
	if err != nil {
		return nil, apperrors.NewURI(apperrors.CategoryUnsupported, "preload."+utils.MimePNG, uri, err)
	}
	resolution := pngResolution(header, imageContext.SourceResolution())
	return configInfo(uri, utils.MimePNG, cfg, resolution), nil
}

// pngResolution scans the chunk list in the header window for a pHYs chunk
// and converts pixels-per-metre to dpi.  Falls back to the context's source
// resolution.
func pngResolution(header []byte, fallback float64) float64 {
	const sigLen = 8
	pos := sigLen
	for pos+8 <= len(header) {
		length := int(binary.BigEndian.Uint32(header[pos : pos+4]))
		chunkType := string(header[pos+4 : pos+8])
		dataStart := pos + 8
		if chunkType == "IDAT" || chunkType == "IEND" {
			break
		}
		if chunkType == "pHYs" && dataStart+9 <= len(header) {
			ppuX := binary.BigEndian.Uint32(header[dataStart : dataStart+4])
			unit := header[dataStart+8]
			if unit == 1 && ppuX > 0 { // pixels per metre
				return float64(ppuX) * 0.0254
			}
			break
		}
		pos = dataStart + length + 4 // skip data and CRC
	}
	return fallback
}
