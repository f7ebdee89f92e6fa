package preloader

import (
	"context"
	"encoding/binary"
	"image/jpeg"

	"github.com/Skryldev/image-loader/core"
	apperrors "github.com/Skryldev/image-loader/errors"
	"github.com/Skryldev/image-loader/utils"
)

// JPEG sniffs JFIF/Exif streams.  The JFIF APP0 density fields, when present
// and expressed in dots per inch or per centimetre, override the context's
// source resolution.
type JPEG struct {
	Peek int
}

func NewJPEG() *JPEG { return &JPEG{} }

func (p *JPEG) Priority() int { return core.DefaultPreloaderPriority }

func (p *JPEG) PreloadImage(ctx context.Context, uri string, src *core.Source, imageContext core.ImageContext) (*core.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	header, ok, err := sniff(src, utils.MimeJPEG, p.Peek)
	if err != nil || !ok {
		return nil, err
	}
	cfg, err := jpeg.DecodeConfig(headerReader(header))
	if err != nil {
		return nil, apperrors.NewURI(apperrors.CategoryUnsupported, "preload."+utils.MimeJPEG, uri, err)
	}
	resolution := jfifResolution(header, imageContext.SourceResolution())
	return configInfo(uri, utils.MimeJPEG, cfg, resolution), nil
}

// jfifResolution walks the marker segments looking for an APP0/JFIF block
// with a usable density unit.
func jfifResolution(header []byte, fallback float64) float64 {
	pos := 2 // skip SOI
	for pos+4 <= len(header) {
		if header[pos] != 0xFF {
			break
		}
		marker := header[pos+1]
		if marker == 0xD8 || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			pos += 2
			continue
		}
		segLen := int(binary.BigEndian.Uint16(header[pos+2 : pos+4]))
		if marker == 0xE0 && pos+4+segLen <= len(header) && segLen >= 14 {
			seg := header[pos+4 : pos+2+segLen]
			if len(seg) >= 12 && string(seg[:5]) == "JFIF\x00" {
				unit := seg[7]
				xDensity := binary.BigEndian.Uint16(seg[8:10])
				switch {
				case unit == 1 && xDensity > 0:
					return float64(xDensity)
				case unit == 2 && xDensity > 0:
					return float64(xDensity) * 2.54
				}
			}
			break
		}
		if marker == 0xDA { // start of scan, no APP0 ahead
			break
		}
		pos += 2 + segLen
	}
	return fallback
}
