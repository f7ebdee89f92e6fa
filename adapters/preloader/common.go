// Package preloader contains the bundled format sniffers.  Each preloader
// peeks a bounded header of the source stream, never consuming it, and
// returns nil when it does not recognize the format so the registry can keep
// trying others.
package preloader

import (
	"bytes"
	"image"

	"github.com/Skryldev/image-loader/core"
	apperrors "github.com/Skryldev/image-loader/errors"
	"github.com/Skryldev/image-loader/utils"
)

// defaultHeaderPeek bounds the header window when no explicit limit is
// configured.  Large enough for JPEGs with sizeable EXIF segments.
const defaultHeaderPeek = 64 * 1024

// sniff peeks the header window and verifies the content matches the
// expected MIME type.  It returns (nil, false) when the content is a
// different format.
func sniff(src *core.Source, mime string, peek int) ([]byte, bool, error) {
	if peek <= 0 {
		peek = defaultHeaderPeek
	}
	header, err := src.Peek(peek)
	if err != nil {
		return nil, false, err
	}
	if utils.DetectMime(header) != mime {
		return nil, false, nil
	}
	return header, true, nil
}

// configInfo builds an ImageInfo from a decoded image config header.
func configInfo(uri, mime string, cfg image.Config, resolution float64) *core.ImageInfo {
	info := core.NewImageInfo(uri, mime)
	info.Size = core.NewSize(cfg.Width, cfg.Height, resolution)
	return info
}

// decodeConfigPreload is the shared body of the preloaders whose header can
// be parsed with an image.Config decoder.
func decodeConfigPreload(src *core.Source, uri, mime string, peek int,
	imageContext core.ImageContext,
	decodeConfig func(header []byte) (image.Config, error)) (*core.ImageInfo, error) {

	header, ok, err := sniff(src, mime, peek)
	if err != nil || !ok {
		return nil, err
	}
	cfg, err := decodeConfig(header)
	if err != nil {
		// The magic matched but the header was unparsable within the
		// peek window; this is a malformed or oversized header, not a
		// different format.
		return nil, apperrors.NewURI(apperrors.CategoryUnsupported, "preload."+mime, uri, err)
	}
	return configInfo(uri, mime, cfg, imageContext.SourceResolution()), nil
}

// headerReader wraps a peeked header for the stdlib config decoders.
func headerReader(header []byte) *bytes.Reader { return bytes.NewReader(header) }
