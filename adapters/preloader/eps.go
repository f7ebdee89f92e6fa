package preloader

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"github.com/Skryldev/image-loader/core"
	apperrors "github.com/Skryldev/image-loader/errors"
	"github.com/Skryldev/image-loader/utils"
)

// EPS sniffs Encapsulated PostScript.  The intrinsic size comes from the
// %%BoundingBox DSC comment, given in PostScript points.
type EPS struct {
	Peek int
}

func NewEPS() *EPS { return &EPS{} }

func (p *EPS) Priority() int { return core.DefaultPreloaderPriority }

func (p *EPS) PreloadImage(ctx context.Context, uri string, src *core.Source, imageContext core.ImageContext) (*core.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	header, ok, err := sniff(src, utils.MimeEPS, p.Peek)
	if err != nil || !ok {
		return nil, err
	}
	llx, lly, urx, ury, found := boundingBox(header)
	if !found {
		return nil, apperrors.NewURI(apperrors.CategoryUnsupported, "preload.eps", uri,
			apperrors.ErrUnsupportedFormat)
	}
	info := core.NewImageInfo(uri, utils.MimeEPS)
	resolution := imageContext.SourceResolution()
	// Bounding box coordinates are points; 1pt = 1000mpt.
	size := &core.Size{
		WidthMpt:  int((urx - llx) * 1000),
		HeightMpt: int((ury - lly) * 1000),
	}
	size.SetResolution(resolution, resolution)
	size.CalcPixelsFromSize()
	info.Size = size
	return info, nil
}

// boundingBox scans DSC comments for %%BoundingBox.  A deferred
// "(atend)" value makes the header useless, so scanning continues in case a
// concrete box follows within the window.
func boundingBox(header []byte) (llx, lly, urx, ury float64, found bool) {
	sc := bufio.NewScanner(headerReader(header))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "%%BoundingBox:") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(line, "%%BoundingBox:"))
		if strings.EqualFold(rest, "(atend)") {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) != 4 {
			continue
		}
		vals := make([]float64, 4)
		ok := true
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if ok {
			return vals[0], vals[1], vals[2], vals[3], true
		}
	}
	return 0, 0, 0, 0, false
}
