package preloader_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/Skryldev/image-loader/adapters/preloader"
	"github.com/Skryldev/image-loader/core"
)

type testContext struct{ resolution float64 }

func (c testContext) SourceResolution() float64 { return c.resolution }

func newRedPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func newRedJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func newSource(data []byte) *core.Source {
	return core.NewSource("test", bytes.NewReader(data), nil)
}

func TestPNG_Preload(t *testing.T) {
	p := preloader.NewPNG()
	info, err := p.PreloadImage(context.Background(), "red.png", newSource(newRedPNG(t, 32, 16)), testContext{72})
	if err != nil {
		t.Fatalf("PreloadImage: %v", err)
	}
	if info == nil {
		t.Fatal("png not recognized")
	}
	if info.MimeType != "image/png" {
		t.Errorf("mime: got %q", info.MimeType)
	}
	if info.Size.WidthPx != 32 || info.Size.HeightPx != 16 {
		t.Errorf("size: got %dx%d, want 32x16", info.Size.WidthPx, info.Size.HeightPx)
	}
	// stdlib PNGs carry no pHYs chunk; the context resolution applies.
	if info.Size.DpiHorizontal != 72 {
		t.Errorf("dpi: got %f, want 72", info.Size.DpiHorizontal)
	}
	if info.Size.WidthMpt != 32000 {
		t.Errorf("mpt: got %d, want 32000", info.Size.WidthMpt)
	}
}

func TestPNG_ReadsPhysResolution(t *testing.T) {
	raw := newRedPNG(t, 10, 10)
	// Splice a pHYs chunk right after IHDR (bytes 8..33): 11811 px/m ≈ 300dpi.
	phys := []byte{
		0, 0, 0, 9, // length
		'p', 'H', 'Y', 's',
		0, 0, 0x2E, 0x23, // x: 11811
		0, 0, 0x2E, 0x23, // y: 11811
		1,          // unit: metre
		0, 0, 0, 0, // CRC (not validated by the header scan)
	}
	spliced := append(append(append([]byte{}, raw[:33]...), phys...), raw[33:]...)

	p := preloader.NewPNG()
	info, err := p.PreloadImage(context.Background(), "red.png", newSource(spliced), testContext{72})
	if err != nil {
		t.Fatalf("PreloadImage: %v", err)
	}
	got := info.Size.DpiHorizontal
	if got < 299.9 || got > 300.1 {
		t.Errorf("dpi from pHYs: got %f, want ~300", got)
	}
}

func TestPNG_RejectsForeignFormat(t *testing.T) {
	p := preloader.NewPNG()
	info, err := p.PreloadImage(context.Background(), "red.jpg", newSource(newRedJPEG(t, 8, 8)), testContext{72})
	if err != nil {
		t.Fatalf("foreign format must not be an error: %v", err)
	}
	if info != nil {
		t.Error("png preloader recognized a jpeg")
	}
}

func TestPreload_DoesNotConsumeOnRejection(t *testing.T) {
	src := newSource(newRedJPEG(t, 8, 8))
	ctx := context.Background()

	// The wrong preloader passes...
	if info, err := preloader.NewPNG().PreloadImage(ctx, "x", src, testContext{72}); err != nil || info != nil {
		t.Fatalf("png on jpeg: info=%v err=%v", info, err)
	}
	if src.Consumed() {
		t.Fatal("rejection must not consume the stream")
	}
	// ...and the right one still sees the full header.
	info, err := preloader.NewJPEG().PreloadImage(ctx, "x", src, testContext{72})
	if err != nil {
		t.Fatalf("jpeg after png rejection: %v", err)
	}
	if info == nil || info.MimeType != "image/jpeg" {
		t.Errorf("got %v", info)
	}
}

func TestJPEG_ReadsJFIFDensity(t *testing.T) {
	raw := newRedJPEG(t, 8, 8)
	// stdlib JPEGs carry a JFIF APP0 with density 72x72 unit dpi... or unit 0.
	// Patch the APP0 density fields to 300dpi explicitly.
	// Locate APP0: SOI(2) + 0xFFE0.
	if raw[2] != 0xFF || raw[3] != 0xE0 {
		t.Skip("encoder emitted no leading APP0")
	}
	raw[13] = 1                   // unit: dpi
	raw[14], raw[15] = 0x01, 0x2C // x density 300
	raw[16], raw[17] = 0x01, 0x2C // y density 300

	info, err := preloader.NewJPEG().PreloadImage(context.Background(), "x.jpg", newSource(raw), testContext{72})
	if err != nil {
		t.Fatalf("PreloadImage: %v", err)
	}
	if info.Size.DpiHorizontal != 300 {
		t.Errorf("dpi from JFIF: got %f, want 300", info.Size.DpiHorizontal)
	}
}

func TestEPS_BoundingBox(t *testing.T) {
	data := []byte("%!PS-Adobe-3.0 EPSF-3.0\n%%BoundingBox: 0 0 72 144\n%%EndComments\n")
	info, err := preloader.NewEPS().PreloadImage(context.Background(), "figure.eps", newSource(data), testContext{72})
	if err != nil {
		t.Fatalf("PreloadImage: %v", err)
	}
	if info.MimeType != "application/postscript" {
		t.Errorf("mime: got %q", info.MimeType)
	}
	// 72x144 pt = 72000x144000 mpt = 72x144 px at 72dpi.
	if info.Size.WidthMpt != 72000 || info.Size.HeightMpt != 144000 {
		t.Errorf("mpt: got %dx%d", info.Size.WidthMpt, info.Size.HeightMpt)
	}
	if info.Size.WidthPx != 72 || info.Size.HeightPx != 144 {
		t.Errorf("px: got %dx%d, want 72x144", info.Size.WidthPx, info.Size.HeightPx)
	}
}

func TestEPS_MissingBoundingBoxFails(t *testing.T) {
	data := []byte("%!PS-Adobe-3.0 EPSF-3.0\n%%Title: nothing\n")
	_, err := preloader.NewEPS().PreloadImage(context.Background(), "figure.eps", newSource(data), testContext{72})
	if err == nil {
		t.Error("an EPS without a bounding box cannot be sized")
	}
}

func TestICO_PriorityRunsLate(t *testing.T) {
	if preloader.NewICO().Priority() <= preloader.NewPNG().Priority() {
		t.Error("the weak ICO magic must be checked after the strong ones")
	}
}
