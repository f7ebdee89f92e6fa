package utils

import (
	"bytes"
	"io"
	"net/http"
)

// Common MIME types handled by the bundled adapters.
const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeGIF  = "image/gif"
	MimeBMP  = "image/bmp"
	MimeTIFF = "image/tiff"
	MimeWebP = "image/webp"
	MimeICO  = "image/vnd.microsoft.icon"
	MimeEPS  = "application/postscript"
)

// DetectMime sniffs the leading bytes of data and returns the image MIME
// type, or "" when the content is not a recognized image format.
func DetectMime(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	switch {
	case data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G':
		return MimePNG
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return MimeJPEG
	case bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")):
		return MimeGIF
	case data[0] == 'B' && data[1] == 'M':
		return MimeBMP
	case bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) ||
		bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}):
		return MimeTIFF
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WEBP")):
		return MimeWebP
	case bytes.HasPrefix(data, []byte{0x00, 0x00, 0x01, 0x00}):
		return MimeICO
	case bytes.HasPrefix(data, []byte("%!PS-Adobe")):
		return MimeEPS
	}
	// Fallback to net/http sniffing.
	ct := http.DetectContentType(data)
	switch ct {
	case MimePNG, MimeJPEG, MimeGIF, MimeBMP, MimeWebP, "image/x-icon":
		if ct == "image/x-icon" {
			return MimeICO
		}
		return ct
	}
	return ""
}

// CloseQuietly closes c, swallowing any error.  Used on resource-cleanup
// paths where a close failure must never mask the primary error.
func CloseQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

// CloneBytes returns a copy of b (safe for use after the source buffer is
// released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
