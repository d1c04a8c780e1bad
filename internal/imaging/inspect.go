// Package imaging holds the image utilities the orchestrator relies on:
// header inspection, aspect-ratio detection and stitching several inputs into
// one canvas.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Info describes an encoded image without decoding its pixels.
type Info struct {
	Width  int
	Height int
	Format string
}

// MaxPixels is the largest decoded area accepted for an input image.
const MaxPixels = 40_000_000

// Pixels is the decoded area in pixels.
func (i Info) Pixels() int64 { return int64(i.Width) * int64(i.Height) }

// CheckPixels rejects images whose decoded area exceeds MaxPixels.
func (i Info) CheckPixels() error {
	if i.Pixels() > MaxPixels {
		return fmt.Errorf("imaging: %dx%d exceeds the %d megapixel limit", i.Width, i.Height, MaxPixels/1_000_000)
	}
	return nil
}

// Inspect reads the image header.
func Inspect(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, fmt.Errorf("imaging: empty image data")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("imaging: decode header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("imaging: invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Extension maps a decoded format name onto a file extension.
func Extension(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	case "webp":
		return ".webp"
	default:
		return ".bin"
	}
}

// MIMEType maps a decoded format name onto its content type.
func MIMEType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png", "gif", "webp":
		return "image/" + format
	default:
		return "application/octet-stream"
	}
}
