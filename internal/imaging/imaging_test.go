package imaging

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// resizedHeader rewrites the IHDR dimensions of an encoded PNG, leaving the
// pixel data alone. Header-only decoding then reports the new size.
func resizedHeader(data []byte, w, h uint32) []byte {
	out := append([]byte(nil), data...)
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDetectAspectRatio(t *testing.T) {
	cases := []struct {
		w, h int
		want string
	}{
		{1024, 768, "4:3"},
		{1920, 1080, "16:9"},
		{1500, 1000, "3:2"},
		{1000, 1000, "1:1"},
		{750, 1000, "3:4"},
		{650, 1000, "2:3"},
		{1080, 1920, "9:16"},
		{0, 10, "1:1"},
	}
	for _, tc := range cases {
		if got := DetectAspectRatio(tc.w, tc.h); got != tc.want {
			t.Fatalf("DetectAspectRatio(%d,%d) = %q, want %q", tc.w, tc.h, got, tc.want)
		}
	}
}

func TestInspect(t *testing.T) {
	info, err := Inspect(encodePNG(t, 32, 16))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.Width != 32 || info.Height != 16 || info.Format != "png" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if Extension(info.Format) != ".png" || MIMEType(info.Format) != "image/png" {
		t.Fatalf("unexpected extension/mime for %q", info.Format)
	}
	if _, err := Inspect([]byte("<html>not an image</html>")); err == nil {
		t.Fatalf("expected error for non-image data")
	}
	if _, err := Inspect(nil); err == nil {
		t.Fatalf("expected error for empty data")
	}
}

func TestStitchHorizontal(t *testing.T) {
	a := encodePNG(t, 100, 50)
	b := encodePNG(t, 50, 100)
	out, info, err := Stitch([][]byte{a, b}, StitchOptions{Layout: LayoutHorizontal, Border: 10, MaxEdge: 1024})
	if err != nil {
		t.Fatalf("stitch: %v", err)
	}
	// shared height 100: widths 200 and 50 plus one border
	if info.Width != 260 || info.Height != 100 {
		t.Fatalf("unexpected size %dx%d", info.Width, info.Height)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not jpeg: %v", err)
	}
	if cfg.Width != info.Width || cfg.Height != info.Height {
		t.Fatalf("encoded size %dx%d does not match info", cfg.Width, cfg.Height)
	}
}

func TestStitchVerticalSharesWidth(t *testing.T) {
	a := encodePNG(t, 400, 100)
	b := encodePNG(t, 200, 200)
	_, info, err := Stitch([][]byte{a, b}, StitchOptions{Layout: LayoutVertical, Border: 0, MaxEdge: 1024})
	if err != nil {
		t.Fatalf("stitch: %v", err)
	}
	// shared width 400: heights 100 and 400
	if info.Width != 400 || info.Height != 500 {
		t.Fatalf("unexpected size %dx%d", info.Width, info.Height)
	}
}

func TestStitchGrid(t *testing.T) {
	imgs := [][]byte{encodePNG(t, 10, 10), encodePNG(t, 20, 10), encodePNG(t, 10, 20)}
	_, info, err := Stitch(imgs, StitchOptions{Layout: LayoutGrid, Border: 20, MaxEdge: 400})
	if err != nil {
		t.Fatalf("stitch: %v", err)
	}
	// three images: 2 cols x 2 rows of 190px cells and one 20px gap
	if info.Width != 400 || info.Height != 400 {
		t.Fatalf("unexpected size %dx%d", info.Width, info.Height)
	}
}

func TestStitchStaysWithinMaxEdge(t *testing.T) {
	tall := encodePNG(t, 1, 1024)
	wide := encodePNG(t, 4000, 1)
	cases := []struct {
		name   string
		layout Layout
		border int
		max    int
	}{
		{"horizontal", LayoutHorizontal, 20, 1024},
		{"vertical", LayoutVertical, 20, 1024},
		{"grid", LayoutGrid, 20, 1024},
		{"horizontal oversized border", LayoutHorizontal, 5000, 300},
		{"vertical small max", LayoutVertical, 0, 200},
	}
	for _, tc := range cases {
		out, info, err := Stitch([][]byte{tall, wide}, StitchOptions{Layout: tc.layout, Border: tc.border, MaxEdge: tc.max})
		if err != nil {
			t.Fatalf("%s: stitch: %v", tc.name, err)
		}
		if info.Width < 1 || info.Height < 1 || info.Width > tc.max || info.Height > tc.max {
			t.Fatalf("%s: canvas %dx%d exceeds %d", tc.name, info.Width, info.Height, tc.max)
		}
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
		if err != nil || cfg.Width != info.Width || cfg.Height != info.Height {
			t.Fatalf("%s: encoded output does not match info: %v", tc.name, err)
		}
	}
}

func TestPixelLimit(t *testing.T) {
	huge := resizedHeader(encodePNG(t, 2, 2), 10000, 5000)
	info, err := Inspect(huge)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.Width != 10000 || info.Height != 5000 {
		t.Fatalf("unexpected header size %dx%d", info.Width, info.Height)
	}
	if err := info.CheckPixels(); err == nil {
		t.Fatalf("expected 50 megapixels to be rejected")
	}
	if _, _, err := Stitch([][]byte{huge, encodePNG(t, 2, 2)}, StitchOptions{}); err == nil {
		t.Fatalf("expected stitch to refuse an oversized input")
	}
	if err := (Info{Width: 6000, Height: 6000}).CheckPixels(); err != nil {
		t.Fatalf("36 megapixels should pass: %v", err)
	}
}

func TestStitchRejectsBadInput(t *testing.T) {
	if _, _, err := Stitch(nil, StitchOptions{}); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, _, err := Stitch([][]byte{[]byte("junk")}, StitchOptions{}); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestParseLayout(t *testing.T) {
	if ParseLayout("grid") != LayoutGrid || ParseLayout("vertical") != LayoutVertical || ParseLayout("") != LayoutHorizontal {
		t.Fatalf("unexpected layout parsing")
	}
}
