package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Layout controls how Stitch arranges its inputs.
type Layout string

const (
	LayoutHorizontal Layout = "horizontal"
	LayoutVertical   Layout = "vertical"
	LayoutGrid       Layout = "grid"
)

// DefaultBorder is the gap in pixels between stitched images.
const DefaultBorder = 20

// StitchOptions configures Stitch. Zero values fall back to a horizontal
// layout, a 1024px limit on both canvas edges and no gap. The gap is reduced
// when it would take more than half of MaxEdge.
type StitchOptions struct {
	Layout  Layout
	Border  int
	MaxEdge int
	Quality int
}

// ParseLayout normalizes user input, defaulting to horizontal.
func ParseLayout(raw string) Layout {
	switch Layout(raw) {
	case LayoutVertical:
		return LayoutVertical
	case LayoutGrid:
		return LayoutGrid
	default:
		return LayoutHorizontal
	}
}

// Stitch composites the encoded images onto a white canvas and returns the
// result as JPEG. Horizontal scales every image to a shared height, vertical
// to a shared width, and grid fits each image into an equal square cell.
func Stitch(inputs [][]byte, opts StitchOptions) ([]byte, Info, error) {
	if len(inputs) == 0 {
		return nil, Info{}, fmt.Errorf("imaging: nothing to stitch")
	}
	if opts.MaxEdge <= 0 {
		opts.MaxEdge = 1024
	}
	if opts.Border < 0 {
		opts.Border = 0
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 90
	}
	images := make([]image.Image, 0, len(inputs))
	for i, data := range inputs {
		info, err := Inspect(data)
		if err != nil {
			return nil, Info{}, fmt.Errorf("imaging: input %d: %w", i+1, err)
		}
		if err := info.CheckPixels(); err != nil {
			return nil, Info{}, fmt.Errorf("imaging: input %d: %w", i+1, err)
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, Info{}, fmt.Errorf("imaging: decode input %d: %w", i+1, err)
		}
		images = append(images, img)
	}

	var canvas *image.RGBA
	switch ParseLayout(string(opts.Layout)) {
	case LayoutVertical:
		canvas = stitchVertical(images, opts)
	case LayoutGrid:
		canvas = stitchGrid(images, opts)
	default:
		canvas = stitchHorizontal(images, opts)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, Info{}, fmt.Errorf("imaging: encode stitched image: %w", err)
	}
	b := canvas.Bounds()
	return buf.Bytes(), Info{Width: b.Dx(), Height: b.Dy(), Format: "jpeg"}, nil
}

func stitchHorizontal(images []image.Image, opts StitchOptions) *image.RGBA {
	mains, crosses := make([]int, len(images)), make([]int, len(images))
	for i, img := range images {
		mains[i], crosses[i] = img.Bounds().Dx(), img.Bounds().Dy()
	}
	height, widths, gap := stripLayout(mains, crosses, opts.Border, opts.MaxEdge)
	canvas := whiteCanvas(sum(widths)+gap*(len(images)-1), height)
	x := 0
	for i, img := range images {
		dst := image.Rect(x, 0, x+widths[i], height)
		xdraw.CatmullRom.Scale(canvas, dst, img, img.Bounds(), xdraw.Over, nil)
		x += widths[i] + gap
	}
	return canvas
}

func stitchVertical(images []image.Image, opts StitchOptions) *image.RGBA {
	mains, crosses := make([]int, len(images)), make([]int, len(images))
	for i, img := range images {
		mains[i], crosses[i] = img.Bounds().Dy(), img.Bounds().Dx()
	}
	width, heights, gap := stripLayout(mains, crosses, opts.Border, opts.MaxEdge)
	canvas := whiteCanvas(width, sum(heights)+gap*(len(images)-1))
	y := 0
	for i, img := range images {
		dst := image.Rect(0, y, width, y+heights[i])
		xdraw.CatmullRom.Scale(canvas, dst, img, img.Bounds(), xdraw.Over, nil)
		y += heights[i] + gap
	}
	return canvas
}

// stripLayout sizes images laid end to end along one axis. mains and crosses
// are each image's extent along and across the strip. Every image is scaled
// to a shared cross length, and the strip is shrunk as a whole until both
// the cross length and the total length, gaps included, fit within maxEdge.
func stripLayout(mains, crosses []int, border, maxEdge int) (cross int, sizes []int, gap int) {
	n := len(mains)
	gap = capGap(border, n, maxEdge)
	for _, c := range crosses {
		cross = max(cross, c)
	}
	cross = min(cross, maxEdge)

	natural := make([]float64, n)
	total := 0.0
	for i := range mains {
		natural[i] = float64(mains[i]) * float64(cross) / float64(max(crosses[i], 1))
		total += natural[i]
	}
	// Rounding and the one-pixel floor can add up to a pixel per image.
	avail := float64(maxEdge - gap*(n-1) - n)
	scale := 1.0
	if total > avail {
		scale = avail / total
	}
	cross = max(int(math.Round(float64(cross)*scale)), 1)
	sizes = make([]int, n)
	for i, v := range natural {
		sizes[i] = max(int(math.Round(v*scale)), 1)
	}
	return cross, sizes, gap
}

// capGap keeps the gaps between n items within half of maxEdge.
func capGap(border, n, maxEdge int) int {
	if n < 2 {
		return 0
	}
	return min(border, maxEdge/2/(n-1))
}

func stitchGrid(images []image.Image, opts StitchOptions) *image.RGBA {
	cols := int(math.Ceil(math.Sqrt(float64(len(images)))))
	rows := int(math.Ceil(float64(len(images)) / float64(cols)))
	k := max(cols, rows)
	gap := capGap(opts.Border, k, opts.MaxEdge)
	cell := max((opts.MaxEdge-gap*(k-1))/k, 1)
	canvas := whiteCanvas(cols*cell+(cols-1)*gap, rows*cell+(rows-1)*gap)
	for i, img := range images {
		col, row := i%cols, i/cols
		cellRect := image.Rect(
			col*(cell+gap),
			row*(cell+gap),
			col*(cell+gap)+cell,
			row*(cell+gap)+cell,
		)
		xdraw.CatmullRom.Scale(canvas, fitInto(img.Bounds(), cellRect), img, img.Bounds(), xdraw.Over, nil)
	}
	return canvas
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

// fitInto returns the largest rectangle with src's proportions centred in cell.
func fitInto(src, cell image.Rectangle) image.Rectangle {
	w, h := cell.Dx(), cell.Dy()
	if src.Dx()*cell.Dy() > src.Dy()*cell.Dx() {
		h = scaled(src.Dy(), w, src.Dx())
	} else {
		w = scaled(src.Dx(), h, src.Dy())
	}
	x := cell.Min.X + (cell.Dx()-w)/2
	y := cell.Min.Y + (cell.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// scaled returns v*num/den rounded, never below one pixel.
func scaled(v, num, den int) int {
	if den == 0 {
		return 1
	}
	out := int(math.Round(float64(v) * float64(num) / float64(den)))
	return max(out, 1)
}

func whiteCanvas(width, height int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, max(width, 1), max(height, 1)))
	xdraw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, xdraw.Src)
	return canvas
}
