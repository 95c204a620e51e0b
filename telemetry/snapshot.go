package telemetry

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// HeightMosaic stitches per-tile height rasters into one grayscale image.
// Tile (col, row) occupies the square at (col*n, row*n).
type HeightMosaic struct {
	n      int
	lo, hi float64
	img    *image.Gray
}

// NewHeightMosaic creates a cols×rows mosaic of n×n tiles mapping heights
// in [lo, hi] to black..white.
func NewHeightMosaic(cols, rows, n int, lo, hi float64) *HeightMosaic {
	if hi <= lo {
		hi = lo + 1
	}
	return &HeightMosaic{
		n:   n,
		lo:  lo,
		hi:  hi,
		img: image.NewGray(image.Rect(0, 0, cols*n, rows*n)),
	}
}

// Set writes one tile's row-major n×n heights.
func (m *HeightMosaic) Set(col, row int, heights []float32) error {
	n := m.n
	if len(heights) < n*n {
		return fmt.Errorf("tile (%d,%d): %d heights, need %d", col, row, len(heights), n*n)
	}
	r := image.Rect(col*n, row*n, col*n+n, row*n+n)
	if !r.In(m.img.Bounds()) {
		return fmt.Errorf("tile (%d,%d) outside %v", col, row, m.img.Bounds())
	}
	scale := 255 / (m.hi - m.lo)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := (float64(heights[y*n+x]) - m.lo) * scale
			m.img.SetGray(r.Min.X+x, r.Min.Y+y, color.Gray{Y: uint8(min(max(v, 0), 255))})
		}
	}
	return nil
}

// Image returns the mosaic.
func (m *HeightMosaic) Image() *image.Gray { return m.img }

// ComposeSnapshot places the rendered target on the left and the height
// mosaic, scaled to the target's height, on the right.
func ComposeSnapshot(target image.Image, heights image.Image) *image.RGBA {
	tb := target.Bounds()
	if heights == nil || heights.Bounds().Empty() {
		out := image.NewRGBA(image.Rect(0, 0, tb.Dx(), tb.Dy()))
		xdraw.Draw(out, out.Bounds(), target, tb.Min, xdraw.Src)
		return out
	}

	hb := heights.Bounds()
	hw := hb.Dx() * tb.Dy() / hb.Dy()
	out := image.NewRGBA(image.Rect(0, 0, tb.Dx()+hw, tb.Dy()))
	xdraw.Draw(out, image.Rect(0, 0, tb.Dx(), tb.Dy()), target, tb.Min, xdraw.Src)
	xdraw.NearestNeighbor.Scale(out, image.Rect(tb.Dx(), 0, tb.Dx()+hw, tb.Dy()), heights, hb, xdraw.Src, nil)
	return out
}

// SavePNG writes img to dir/name, creating dir if needed, and returns the path.
func SavePNG(img image.Image, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	return path, nil
}

// LoadPNG reads a PNG written by SavePNG.
func LoadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return img, nil
}
