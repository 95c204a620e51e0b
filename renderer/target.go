// Package renderer presents the backend's offscreen colour target in the
// raylib window and draws debug overlays over it.
package renderer

import (
	"image"
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// TargetView mirrors the backend colour target into a raylib texture.
type TargetView struct {
	texture       rl.Texture2D
	width, height int
	pixels        []color.RGBA
	initialized   bool
}

// NewTargetView creates an empty view. The texture is created on the first
// Upload, after the raylib window exists.
func NewTargetView() *TargetView {
	return &TargetView{}
}

// Upload copies img into the texture, recreating it when the size changes.
func (v *TargetView) Upload(img *image.RGBA) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return
	}
	if !v.initialized || w != v.width || h != v.height {
		v.Unload()
		blank := rl.GenImageColor(w, h, rl.Black)
		v.texture = rl.LoadTextureFromImage(blank)
		rl.UnloadImage(blank)
		rl.SetTextureFilter(v.texture, rl.FilterBilinear)
		v.width, v.height = w, h
		v.pixels = make([]color.RGBA, w*h)
		v.initialized = true
	}

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dst := v.pixels[y*w : (y+1)*w]
		for x := range dst {
			dst[x] = color.RGBA{R: row[x*4], G: row[x*4+1], B: row[x*4+2], A: row[x*4+3]}
		}
	}
	rl.UpdateTexture(v.texture, v.pixels)
}

// Draw stretches the texture over dst.
func (v *TargetView) Draw(dst rl.Rectangle) {
	if !v.initialized {
		return
	}
	rl.DrawTexturePro(
		v.texture,
		rl.Rectangle{X: 0, Y: 0, Width: float32(v.width), Height: float32(v.height)},
		dst,
		rl.Vector2{X: 0, Y: 0},
		0,
		rl.White,
	)
}

// Unload frees resources.
func (v *TargetView) Unload() {
	if v.initialized {
		rl.UnloadTexture(v.texture)
		v.initialized = false
	}
}
