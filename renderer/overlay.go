package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/terrastream/camera"
	"github.com/pthm-cable/terrastream/grid"
	"github.com/pthm-cable/terrastream/scene"
)

// TileOverlay outlines the tiles of a scene group in screen space.
type TileOverlay struct {
	Fill      rl.Color
	Outline   rl.Color
	LabelSize int32
}

// NewTileOverlay creates an overlay drawing with the given outline colour.
func NewTileOverlay(outline rl.Color) *TileOverlay {
	return &TileOverlay{
		Fill:      rl.Color{R: outline.R, G: outline.G, B: outline.B, A: 24},
		Outline:   outline,
		LabelSize: 10,
	}
}

// Draw outlines every child of group. Children labels are drawn in the
// top-left corner when LabelSize > 0.
func (o *TileOverlay) Draw(cam *camera.Camera, g *scene.Graph, group scene.NodeID) {
	for _, id := range g.Children(group) {
		b, ok, err := g.WorldBounds(id)
		if err != nil || !ok || !cam.IsVisible(b) {
			continue
		}
		r := screenRect(cam, b)
		if o.Fill.A > 0 {
			rl.DrawRectangleRec(r, o.Fill)
		}
		rl.DrawRectangleLinesEx(r, 1, o.Outline)
		if o.LabelSize > 0 && r.Width > 40 {
			rl.DrawText(g.Label(id), int32(r.X)+3, int32(r.Y)+3, o.LabelSize, o.Outline)
		}
	}
}

// DrawBounds outlines a single world rectangle.
func (o *TileOverlay) DrawBounds(cam *camera.Camera, b grid.Bounds, thick float32) {
	rl.DrawRectangleLinesEx(screenRect(cam, b), thick, o.Outline)
}

// DrawMarker draws a cross at a world position.
func (o *TileOverlay) DrawMarker(cam *camera.Camera, p grid.Vec2) {
	sx, sy := cam.WorldToScreen(p.X, p.Y)
	x, y := int32(sx), int32(sy)
	rl.DrawLine(x-6, y, x+6, y, o.Outline)
	rl.DrawLine(x, y-6, x, y+6, o.Outline)
}

func screenRect(cam *camera.Camera, b grid.Bounds) rl.Rectangle {
	x0, y0 := cam.WorldToScreen(b.Min.X, b.Min.Y)
	x1, y1 := cam.WorldToScreen(b.Max.X, b.Max.Y)
	return rl.Rectangle{X: float32(x0), Y: float32(y0), Width: float32(x1 - x0), Height: float32(y1 - y0)}
}
