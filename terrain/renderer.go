package terrain

import (
	"fmt"

	"github.com/pthm-cable/terrastream/gpu"
	"github.com/pthm-cable/terrastream/grid"
)

// Renderer draws the visible tiles with the shared grid mesh.
type Renderer struct {
	ctx *TileCacheContext

	view    grid.Bounds
	hasView bool
	screen  [2]int

	lastDraws int
}

// NewRenderer creates a renderer for a screenW×screenH target.
func NewRenderer(ctx *TileCacheContext, screenW, screenH int) *Renderer {
	return &Renderer{ctx: ctx, screen: [2]int{screenW, screenH}}
}

// SetView fixes the world rectangle mapped onto the target. Until it is
// called the renderer frames the visible window.
func (r *Renderer) SetView(b grid.Bounds) {
	r.view = b
	r.hasView = true
}

// View returns the world rectangle used by the last draw.
func (r *Renderer) View() grid.Bounds { return r.view }

// Draws returns the number of draw calls issued by the last DrawVisible.
func (r *Renderer) Draws() int { return r.lastDraws }

// DrawVisible issues one indexed draw per visible tile. Rasters rest in
// ShaderRead and the render stage only samples, so no transitions are
// recorded here.
func (r *Renderer) DrawVisible(c *Cache) error {
	r.lastDraws = 0
	visible := c.Visible()
	if len(visible) == 0 {
		return nil
	}
	if !r.hasView {
		r.view = c.VisibleWindow().Bounds(c.tileSize())
	}

	b := r.ctx.Backend
	p := r.ctx.Pipelines.Render
	if err := b.BindPipeline(p); err != nil {
		return err
	}

	cfg := r.ctx.Config
	size := r.view.Size()
	params := DrawParams{
		WorldMin:      [2]float32{float32(r.view.Min.X), float32(r.view.Min.Y)},
		InvWorldRange: [2]float32{float32(1 / size.X), float32(1 / size.Y)},
		SegmentCount:  uint32(cfg.Terrain.SegmentCount),
		Time:          float32(c.sim.Time()),
		DeltaT:        float32(cfg.Simulation.TimeStep),
		HeightScale:   float32(cfg.Terrain.HeightScale),
		InvScreenSize: [2]float32{1 / float32(r.screen[0]), 1 / float32(r.screen[1])},
	}
	call := gpu.DrawCall{
		Mesh:       r.ctx.Mesh,
		IndexCount: cfg.Derived.IndexCount,
		Instances:  1,
	}
	frame := r.ctx.Frame()

	for _, e := range visible {
		t := c.Tile(e)
		bundle := r.ctx.Pool.Bundle(t.Block)
		ts := t.Bounds.Size()
		params.Min = [2]float32{float32(t.Bounds.Min.X), float32(t.Bounds.Min.Y)}
		params.Range = [2]float32{float32(ts.X), float32(ts.Y)}

		if err := b.BindResources(p, bundle.render[t.Active]); err != nil {
			return fmt.Errorf("drawing tile %v: %w", t.Coord, err)
		}
		if err := b.SetParameters(p, params.Bytes()); err != nil {
			return fmt.Errorf("drawing tile %v: %w", t.Coord, err)
		}
		if err := b.Draw(call); err != nil {
			return fmt.Errorf("drawing tile %v: %w", t.Coord, err)
		}
		t.LastUsed = frame
		r.lastDraws++
	}
	return nil
}
