package terrain

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"
)

// Readback copies visible tile state to the host for telemetry. It reuses
// one staging slice across calls and must not be used inside a frame that
// is still recording work for the tiles it reads.
type Readback struct {
	ctx *TileCacheContext
	buf []float32
}

// NewReadback creates a readback helper bound to ctx.
func NewReadback(ctx *TileCacheContext) *Readback {
	n := ctx.Config.Terrain.RasterSize
	return &Readback{ctx: ctx, buf: make([]float32, n*n*4)}
}

// Water appends the water depth of every texel of the visible tiles to dst.
// stride > 1 keeps every stride-th texel per axis.
func (r *Readback) Water(c *Cache, dst []float64, stride int) ([]float64, error) {
	if stride < 1 {
		stride = 1
	}
	n := r.ctx.Config.Terrain.RasterSize
	for _, e := range c.Visible() {
		t := c.Tile(e)
		raster := r.ctx.Pool.Bundle(t.Block).SoilWater[t.Active]
		if err := r.ctx.Backend.ReadRaster(raster, r.buf); err != nil {
			return dst, fmt.Errorf("reading water of %v: %w", t.Coord, err)
		}
		for y := 0; y < n; y += stride {
			for x := 0; x < n; x += stride {
				dst = append(dst, float64(r.buf[(y*n+x)*4+chWater]))
			}
		}
	}
	return dst, nil
}

// Heights returns a copy of the rock raster of e, in world height units.
func (r *Readback) Heights(c *Cache, e ecs.Entity) ([]float32, error) {
	n := r.ctx.Config.Terrain.RasterSize
	t := c.Tile(e)
	out := make([]float32, n*n)
	if err := r.ctx.Backend.ReadRaster(r.ctx.Pool.Bundle(t.Block).Rock, out); err != nil {
		return nil, fmt.Errorf("reading rock of %v: %w", t.Coord, err)
	}
	return out, nil
}
