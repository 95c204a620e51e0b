package gpu

import "image"

// Kernel runs one compute work group on the host.
type Kernel func(g *Group)

// Shader runs one draw call on the host, writing into the colour target.
type Shader func(d *DrawContext)

// View is a host-side window onto a raster's texels.
type View struct {
	Data          []float32
	Width, Height int
	Channels      int
}

// Texel returns the channels of the texel at (x, y).
func (v View) Texel(x, y int) []float32 {
	i := (y*v.Width + x) * v.Channels
	return v.Data[i : i+v.Channels]
}

// At returns channel c of the texel at (x, y).
func (v View) At(x, y, c int) float32 {
	return v.Data[(y*v.Width+x)*v.Channels+c]
}

// Set stores channel c of the texel at (x, y).
func (v View) Set(x, y, c int, val float32) {
	v.Data[(y*v.Width+x)*v.Channels+c] = val
}

// Clamp returns the texel at (x, y) clamped to the raster edge.
func (v View) Clamp(x, y, c int) float32 {
	if x < 0 {
		x = 0
	} else if x >= v.Width {
		x = v.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= v.Height {
		y = v.Height - 1
	}
	return v.At(x, y, c)
}

// Group is the execution context of one compute work group.
type Group struct {
	// ID is the work group index.
	ID [3]int
	// X0, Y0 (inclusive) and X1, Y1 (exclusive) bound the texels this group
	// owns, clipped to the raster bound at slot 0.
	X0, Y0, X1, Y1 int

	Params []byte
	views  []View
}

// View returns the raster bound to slot.
func (g *Group) View(slot int) View { return g.views[slot] }

// DrawContext is the execution context of one host draw call.
type DrawContext struct {
	Params     []byte
	Mesh       MeshDesc
	IndexCount int
	Target     *image.RGBA
	views      []View
}

// View returns the raster bound to slot.
func (d *DrawContext) View(slot int) View { return d.views[slot] }
