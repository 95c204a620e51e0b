// Package camera provides a 2D camera over the unbounded terrain plane and
// the trajectories that drive it in headless runs.
package camera

import "github.com/pthm-cable/terrastream/grid"

// Camera controls the viewport into the terrain.
type Camera struct {
	// Position is the camera center in world coordinates
	X, Y float64

	// Zoom is screen pixels per world unit
	Zoom float64

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float64

	// Zoom constraints
	MinZoom, MaxZoom float64

	homeX, homeY, homeZoom float64
}

// New creates a camera centered on (x, y) with the given zoom.
func New(viewportW, viewportH, x, y, zoom float64) *Camera {
	if zoom <= 0 {
		zoom = 1
	}
	return &Camera{
		X:         x,
		Y:         y,
		Zoom:      zoom,
		ViewportW: viewportW,
		ViewportH: viewportH,
		MinZoom:   0.05,
		MaxZoom:   8.0,
		homeX:     x,
		homeY:     y,
		homeZoom:  zoom,
	}
}

// Position returns the camera center.
func (c *Camera) Position() grid.Vec2 { return grid.Vec2{X: c.X, Y: c.Y} }

// SetPosition moves the camera center.
func (c *Camera) SetPosition(p grid.Vec2) {
	c.X, c.Y = p.X, p.Y
}

// WorldToScreen converts world coordinates to screen coordinates.
func (c *Camera) WorldToScreen(wx, wy float64) (sx, sy float64) {
	sx = c.ViewportW/2 + (wx-c.X)*c.Zoom
	sy = c.ViewportH/2 + (wy-c.Y)*c.Zoom
	return sx, sy
}

// ScreenToWorld converts screen coordinates to world coordinates.
func (c *Camera) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	wx = c.X + (sx-c.ViewportW/2)/c.Zoom
	wy = c.Y + (sy-c.ViewportH/2)/c.Zoom
	return wx, wy
}

// IsVisible reports whether a box could be on screen.
func (c *Camera) IsVisible(b grid.Bounds) bool {
	v := c.VisibleWorldBounds()
	return b.Max.X >= v.Min.X && b.Min.X <= v.Max.X && b.Max.Y >= v.Min.Y && b.Min.Y <= v.Max.Y
}

// Resize updates viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float64) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// Pan moves the camera by the given delta in screen pixels.
func (c *Camera) Pan(dx, dy float64) {
	c.X += dx / c.Zoom
	c.Y += dy / c.Zoom
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float64) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float64) {
	c.SetZoom(c.Zoom * factor)
}

// Fit centers the camera on b and zooms so that b fills the viewport.
func (c *Camera) Fit(b grid.Bounds) {
	size := b.Size()
	if size.X <= 0 || size.Y <= 0 {
		return
	}
	center := b.Center()
	c.X, c.Y = center.X, center.Y
	c.SetZoom(min(c.ViewportW/size.X, c.ViewportH/size.Y))
}

// Reset returns the camera to its starting position and zoom.
func (c *Camera) Reset() {
	c.X = c.homeX
	c.Y = c.homeY
	c.Zoom = c.homeZoom
}

// VisibleWorldBounds returns the world rectangle covered by the viewport.
func (c *Camera) VisibleWorldBounds() grid.Bounds {
	halfW := c.ViewportW / (2 * c.Zoom)
	halfH := c.ViewportH / (2 * c.Zoom)
	return grid.Bounds{
		Min: grid.Vec2{X: c.X - halfW, Y: c.Y - halfH},
		Max: grid.Vec2{X: c.X + halfW, Y: c.Y + halfH},
	}
}

// clamp restricts a value to a range.
func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
