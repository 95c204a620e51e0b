package grid

// Window is an inclusive square range of tile coordinates.
type Window struct {
	Min, Max Coord
}

// Around returns the window of the given radius centred on c.
func Around(c Coord, radius int) Window {
	return Window{
		Min: Coord{c.X - radius, c.Y - radius},
		Max: Coord{c.X + radius, c.Y + radius},
	}
}

// Side returns the number of coordinates along one edge.
func (w Window) Side() int { return w.Max.X - w.Min.X + 1 }

// Len returns the number of coordinates in the window.
func (w Window) Len() int {
	return (w.Max.X - w.Min.X + 1) * (w.Max.Y - w.Min.Y + 1)
}

// Contains reports whether c lies in the window (inclusive on all edges).
func (w Window) Contains(c Coord) bool {
	return c.X >= w.Min.X && c.X <= w.Max.X && c.Y >= w.Min.Y && c.Y <= w.Max.Y
}

// ContainsWindow reports whether o lies entirely inside w.
func (w Window) ContainsWindow(o Window) bool {
	return w.Contains(o.Min) && w.Contains(o.Max)
}

// Index returns the row-major position of c (x varies fastest), or -1.
func (w Window) Index(c Coord) int {
	if !w.Contains(c) {
		return -1
	}
	return (c.Y-w.Min.Y)*(w.Max.X-w.Min.X+1) + (c.X - w.Min.X)
}

// At returns the coordinate at row-major position i.
func (w Window) At(i int) Coord {
	cols := w.Max.X - w.Min.X + 1
	return Coord{X: w.Min.X + i%cols, Y: w.Min.Y + i/cols}
}

// Bounds returns the world-space extent covered by the window's tiles.
func (w Window) Bounds(tileSize float64) Bounds {
	return TileCoordToBounds(w.Min, tileSize).Union(TileCoordToBounds(w.Max, tileSize))
}

// OnEdge reports whether c lies on the window's outer ring.
func (w Window) OnEdge(c Coord) bool {
	return w.Contains(c) && (c.X == w.Min.X || c.X == w.Max.X || c.Y == w.Min.Y || c.Y == w.Max.Y)
}
