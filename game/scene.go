package game

import (
	"fmt"

	"github.com/pthm-cable/terrastream/grid"
	"github.com/pthm-cable/terrastream/scene"
	"github.com/pthm-cable/terrastream/terrain"
)

// buildScene rebuilds the frame's scene graph. Tile nodes carry their
// position in the local transform and a box at the origin.
func (g *Game) buildScene() error {
	g.graph.Reset()
	root, err := g.graph.Add(scene.None, "terrain", scene.Identity)
	if err != nil {
		return err
	}
	if g.cacheGroup, err = g.graph.Add(root, "cache", scene.Identity); err != nil {
		return err
	}
	if g.visibleGroup, err = g.graph.Add(root, "visible", scene.Identity); err != nil {
		return err
	}

	addTile := func(group scene.NodeID, t *terrain.Tile) error {
		size := t.Bounds.Size()
		id, err := g.graph.Add(group, fmt.Sprintf("%d,%d", t.Coord.X, t.Coord.Y),
			scene.Translate(t.Bounds.Min.X, t.Bounds.Min.Y))
		if err != nil {
			return err
		}
		return g.graph.SetBox(id, grid.Bounds{Max: size})
	}

	win := g.cache.Window()
	for i := 0; i < win.Len(); i++ {
		e, ok := g.cache.Lookup(win.At(i))
		if !ok {
			continue
		}
		if err := addTile(g.cacheGroup, g.cache.Tile(e)); err != nil {
			return err
		}
	}
	for _, e := range g.cache.Visible() {
		if err := addTile(g.visibleGroup, g.cache.Tile(e)); err != nil {
			return err
		}
	}
	return nil
}

// visibleExtent returns the world rectangle covered by the visible tiles.
func (g *Game) visibleExtent() (grid.Bounds, bool) {
	b, ok, err := g.graph.WorldBounds(g.visibleGroup)
	if err != nil {
		return grid.Bounds{}, false
	}
	return b, ok
}

// FitVisible zooms the camera onto the visible tiles.
func (g *Game) FitVisible() {
	if b, ok := g.visibleExtent(); ok {
		g.cam.Fit(b)
	}
}
