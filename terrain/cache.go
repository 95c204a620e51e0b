package terrain

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/terrastream/grid"
)

// UpdateReport summarises one UpdateAllTiles call.
type UpdateReport struct {
	Center    grid.Coord
	Evicted   []grid.Coord
	Allocated []grid.Coord
	Live      int
	Visible   int
}

// Cache keeps every tile of the cache window alive as an ECS entity and
// recomputes the visible subset each frame. It is not safe for concurrent
// use; one host goroutine drives it.
type Cache struct {
	ctx *TileCacheContext
	sim *Simulation

	world     *ecs.World
	mapper    *ecs.Map2[Tile, Neighbors]
	tiles     *ecs.Map1[Tile]
	neighbors *ecs.Map1[Neighbors]
	filter    *ecs.Filter2[Tile, Neighbors]

	byHash  map[uint64]ecs.Entity
	visible []ecs.Entity

	cacheWin   grid.Window
	visibleWin grid.Window

	// Scratch reused across frames.
	evict  []ecs.Entity
	window []ecs.Entity
	blocks []int32
}

// NewCache creates an empty cache on ctx. Tiles are populated through sim.
func NewCache(ctx *TileCacheContext, sim *Simulation) *Cache {
	world := ecs.NewWorld()
	capacity := ctx.Pool.Capacity()
	return &Cache{
		ctx:       ctx,
		sim:       sim,
		world:     world,
		mapper:    ecs.NewMap2[Tile, Neighbors](world),
		tiles:     ecs.NewMap1[Tile](world),
		neighbors: ecs.NewMap1[Neighbors](world),
		filter:    ecs.NewFilter2[Tile, Neighbors](world),
		byHash:    make(map[uint64]ecs.Entity, capacity),
		window:    make([]ecs.Entity, capacity),
		blocks:    make([]int32, capacity),
	}
}

func (c *Cache) tileSize() float64 { return c.ctx.Config.Terrain.TileSize }

func (c *Cache) hashOf(coord grid.Coord) uint64 {
	return grid.Hash(grid.TileCoordToBounds(coord, c.tileSize()), c.ctx.Config.Terrain.SegmentCount)
}

// UpdateAllTiles moves the cache window to the tile containing viewpoint.
// Tiles that left the window are evicted, missing ones are allocated and
// created, neighbor links are rebuilt and the visible list is refreshed.
// Creation dispatches are recorded, so a frame must be open.
func (c *Cache) UpdateAllTiles(viewpoint grid.Vec2) (UpdateReport, error) {
	cfg := c.ctx.Config
	ts := c.tileSize()
	center := grid.WorldToTileCoord(viewpoint, ts)
	c.cacheWin = grid.Around(center, cfg.Terrain.CacheTileSize)
	c.visibleWin = grid.Around(center, cfg.Terrain.VisibleTileSize)

	report := UpdateReport{Center: center}

	c.evictOutside(&report)

	if err := c.allocateMissing(&report); err != nil {
		return report, err
	}

	if err := c.link(); err != nil {
		return report, err
	}

	c.visible = c.visible[:0]
	for i := 0; i < c.visibleWin.Len(); i++ {
		if e, ok := c.byHash[c.hashOf(c.visibleWin.At(i))]; ok {
			c.visible = append(c.visible, e)
		}
	}

	report.Live = len(c.byHash)
	report.Visible = len(c.visible)
	if len(report.Evicted) > 0 || len(report.Allocated) > 0 {
		c.ctx.Logger.Debug("cache window moved",
			"center_x", center.X,
			"center_y", center.Y,
			"evicted", len(report.Evicted),
			"allocated", len(report.Allocated),
			"free", c.ctx.Pool.Free(),
		)
	}
	return report, nil
}

func (c *Cache) evictOutside(report *UpdateReport) {
	ts := c.tileSize()

	// Collect first; entities cannot be removed while the query is open.
	c.evict = c.evict[:0]
	query := c.filter.Query()
	for query.Next() {
		t, _ := query.Get()
		if !c.cacheWin.Contains(grid.BoundsToTileCoord(t.Bounds, ts)) {
			c.evict = append(c.evict, query.Entity())
		}
	}

	for _, e := range c.evict {
		t := c.tiles.Get(e)
		c.ctx.Pool.Release(t.Block, t.LastUsed)
		delete(c.byHash, t.Hash)
		report.Evicted = append(report.Evicted, t.Coord)
		c.world.RemoveEntity(e)
	}
}

func (c *Cache) allocateMissing(report *UpdateReport) error {
	missing := 0
	for i := 0; i < c.cacheWin.Len(); i++ {
		if _, ok := c.byHash[c.hashOf(c.cacheWin.At(i))]; !ok {
			missing++
		}
	}
	if free := c.ctx.Pool.Free(); missing > free {
		return fmt.Errorf("%d tiles missing, %d blocks free: %w", missing, free, ErrPoolExhausted)
	}
	if missing == 0 {
		return nil
	}

	ts := c.tileSize()
	segments := c.ctx.Config.Terrain.SegmentCount
	for i := 0; i < c.cacheWin.Len(); i++ {
		coord := c.cacheWin.At(i)
		bounds := grid.TileCoordToBounds(coord, ts)
		hash := grid.Hash(bounds, segments)
		if _, ok := c.byHash[hash]; ok {
			continue
		}

		bundle, err := c.ctx.Pool.Acquire(c.ctx.Backend)
		if err != nil {
			return fmt.Errorf("allocating tile %v: %w", coord, err)
		}
		t := Tile{
			Coord:  coord,
			Bounds: bounds,
			Hash:   hash,
			Block:  bundle.Block,
		}
		if err := c.sim.Create(&t); err != nil {
			c.ctx.Pool.Release(bundle.Block, c.ctx.Frame())
			return err
		}
		n := unlinked()
		c.byHash[hash] = c.mapper.NewEntity(&t, &n)
		report.Allocated = append(report.Allocated, coord)
	}
	return nil
}

// link rebuilds every tile's neighbor slots from a (row, col) table of block
// indices over the cache window.
func (c *Cache) link() error {
	side := c.cacheWin.Side()
	count := c.cacheWin.Len()
	if cap(c.blocks) < count {
		c.blocks = make([]int32, count)
		c.window = make([]ecs.Entity, count)
	}
	blocks := c.blocks[:count]
	window := c.window[:count]

	for i := range blocks {
		coord := c.cacheWin.At(i)
		e, ok := c.byHash[c.hashOf(coord)]
		if !ok {
			return fmt.Errorf("tile %v: %w", coord, ErrMissingNeighbor)
		}
		window[i] = e
		blocks[i] = int32(c.tiles.Get(e).Block)
	}

	for i, e := range window {
		row, col := i/side, i%side
		n := c.neighbors.Get(e)
		n.Slots = [4]int32{NoNeighbor, NoNeighbor, NoNeighbor, NoNeighbor}
		if col > 0 {
			n.Slots[NegX] = blocks[i-1]
		}
		if col < side-1 {
			n.Slots[PosX] = blocks[i+1]
		}
		if row > 0 {
			n.Slots[NegY] = blocks[i-side]
		}
		if row < side-1 {
			n.Slots[PosY] = blocks[i+side]
		}
	}
	return nil
}

// Visible returns the visible tiles in row-major order. The slice is reused
// by the next UpdateAllTiles call.
func (c *Cache) Visible() []ecs.Entity { return c.visible }

// Tile returns the tile component of e.
func (c *Cache) Tile(e ecs.Entity) *Tile { return c.tiles.Get(e) }

// Neighbors returns the neighbor component of e.
func (c *Cache) Neighbors(e ecs.Entity) *Neighbors { return c.neighbors.Get(e) }

// Lookup returns the live tile at coord.
func (c *Cache) Lookup(coord grid.Coord) (ecs.Entity, bool) {
	e, ok := c.byHash[c.hashOf(coord)]
	return e, ok
}

// Live returns the number of live tiles.
func (c *Cache) Live() int { return len(c.byHash) }

// Window returns the current cache window.
func (c *Cache) Window() grid.Window { return c.cacheWin }

// VisibleWindow returns the current visible window.
func (c *Cache) VisibleWindow() grid.Window { return c.visibleWin }

// Each calls fn for every live tile, in storage order.
func (c *Cache) Each(fn func(e ecs.Entity, t *Tile, n *Neighbors)) {
	query := c.filter.Query()
	for query.Next() {
		t, n := query.Get()
		fn(query.Entity(), t, n)
	}
}

// each is Each with early exit: once fn returns false the remaining tiles
// are skipped.
func (c *Cache) each(fn func(e ecs.Entity, t *Tile, n *Neighbors) bool) {
	ok := true
	query := c.filter.Query()
	for query.Next() {
		if !ok {
			continue
		}
		t, n := query.Get()
		ok = fn(query.Entity(), t, n)
	}
}

// Close evicts every tile, returning its block to the pool.
func (c *Cache) Close() {
	c.evict = c.evict[:0]
	query := c.filter.Query()
	for query.Next() {
		c.evict = append(c.evict, query.Entity())
	}
	for _, e := range c.evict {
		t := c.tiles.Get(e)
		c.ctx.Pool.Release(t.Block, t.LastUsed)
		c.world.RemoveEntity(e)
	}
	clear(c.byHash)
	c.visible = c.visible[:0]
}
