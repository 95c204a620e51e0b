package terrain

import (
	"io"
	"log/slog"
	"testing"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/terrastream/config"
	"github.com/pthm-cable/terrastream/gpu"
	"github.com/pthm-cable/terrastream/grid"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// testConfig returns a small terrain: 200-unit tiles, cache radius 2
// (25 blocks), visible radius 1, 16×16 rasters.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	cfg.Terrain.TileSize = 200
	cfg.Terrain.CacheTileSize = 2
	cfg.Terrain.VisibleTileSize = 1
	cfg.Terrain.RasterSize = 16
	cfg.Terrain.SegmentCount = 8
	cfg.GPU.Workers = 1
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return cfg
}

type testTerrain struct {
	ctx      *TileCacheContext
	cache    *Cache
	sim      *Simulation
	renderer *Renderer
}

func newSoft(t *testing.T) *gpu.Soft {
	t.Helper()
	s := gpu.NewSoft(gpu.SoftOptions{Workers: 1, TargetWidth: 64, TargetHeight: 64, Logger: quietLogger})
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestTerrain(t *testing.T, cfg *config.Config, b gpu.Backend) *testTerrain {
	t.Helper()
	ctx, err := NewContext(b, cfg, quietLogger)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(ctx.Close)
	sim := NewSimulation(ctx)
	return &testTerrain{
		ctx:      ctx,
		cache:    NewCache(ctx, sim),
		sim:      sim,
		renderer: NewRenderer(ctx, 64, 64),
	}
}

// frame runs fn inside one backend frame.
func (tt *testTerrain) frame(t *testing.T, fn func() error) {
	t.Helper()
	if _, err := tt.ctx.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if err := fn(); err != nil {
		t.Fatalf("frame %d: %v", tt.ctx.Frame(), err)
	}
	if err := tt.ctx.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
}

// move runs one cache update at viewpoint in its own frame.
func (tt *testTerrain) move(t *testing.T, x, y float64) UpdateReport {
	t.Helper()
	var report UpdateReport
	tt.frame(t, func() error {
		var err error
		report, err = tt.cache.UpdateAllTiles(grid.Vec2{X: x, Y: y})
		return err
	})
	return report
}

// step runs a full frame: cache update, simulation step and draw.
func (tt *testTerrain) step(t *testing.T, x, y float64) UpdateReport {
	t.Helper()
	var report UpdateReport
	tt.frame(t, func() error {
		var err error
		if report, err = tt.cache.UpdateAllTiles(grid.Vec2{X: x, Y: y}); err != nil {
			return err
		}
		if err := tt.sim.StepAll(tt.cache); err != nil {
			return err
		}
		return tt.renderer.DrawVisible(tt.cache)
	})
	return report
}

func coordSet(coords []grid.Coord) map[grid.Coord]bool {
	m := make(map[grid.Coord]bool, len(coords))
	for _, c := range coords {
		m[c] = true
	}
	return m
}

func liveCoords(c *Cache) map[grid.Coord]bool {
	m := make(map[grid.Coord]bool)
	for _, e := range allEntities(c) {
		m[c.Tile(e).Coord] = true
	}
	return m
}

func allEntities(c *Cache) []ecs.Entity {
	var out []ecs.Entity
	c.Each(func(e ecs.Entity, _ *Tile, _ *Neighbors) {
		out = append(out, e)
	})
	return out
}

// readRaster copies a raster into a fresh slice.
func readRaster(t *testing.T, b gpu.Backend, r gpu.Raster, floats int) []float32 {
	t.Helper()
	buf := make([]float32, floats)
	if err := b.ReadRaster(r, buf); err != nil {
		t.Fatalf("ReadRaster: %v", err)
	}
	return buf
}

// totalWater sums the water channel of every live tile's active raster.
func totalWater(t *testing.T, tt *testTerrain) float64 {
	t.Helper()
	n := tt.ctx.Config.Terrain.RasterSize
	var sum float64
	tt.cache.Each(func(_ ecs.Entity, tile *Tile, _ *Neighbors) {
		data := readRaster(t, tt.ctx.Backend, tt.ctx.Pool.Bundle(tile.Block).SoilWater[tile.Active], n*n*4)
		for i := chWater; i < len(data); i += 4 {
			sum += float64(data[i])
		}
	})
	return sum
}
