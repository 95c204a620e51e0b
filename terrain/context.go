// Package terrain streams a square window of simulated terrain tiles around a
// moving viewpoint.
//
// A TileCacheContext owns the compiled stage pipelines, the shared mesh and
// the fixed pool of tile bundles. A Cache built on it evicts, allocates and
// links tiles every frame; a Simulation advances their water state; a
// Renderer draws the visible subset.
package terrain

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/terrastream/config"
	"github.com/pthm-cable/terrastream/gpu"
	"github.com/pthm-cable/terrastream/grid"
)

// Cache invariant violations.
var (
	// ErrCapacityMismatch is returned when the pool size differs from the
	// number of coordinates in the cache window.
	ErrCapacityMismatch = errors.New("terrain: pool capacity does not match cache window")

	// ErrPoolExhausted is returned when the free list cannot cover the tiles
	// a frame must allocate.
	ErrPoolExhausted = errors.New("terrain: tile pool exhausted")

	// ErrMissingNeighbor is returned when neighbor linking finds a window
	// coordinate without a live tile.
	ErrMissingNeighbor = errors.New("terrain: cache window has an unallocated tile")
)

// Pipelines holds the compiled stage pipelines.
type Pipelines struct {
	Creation gpu.Pipeline
	Update   gpu.Pipeline
	Flow     gpu.Pipeline
	Render   gpu.Pipeline
}

// TileCacheContext is the state shared by every tile of one terrain.
type TileCacheContext struct {
	Backend   gpu.Backend
	Config    *config.Config
	Noise     *NoiseField
	Pool      *Pool
	Pipelines Pipelines
	Mesh      gpu.Mesh
	Logger    *slog.Logger

	frame   uint64
	inFrame bool
}

// NewContext compiles the stage pipelines, allocates the shared mesh and
// sizes the pool from the cache window radius.
func NewContext(b gpu.Backend, cfg *config.Config, logger *slog.Logger) (*TileCacheContext, error) {
	if logger == nil {
		logger = slog.Default()
	}

	window := grid.Around(grid.Coord{}, cfg.Terrain.CacheTileSize).Len()
	if cfg.Derived.NumCachedBlocks != window {
		return nil, fmt.Errorf("%d blocks for a %d-tile window: %w",
			cfg.Derived.NumCachedBlocks, window, ErrCapacityMismatch)
	}

	ctx := &TileCacheContext{
		Backend: b,
		Config:  cfg,
		Noise:   NewNoiseField(cfg.Noise),
		Logger:  logger,
	}

	if err := ctx.createPipelines(); err != nil {
		return nil, err
	}

	mesh, err := b.AllocateMesh(gpu.MeshDesc{Label: "tile_grid", Segments: cfg.Terrain.SegmentCount})
	if err != nil {
		return nil, fmt.Errorf("allocating tile mesh: %w", err)
	}
	ctx.Mesh = mesh

	pool, err := NewPool(b, window, cfg.Terrain.RasterSize)
	if err != nil {
		return nil, err
	}
	ctx.Pool = pool

	// Rasters start Undefined; move them to their resting state once.
	if _, err := ctx.BeginFrame(); err != nil {
		return nil, err
	}
	if err := pool.Init(b); err != nil {
		return nil, err
	}
	if err := ctx.EndFrame(); err != nil {
		return nil, err
	}

	logger.Info("tile cache context ready",
		"backend", b.Name(),
		"blocks", window,
		"raster_size", cfg.Terrain.RasterSize,
		"segments", cfg.Terrain.SegmentCount,
	)
	return ctx, nil
}

func (c *TileCacheContext) createPipelines() error {
	descs := []struct {
		dst  *gpu.Pipeline
		desc gpu.PipelineDesc
	}{
		{&c.Pipelines.Creation, gpu.PipelineDesc{
			Label: "tile_creation",
			Kind:  gpu.Compute,
			WGSL:  creationWGSL,
			Slots: []gpu.Slot{
				creationRock:      {Name: "rock", Access: gpu.Write},
				creationSoilWater: {Name: "soil_water", Access: gpu.Write},
				creationAncillary: {Name: "ancillary", Access: gpu.Write},
				creationFlow:      {Name: "flow", Access: gpu.Write},
			},
			ParamSize:     updateParamsSize,
			WorkgroupSize: [2]int{8, 8},
			Kernel:        creationKernel(c.Noise),
		}},
		{&c.Pipelines.Update, gpu.PipelineDesc{
			Label: "tile_update",
			Kind:  gpu.Compute,
			WGSL:  updateWGSL,
			Slots: []gpu.Slot{
				updateRock:      {Name: "rock", Access: gpu.Sample},
				updateFlow:      {Name: "flow", Access: gpu.Sample},
				updateSoilWater: {Name: "soil_water", Access: gpu.Write},
				updateNormal:    {Name: "normal", Access: gpu.Write},
			},
			ParamSize:     updateParamsSize,
			WorkgroupSize: [2]int{16, 16},
			Kernel:        updateKernel,
		}},
		{&c.Pipelines.Flow, gpu.PipelineDesc{
			Label: "tile_flow",
			Kind:  gpu.Compute,
			WGSL:  flowWGSL,
			Slots: []gpu.Slot{
				flowSrc:           {Name: "src", Access: gpu.Sample},
				flowDst:           {Name: "dst", Access: gpu.Write},
				flowOut:           {Name: "flow", Access: gpu.Write},
				flowNeighbor0 + 0: {Name: "neighbor_neg_x", Access: gpu.Sample},
				flowNeighbor0 + 1: {Name: "neighbor_pos_x", Access: gpu.Sample},
				flowNeighbor0 + 2: {Name: "neighbor_neg_y", Access: gpu.Sample},
				flowNeighbor0 + 3: {Name: "neighbor_pos_y", Access: gpu.Sample},
			},
			ParamSize:     updateParamsSize,
			WorkgroupSize: [2]int{16, 16},
			Kernel:        flowKernel,
		}},
		{&c.Pipelines.Render, gpu.PipelineDesc{
			Label: "tile_render",
			Kind:  gpu.Render,
			WGSL:  renderWGSL,
			Slots: []gpu.Slot{
				renderRock:      {Name: "rock", Access: gpu.Sample},
				renderSoilWater: {Name: "soil_water", Access: gpu.Sample},
				renderAncillary: {Name: "ancillary", Access: gpu.Sample},
				renderFlow:      {Name: "flow", Access: gpu.Sample},
				renderNormal:    {Name: "normal", Access: gpu.Sample},
			},
			ParamSize: drawParamsSize,
			Shade:     shadeTile,
		}},
	}

	for _, d := range descs {
		p, err := c.Backend.CreatePipeline(d.desc)
		if err != nil {
			return fmt.Errorf("creating %s pipeline: %w", d.desc.Label, err)
		}
		*d.dst = p
	}
	return nil
}

// BeginFrame opens a backend frame and returns its serial.
func (c *TileCacheContext) BeginFrame() (uint64, error) {
	serial, err := c.Backend.BeginFrame()
	if err != nil {
		return 0, fmt.Errorf("beginning frame: %w", err)
	}
	c.frame = serial
	c.inFrame = true
	return serial, nil
}

// EndFrame submits the current frame.
func (c *TileCacheContext) EndFrame() error {
	c.inFrame = false
	if err := c.Backend.EndFrame(); err != nil {
		return fmt.Errorf("ending frame %d: %w", c.frame, err)
	}
	return nil
}

// Frame returns the serial of the current (or last) frame.
func (c *TileCacheContext) Frame() uint64 { return c.frame }

// InFrame reports whether a frame is open.
func (c *TileCacheContext) InFrame() bool { return c.inFrame }

// Close releases the pool rasters.
func (c *TileCacheContext) Close() {
	if c.Pool != nil {
		c.Pool.Destroy(c.Backend)
		c.Pool = nil
	}
}
