package terrain

import (
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/terrastream/gpu"
)

// Simulation issues the Creation, Update and Flow-Update dispatches. It
// holds no per-tile state; everything it needs comes from the Tile and the
// context.
type Simulation struct {
	ctx  *TileCacheContext
	time float64

	// Active index of every block at the start of the flow pass.
	snapshot []uint8
	// Reused binding buffer for Flow-Update.
	flowBind []gpu.Binding
}

// NewSimulation creates a simulation bound to ctx.
func NewSimulation(ctx *TileCacheContext) *Simulation {
	return &Simulation{
		ctx:      ctx,
		snapshot: make([]uint8, ctx.Pool.Capacity()),
		flowBind: make([]gpu.Binding, flowNeighbor0+4),
	}
}

// Time returns the simulated seconds since the first step.
func (s *Simulation) Time() float64 { return s.time }

func (s *Simulation) params(t *Tile, mask uint32) UpdateParams {
	cfg := s.ctx.Config
	n := cfg.Terrain.RasterSize
	size := t.Bounds.Size()
	hiX, hiY := float32(t.Bounds.Min.X), float32(t.Bounds.Min.Y)
	return UpdateParams{
		WorldMin:        [2]float32{hiX, hiY},
		WorldMinLo:      [2]float32{float32(t.Bounds.Min.X - float64(hiX)), float32(t.Bounds.Min.Y - float64(hiY))},
		WorldRange:      [2]float32{float32(size.X), float32(size.Y)},
		WidthPixels:     uint32(n),
		InvWidthPixels:  1 / float32(n),
		RangePerPixel:   float32(cfg.Derived.RangePerPixel),
		FlowSpeedFactor: float32(cfg.Derived.FlowSpeedFactor),
		Time:            float32(math.Mod(s.time, 3600)),
		DeltaT:          float32(cfg.Simulation.TimeStep),
		Rain:            float32(cfg.Simulation.RainRate),
		Evaporation:     float32(cfg.Simulation.EvaporationRate),
		Seepage:         float32(cfg.Simulation.SeepageRate),
		FlowRate:        float32(cfg.Simulation.FlowRate),
		InitialWater:    float32(cfg.Simulation.InitialWater),
		HeightScale:     float32(cfg.Terrain.HeightScale),
		NeighborMask:    mask,
		Seed:            uint32(cfg.Noise.Seed),
	}
}

// dispatch runs one compute stage on a tile, moving every written raster
// into Storage immediately before and back to ShaderRead immediately after.
func (s *Simulation) dispatch(p gpu.Pipeline, bindings []gpu.Binding, params UpdateParams, groups uint32) error {
	b := s.ctx.Backend
	if err := b.BindPipeline(p); err != nil {
		return err
	}
	for _, bd := range bindings {
		if bd.Access == gpu.Write {
			if err := b.TransitionState(bd.Raster, gpu.ShaderRead, gpu.Storage); err != nil {
				return err
			}
		}
	}
	if err := b.BindResources(p, bindings); err != nil {
		return err
	}
	if err := b.SetParameters(p, params.Bytes()); err != nil {
		return err
	}
	if err := b.DispatchCompute(groups, groups, 1); err != nil {
		return err
	}
	for _, bd := range bindings {
		if bd.Access == gpu.Write {
			if err := b.TransitionState(bd.Raster, gpu.Storage, gpu.ShaderRead); err != nil {
				return err
			}
		}
	}
	return nil
}

// Create runs the Creation stage on a freshly allocated tile and resets its
// ping-pong state.
func (s *Simulation) Create(t *Tile) error {
	bundle := s.ctx.Pool.Bundle(t.Block)
	frame := s.ctx.Frame()
	if err := s.dispatch(s.ctx.Pipelines.Creation, bundle.creation, s.params(t, 0), s.ctx.Config.Derived.CreationGroups); err != nil {
		return fmt.Errorf("creating tile %v (block %d): %w", t.Coord, t.Block, err)
	}
	t.Active = 0
	t.Flows = 0
	t.Created = frame
	t.LastUsed = frame
	return nil
}

// Update runs the in-place Update stage on a tile's active soil/water raster.
func (s *Simulation) Update(t *Tile) error {
	bundle := s.ctx.Pool.Bundle(t.Block)
	if err := s.dispatch(s.ctx.Pipelines.Update, bundle.update[t.Active], s.params(t, 0), s.ctx.Config.Derived.UpdateGroups); err != nil {
		return fmt.Errorf("updating tile %v (block %d): %w", t.Coord, t.Block, err)
	}
	t.LastUsed = s.ctx.Frame()
	return nil
}

// FlowUpdate runs the Flow-Update stage on a tile and flips its active
// index. active maps a neighbor block to the soil/water slot to read it from.
func (s *Simulation) FlowUpdate(t *Tile, n *Neighbors, active func(block int32) uint8) error {
	pool := s.ctx.Pool
	bundle := pool.Bundle(t.Block)
	src := bundle.SoilWater[t.Active]
	dst := bundle.SoilWater[1-t.Active]

	bind := s.flowBind
	bind[flowSrc] = gpu.Binding{Slot: flowSrc, Raster: src, Access: gpu.Sample}
	bind[flowDst] = gpu.Binding{Slot: flowDst, Raster: dst, Access: gpu.Write}
	bind[flowOut] = gpu.Binding{Slot: flowOut, Raster: bundle.Flow, Access: gpu.Write}
	for i, nb := range n.Slots {
		r := src
		if nb != NoNeighbor {
			slot := active(nb)
			r = pool.Bundle(int(nb)).SoilWater[slot]
		}
		bind[flowNeighbor0+i] = gpu.Binding{Slot: flowNeighbor0 + i, Raster: r, Access: gpu.Sample}
	}

	if err := s.dispatch(s.ctx.Pipelines.Flow, bind, s.params(t, n.Mask()), s.ctx.Config.Derived.UpdateGroups); err != nil {
		return fmt.Errorf("flowing tile %v (block %d): %w", t.Coord, t.Block, err)
	}
	t.Active = 1 - t.Active
	t.Flows++
	t.LastUsed = s.ctx.Frame()
	return nil
}

// StepAll advances every live tile by one time step: Update over all tiles,
// then Flow-Update over all tiles against the active indices as they stood
// when the flow pass started.
func (s *Simulation) StepAll(c *Cache) error {
	var err error
	c.each(func(_ ecs.Entity, t *Tile, _ *Neighbors) bool {
		if err = s.Update(t); err != nil {
			return false
		}
		s.snapshot[t.Block] = t.Active
		return true
	})
	if err != nil {
		return err
	}

	snap := func(block int32) uint8 { return s.snapshot[block] }
	c.each(func(_ ecs.Entity, t *Tile, n *Neighbors) bool {
		err = s.FlowUpdate(t, n, snap)
		return err == nil
	})
	if err != nil {
		return err
	}

	s.time += s.ctx.Config.Simulation.TimeStep
	return nil
}
