package terrain

import (
	"fmt"

	"github.com/pthm-cable/terrastream/gpu"
)

// Binding slots of each stage. The WGSL sources use the same numbering.
const (
	creationRock = iota
	creationSoilWater
	creationAncillary
	creationFlow
)

const (
	updateRock = iota
	updateFlow
	updateSoilWater
	updateNormal
)

const (
	flowSrc = iota
	flowDst
	flowOut
	flowNeighbor0 // four neighbor slots follow in NegX, PosX, NegY, PosY order
)

const (
	renderRock = iota
	renderSoilWater
	renderAncillary
	renderFlow
	renderNormal
)

// Bundle is the GPU state of one pool block.
type Bundle struct {
	Block int

	Rock      gpu.Raster
	SoilWater [2]gpu.Raster
	Ancillary gpu.Raster
	Flow      gpu.Raster
	Normal    gpu.Raster

	creation []gpu.Binding
	update   [2][]gpu.Binding
	render   [2][]gpu.Binding
}

// Rasters returns every raster of the bundle.
func (b *Bundle) Rasters() []gpu.Raster {
	return []gpu.Raster{b.Rock, b.SoilWater[0], b.SoilWater[1], b.Ancillary, b.Flow, b.Normal}
}

func (b *Bundle) buildBindings() {
	b.creation = []gpu.Binding{
		{Slot: creationRock, Raster: b.Rock, Access: gpu.Write},
		{Slot: creationSoilWater, Raster: b.SoilWater[0], Access: gpu.Write},
		{Slot: creationAncillary, Raster: b.Ancillary, Access: gpu.Write},
		{Slot: creationFlow, Raster: b.Flow, Access: gpu.Write},
	}
	for i := 0; i < 2; i++ {
		b.update[i] = []gpu.Binding{
			{Slot: updateRock, Raster: b.Rock, Access: gpu.Sample},
			{Slot: updateFlow, Raster: b.Flow, Access: gpu.Sample},
			{Slot: updateSoilWater, Raster: b.SoilWater[i], Access: gpu.Write},
			{Slot: updateNormal, Raster: b.Normal, Access: gpu.Write},
		}
		b.render[i] = []gpu.Binding{
			{Slot: renderRock, Raster: b.Rock, Access: gpu.Sample},
			{Slot: renderSoilWater, Raster: b.SoilWater[i], Access: gpu.Sample},
			{Slot: renderAncillary, Raster: b.Ancillary, Access: gpu.Sample},
			{Slot: renderFlow, Raster: b.Flow, Access: gpu.Sample},
			{Slot: renderNormal, Raster: b.Normal, Access: gpu.Sample},
		}
	}
}

// freeSlot is a released block and the last frame that referenced it.
type freeSlot struct {
	block    int
	lastUsed uint64
}

// Pool is the fixed set of tile bundles plus the free list.
type Pool struct {
	bundles []Bundle
	free    []freeSlot
	waits   int
}

// NewPool allocates capacity bundles of rasterSize×rasterSize rasters.
func NewPool(b gpu.Backend, capacity, rasterSize int) (*Pool, error) {
	p := &Pool{
		bundles: make([]Bundle, capacity),
		free:    make([]freeSlot, 0, capacity),
	}

	for i := range p.bundles {
		if err := p.allocate(b, i, rasterSize); err != nil {
			p.Destroy(b)
			return nil, fmt.Errorf("allocating tile block %d rasters: %w", i, err)
		}
	}

	// Pop order is block 0 first.
	for i := capacity - 1; i >= 0; i-- {
		p.free = append(p.free, freeSlot{block: i})
	}
	return p, nil
}

func (p *Pool) allocate(b gpu.Backend, block, size int) error {
	bundle := &p.bundles[block]
	bundle.Block = block

	alloc := func(label string, format gpu.Format) (gpu.Raster, error) {
		return b.AllocateRaster(gpu.RasterDesc{
			Label:  fmt.Sprintf("tile%d_%s", block, label),
			Width:  size,
			Height: size,
			Format: format,
		})
	}

	var err error
	if bundle.Rock, err = alloc("rock", gpu.FormatR32F); err != nil {
		return err
	}
	for i := range bundle.SoilWater {
		if bundle.SoilWater[i], err = alloc(fmt.Sprintf("soil_water%d", i), gpu.FormatRGBA32F); err != nil {
			return err
		}
	}
	if bundle.Ancillary, err = alloc("ancillary", gpu.FormatRGBA32F); err != nil {
		return err
	}
	if bundle.Flow, err = alloc("flow", gpu.FormatRGBA32F); err != nil {
		return err
	}
	if bundle.Normal, err = alloc("normal", gpu.FormatRGBA32F); err != nil {
		return err
	}
	bundle.buildBindings()
	return nil
}

// Init moves every raster into its resting ShaderRead state. It must run
// inside a frame.
func (p *Pool) Init(b gpu.Backend) error {
	for i := range p.bundles {
		for _, r := range p.bundles[i].Rasters() {
			if err := b.TransitionState(r, gpu.Undefined, gpu.ShaderRead); err != nil {
				return fmt.Errorf("initialising block %d: %w", i, err)
			}
		}
	}
	return nil
}

// Capacity returns the number of blocks.
func (p *Pool) Capacity() int { return len(p.bundles) }

// Free returns the number of blocks on the free list.
func (p *Pool) Free() int { return len(p.free) }

// Waits returns how many acquisitions had to wait for a frame to retire.
func (p *Pool) Waits() int { return p.waits }

// Bundle returns the bundle of a block.
func (p *Pool) Bundle(block int) *Bundle { return &p.bundles[block] }

// Acquire pops a block off the free list. A block still referenced by a
// frame the backend has not retired is waited on before it is handed out.
func (p *Pool) Acquire(b gpu.Backend) (*Bundle, error) {
	n := len(p.free)
	if n == 0 {
		return nil, ErrPoolExhausted
	}
	slot := p.free[n-1]
	if slot.lastUsed > b.Retired() {
		p.waits++
		if err := b.WaitRetired(slot.lastUsed); err != nil {
			return nil, fmt.Errorf("waiting for block %d (frame %d): %w", slot.block, slot.lastUsed, err)
		}
	}
	p.free = p.free[:n-1]
	return &p.bundles[slot.block], nil
}

// Release pushes a block back onto the free list.
func (p *Pool) Release(block int, lastUsed uint64) {
	p.free = append(p.free, freeSlot{block: block, lastUsed: lastUsed})
}

// Destroy releases every allocated raster.
func (p *Pool) Destroy(b gpu.Backend) {
	for i := range p.bundles {
		for _, r := range p.bundles[i].Rasters() {
			if r != 0 {
				b.ReleaseRaster(r)
			}
		}
	}
	p.bundles = nil
	p.free = nil
}
