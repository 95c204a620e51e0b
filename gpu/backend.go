// Package gpu defines the command contract the terrain core issues against a
// graphics/compute device, plus a host-memory reference backend.
//
// Callers allocate rasters and pipelines up front, then record work inside
// BeginFrame/EndFrame: bind a pipeline, bind rasters to its slots, upload a
// parameter block, and dispatch or draw. Every raster carries a
// ResourceState. Writes require Storage, sampling requires ShaderRead, and
// callers move rasters between the two with TransitionState.
package gpu

import (
	"errors"
	"fmt"
	"image"
)

// Backend errors.
var (
	// ErrStateMismatch is returned when a transition's from-state does not
	// match the raster's tracked state.
	ErrStateMismatch = errors.New("gpu: resource state mismatch")

	// ErrHazard is returned when a dispatch or draw would sample a raster that
	// is writable, write a raster that is shader-readable, or bind one raster
	// for both.
	ErrHazard = errors.New("gpu: read/write hazard")

	// ErrNoPipeline is returned when work is recorded with no pipeline bound.
	ErrNoPipeline = errors.New("gpu: no pipeline bound")

	// ErrNotInFrame is returned when work is recorded outside BeginFrame/EndFrame.
	ErrNotInFrame = errors.New("gpu: not recording a frame")

	// ErrOutOfMemory is returned when a raster or mesh cannot be allocated.
	ErrOutOfMemory = errors.New("gpu: out of device memory")

	// ErrReleased is returned when a released handle is used.
	ErrReleased = errors.New("gpu: handle released")

	// ErrUnavailable is returned when a backend cannot be created on this host.
	ErrUnavailable = errors.New("gpu: backend unavailable")
)

// ResourceState is the usage a raster is currently prepared for.
type ResourceState uint8

const (
	// Undefined is the state of a freshly allocated raster.
	Undefined ResourceState = iota
	// ShaderRead rasters may be sampled but not written.
	ShaderRead
	// Storage rasters may be written (and read back by the writer).
	Storage
)

func (s ResourceState) String() string {
	switch s {
	case Undefined:
		return "Undefined"
	case ShaderRead:
		return "ShaderRead"
	case Storage:
		return "Storage"
	default:
		return fmt.Sprintf("ResourceState(%d)", int(s))
	}
}

// Format is a raster texel layout. All formats are 32-bit float channels.
type Format uint8

const (
	FormatR32F Format = iota
	FormatRG32F
	FormatRGBA32F
)

// Channels returns the number of float channels per texel.
func (f Format) Channels() int {
	switch f {
	case FormatR32F:
		return 1
	case FormatRG32F:
		return 2
	default:
		return 4
	}
}

// Handles are opaque, backend-assigned identifiers. Zero is never valid.
type (
	Raster   uint32
	Mesh     uint32
	Pipeline uint32
)

// RasterDesc describes a 2D raster.
type RasterDesc struct {
	Label         string
	Width, Height int
	Format        Format
}

// Bytes returns the texel storage size.
func (d RasterDesc) Bytes() int {
	return d.Width * d.Height * d.Format.Channels() * 4
}

// MeshDesc describes a flat grid of Segments×Segments quads on the unit
// square. Vertices are (u, v) pairs; indices form two triangles per quad.
type MeshDesc struct {
	Label    string
	Segments int
}

// IndexCount returns the number of indices in the mesh.
func (d MeshDesc) IndexCount() int { return d.Segments * d.Segments * 6 }

// VertexCount returns the number of vertices in the mesh.
func (d MeshDesc) VertexCount() int { return (d.Segments + 1) * (d.Segments + 1) }

// Access is how a pipeline slot touches its raster.
type Access uint8

const (
	// Sample reads the raster; it must be in ShaderRead.
	Sample Access = iota
	// Write reads and writes the raster; it must be in Storage.
	Write
)

func (a Access) String() string {
	if a == Write {
		return "write"
	}
	return "sample"
}

// Required returns the state a raster must be in for this access.
func (a Access) Required() ResourceState {
	if a == Write {
		return Storage
	}
	return ShaderRead
}

// Slot declares one raster binding of a pipeline.
type Slot struct {
	Name   string
	Access Access
}

// Binding attaches a raster to a pipeline slot.
type Binding struct {
	Slot   int
	Raster Raster
	Access Access
}

// PipelineKind distinguishes compute from graphics pipelines.
type PipelineKind uint8

const (
	Compute PipelineKind = iota
	Render
)

// PipelineDesc describes a compute or render pipeline. Device backends build
// it from WGSL; the reference backend runs Kernel or Shade on the host.
type PipelineDesc struct {
	Label     string
	Kind      PipelineKind
	WGSL      string
	Slots     []Slot
	ParamSize int

	// WorkgroupSize is the texel footprint of one compute work group.
	WorkgroupSize [2]int

	Kernel Kernel
	Shade  Shader
}

// DrawCall is an indexed draw of a mesh.
type DrawCall struct {
	Mesh       Mesh
	IndexCount int
	Instances  int
}

// Backend is the device contract consumed by the terrain core.
//
// Backends are not safe for concurrent use; a single host goroutine records
// all work.
type Backend interface {
	Name() string

	AllocateRaster(desc RasterDesc) (Raster, error)
	AllocateMesh(desc MeshDesc) (Mesh, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)

	// BeginFrame opens a new frame and returns its serial (starting at 1).
	BeginFrame() (uint64, error)
	// EndFrame closes the frame and submits its work.
	EndFrame() error
	// Retired returns the newest frame serial whose work has completed.
	Retired() uint64
	// WaitRetired blocks until the given frame serial has completed.
	WaitRetired(serial uint64) error

	BindPipeline(p Pipeline) error
	BindResources(p Pipeline, bindings []Binding) error
	SetParameters(p Pipeline, params []byte) error
	DispatchCompute(x, y, z uint32) error
	Draw(call DrawCall) error
	TransitionState(r Raster, from, to ResourceState) error

	// ReadRaster copies raster texels into dst, which must hold
	// Width*Height*Channels floats. Only valid between frames.
	ReadRaster(r Raster, dst []float32) error
	// ReadTarget returns the colour target of the last completed frame.
	ReadTarget() (*image.RGBA, error)

	ReleaseRaster(r Raster)
	Close() error
}
