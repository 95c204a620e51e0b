//go:build !nogpu

// Package wgpu implements gpu.Backend on a Vulkan device through gogpu/wgpu's
// hardware abstraction layer.
//
// Pipelines are compiled from WGSL to SPIR-V with naga. Rasters are storage
// buffers of packed float32 texels, so every stage reads
// and writes them as array<f32> or array<vec4<f32>>. Each dispatch and draw
// is recorded as its own pass into one command buffer per frame; EndFrame
// submits it with the frame serial as fence value.
package wgpu

import (
	"encoding/binary"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	// Registers the Vulkan backend with hal.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/pthm-cable/terrastream/gpu"
)

const (
	// uniformStride is the minimum uniform buffer offset alignment.
	uniformStride = 256
	// framesInFlight bounds how far the host may run ahead of the device.
	framesInFlight = 2
	fenceTimeout   = 5 * time.Second
)

// Options configures the device backend.
type Options struct {
	TargetWidth, TargetHeight int
	// PreferDiscrete picks a discrete adapter over an integrated one.
	PreferDiscrete bool
	// UniformSlots is the number of parameter blocks a frame may upload
	// (default 4096).
	UniformSlots int
	Logger       *slog.Logger
}

type raster struct {
	desc gpu.RasterDesc
	buf  hal.Buffer
	size uint64
}

type pipeline struct {
	desc     gpu.PipelineDesc
	module   hal.ShaderModule
	layout   hal.BindGroupLayout
	plLayout hal.PipelineLayout
	compute  hal.ComputePipeline
	render   hal.RenderPipeline

	bindings []gpu.Binding
	params   []byte
}

// inflight is a submitted frame whose resources are freed once it retires.
type inflight struct {
	serial     uint64
	cmd        hal.CommandBuffer
	bindGroups []hal.BindGroup
}

// Device is a gpu.Backend backed by a Vulkan device.
type Device struct {
	opts   Options
	logger *slog.Logger

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  string
	fence    hal.Fence

	tracker   *gpu.StateTracker
	rasters   map[gpu.Raster]*raster
	meshes    map[gpu.Mesh]gpu.MeshDesc
	pipelines map[gpu.Pipeline]*pipeline
	nextID    uint32

	frame     uint64
	submitted uint64
	retired   uint64
	inFrame   bool
	encoder   hal.CommandEncoder
	bound     *pipeline
	cleared   bool
	barriers  int

	uniforms    hal.Buffer
	uniformNext int
	pending     []hal.BindGroup
	frames      []inflight

	target     hal.Texture
	targetView hal.TextureView
	staging    hal.Buffer
	rowPitch   uint32
}

// New opens the first suitable adapter and allocates the colour target.
func New(opts Options) (*Device, error) {
	if opts.TargetWidth <= 0 {
		opts.TargetWidth = 512
	}
	if opts.TargetHeight <= 0 {
		opts.TargetHeight = 512
	}
	if opts.UniformSlots <= 0 {
		opts.UniformSlots = 4096
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("vulkan backend not registered: %w", gpu.ErrUnavailable)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w: %w", gpu.ErrUnavailable, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("no GPU adapters found: %w", gpu.ErrUnavailable)
	}
	selected := pickAdapter(adapters, opts.PreferDiscrete)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w: %w", gpu.ErrUnavailable, err)
	}

	d := &Device{
		opts:      opts,
		logger:    logger,
		instance:  instance,
		device:    openDev.Device,
		queue:     openDev.Queue,
		adapter:   selected.Info.Name,
		tracker:   gpu.NewStateTracker(),
		rasters:   make(map[gpu.Raster]*raster),
		meshes:    make(map[gpu.Mesh]gpu.MeshDesc),
		pipelines: make(map[gpu.Pipeline]*pipeline),
	}
	if err := d.init(); err != nil {
		d.Close()
		return nil, err
	}

	logger.Info("wgpu device ready",
		"adapter", d.adapter,
		"target_width", opts.TargetWidth,
		"target_height", opts.TargetHeight,
	)
	return d, nil
}

func pickAdapter(adapters []hal.ExposedAdapter, preferDiscrete bool) *hal.ExposedAdapter {
	want := []gputypes.DeviceType{gputypes.DeviceTypeIntegratedGPU, gputypes.DeviceTypeDiscreteGPU}
	if preferDiscrete {
		want[0], want[1] = want[1], want[0]
	}
	for _, dt := range want {
		for i := range adapters {
			if adapters[i].Info.DeviceType == dt {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

func (d *Device) init() error {
	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	d.fence = fence

	d.uniforms, err = d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "params_ring",
		Size:  uint64(framesInFlight * d.opts.UniformSlots * uniformStride),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create parameter ring: %w", err)
	}

	w, h := uint32(d.opts.TargetWidth), uint32(d.opts.TargetHeight)
	d.target, err = d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "colour_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create colour target: %w", err)
	}
	d.targetView, err = d.device.CreateTextureView(d.target, &hal.TextureViewDescriptor{
		Label:         "colour_target_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("create colour target view: %w", err)
	}

	// Buffer rows of a texture copy are 256-byte aligned.
	d.rowPitch = (w*4 + 255) &^ 255
	d.staging, err = d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "colour_target_staging",
		Size:  uint64(d.rowPitch) * uint64(h),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create target staging buffer: %w", err)
	}
	return nil
}

// Name implements gpu.Backend.
func (d *Device) Name() string { return "wgpu" }

// Adapter returns the name of the opened adapter.
func (d *Device) Adapter() string { return d.adapter }

func (d *Device) newID() uint32 {
	d.nextID++
	return d.nextID
}

// AllocateRaster implements gpu.Backend.
func (d *Device) AllocateRaster(desc gpu.RasterDesc) (gpu.Raster, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("raster %q: invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	size := uint64(desc.Bytes())
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return 0, fmt.Errorf("raster %q (%d bytes): %w: %w", desc.Label, size, gpu.ErrOutOfMemory, err)
	}
	// Device memory is not zeroed for us.
	d.queue.WriteBuffer(buf, 0, make([]byte, size))

	r := gpu.Raster(d.newID())
	d.rasters[r] = &raster{desc: desc, buf: buf, size: size}
	d.tracker.Add(r)
	return r, nil
}

// ReleaseRaster implements gpu.Backend.
func (d *Device) ReleaseRaster(r gpu.Raster) {
	ras, ok := d.rasters[r]
	if !ok {
		return
	}
	d.device.DestroyBuffer(ras.buf)
	delete(d.rasters, r)
	d.tracker.Remove(r)
}

// AllocateMesh implements gpu.Backend. The grid is generated in the vertex
// stage from the vertex index, so a mesh has no device storage.
func (d *Device) AllocateMesh(desc gpu.MeshDesc) (gpu.Mesh, error) {
	if desc.Segments <= 0 {
		return 0, fmt.Errorf("mesh %q: invalid segment count %d", desc.Label, desc.Segments)
	}
	m := gpu.Mesh(d.newID())
	d.meshes[m] = desc
	return m, nil
}

// CreatePipeline implements gpu.Backend.
func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	if desc.WGSL == "" {
		return 0, fmt.Errorf("pipeline %q: no WGSL source", desc.Label)
	}
	p := &pipeline{desc: desc}
	if err := d.buildPipeline(p); err != nil {
		d.destroyPipeline(p)
		return 0, fmt.Errorf("pipeline %q: %w", desc.Label, err)
	}
	id := gpu.Pipeline(d.newID())
	d.pipelines[id] = p
	d.logger.Debug("pipeline created", "label", desc.Label, "slots", len(desc.Slots))
	return id, nil
}

func (d *Device) buildPipeline(p *pipeline) error {
	desc := p.desc
	spirv, err := compileWGSL(desc.WGSL)
	if err != nil {
		return err
	}
	p.module, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}

	visibility := gputypes.ShaderStageCompute
	if desc.Kind == gpu.Render {
		visibility = gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
	}
	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(desc.Slots)+1)
	for i, s := range desc.Slots {
		typ := gputypes.BufferBindingTypeReadOnlyStorage
		if s.Access == gpu.Write {
			typ = gputypes.BufferBindingTypeStorage
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: visibility,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		})
	}
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding:    uint32(len(desc.Slots)),
		Visibility: visibility,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	})

	p.layout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label + "_bgl",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	p.plLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{p.layout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	if desc.Kind == gpu.Compute {
		p.compute, err = d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:   desc.Label,
			Layout:  p.plLayout,
			Compute: hal.ComputeState{Module: p.module, EntryPoint: "main"},
		})
		if err != nil {
			return fmt.Errorf("create compute pipeline: %w", err)
		}
		return nil
	}

	p.render, err = d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: p.plLayout,
		Vertex: hal.VertexState{
			Module:     p.module,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     p.module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    gputypes.TextureFormatRGBA8Unorm,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create render pipeline: %w", err)
	}
	return nil
}

// compileWGSL translates WGSL to SPIR-V words.
func compileWGSL(src string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

func (d *Device) destroyPipeline(p *pipeline) {
	if p.compute != nil {
		d.device.DestroyComputePipeline(p.compute)
	}
	if p.render != nil {
		d.device.DestroyRenderPipeline(p.render)
	}
	if p.plLayout != nil {
		d.device.DestroyPipelineLayout(p.plLayout)
	}
	if p.layout != nil {
		d.device.DestroyBindGroupLayout(p.layout)
	}
	if p.module != nil {
		d.device.DestroyShaderModule(p.module)
	}
}

// BeginFrame implements gpu.Backend. At most framesInFlight frames are
// outstanding; beginning another waits for the oldest.
func (d *Device) BeginFrame() (uint64, error) {
	if d.inFrame {
		return 0, fmt.Errorf("frame %d still open", d.frame)
	}
	if d.submitted >= framesInFlight {
		if err := d.WaitRetired(d.submitted - framesInFlight + 1); err != nil {
			return 0, err
		}
	}

	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "frame"})
	if err != nil {
		return 0, fmt.Errorf("create command encoder: %w", err)
	}
	d.frame++
	if err := enc.BeginEncoding(fmt.Sprintf("frame_%d", d.frame)); err != nil {
		return 0, fmt.Errorf("begin encoding: %w", err)
	}
	d.encoder = enc
	d.inFrame = true
	d.bound = nil
	d.cleared = false
	d.uniformNext = 0
	return d.frame, nil
}

// EndFrame implements gpu.Backend. It copies the colour target to the
// staging buffer and submits the frame.
func (d *Device) EndFrame() error {
	if !d.inFrame {
		return gpu.ErrNotInFrame
	}
	d.inFrame = false

	if !d.cleared {
		rp := d.encoder.BeginRenderPass(d.targetPass(gputypes.LoadOpClear))
		rp.End()
	}

	w, h := uint32(d.opts.TargetWidth), uint32(d.opts.TargetHeight)
	d.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: d.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	d.encoder.CopyTextureToBuffer(d.target, d.staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: d.rowPitch, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: d.target, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	d.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: d.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmd, err := d.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding frame %d: %w", d.frame, err)
	}
	if err := d.queue.Submit([]hal.CommandBuffer{cmd}, d.fence, d.frame); err != nil {
		d.device.FreeCommandBuffer(cmd)
		return fmt.Errorf("submit frame %d: %w", d.frame, err)
	}
	d.submitted = d.frame
	d.frames = append(d.frames, inflight{serial: d.frame, cmd: cmd, bindGroups: d.pending})
	d.pending = nil
	return nil
}

// Retired implements gpu.Backend. It polls the fence without blocking.
func (d *Device) Retired() uint64 {
	for len(d.frames) > 0 {
		ok, err := d.device.Wait(d.fence, d.frames[0].serial, 0)
		if err != nil || !ok {
			break
		}
		d.retire()
	}
	return d.retired
}

// WaitRetired implements gpu.Backend.
func (d *Device) WaitRetired(serial uint64) error {
	if serial <= d.retired {
		return nil
	}
	if serial > d.submitted {
		return fmt.Errorf("frame %d not submitted (last %d)", serial, d.submitted)
	}
	ok, err := d.device.Wait(d.fence, serial, fenceTimeout)
	if err != nil {
		return fmt.Errorf("wait for frame %d: %w", serial, err)
	}
	if !ok {
		return fmt.Errorf("frame %d did not retire within %v", serial, fenceTimeout)
	}
	for len(d.frames) > 0 && d.frames[0].serial <= serial {
		d.retire()
	}
	return nil
}

// retire frees the resources of the oldest in-flight frame.
func (d *Device) retire() {
	f := d.frames[0]
	d.frames = d.frames[1:]
	for _, bg := range f.bindGroups {
		d.device.DestroyBindGroup(bg)
	}
	d.device.FreeCommandBuffer(f.cmd)
	d.retired = f.serial
}

func (d *Device) pipeline(p gpu.Pipeline) (*pipeline, error) {
	pl, ok := d.pipelines[p]
	if !ok {
		return nil, fmt.Errorf("pipeline %d: %w", p, gpu.ErrReleased)
	}
	return pl, nil
}

// BindPipeline implements gpu.Backend.
func (d *Device) BindPipeline(p gpu.Pipeline) error {
	if !d.inFrame {
		return gpu.ErrNotInFrame
	}
	pl, err := d.pipeline(p)
	if err != nil {
		return err
	}
	d.bound = pl
	return nil
}

// BindResources implements gpu.Backend.
func (d *Device) BindResources(p gpu.Pipeline, bindings []gpu.Binding) error {
	if !d.inFrame {
		return gpu.ErrNotInFrame
	}
	pl, err := d.pipeline(p)
	if err != nil {
		return err
	}
	if len(bindings) != len(pl.desc.Slots) {
		return fmt.Errorf("pipeline %q expects %d bindings, got %d", pl.desc.Label, len(pl.desc.Slots), len(bindings))
	}
	for _, b := range bindings {
		if b.Slot < 0 || b.Slot >= len(pl.desc.Slots) {
			return fmt.Errorf("pipeline %q: slot %d out of range", pl.desc.Label, b.Slot)
		}
		if want := pl.desc.Slots[b.Slot].Access; b.Access != want {
			return fmt.Errorf("pipeline %q slot %d declared %s, bound %s", pl.desc.Label, b.Slot, want, b.Access)
		}
		if _, ok := d.rasters[b.Raster]; !ok {
			return fmt.Errorf("slot %d raster %d: %w", b.Slot, b.Raster, gpu.ErrReleased)
		}
	}
	pl.bindings = append(pl.bindings[:0], bindings...)
	return nil
}

// SetParameters implements gpu.Backend.
func (d *Device) SetParameters(p gpu.Pipeline, params []byte) error {
	if !d.inFrame {
		return gpu.ErrNotInFrame
	}
	pl, err := d.pipeline(p)
	if err != nil {
		return err
	}
	if len(params) > uniformStride || (pl.desc.ParamSize > 0 && len(params) != pl.desc.ParamSize) {
		return fmt.Errorf("pipeline %q: parameter block of %d bytes", pl.desc.Label, len(params))
	}
	pl.params = append(pl.params[:0], params...)
	return nil
}

// TransitionState implements gpu.Backend. Rasters stay storage buffers in
// both states, so each transition records a storage-to-storage memory
// barrier ordering the previous pass's writes before the next pass.
func (d *Device) TransitionState(r gpu.Raster, from, to gpu.ResourceState) error {
	if !d.inFrame {
		return gpu.ErrNotInFrame
	}
	ras, ok := d.rasters[r]
	if !ok {
		return fmt.Errorf("raster %d: %w", r, gpu.ErrReleased)
	}
	if err := d.tracker.Transition(r, from, to); err != nil {
		return err
	}
	d.encoder.TransitionBuffers([]hal.BufferBarrier{barrierFor(ras.buf, from, to)})
	d.barriers++
	return nil
}

// Barriers returns the number of buffer barriers recorded since creation.
func (d *Device) Barriers() int { return d.barriers }

// usageFor maps a resource state onto the buffer usage it is accessed with.
func usageFor(s gpu.ResourceState) gputypes.BufferUsage {
	switch s {
	case gpu.ShaderRead, gpu.Storage:
		return gputypes.BufferUsageStorage
	default:
		return gputypes.BufferUsageCopyDst
	}
}

func barrierFor(buf hal.Buffer, from, to gpu.ResourceState) hal.BufferBarrier {
	return hal.BufferBarrier{
		Buffer: buf,
		Usage: hal.BufferUsageTransition{
			OldUsage: usageFor(from),
			NewUsage: usageFor(to),
		},
	}
}

// bindGroup uploads the bound parameters into this frame's ring slot and
// builds the bind group for pl.
func (d *Device) bindGroup(pl *pipeline) (hal.BindGroup, error) {
	if len(pl.bindings) != len(pl.desc.Slots) {
		return nil, fmt.Errorf("pipeline %q: resources not bound", pl.desc.Label)
	}
	if err := d.tracker.Check(pl.bindings); err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", pl.desc.Label, err)
	}
	if d.uniformNext >= d.opts.UniformSlots {
		return nil, fmt.Errorf("pipeline %q: more than %d parameter uploads in one frame", pl.desc.Label, d.opts.UniformSlots)
	}

	slot := int(d.frame%framesInFlight)*d.opts.UniformSlots + d.uniformNext
	d.uniformNext++
	offset := uint64(slot * uniformStride)
	size := uint64(max(len(pl.params), 16))
	params := make([]byte, size)
	copy(params, pl.params)
	d.queue.WriteBuffer(d.uniforms, offset, params)

	entries := make([]gputypes.BindGroupEntry, 0, len(pl.bindings)+1)
	for _, b := range pl.bindings {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding: uint32(b.Slot),
			Resource: gputypes.BufferBinding{
				Buffer: d.rasters[b.Raster].buf.NativeHandle(),
				Offset: 0,
				Size:   0, // whole buffer
			},
		})
	}
	entries = append(entries, gputypes.BindGroupEntry{
		Binding: uint32(len(pl.desc.Slots)),
		Resource: gputypes.BufferBinding{
			Buffer: d.uniforms.NativeHandle(),
			Offset: offset,
			Size:   size,
		},
	})

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   pl.desc.Label + "_bg",
		Layout:  pl.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: create bind group: %w", pl.desc.Label, err)
	}
	d.pending = append(d.pending, bg)
	return bg, nil
}

// DispatchCompute implements gpu.Backend.
func (d *Device) DispatchCompute(x, y, z uint32) error {
	if !d.inFrame {
		return gpu.ErrNotInFrame
	}
	pl := d.bound
	if pl == nil || pl.compute == nil {
		return gpu.ErrNoPipeline
	}
	bg, err := d.bindGroup(pl)
	if err != nil {
		return err
	}
	pass := d.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: pl.desc.Label})
	pass.SetPipeline(pl.compute)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(x, y, z)
	pass.End()
	return nil
}

func (d *Device) targetPass(load gputypes.LoadOp) *hal.RenderPassDescriptor {
	return &hal.RenderPassDescriptor{
		Label: "colour_target_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       d.targetView,
				LoadOp:     load,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
			},
		},
	}
}

// Draw implements gpu.Backend. The first draw of a frame clears the target.
func (d *Device) Draw(call gpu.DrawCall) error {
	if !d.inFrame {
		return gpu.ErrNotInFrame
	}
	pl := d.bound
	if pl == nil || pl.render == nil {
		return gpu.ErrNoPipeline
	}
	mesh, ok := d.meshes[call.Mesh]
	if !ok {
		return fmt.Errorf("mesh %d: %w", call.Mesh, gpu.ErrReleased)
	}
	if call.IndexCount <= 0 || call.IndexCount > mesh.IndexCount() {
		return fmt.Errorf("mesh %q: index count %d out of range (%d)", mesh.Label, call.IndexCount, mesh.IndexCount())
	}
	bg, err := d.bindGroup(pl)
	if err != nil {
		return err
	}

	load := gputypes.LoadOpLoad
	if !d.cleared {
		load = gputypes.LoadOpClear
		d.cleared = true
	}
	rp := d.encoder.BeginRenderPass(d.targetPass(load))
	rp.SetPipeline(pl.render)
	rp.SetBindGroup(0, bg, nil)
	rp.Draw(uint32(call.IndexCount), uint32(max(call.Instances, 1)), 0, 0)
	rp.End()
	return nil
}

// ReadRaster implements gpu.Backend. It must be called between frames and
// waits for all submitted work.
func (d *Device) ReadRaster(r gpu.Raster, dst []float32) error {
	if d.inFrame {
		return fmt.Errorf("raster readback inside frame %d", d.frame)
	}
	ras, ok := d.rasters[r]
	if !ok {
		return fmt.Errorf("raster %d: %w", r, gpu.ErrReleased)
	}
	n := int(ras.size / 4)
	if len(dst) < n {
		return fmt.Errorf("raster %q: destination holds %d floats, need %d", ras.desc.Label, len(dst), n)
	}
	if err := d.WaitRetired(d.submitted); err != nil {
		return err
	}

	data, err := d.readBuffer(ras.buf, ras.size)
	if err != nil {
		return fmt.Errorf("raster %q: %w", ras.desc.Label, err)
	}
	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return nil
}

// readBuffer copies src into a mappable staging buffer on its own
// submission and returns the bytes.
func (d *Device) readBuffer(src hal.Buffer, size uint64) ([]byte, error) {
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	enc.CopyBufferToBuffer(src, staging, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: size}})
	cmd, err := enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)

	fence, err := d.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)
	if err := d.queue.Submit([]hal.CommandBuffer{cmd}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !ok {
		return nil, fmt.Errorf("wait for readback: ok=%v err=%w", ok, err)
	}

	data := make([]byte, size)
	if err := d.queue.ReadBuffer(staging, 0, data); err != nil {
		return nil, fmt.Errorf("read staging buffer: %w", err)
	}
	return data, nil
}

// ReadTarget implements gpu.Backend.
func (d *Device) ReadTarget() (*image.RGBA, error) {
	if d.submitted == 0 {
		return nil, fmt.Errorf("no completed frame")
	}
	if err := d.WaitRetired(d.submitted); err != nil {
		return nil, err
	}
	w, h := d.opts.TargetWidth, d.opts.TargetHeight
	data := make([]byte, int(d.rowPitch)*h)
	if err := d.queue.ReadBuffer(d.staging, 0, data); err != nil {
		return nil, fmt.Errorf("read colour target: %w", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+w*4], data[y*int(d.rowPitch):])
	}
	return img, nil
}

// Close implements gpu.Backend.
func (d *Device) Close() error {
	if d.device == nil {
		return nil
	}
	if d.submitted > d.retired {
		if err := d.WaitRetired(d.submitted); err != nil {
			d.logger.Warn("closing with frames in flight", "error", err)
		}
	}
	for _, bg := range d.pending {
		d.device.DestroyBindGroup(bg)
	}
	for r := range d.rasters {
		d.ReleaseRaster(r)
	}
	for _, p := range d.pipelines {
		d.destroyPipeline(p)
	}
	if d.staging != nil {
		d.device.DestroyBuffer(d.staging)
	}
	if d.targetView != nil {
		d.device.DestroyTextureView(d.targetView)
	}
	if d.target != nil {
		d.device.DestroyTexture(d.target)
	}
	if d.uniforms != nil {
		d.device.DestroyBuffer(d.uniforms)
	}
	if d.fence != nil {
		d.device.DestroyFence(d.fence)
	}
	d.device.Destroy()
	d.device = nil
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.logger.Debug("wgpu device closed", "frames", d.submitted)
	return nil
}

var _ gpu.Backend = (*Device)(nil)
