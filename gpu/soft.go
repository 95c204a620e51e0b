package gpu

import (
	"fmt"
	"image"
	"log/slog"
)

// SoftOptions configures the reference backend.
type SoftOptions struct {
	// Workers is the number of goroutines executing work groups
	// (0 = GOMAXPROCS).
	Workers int
	// MemoryBudget caps raster storage in bytes (0 = unlimited).
	MemoryBudget int
	// TargetWidth and TargetHeight size the colour target (default 512×512).
	TargetWidth, TargetHeight int
	Logger                    *slog.Logger
}

// SoftStats counts recorded work since creation.
type SoftStats struct {
	Frames      uint64
	Dispatches  int
	Groups      int
	Draws       int
	Transitions int
}

type softRaster struct {
	desc RasterDesc
	data []float32
}

type softPipeline struct {
	desc     PipelineDesc
	bindings []Binding
	params   []byte
}

// Soft is a Backend that keeps rasters in host memory and runs pipeline
// kernels on a worker pool. It enforces the same state and hazard rules a
// device would need barriers for, so it doubles as a validator.
type Soft struct {
	opts   SoftOptions
	logger *slog.Logger

	tracker   *StateTracker
	rasters   map[Raster]*softRaster
	meshes    map[Mesh]MeshDesc
	pipelines map[Pipeline]*softPipeline
	nextID    uint32
	used      int

	frame   uint64
	retired uint64
	inFrame bool
	bound   *softPipeline

	target *image.RGBA
	last   *image.RGBA

	pool  *workerPool
	stats SoftStats
}

// NewSoft creates a reference backend.
func NewSoft(opts SoftOptions) *Soft {
	if opts.TargetWidth <= 0 {
		opts.TargetWidth = 512
	}
	if opts.TargetHeight <= 0 {
		opts.TargetHeight = 512
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Soft{
		opts:      opts,
		logger:    logger,
		tracker:   NewStateTracker(),
		rasters:   make(map[Raster]*softRaster),
		meshes:    make(map[Mesh]MeshDesc),
		pipelines: make(map[Pipeline]*softPipeline),
		target:    image.NewRGBA(image.Rect(0, 0, opts.TargetWidth, opts.TargetHeight)),
		pool:      newWorkerPool(opts.Workers),
	}
}

// Name implements Backend.
func (s *Soft) Name() string { return "soft" }

// Stats returns counters of recorded work.
func (s *Soft) Stats() SoftStats { return s.stats }

// MemoryUsed returns the bytes held by live rasters.
func (s *Soft) MemoryUsed() int { return s.used }

func (s *Soft) newID() uint32 {
	s.nextID++
	return s.nextID
}

// AllocateRaster implements Backend.
func (s *Soft) AllocateRaster(desc RasterDesc) (Raster, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("raster %q: invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	size := desc.Bytes()
	if s.opts.MemoryBudget > 0 && s.used+size > s.opts.MemoryBudget {
		return 0, fmt.Errorf("raster %q needs %d bytes, %d of %d used: %w",
			desc.Label, size, s.used, s.opts.MemoryBudget, ErrOutOfMemory)
	}

	r := Raster(s.newID())
	s.rasters[r] = &softRaster{
		desc: desc,
		data: make([]float32, desc.Width*desc.Height*desc.Format.Channels()),
	}
	s.tracker.Add(r)
	s.used += size
	return r, nil
}

// ReleaseRaster implements Backend.
func (s *Soft) ReleaseRaster(r Raster) {
	sr, ok := s.rasters[r]
	if !ok {
		return
	}
	s.used -= sr.desc.Bytes()
	delete(s.rasters, r)
	s.tracker.Remove(r)
}

// AllocateMesh implements Backend.
func (s *Soft) AllocateMesh(desc MeshDesc) (Mesh, error) {
	if desc.Segments <= 0 {
		return 0, fmt.Errorf("mesh %q: invalid segment count %d", desc.Label, desc.Segments)
	}
	m := Mesh(s.newID())
	s.meshes[m] = desc
	return m, nil
}

// CreatePipeline implements Backend.
func (s *Soft) CreatePipeline(desc PipelineDesc) (Pipeline, error) {
	switch desc.Kind {
	case Compute:
		if desc.Kernel == nil {
			return 0, fmt.Errorf("pipeline %q: no host kernel", desc.Label)
		}
		if desc.WorkgroupSize[0] <= 0 || desc.WorkgroupSize[1] <= 0 {
			return 0, fmt.Errorf("pipeline %q: invalid workgroup size %v", desc.Label, desc.WorkgroupSize)
		}
	case Render:
		if desc.Shade == nil {
			return 0, fmt.Errorf("pipeline %q: no host shader", desc.Label)
		}
	}
	p := Pipeline(s.newID())
	s.pipelines[p] = &softPipeline{desc: desc}
	return p, nil
}

// BeginFrame implements Backend.
func (s *Soft) BeginFrame() (uint64, error) {
	if s.inFrame {
		return 0, fmt.Errorf("frame %d still open", s.frame)
	}
	s.frame++
	s.inFrame = true
	s.bound = nil
	clear(s.target.Pix)
	return s.frame, nil
}

// EndFrame implements Backend. Host work has already run, so the frame
// retires immediately.
func (s *Soft) EndFrame() error {
	if !s.inFrame {
		return ErrNotInFrame
	}
	s.inFrame = false
	s.retired = s.frame
	s.stats.Frames++

	if s.last == nil {
		s.last = image.NewRGBA(s.target.Rect)
	}
	copy(s.last.Pix, s.target.Pix)
	return nil
}

// Retired implements Backend.
func (s *Soft) Retired() uint64 { return s.retired }

// WaitRetired implements Backend.
func (s *Soft) WaitRetired(serial uint64) error {
	if serial <= s.retired {
		return nil
	}
	return fmt.Errorf("frame %d not submitted (retired %d)", serial, s.retired)
}

func (s *Soft) pipeline(p Pipeline) (*softPipeline, error) {
	sp, ok := s.pipelines[p]
	if !ok {
		return nil, fmt.Errorf("pipeline %d: %w", p, ErrReleased)
	}
	return sp, nil
}

// BindPipeline implements Backend.
func (s *Soft) BindPipeline(p Pipeline) error {
	if !s.inFrame {
		return ErrNotInFrame
	}
	sp, err := s.pipeline(p)
	if err != nil {
		return err
	}
	s.bound = sp
	return nil
}

// BindResources implements Backend.
func (s *Soft) BindResources(p Pipeline, bindings []Binding) error {
	if !s.inFrame {
		return ErrNotInFrame
	}
	sp, err := s.pipeline(p)
	if err != nil {
		return err
	}
	if len(bindings) != len(sp.desc.Slots) {
		return fmt.Errorf("pipeline %q expects %d bindings, got %d", sp.desc.Label, len(sp.desc.Slots), len(bindings))
	}
	for _, b := range bindings {
		if b.Slot < 0 || b.Slot >= len(sp.desc.Slots) {
			return fmt.Errorf("pipeline %q: slot %d out of range", sp.desc.Label, b.Slot)
		}
		if want := sp.desc.Slots[b.Slot].Access; b.Access != want {
			return fmt.Errorf("pipeline %q slot %d (%s) declared %s, bound %s",
				sp.desc.Label, b.Slot, sp.desc.Slots[b.Slot].Name, want, b.Access)
		}
		if _, ok := s.rasters[b.Raster]; !ok {
			return fmt.Errorf("slot %d raster %d: %w", b.Slot, b.Raster, ErrReleased)
		}
	}
	sp.bindings = append(sp.bindings[:0], bindings...)
	return nil
}

// SetParameters implements Backend.
func (s *Soft) SetParameters(p Pipeline, params []byte) error {
	if !s.inFrame {
		return ErrNotInFrame
	}
	sp, err := s.pipeline(p)
	if err != nil {
		return err
	}
	if sp.desc.ParamSize > 0 && len(params) != sp.desc.ParamSize {
		return fmt.Errorf("pipeline %q expects %d parameter bytes, got %d", sp.desc.Label, sp.desc.ParamSize, len(params))
	}
	sp.params = append(sp.params[:0], params...)
	return nil
}

// TransitionState implements Backend.
func (s *Soft) TransitionState(r Raster, from, to ResourceState) error {
	if !s.inFrame {
		return ErrNotInFrame
	}
	if err := s.tracker.Transition(r, from, to); err != nil {
		return err
	}
	s.stats.Transitions++
	return nil
}

// views resolves the bound rasters of sp in slot order.
func (s *Soft) views(sp *softPipeline) ([]View, error) {
	if len(sp.bindings) != len(sp.desc.Slots) {
		return nil, fmt.Errorf("pipeline %q: resources not bound", sp.desc.Label)
	}
	if err := s.tracker.Check(sp.bindings); err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", sp.desc.Label, err)
	}
	views := make([]View, len(sp.desc.Slots))
	for _, b := range sp.bindings {
		r := s.rasters[b.Raster]
		views[b.Slot] = View{
			Data:     r.data,
			Width:    r.desc.Width,
			Height:   r.desc.Height,
			Channels: r.desc.Format.Channels(),
		}
	}
	return views, nil
}

// DispatchCompute implements Backend.
func (s *Soft) DispatchCompute(x, y, z uint32) error {
	if !s.inFrame {
		return ErrNotInFrame
	}
	sp := s.bound
	if sp == nil || sp.desc.Kind != Compute {
		return ErrNoPipeline
	}
	if x == 0 || y == 0 || z == 0 {
		return fmt.Errorf("pipeline %q: empty dispatch %dx%dx%d", sp.desc.Label, x, y, z)
	}
	views, err := s.views(sp)
	if err != nil {
		return err
	}

	gw, gh := sp.desc.WorkgroupSize[0], sp.desc.WorkgroupSize[1]
	w, h := views[0].Width, views[0].Height
	nx, ny := int(x), int(y)
	total := nx * ny * int(z)
	params := sp.params
	kernel := sp.desc.Kernel

	s.pool.run(total, func(start, end int) {
		g := Group{Params: params, views: views}
		for i := start; i < end; i++ {
			g.ID = [3]int{i % nx, (i / nx) % ny, i / (nx * ny)}
			g.X0, g.Y0 = g.ID[0]*gw, g.ID[1]*gh
			g.X1, g.Y1 = min(g.X0+gw, w), min(g.Y0+gh, h)
			if g.X0 >= g.X1 || g.Y0 >= g.Y1 {
				continue
			}
			kernel(&g)
		}
	})

	s.stats.Dispatches++
	s.stats.Groups += total
	return nil
}

// Draw implements Backend.
func (s *Soft) Draw(call DrawCall) error {
	if !s.inFrame {
		return ErrNotInFrame
	}
	sp := s.bound
	if sp == nil || sp.desc.Kind != Render {
		return ErrNoPipeline
	}
	mesh, ok := s.meshes[call.Mesh]
	if !ok {
		return fmt.Errorf("mesh %d: %w", call.Mesh, ErrReleased)
	}
	if call.IndexCount <= 0 || call.IndexCount > mesh.IndexCount() {
		return fmt.Errorf("mesh %q: index count %d out of range (%d)", mesh.Label, call.IndexCount, mesh.IndexCount())
	}
	views, err := s.views(sp)
	if err != nil {
		return err
	}

	sp.desc.Shade(&DrawContext{
		Params:     sp.params,
		Mesh:       mesh,
		IndexCount: call.IndexCount,
		Target:     s.target,
		views:      views,
	})
	s.stats.Draws++
	return nil
}

// ReadRaster implements Backend.
func (s *Soft) ReadRaster(r Raster, dst []float32) error {
	sr, ok := s.rasters[r]
	if !ok {
		return fmt.Errorf("raster %d: %w", r, ErrReleased)
	}
	if len(dst) < len(sr.data) {
		return fmt.Errorf("raster %q: destination holds %d floats, need %d", sr.desc.Label, len(dst), len(sr.data))
	}
	copy(dst, sr.data)
	return nil
}

// RasterData returns the backing texels of r, or nil if r is not live.
// Writes through the slice bypass state tracking; it is meant for seeding
// test fixtures and tools.
func (s *Soft) RasterData(r Raster) []float32 {
	if sr, ok := s.rasters[r]; ok {
		return sr.data
	}
	return nil
}

// ReadTarget implements Backend.
func (s *Soft) ReadTarget() (*image.RGBA, error) {
	if s.last == nil {
		return nil, fmt.Errorf("no completed frame")
	}
	out := image.NewRGBA(s.last.Rect)
	copy(out.Pix, s.last.Pix)
	return out, nil
}

// State returns the tracked state of r.
func (s *Soft) State(r Raster) ResourceState {
	st, _ := s.tracker.State(r)
	return st
}

// Close implements Backend.
func (s *Soft) Close() error {
	s.pool.stop()
	s.logger.Debug("soft backend closed",
		"frames", s.stats.Frames,
		"dispatches", s.stats.Dispatches,
		"draws", s.stats.Draws,
	)
	s.rasters = nil
	s.pipelines = nil
	s.meshes = nil
	return nil
}
