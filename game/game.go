// Package game drives the tile cache frame loop: it moves the viewpoint,
// updates the cache, steps the simulation, draws the visible tiles and feeds
// telemetry. The same loop runs headless or behind a raylib window.
package game

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/terrastream/camera"
	"github.com/pthm-cable/terrastream/config"
	"github.com/pthm-cable/terrastream/gpu"
	"github.com/pthm-cable/terrastream/grid"
	"github.com/pthm-cable/terrastream/renderer"
	"github.com/pthm-cable/terrastream/scene"
	"github.com/pthm-cable/terrastream/telemetry"
	"github.com/pthm-cable/terrastream/terrain"
	"github.com/pthm-cable/terrastream/ui"
)

// Simulation speed limits for the steps-per-update control.
const (
	MinSteps = 1
	MaxSteps = 10
)

// Options configures game initialization.
type Options struct {
	LogStats       bool   // Log window stats via slog
	OutputDir      string // Directory for CSV logs and snapshots (empty = disabled)
	Headless       bool   // Run without raylib
	StepsPerUpdate int    // Simulation steps per frame
	Logger         *slog.Logger

	// Backend replaces the backend opened from config. The game takes
	// ownership and closes it in Unload.
	Backend gpu.Backend
}

// Game holds the complete frame loop state.
type Game struct {
	cfg    *config.Config
	logger *slog.Logger

	backend  gpu.Backend
	ctx      *terrain.TileCacheContext
	sim      *terrain.Simulation
	cache    *terrain.Cache
	renderer *terrain.Renderer
	readback *terrain.Readback

	cam  *camera.Camera
	traj camera.Trajectory

	// Scene of the last frame: root -> {cache, visible} -> tiles.
	graph        *scene.Graph
	cacheGroup   scene.NodeID
	visibleGroup scene.NodeID

	// Telemetry
	perf       *telemetry.PerfCollector
	collector  *telemetry.Collector
	bookmarks  *telemetry.BookmarkDetector
	output     *telemetry.OutputManager
	logStats   bool
	lastStats  telemetry.WindowStats
	lastReport terrain.UpdateReport
	lastWaits  int
	depths     []float64

	// State
	frames         uint64
	paused         bool
	follow         bool
	stepsPerUpdate int
	headless       bool
	snapshotReq    bool

	// Windowed mode only
	screenWidth, screenHeight float32
	view                      *renderer.TargetView
	cacheOverlay              *renderer.TileOverlay
	visibleOverlay            *renderer.TileOverlay
	hud                       *ui.HUD
	perfPanel                 *ui.PerfPanel
	controls                  *ui.ControlsPanel
	debugMode                 bool
	showPerf                  bool
}

// New creates a game for cfg. In windowed mode the raylib window must
// already be open.
func New(cfg *config.Config, opts Options) (*Game, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	steps := max(MinSteps, min(MaxSteps, opts.StepsPerUpdate))

	backend := opts.Backend
	if backend == nil {
		var err error
		if backend, err = OpenBackend(cfg, logger); err != nil {
			return nil, err
		}
	}

	counter := gpu.NewCounter(backend)
	ctx, err := terrain.NewContext(counter, cfg, logger)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("creating tile cache: %w", err)
	}
	sim := terrain.NewSimulation(ctx)

	traj, err := camera.NewTrajectory(camera.TrajectoryConfig{
		Kind:   cfg.Camera.Trajectory,
		Start:  grid.Vec2{X: cfg.Camera.StartX, Y: cfg.Camera.StartY},
		Speed:  cfg.Camera.Speed,
		Radius: cfg.Camera.Radius,
		Seed:   cfg.Noise.Seed,
	})
	if err != nil {
		ctx.Close()
		backend.Close()
		return nil, err
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		ctx.Close()
		backend.Close()
		return nil, err
	}
	if err := output.WriteConfig(cfg); err != nil {
		logger.Error("failed to write config", "error", err)
	}

	g := &Game{
		cfg:            cfg,
		logger:         logger,
		backend:        backend,
		ctx:            ctx,
		sim:            sim,
		cache:          terrain.NewCache(ctx, sim),
		renderer:       terrain.NewRenderer(ctx, cfg.GPU.TargetWidth, cfg.GPU.TargetHeight),
		readback:       terrain.NewReadback(ctx),
		traj:           traj,
		graph:          scene.New(3 + cfg.Derived.NumCachedBlocks + cfg.Derived.VisibleSide*cfg.Derived.VisibleSide),
		perf:           telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		collector:      telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Simulation.TimeStep*float64(steps)),
		bookmarks:      telemetry.NewBookmarkDetector(10),
		output:         output,
		logStats:       opts.LogStats,
		follow:         true,
		stepsPerUpdate: steps,
		headless:       opts.Headless,
	}

	// The camera starts framing the visible window.
	vw, vh := float64(cfg.GPU.TargetWidth), float64(cfg.GPU.TargetHeight)
	if !opts.Headless {
		vw, vh = float64(cfg.Screen.Width), float64(cfg.Screen.Height)
	}
	span := float64(cfg.Derived.VisibleSide) * cfg.Terrain.TileSize
	start := traj.At(0)
	g.cam = camera.New(vw, vh, start.X, start.Y, min(vw, vh)/span)
	g.screenWidth, g.screenHeight = float32(vw), float32(vh)
	g.perf.TrackWork(counter.Work)

	if !opts.Headless {
		g.initUI()
	}

	logger.Info("game ready",
		"backend", backend.Name(),
		"trajectory", traj.Name(),
		"blocks", cfg.Derived.NumCachedBlocks,
		"visible", cfg.Derived.VisibleSide*cfg.Derived.VisibleSide,
		"headless", opts.Headless,
	)
	return g, nil
}

// Step runs one frame: viewpoint, cache update, simulation, draw, submit
// and telemetry.
func (g *Game) Step() error {
	g.perf.StartFrame()
	defer g.perf.EndFrame()

	g.perf.StartPhase(telemetry.PhaseCache)
	if g.follow {
		g.cam.SetPosition(g.traj.At(g.sim.Time()))
	}

	frame, err := g.ctx.BeginFrame()
	if err != nil {
		return err
	}
	if err := g.record(); err != nil {
		return errors.Join(err, g.ctx.EndFrame())
	}

	g.perf.StartPhase(telemetry.PhaseSubmit)
	if err := g.ctx.EndFrame(); err != nil {
		return err
	}
	g.frames++

	g.perf.StartPhase(telemetry.PhaseTelemetry)
	waits := g.ctx.Pool.Waits()
	g.collector.Record(telemetry.FrameActivity{
		Evicted:   len(g.lastReport.Evicted),
		Allocated: len(g.lastReport.Allocated),
		PoolWaits: waits - g.lastWaits,
		Draws:     g.renderer.Draws(),
	})
	g.lastWaits = waits

	if err := g.buildScene(); err != nil {
		return err
	}
	g.flushTelemetry(frame)

	every := g.cfg.Telemetry.SnapshotEvery
	if g.snapshotReq || (every > 0 && g.frames%uint64(every) == 0) {
		g.snapshotReq = false
		g.saveSnapshot(frame, "")
	}
	return nil
}

// record issues the frame's cache, simulation and render work.
func (g *Game) record() error {
	report, err := g.cache.UpdateAllTiles(g.cam.Position())
	if err != nil {
		return err
	}
	g.lastReport = report

	g.perf.StartPhase(telemetry.PhaseSimulate)
	if !g.paused {
		for i := 0; i < g.stepsPerUpdate; i++ {
			if err := g.sim.StepAll(g.cache); err != nil {
				return err
			}
		}
	}

	g.perf.StartPhase(telemetry.PhaseRender)
	g.renderer.SetView(g.cam.VisibleWorldBounds())
	return g.renderer.DrawVisible(g.cache)
}

// Frame returns the serial of the last submitted frame.
func (g *Game) Frame() uint64 { return g.ctx.Frame() }

// Frames returns the number of frames run by Step.
func (g *Game) Frames() uint64 { return g.frames }

// SimTime returns the simulated seconds.
func (g *Game) SimTime() float64 { return g.sim.Time() }

// Camera returns the viewpoint camera.
func (g *Game) Camera() *camera.Camera { return g.cam }

// Cache returns the tile cache.
func (g *Game) Cache() *terrain.Cache { return g.cache }

// LastReport returns the cache update report of the last frame.
func (g *Game) LastReport() terrain.UpdateReport { return g.lastReport }

// LastStats returns the most recently flushed window.
func (g *Game) LastStats() telemetry.WindowStats { return g.lastStats }

// Paused reports whether the simulation is paused.
func (g *Game) Paused() bool { return g.paused }

// SetPaused pauses or resumes the simulation. Cache updates and drawing
// continue while paused.
func (g *Game) SetPaused(p bool) { g.paused = p }

// Following reports whether the camera follows the trajectory.
func (g *Game) Following() bool { return g.follow }

// SetFollowing attaches or detaches the camera from the trajectory.
func (g *Game) SetFollowing(f bool) { g.follow = f }

// RequestSnapshot saves a snapshot at the end of the next frame.
func (g *Game) RequestSnapshot() { g.snapshotReq = true }

// Unload releases every resource in reverse creation order.
func (g *Game) Unload() {
	if g.view != nil {
		g.view.Unload()
	}
	if err := g.output.Close(); err != nil {
		g.logger.Error("failed to close output", "error", err)
	}
	g.cache.Close()
	g.ctx.Close()
	if err := g.backend.Close(); err != nil {
		g.logger.Error("failed to close backend", "error", err)
	}
}

// Headless reports whether the game runs without a window.
func (g *Game) Headless() bool { return g.headless }
