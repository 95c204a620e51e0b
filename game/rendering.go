package game

import (
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/terrastream/config"
	"github.com/pthm-cable/terrastream/renderer"
	"github.com/pthm-cable/terrastream/ui"
)

const controlsLegend = "[Space] pause  [</>] speed  [Arrows/RMB] pan  [Wheel +/-] zoom  [F] fit  [T] follow  [Home] reset  [D] tiles  [P] perf  [S] snapshot"

// initUI creates the windowed-mode renderers and panels.
func (g *Game) initUI() {
	g.view = renderer.NewTargetView()
	g.cacheOverlay = renderer.NewTileOverlay(rl.Color{R: 120, G: 120, B: 120, A: 200})
	g.cacheOverlay.Fill.A = 0
	g.cacheOverlay.LabelSize = 0
	g.visibleOverlay = renderer.NewTileOverlay(rl.Color{R: 255, G: 220, B: 80, A: 220})
	g.hud = ui.NewHUD()
	g.perfPanel = ui.NewPerfPanel(0, 0)
	g.controls = ui.NewControlsPanel(0, 0, 260)
	g.layoutUI()
}

// layoutUI anchors the panels to the current screen size.
func (g *Game) layoutUI() {
	if g.controls == nil {
		return
	}
	w := int32(g.screenWidth)
	g.controls.SetPosition(w-270, 10)
	g.perfPanel.SetPosition(w-270, 20+g.controls.Height())
}

// Update handles input and runs one frame.
func (g *Game) Update() error {
	g.handleInput()
	return g.Step()
}

// Draw presents the last frame's target with overlays and UI.
func (g *Game) Draw() {
	g.perf.RecordPresent()

	target, err := g.backend.ReadTarget()
	if err != nil {
		slog.Debug("no target to present", "error", err)
	} else {
		g.view.Upload(target)
	}

	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)

	g.view.Draw(rl.Rectangle{X: 0, Y: 0, Width: g.screenWidth, Height: g.screenHeight})

	if g.debugMode {
		g.cacheOverlay.Draw(g.cam, g.graph, g.cacheGroup)
		g.visibleOverlay.Draw(g.cam, g.graph, g.visibleGroup)
		g.visibleOverlay.DrawBounds(g.cam, g.cache.Window().Bounds(g.cfg.Terrain.TileSize), 2)
		g.visibleOverlay.DrawMarker(g.cam, g.traj.At(g.sim.Time()))
	}

	r := g.lastReport
	g.hud.Draw(ui.HUDData{
		Title:     "Terrain Stream",
		Backend:   g.backend.Name(),
		Frame:     g.ctx.Frame(),
		SimTime:   g.sim.Time(),
		ViewX:     g.cam.X,
		ViewY:     g.cam.Y,
		Zoom:      g.cam.Zoom,
		Live:      r.Live,
		Visible:   r.Visible,
		Evicted:   len(r.Evicted),
		Allocated: len(r.Allocated),
		PoolWaits: g.ctx.Pool.Waits(),
		Draws:     g.renderer.Draws(),
		Steps:     g.stepsPerUpdate,
		FPS:       rl.GetFPS(),
		Paused:    g.paused,
		Following: g.follow,
	})
	g.hud.DrawWater(10, 120, 260, g.lastStats.Water())

	switch g.controls.Draw(&g.cfg.Simulation, g.paused, g.follow) {
	case ui.ActionTogglePause:
		g.paused = !g.paused
	case ui.ActionToggleFollow:
		g.follow = !g.follow
	case ui.ActionResetParams:
		g.resetSimulationParams()
	case ui.ActionSnapshot:
		g.snapshotReq = true
	}

	if g.showPerf {
		g.perfPanel.Draw(g.perf.Stats())
	}

	g.hud.DrawControls(int32(g.screenHeight), controlsLegend)
	rl.EndDrawing()
}

// resetSimulationParams restores the slider-controlled parameters to their
// defaults.
func (g *Game) resetSimulationParams() {
	def, err := config.Defaults()
	if err != nil {
		slog.Error("failed to load defaults", "error", err)
		return
	}
	s := &g.cfg.Simulation
	s.RainRate = def.Simulation.RainRate
	s.EvaporationRate = def.Simulation.EvaporationRate
	s.SeepageRate = def.Simulation.SeepageRate
	s.FlowRate = def.Simulation.FlowRate
}
