package game

import rl "github.com/gen2brain/raylib-go/raylib"

// handleInput processes keyboard input.
func (g *Game) handleInput() {
	// Window resize propagation
	g.handleResize()

	// Fullscreen toggle
	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		g.paused = !g.paused
	}

	// Steps-per-update control with < > keys (comma and period)
	if rl.IsKeyPressed(rl.KeyComma) && g.stepsPerUpdate > MinSteps {
		g.stepsPerUpdate--
	}
	if rl.IsKeyPressed(rl.KeyPeriod) && g.stepsPerUpdate < MaxSteps {
		g.stepsPerUpdate++
	}

	if rl.IsKeyPressed(rl.KeyD) {
		g.debugMode = !g.debugMode
	}
	if rl.IsKeyPressed(rl.KeyP) {
		g.showPerf = !g.showPerf
	}
	if rl.IsKeyPressed(rl.KeyT) {
		g.follow = !g.follow
	}
	if rl.IsKeyPressed(rl.KeyS) {
		g.snapshotReq = true
	}

	g.handleCameraInput()
}

// handleResize checks for window resize and propagates new dimensions.
func (g *Game) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == g.screenWidth && h == g.screenHeight {
		return
	}
	g.screenWidth = w
	g.screenHeight = h

	g.cam.Resize(float64(w), float64(h))
	g.layoutUI()
}

// handleCameraInput processes camera pan/zoom controls. Any manual pan
// detaches the camera from the trajectory.
func (g *Game) handleCameraInput() {
	step := g.cfg.Camera.PanSpeed * float64(rl.GetFrameTime())

	var dx, dy float64
	if rl.IsKeyDown(rl.KeyRight) {
		dx += step
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		dx -= step
	}
	if rl.IsKeyDown(rl.KeyDown) {
		dy += step
	}
	if rl.IsKeyDown(rl.KeyUp) {
		dy -= step
	}

	// Right-drag pans, unless the drag started over the control panel.
	mouse := rl.GetMousePosition()
	if rl.IsMouseButtonDown(rl.MouseButtonRight) && !g.controls.Contains(mouse.X, mouse.Y) {
		d := rl.GetMouseDelta()
		dx -= float64(d.X)
		dy -= float64(d.Y)
	}
	if dx != 0 || dy != 0 {
		g.follow = false
		g.cam.Pan(dx, dy)
	}

	// Zoom controls: mouse wheel or +/- keys
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		g.cam.ZoomBy(1 + float64(wheel)*0.1)
	}
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		g.cam.ZoomBy(1.25)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		g.cam.ZoomBy(0.8)
	}

	if rl.IsKeyPressed(rl.KeyF) {
		g.FitVisible()
	}

	// Home key resets the camera and re-attaches it to the trajectory.
	if rl.IsKeyPressed(rl.KeyHome) {
		g.cam.Reset()
		g.follow = true
	}
}
