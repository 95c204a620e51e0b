package ui

import (
	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pthm-cable/terrastream/config"
)

// ControlAction is a button press reported by the control panel.
type ControlAction int

const (
	ActionNone ControlAction = iota
	ActionTogglePause
	ActionToggleFollow
	ActionResetParams
	ActionSnapshot
)

// slider binds one simulation parameter to a raygui slider.
type slider struct {
	label  string
	lo, hi float32
	format string
	value  func(*config.SimulationConfig) *float64
}

var sliders = []slider{
	{"Rain rate", 0, 0.02, "%.4f", func(s *config.SimulationConfig) *float64 { return &s.RainRate }},
	{"Evaporation", 0, 0.05, "%.4f", func(s *config.SimulationConfig) *float64 { return &s.EvaporationRate }},
	{"Seepage", 0, 0.02, "%.4f", func(s *config.SimulationConfig) *float64 { return &s.SeepageRate }},
	{"Flow rate", 0, 20, "%.2f", func(s *config.SimulationConfig) *float64 { return &s.FlowRate }},
}

// ControlsPanel renders the simulation parameter sliders and buttons.
type ControlsPanel struct {
	renderer *Renderer
	p        *message.Printer
	x, y     int32
	width    int32
}

// NewControlsPanel creates a new controls panel.
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{
		renderer: NewRenderer(),
		p:        message.NewPrinter(language.English),
		x:        x,
		y:        y,
		width:    width,
	}
}

// SetPosition updates the panel position.
func (c *ControlsPanel) SetPosition(x, y int32) {
	c.x = x
	c.y = y
}

// Height returns the panel height in pixels.
func (c *ControlsPanel) Height() int32 {
	return c.renderer.Theme.Padding*2 + 22 + int32(len(sliders))*36 + 2*36
}

// Contains reports whether a screen point lies over the panel.
func (c *ControlsPanel) Contains(x, y float32) bool {
	return x >= float32(c.x) && x < float32(c.x+c.width) && y >= float32(c.y) && y < float32(c.y+c.Height())
}

// Draw renders the panel, writes slider changes into sim and returns the
// button pressed this frame, if any.
func (c *ControlsPanel) Draw(sim *config.SimulationConfig, paused, following bool) ControlAction {
	r := c.renderer
	pad := r.Theme.Padding
	r.DrawPanel(c.x, c.y, c.width, c.Height())

	x := float32(c.x + pad)
	y := float32(c.DrawHeader())
	w := float32(c.width - pad*2 - 60)

	for _, s := range sliders {
		v := s.value(sim)
		rl.DrawText(s.label, int32(x), int32(y), r.Theme.FontSize, r.Theme.LabelColor)
		y += 14
		nv := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "", float32(*v), s.lo, s.hi)
		if nv != float32(*v) {
			*v = float64(nv)
		}
		rl.DrawText(c.p.Sprintf(s.format, *v), int32(x+w+6), int32(y+2), r.Theme.FontSize, r.Theme.ValueColor)
		y += 22
	}

	action := ActionNone
	bw := (float32(c.width-pad*2) - 8) / 2
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: bw, Height: 26}, toggleText(paused, "Resume", "Pause")) {
		action = ActionTogglePause
	}
	if gui.Button(rl.Rectangle{X: x + bw + 8, Y: y, Width: bw, Height: 26}, toggleText(following, "Free camera", "Follow")) {
		action = ActionToggleFollow
	}
	y += 36
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: bw, Height: 26}, "Reset params") {
		action = ActionResetParams
	}
	if gui.Button(rl.Rectangle{X: x + bw + 8, Y: y, Width: bw, Height: 26}, "Snapshot") {
		action = ActionSnapshot
	}
	return action
}

// DrawHeader draws the panel title and returns the Y below it.
func (c *ControlsPanel) DrawHeader() int32 {
	r := c.renderer
	return r.DrawSectionHeader(c.x+r.Theme.Padding, c.y+r.Theme.Padding, "Simulation")
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
