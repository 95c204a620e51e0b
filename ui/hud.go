package ui

import (
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pthm-cable/terrastream/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title     string
	Backend   string
	Frame     uint64
	SimTime   float64
	ViewX     float64
	ViewY     float64
	Zoom      float64
	Live      int
	Visible   int
	Evicted   int
	Allocated int
	PoolWaits int
	Draws     int
	Steps     int
	FPS       int32
	Paused    bool
	Following bool
	Water     telemetry.WaterStats
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
	p        *message.Printer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{
		renderer: NewRenderer(),
		p:        message.NewPrinter(language.English),
	}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	p := h.p
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	rl.DrawText(
		p.Sprintf("Frame: %d | Time: %.1fs | Steps: %dx | FPS: %d | %s", data.Frame, data.SimTime, data.Steps, data.FPS, data.Backend),
		10, 35, 16, rl.LightGray,
	)
	rl.DrawText(
		p.Sprintf("View: (%.0f, %.0f) | Zoom: %.2f", data.ViewX, data.ViewY, data.Zoom),
		10, 55, 16, rl.LightGray,
	)
	rl.DrawText(
		p.Sprintf("Tiles: %d live, %d visible | Evicted: %d | Allocated: %d | Waits: %d | Draws: %d",
			data.Live, data.Visible, data.Evicted, data.Allocated, data.PoolWaits, data.Draws),
		10, 75, 16, rl.LightGray,
	)

	status := "Running"
	if data.Paused {
		status = "PAUSED"
	}
	if data.Following {
		status += " | following trajectory"
	} else {
		status += " | free camera"
	}
	rl.DrawText(status, 10, 95, 16, rl.Yellow)
}

// DrawWater renders the last window's water statistics in a panel.
func (h *HUD) DrawWater(x, y, width int32, w telemetry.WaterStats) {
	r := h.renderer
	pad := r.Theme.Padding
	r.DrawPanel(x, y, width, r.Theme.LineHeight*7+pad*2)

	y += pad
	x += pad
	width -= pad * 2
	y = r.DrawSectionHeader(x, y, "Water")
	y = r.DrawLabelValue(x, y, "Total", h.p.Sprintf("%.1f", w.Total))
	y = r.DrawLabelValue(x, y, "Mean/Std", h.p.Sprintf("%.4f / %.4f", w.Mean, w.Std))
	y = r.DrawLabelValue(x, y, "P10/50/90", h.p.Sprintf("%.3f %.3f %.3f", w.P10, w.P50, w.P90))
	y = r.DrawLabelValue(x, y, "Max", h.p.Sprintf("%.3f", w.Max))
	r.DrawBar(x, y, "Dry", float32(w.DryFrac), h.p.Sprintf("%.0f%%", w.DryFrac*100), width)
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// PerfPanel renders per-phase frame timings.
type PerfPanel struct {
	renderer *Renderer
	p        *message.Printer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{
		renderer: NewRenderer(),
		p:        message.NewPrinter(language.English),
		x:        x,
		y:        y,
	}
}

// SetPosition updates the panel position.
func (pp *PerfPanel) SetPosition(x, y int32) {
	pp.x = x
	pp.y = y
}

// Draw renders the performance panel.
func (pp *PerfPanel) Draw(stats telemetry.PerfStats) {
	x, y := pp.x, pp.y

	rl.DrawText("Frame Phases", x, y, 16, rl.White)
	y += 20

	rl.DrawText(pp.p.Sprintf("Avg: %s  Max: %s  (%.0f fps)",
		stats.AvgFrame.Round(time.Microsecond), stats.MaxFrame.Round(time.Microsecond), stats.FramesPerSecond),
		x, y, 14, rl.Yellow)
	y += 16

	for _, name := range telemetry.Phases {
		avg := stats.PhaseAvg[name]
		pct := stats.PhasePct[name]

		color := rl.LightGray
		if pct > 50 {
			color = rl.Red
		} else if pct > 25 {
			color = rl.Orange
		}
		w := stats.PhaseWork[name]
		rl.DrawText(pp.p.Sprintf("%-10s %8s %5.1f%%  %4.0fd %3.0fr", name, avg.Round(time.Microsecond), pct, w.Dispatches, w.Draws), x, y, 12, color)
		y += 14
	}

	if stats.DispatchCost > 0 {
		rl.DrawText(pp.p.Sprintf("%s per dispatch, %.0f barriers/frame", stats.DispatchCost.Round(time.Microsecond), stats.Work.Transitions), x, y, 12, rl.LightGray)
	}
}
