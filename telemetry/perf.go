package telemetry

import (
	"log/slog"
	"slices"
	"time"

	"github.com/pthm-cable/terrastream/gpu"
)

// Phase names for one frame.
const (
	PhaseCache     = "cache"
	PhaseSimulate  = "simulate"
	PhaseRender    = "render"
	PhaseSubmit    = "submit"
	PhaseTelemetry = "telemetry"
)

// Phases lists the frame phases in execution order.
var Phases = []string{PhaseCache, PhaseSimulate, PhaseRender, PhaseSubmit, PhaseTelemetry}

// phaseSample is the time and backend work one phase took in one frame.
type phaseSample struct {
	dur  time.Duration
	work gpu.Work
}

// frameSample is one frame of the rolling window.
type frameSample struct {
	dur    time.Duration
	phases map[string]phaseSample
}

// PerfCollector times frame phases over a rolling window and, when given a
// work source, attributes backend commands to the phase that issued them.
type PerfCollector struct {
	window []frameSample
	next   int
	filled int

	work      func() gpu.Work
	cur       map[string]phaseSample
	frameAt   time.Time
	phase     string
	phaseAt   time.Time
	phaseWork gpu.Work

	lastPresent     time.Time
	presentInterval time.Duration
}

// NewPerfCollector creates a collector averaging over windowSize frames.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{window: make([]frameSample, windowSize)}
}

// TrackWork sets the source of running backend command totals, typically
// (*gpu.Counter).Work.
func (p *PerfCollector) TrackWork(fn func() gpu.Work) { p.work = fn }

func (p *PerfCollector) currentWork() gpu.Work {
	if p.work == nil {
		return gpu.Work{}
	}
	return p.work()
}

// StartFrame begins timing a new frame.
func (p *PerfCollector) StartFrame() {
	p.frameAt = time.Now()
	p.cur = make(map[string]phaseSample, len(Phases))
	p.phase = ""
}

// closePhase charges the elapsed time and work to the open phase.
func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase == "" {
		return
	}
	w := p.currentWork()
	s := p.cur[p.phase]
	s.dur += now.Sub(p.phaseAt)
	s.work = s.work.Add(w.Sub(p.phaseWork))
	p.cur[p.phase] = s
}

// StartPhase begins timing a phase, ending the previous one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	p.closePhase(now)
	p.phase = phase
	p.phaseAt = now
	p.phaseWork = p.currentWork()
}

// EndFrame finishes the current frame and stores it in the window.
func (p *PerfCollector) EndFrame() {
	now := time.Now()
	p.closePhase(now)
	p.phase = ""

	p.window[p.next] = frameSample{dur: now.Sub(p.frameAt), phases: p.cur}
	p.next = (p.next + 1) % len(p.window)
	p.filled = min(p.filled+1, len(p.window))
}

// RecordPresent records the interval since the previous presented frame.
func (p *PerfCollector) RecordPresent() {
	now := time.Now()
	if !p.lastPresent.IsZero() {
		p.presentInterval = now.Sub(p.lastPresent)
	}
	p.lastPresent = now
}

// WorkRate is backend work per frame, averaged over the window.
type WorkRate struct {
	Dispatches  float64
	Draws       float64
	Transitions float64
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgFrame time.Duration
	MinFrame time.Duration
	MaxFrame time.Duration
	P95Frame time.Duration

	PhaseAvg  map[string]time.Duration
	PhasePct  map[string]float64
	PhaseWork map[string]WorkRate

	// Work is the per-frame backend work across all phases.
	Work WorkRate
	// DispatchCost is the simulate phase time per dispatch.
	DispatchCost time.Duration

	FramesPerSecond float64

	// Presentation rate (windowed mode)
	PresentInterval time.Duration
	FPS             float64
}

// Stats aggregates the current window.
func (p *PerfCollector) Stats() PerfStats {
	st := PerfStats{
		PhaseAvg:        make(map[string]time.Duration),
		PhasePct:        make(map[string]float64),
		PhaseWork:       make(map[string]WorkRate),
		PresentInterval: p.presentInterval,
	}
	if p.presentInterval > 0 {
		st.FPS = float64(time.Second) / float64(p.presentInterval)
	}
	if p.filled == 0 {
		return st
	}

	n := float64(p.filled)
	durs := make([]time.Duration, 0, p.filled)
	var total time.Duration
	phaseDur := make(map[string]time.Duration)
	phaseWork := make(map[string]gpu.Work)
	for _, f := range p.window[:p.filled] {
		durs = append(durs, f.dur)
		total += f.dur
		for name, s := range f.phases {
			phaseDur[name] += s.dur
			phaseWork[name] = phaseWork[name].Add(s.work)
		}
	}
	slices.Sort(durs)
	st.MinFrame = durs[0]
	st.MaxFrame = durs[len(durs)-1]
	st.P95Frame = durs[min(len(durs)-1, int(0.95*float64(len(durs))))]
	st.AvgFrame = total / time.Duration(p.filled)
	if st.AvgFrame > 0 {
		st.FramesPerSecond = float64(time.Second) / float64(st.AvgFrame)
	}

	var all gpu.Work
	for name, d := range phaseDur {
		avg := d / time.Duration(p.filled)
		st.PhaseAvg[name] = avg
		if st.AvgFrame > 0 {
			st.PhasePct[name] = float64(avg) / float64(st.AvgFrame) * 100
		}
		w := phaseWork[name]
		st.PhaseWork[name] = rate(w, n)
		all = all.Add(w)
	}
	st.Work = rate(all, n)
	if w := phaseWork[PhaseSimulate]; w.Dispatches > 0 {
		st.DispatchCost = phaseDur[PhaseSimulate] / time.Duration(w.Dispatches)
	}
	return st
}

func rate(w gpu.Work, frames float64) WorkRate {
	return WorkRate{
		Dispatches:  float64(w.Dispatches) / frames,
		Draws:       float64(w.Draws) / frames,
		Transitions: float64(w.Transitions) / frames,
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_frame_us", s.AvgFrame.Microseconds()),
		slog.Int64("p95_frame_us", s.P95Frame.Microseconds()),
		slog.Int64("max_frame_us", s.MaxFrame.Microseconds()),
		slog.Float64("frames_per_sec", s.FramesPerSecond),
		slog.Float64("dispatches", s.Work.Dispatches),
		slog.Float64("draws", s.Work.Draws),
	}
	if s.DispatchCost > 0 {
		attrs = append(attrs, slog.Int64("dispatch_us", s.DispatchCost.Microseconds()))
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, slog.Float64(phase+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd      uint64  `csv:"window_end"`
	AvgFrameUS     int64   `csv:"avg_frame_us"`
	MinFrameUS     int64   `csv:"min_frame_us"`
	MaxFrameUS     int64   `csv:"max_frame_us"`
	P95FrameUS     int64   `csv:"p95_frame_us"`
	FramesPerSec   float64 `csv:"frames_per_sec"`
	FPS            float64 `csv:"fps"`
	CachePct       float64 `csv:"cache_pct"`
	SimulatePct    float64 `csv:"simulate_pct"`
	RenderPct      float64 `csv:"render_pct"`
	SubmitPct      float64 `csv:"submit_pct"`
	TelemetryPct   float64 `csv:"telemetry_pct"`
	Dispatches     float64 `csv:"dispatches_per_frame"`
	Draws          float64 `csv:"draws_per_frame"`
	Transitions    float64 `csv:"transitions_per_frame"`
	CacheDispatch  float64 `csv:"cache_dispatches_per_frame"`
	DispatchCostUS int64   `csv:"dispatch_us"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd uint64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:      windowEnd,
		AvgFrameUS:     s.AvgFrame.Microseconds(),
		MinFrameUS:     s.MinFrame.Microseconds(),
		MaxFrameUS:     s.MaxFrame.Microseconds(),
		P95FrameUS:     s.P95Frame.Microseconds(),
		FramesPerSec:   s.FramesPerSecond,
		FPS:            s.FPS,
		CachePct:       s.PhasePct[PhaseCache],
		SimulatePct:    s.PhasePct[PhaseSimulate],
		RenderPct:      s.PhasePct[PhaseRender],
		SubmitPct:      s.PhasePct[PhaseSubmit],
		TelemetryPct:   s.PhasePct[PhaseTelemetry],
		Dispatches:     s.Work.Dispatches,
		Draws:          s.Work.Draws,
		Transitions:    s.Work.Transitions,
		CacheDispatch:  s.PhaseWork[PhaseCache].Dispatches,
		DispatchCostUS: s.DispatchCost.Microseconds(),
	}
}
