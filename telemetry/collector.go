package telemetry

import "github.com/pthm-cable/terrastream/grid"

// Collector accumulates per-frame cache activity within a window and
// produces WindowStats.
type Collector struct {
	windowFrames uint64
	dt           float64

	windowStart uint64

	evicted   int
	allocated int
	poolWaits int
	draws     int
}

// NewCollector creates a collector flushing every windowFrames frames.
// dt is the simulated seconds per frame.
func NewCollector(windowFrames int, dt float64) *Collector {
	if windowFrames < 1 {
		windowFrames = 1
	}
	return &Collector{windowFrames: uint64(windowFrames), dt: dt}
}

// FrameActivity is what one frame did to the cache.
type FrameActivity struct {
	Evicted   int
	Allocated int
	PoolWaits int
	Draws     int
}

// Record adds one frame's activity to the current window.
func (c *Collector) Record(a FrameActivity) {
	c.evicted += a.Evicted
	c.allocated += a.Allocated
	c.poolWaits += a.PoolWaits
	c.draws += a.Draws
}

// ShouldFlush reports whether frame closes the current window.
func (c *Collector) ShouldFlush(frame uint64) bool {
	return frame-c.windowStart >= c.windowFrames
}

// FrameState is the cache state sampled at the end of a window.
type FrameState struct {
	Frame   uint64
	View    grid.Vec2
	Live    int
	Visible int
	Extent  grid.Vec2
	// SimTime overrides Frame*dt when positive.
	SimTime float64
	// Depths is sorted in place.
	Depths []float64
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(st FrameState) WindowStats {
	stats := WindowStats{
		WindowStartFrame: c.windowStart,
		WindowEndFrame:   st.Frame,
		SimTimeSec:       float64(st.Frame) * c.dt,
		ViewX:            st.View.X,
		ViewY:            st.View.Y,
		Live:             st.Live,
		Visible:          st.Visible,
		Evicted:          c.evicted,
		Allocated:        c.allocated,
		PoolWaits:        c.poolWaits,
		Draws:            c.draws,
		ExtentW:          st.Extent.X,
		ExtentH:          st.Extent.Y,
	}
	if st.SimTime > 0 {
		stats.SimTimeSec = st.SimTime
	}
	stats.SetWater(ComputeWaterStats(st.Depths))

	c.windowStart = st.Frame
	c.evicted = 0
	c.allocated = 0
	c.poolWaits = 0
	c.draws = 0
	return stats
}

// WindowFrames returns the number of frames per window.
func (c *Collector) WindowFrames() uint64 {
	return c.windowFrames
}
