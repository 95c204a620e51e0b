package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/terrastream/grid"
)

func TestComputeWaterStats(t *testing.T) {
	depths := []float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0}
	ws := ComputeWaterStats(depths)

	if math.Abs(ws.Total-5.4) > 1e-9 {
		t.Errorf("total = %v, want 5.4", ws.Total)
	}
	if math.Abs(ws.Mean-0.54) > 1e-9 {
		t.Errorf("mean = %v, want 0.54", ws.Mean)
	}
	if ws.Max != 1.0 {
		t.Errorf("max = %v, want 1", ws.Max)
	}
	if ws.DryFrac != 0.1 {
		t.Errorf("dry fraction = %v, want 0.1", ws.DryFrac)
	}
	if !(ws.P10 <= ws.P50 && ws.P50 <= ws.P90) {
		t.Errorf("percentiles out of order: %v %v %v", ws.P10, ws.P50, ws.P90)
	}
	if ws.P50 < 0.4 || ws.P50 > 0.6 {
		t.Errorf("p50 = %v, want ~0.5", ws.P50)
	}
	if ws.Std <= 0 {
		t.Errorf("std = %v, want > 0", ws.Std)
	}
}

func TestComputeWaterStats_Empty(t *testing.T) {
	if ws := ComputeWaterStats(nil); ws != (WaterStats{}) {
		t.Errorf("empty input gave %+v", ws)
	}
}

func TestComputeWaterStats_Single(t *testing.T) {
	ws := ComputeWaterStats([]float64{0.25})
	if ws.Mean != 0.25 || ws.Std != 0 || ws.P10 != 0.25 || ws.P90 != 0.25 {
		t.Errorf("single value gave %+v", ws)
	}
}

func TestCollector_Window(t *testing.T) {
	c := NewCollector(10, 0.5)

	for f := uint64(1); f <= 10; f++ {
		c.Record(FrameActivity{Evicted: 1, Allocated: 2, Draws: 9})
		if c.ShouldFlush(f) != (f == 10) {
			t.Fatalf("ShouldFlush(%d) = %v", f, c.ShouldFlush(f))
		}
	}

	s := c.Flush(FrameState{
		Frame:   10,
		View:    grid.Vec2{X: 3, Y: 4},
		Live:    25,
		Visible: 9,
		Extent:  grid.Vec2{X: 600, Y: 600},
		Depths:  []float64{0.5, 0.5},
	})
	if s.WindowStartFrame != 0 || s.WindowEndFrame != 10 || s.SimTimeSec != 5 {
		t.Errorf("window %d..%d at %v", s.WindowStartFrame, s.WindowEndFrame, s.SimTimeSec)
	}
	if s.Evicted != 10 || s.Allocated != 20 || s.Draws != 90 {
		t.Errorf("activity = %d/%d/%d", s.Evicted, s.Allocated, s.Draws)
	}
	if s.WaterMean != 0.5 || s.Water().Total != 1 {
		t.Errorf("water = %+v", s.Water())
	}

	// Counters reset for the next window.
	if c.ShouldFlush(11) {
		t.Error("flushed again one frame into the new window")
	}
	s = c.Flush(FrameState{Frame: 20})
	if s.Evicted != 0 || s.WindowStartFrame != 10 {
		t.Errorf("second window = %+v", s)
	}
}
