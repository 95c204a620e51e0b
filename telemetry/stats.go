package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// dryDepth is the water depth below which a texel counts as dry.
const dryDepth = 1e-3

// WindowStats holds aggregated statistics for a window of frames.
type WindowStats struct {
	WindowStartFrame uint64  `csv:"-"`
	WindowEndFrame   uint64  `csv:"window_end"`
	SimTimeSec       float64 `csv:"sim_time"`

	// Viewpoint at window end
	ViewX float64 `csv:"view_x"`
	ViewY float64 `csv:"view_y"`

	// Cache occupancy at window end
	Live    int `csv:"live"`
	Visible int `csv:"visible"`

	// Cache churn during window
	Evicted   int `csv:"evicted"`
	Allocated int `csv:"allocated"`
	PoolWaits int `csv:"pool_waits"`
	Draws     int `csv:"draws"`

	// World extent of the visible tiles
	ExtentW float64 `csv:"extent_w"`
	ExtentH float64 `csv:"extent_h"`

	// Water depth over the visible tiles at window end
	WaterTotal   float64 `csv:"water_total"`
	WaterMean    float64 `csv:"water_mean"`
	WaterStd     float64 `csv:"water_std"`
	WaterP10     float64 `csv:"water_p10"`
	WaterP50     float64 `csv:"water_p50"`
	WaterP90     float64 `csv:"water_p90"`
	WaterMax     float64 `csv:"water_max"`
	WaterDryFrac float64 `csv:"water_dry_frac"`
}

// SetWater copies w into the flat water columns.
func (s *WindowStats) SetWater(w WaterStats) {
	s.WaterTotal = w.Total
	s.WaterMean = w.Mean
	s.WaterStd = w.Std
	s.WaterP10 = w.P10
	s.WaterP50 = w.P50
	s.WaterP90 = w.P90
	s.WaterMax = w.Max
	s.WaterDryFrac = w.DryFrac
}

// Water returns the flat water columns as a WaterStats.
func (s WindowStats) Water() WaterStats {
	return WaterStats{
		Total:   s.WaterTotal,
		Mean:    s.WaterMean,
		Std:     s.WaterStd,
		P10:     s.WaterP10,
		P50:     s.WaterP50,
		P90:     s.WaterP90,
		Max:     s.WaterMax,
		DryFrac: s.WaterDryFrac,
	}
}

// WaterStats summarises water depth over the sampled texels.
type WaterStats struct {
	Total   float64
	Mean    float64
	Std     float64
	P10     float64
	P50     float64
	P90     float64
	Max     float64
	DryFrac float64
}

// ComputeWaterStats summarises the given depths. The slice is sorted in place.
func ComputeWaterStats(depths []float64) WaterStats {
	if len(depths) == 0 {
		return WaterStats{}
	}
	sort.Float64s(depths)

	mean, std := stat.MeanStdDev(depths, nil)
	if len(depths) < 2 {
		std = 0
	}
	dry := sort.SearchFloat64s(depths, dryDepth)

	return WaterStats{
		Total:   floats.Sum(depths),
		Mean:    mean,
		Std:     std,
		P10:     stat.Quantile(0.10, stat.Empirical, depths, nil),
		P50:     stat.Quantile(0.50, stat.Empirical, depths, nil),
		P90:     stat.Quantile(0.90, stat.Empirical, depths, nil),
		Max:     depths[len(depths)-1],
		DryFrac: float64(dry) / float64(len(depths)),
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (w WaterStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("total", w.Total),
		slog.Float64("mean", w.Mean),
		slog.Float64("std", w.Std),
		slog.Float64("p10", w.P10),
		slog.Float64("p50", w.P50),
		slog.Float64("p90", w.P90),
		slog.Float64("max", w.Max),
		slog.Float64("dry_frac", w.DryFrac),
	)
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStartFrame),
		slog.Uint64("window_end", s.WindowEndFrame),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Float64("view_x", s.ViewX),
		slog.Float64("view_y", s.ViewY),
		slog.Int("live", s.Live),
		slog.Int("visible", s.Visible),
		slog.Int("evicted", s.Evicted),
		slog.Int("allocated", s.Allocated),
		slog.Int("pool_waits", s.PoolWaits),
		slog.Int("draws", s.Draws),
		slog.Float64("extent_w", s.ExtentW),
		slog.Float64("extent_h", s.ExtentH),
		slog.Any("water", s.Water()),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
