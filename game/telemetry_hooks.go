package game

import (
	"log/slog"

	"github.com/pthm-cable/terrastream/telemetry"
)

// depthStride keeps every 4th texel per axis when sampling water depths.
const depthStride = 4

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game) flushTelemetry(frame uint64) {
	if !g.collector.ShouldFlush(frame) {
		return
	}

	depths, err := g.readback.Water(g.cache, g.depths[:0], depthStride)
	if err != nil {
		slog.Error("failed to read water depths", "error", err)
	}
	g.depths = depths

	st := telemetry.FrameState{
		Frame:   frame,
		View:    g.cam.Position(),
		Live:    g.cache.Live(),
		Visible: len(g.cache.Visible()),
		SimTime: g.sim.Time(),
		Depths:  depths,
	}
	if b, ok := g.visibleExtent(); ok {
		st.Extent = b.Size()
	}

	stats := g.collector.Flush(st)
	perfStats := g.perf.Stats()
	g.lastStats = stats

	if g.logStats {
		stats.LogStats()
		slog.Info("perf", "stats", perfStats)
	}

	if err := g.output.WriteFrames(stats); err != nil {
		slog.Error("failed to write frame stats", "error", err)
	}
	if err := g.output.WritePerf(perfStats, stats.WindowEndFrame); err != nil {
		slog.Error("failed to write perf", "error", err)
	}

	for _, bm := range g.bookmarks.Check(stats) {
		if g.logStats {
			bm.LogBookmark()
		}
		if err := g.output.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
		g.saveSnapshot(frame, string(bm.Type))
	}
}

// saveSnapshot writes the rendered target next to a height mosaic of the
// visible tiles.
func (g *Game) saveSnapshot(frame uint64, tag string) {
	if g.output == nil {
		return
	}

	target, err := g.backend.ReadTarget()
	if err != nil {
		slog.Error("failed to read target", "error", err)
		return
	}

	side := g.cfg.Derived.VisibleSide
	win := g.cache.VisibleWindow()
	mosaic := telemetry.NewHeightMosaic(side, side, g.cfg.Terrain.RasterSize, 0, g.cfg.Terrain.HeightScale)
	for _, e := range g.cache.Visible() {
		h, err := g.readback.Heights(g.cache, e)
		if err != nil {
			slog.Error("failed to read heights", "error", err)
			return
		}
		c := g.cache.Tile(e).Coord
		if err := mosaic.Set(c.X-win.Min.X, c.Y-win.Min.Y, h); err != nil {
			slog.Error("failed to place tile", "error", err)
			return
		}
	}

	path, err := g.output.WriteSnapshot(telemetry.ComposeSnapshot(target, mosaic.Image()), frame, tag)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}
	slog.Info("snapshot saved", "path", path, "frame", frame)
}
