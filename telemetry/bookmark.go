package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFlood       BookmarkType = "flood"
	BookmarkDrought     BookmarkType = "drought"
	BookmarkPoolStall   BookmarkType = "pool_stall"
	BookmarkSteadyWater BookmarkType = "steady_water"
)

// Bookmark marks a window worth a closer look.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Frame       uint64       `csv:"frame"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"frame", b.Frame,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable windows from the stats stream.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	stalled     bool // previous window waited on the device
	steadyCount int  // consecutive windows with steady mean depth
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for steady-state detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	// Pool stall: first window that waited on the device after one that did not
	if stats.PoolWaits > 0 && !bd.stalled {
		bookmarks = append(bookmarks, Bookmark{
			Type:        BookmarkPoolStall,
			Frame:       stats.WindowEndFrame,
			Description: fmt.Sprintf("%d block reuses waited for the device", stats.PoolWaits),
		})
	}
	bd.stalled = stats.PoolWaits > 0

	if bd.historyFull || bd.historyIdx > 0 {
		if b := bd.checkFlood(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkDrought(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkSteadyWater(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// recent returns the history oldest first.
func (bd *BookmarkDetector) recent() []WindowStats {
	if !bd.historyFull {
		return bd.history[:bd.historyIdx]
	}
	out := make([]WindowStats, 0, bd.historySize)
	out = append(out, bd.history[bd.historyIdx:]...)
	return append(out, bd.history[:bd.historyIdx]...)
}

func (bd *BookmarkDetector) checkFlood(stats WindowStats) *Bookmark {
	history := bd.recent()
	if len(history) < 3 {
		return nil
	}

	var sum float64
	for _, h := range history {
		sum += h.WaterMean
	}
	avg := sum / float64(len(history))
	if avg == 0 {
		return nil
	}

	if stats.WaterMean > avg*2.0 && stats.WaterMean > 0.05 {
		return &Bookmark{
			Type:        BookmarkFlood,
			Frame:       stats.WindowEndFrame,
			Description: fmt.Sprintf("Mean depth %.3f is %.1fx average (%.3f)", stats.WaterMean, stats.WaterMean/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkDrought(stats WindowStats) *Bookmark {
	history := bd.recent()
	if len(history) < 3 {
		return nil
	}

	var sum float64
	for _, h := range history {
		sum += h.WaterDryFrac
	}
	avg := sum / float64(len(history))

	if stats.WaterDryFrac > 0.9 && avg < 0.5 {
		return &Bookmark{
			Type:        BookmarkDrought,
			Frame:       stats.WindowEndFrame,
			Description: fmt.Sprintf("%.0f%% of visible texels dry (average %.0f%%)", stats.WaterDryFrac*100, avg*100),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkSteadyWater(stats WindowStats) *Bookmark {
	if stats.WaterMean <= 0 {
		bd.steadyCount = 0
		return nil
	}

	history := bd.recent()
	if len(history) < 4 {
		return nil
	}
	last := history[len(history)-4:]

	var sum float64
	for _, h := range last {
		sum += h.WaterMean
	}
	mean := sum / 4
	var variance float64
	for _, h := range last {
		d := h.WaterMean - mean
		variance += d * d
	}
	variance /= 4

	// CV^2 < 0.0004 means CV < 2%
	if mean > 0 && variance/(mean*mean) < 0.0004 {
		bd.steadyCount++
	} else {
		bd.steadyCount = 0
	}

	if bd.steadyCount == 5 { // trigger exactly once per steady run
		return &Bookmark{
			Type:        BookmarkSteadyWater,
			Frame:       stats.WindowEndFrame,
			Description: fmt.Sprintf("Mean depth steady at %.3f over 5+ windows", stats.WaterMean),
		}
	}
	return nil
}
