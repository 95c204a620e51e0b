package telemetry

import "testing"

func hasBookmark(bms []Bookmark, typ BookmarkType) bool {
	for _, bm := range bms {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_Flood(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndFrame: uint64(i * 120), WaterMean: 0.1})
	}

	bms := bd.Check(WindowStats{WindowEndFrame: 600, WaterMean: 0.5})
	if !hasBookmark(bms, BookmarkFlood) {
		t.Error("expected flood bookmark")
	}
}

func TestBookmarkDetector_Drought(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndFrame: uint64(i * 120), WaterMean: 0.1, WaterDryFrac: 0.1})
	}

	bms := bd.Check(WindowStats{WindowEndFrame: 600, WaterMean: 0.1, WaterDryFrac: 0.95})
	if !hasBookmark(bms, BookmarkDrought) {
		t.Error("expected drought bookmark")
	}
}

func TestBookmarkDetector_PoolStall(t *testing.T) {
	bd := NewBookmarkDetector(10)

	waits := []int{0, 3, 4, 0, 2}
	want := []bool{false, true, false, false, true}
	for i, w := range waits {
		bms := bd.Check(WindowStats{WindowEndFrame: uint64(i), PoolWaits: w})
		if got := hasBookmark(bms, BookmarkPoolStall); got != want[i] {
			t.Errorf("window %d (waits %d): stall bookmark = %v, want %v", i, w, got, want[i])
		}
	}
}

func TestBookmarkDetector_SteadyWater(t *testing.T) {
	bd := NewBookmarkDetector(10)

	var triggered []int
	for i := 0; i < 12; i++ {
		bms := bd.Check(WindowStats{WindowEndFrame: uint64(i * 120), WaterMean: 0.2})
		if hasBookmark(bms, BookmarkSteadyWater) {
			triggered = append(triggered, i)
		}
	}
	// Four windows of history, then five steady checks.
	if len(triggered) != 1 || triggered[0] != 8 {
		t.Errorf("steady bookmark at windows %v, want [8]", triggered)
	}
}

func TestBookmarkDetector_NoFalsePositives(t *testing.T) {
	bd := NewBookmarkDetector(5)

	for i := 0; i < 20; i++ {
		mean := 0.1 + 0.01*float64(i%3)
		bms := bd.Check(WindowStats{WindowEndFrame: uint64(i), WaterMean: mean, WaterDryFrac: 0.2})
		if hasBookmark(bms, BookmarkFlood) || hasBookmark(bms, BookmarkDrought) {
			t.Fatalf("window %d: unexpected %v", i, bms)
		}
	}
}
