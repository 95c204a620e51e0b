package camera

import (
	"math"
	"testing"

	"github.com/pthm-cable/terrastream/grid"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestNew(t *testing.T) {
	cam := New(1280, 720, 300, -50, 0)

	if cam.X != 300 || cam.Y != -50 {
		t.Errorf("expected camera at (300, -50), got (%f, %f)", cam.X, cam.Y)
	}
	if cam.Zoom != 1.0 {
		t.Errorf("expected zoom 1.0, got %f", cam.Zoom)
	}
}

func TestWorldToScreenCentered(t *testing.T) {
	cam := New(1280, 720, 300, -50, 2)

	sx, sy := cam.WorldToScreen(300, -50)
	if !near(sx, 640) || !near(sy, 360) {
		t.Errorf("expected screen center (640, 360), got (%f, %f)", sx, sy)
	}
}

func TestScreenToWorldRoundtrip(t *testing.T) {
	cam := New(1280, 720, -1e6, 4e5, 0.3)

	testCases := []struct{ sx, sy float64 }{
		{640, 360},  // center
		{100, 100},  // top-left
		{1200, 600}, // near bottom-right
	}

	for _, tc := range testCases {
		wx, wy := cam.ScreenToWorld(tc.sx, tc.sy)
		sx, sy := cam.WorldToScreen(wx, wy)
		if math.Abs(sx-tc.sx) > 1e-3 || math.Abs(sy-tc.sy) > 1e-3 {
			t.Errorf("roundtrip failed: (%f,%f) -> (%f,%f) -> (%f,%f)",
				tc.sx, tc.sy, wx, wy, sx, sy)
		}
	}
}

func TestPanUnbounded(t *testing.T) {
	cam := New(1280, 720, 0, 0, 2)

	for i := 0; i < 1000; i++ {
		cam.Pan(-100, 0)
	}
	// 1000 * 100 screen pixels at zoom 2
	if !near(cam.X, -50000) {
		t.Errorf("X = %f, want -50000", cam.X)
	}
}

func TestZoomClamped(t *testing.T) {
	cam := New(1280, 720, 0, 0, 1)

	cam.ZoomBy(1000)
	if cam.Zoom != cam.MaxZoom {
		t.Errorf("zoom %f, want max %f", cam.Zoom, cam.MaxZoom)
	}
	cam.ZoomBy(1e-9)
	if cam.Zoom != cam.MinZoom {
		t.Errorf("zoom %f, want min %f", cam.Zoom, cam.MinZoom)
	}
	cam.Reset()
	if cam.Zoom != 1 || cam.X != 0 || cam.Y != 0 {
		t.Errorf("after Reset: %+v", cam)
	}
}

func TestFit(t *testing.T) {
	cam := New(800, 400, 0, 0, 1)
	b := grid.Bounds{Min: grid.Vec2{X: 100, Y: 100}, Max: grid.Vec2{X: 500, Y: 300}}

	cam.Fit(b)
	if !near(cam.X, 300) || !near(cam.Y, 200) {
		t.Errorf("center (%f, %f), want (300, 200)", cam.X, cam.Y)
	}
	if !near(cam.Zoom, 2) {
		t.Errorf("zoom %f, want 2", cam.Zoom)
	}

	v := cam.VisibleWorldBounds()
	if v != b {
		t.Errorf("visible %v, want %v", v, b)
	}
}

func TestIsVisible(t *testing.T) {
	cam := New(200, 200, 0, 0, 1)

	tests := []struct {
		name string
		b    grid.Bounds
		want bool
	}{
		{"inside", grid.Bounds{Min: grid.Vec2{X: -10, Y: -10}, Max: grid.Vec2{X: 10, Y: 10}}, true},
		{"overlapping edge", grid.Bounds{Min: grid.Vec2{X: 90, Y: 0}, Max: grid.Vec2{X: 150, Y: 10}}, true},
		{"far right", grid.Bounds{Min: grid.Vec2{X: 150, Y: 0}, Max: grid.Vec2{X: 200, Y: 10}}, false},
		{"above", grid.Bounds{Min: grid.Vec2{X: 0, Y: -300}, Max: grid.Vec2{X: 10, Y: -200}}, false},
	}
	for _, tc := range tests {
		if got := cam.IsVisible(tc.b); got != tc.want {
			t.Errorf("%s: IsVisible = %v, want %v", tc.name, got, tc.want)
		}
	}
}
