package grid

import "testing"

func TestWorldToTileCoord(t *testing.T) {
	tests := []struct {
		pos  Vec2
		size float64
		want Coord
	}{
		{Vec2{0, 0}, 200, Coord{0, 0}},
		{Vec2{199.9, 0}, 200, Coord{0, 0}},
		{Vec2{200, 0}, 200, Coord{1, 0}},
		{Vec2{201, 0}, 200, Coord{1, 0}},
		{Vec2{-0.1, -0.1}, 200, Coord{-1, -1}},
		{Vec2{-200, 400}, 200, Coord{-1, 2}},
		{Vec2{-200.5, 399}, 200, Coord{-2, 1}},
	}

	for _, tt := range tests {
		got := WorldToTileCoord(tt.pos, tt.size)
		if got != tt.want {
			t.Errorf("WorldToTileCoord(%v, %v) = %v, want %v", tt.pos, tt.size, got, tt.want)
		}
	}
}

func TestTileCoordToBounds(t *testing.T) {
	b := TileCoordToBounds(Coord{0, 0}, 200)
	if b.Min != (Vec2{-100, -100}) || b.Max != (Vec2{100, 100}) {
		t.Errorf("origin tile bounds = %+v", b)
	}

	b = TileCoordToBounds(Coord{3, -2}, 200)
	if b.Min != (Vec2{500, -500}) || b.Max != (Vec2{700, -300}) {
		t.Errorf("tile (3,-2) bounds = %+v", b)
	}

	size := b.Size()
	if size.X != 200 || size.Y != 200 {
		t.Errorf("edge length = %v, want 200", size)
	}
}

func TestBoundsRoundTrip(t *testing.T) {
	for _, size := range []float64{1, 64, 200, 333.3} {
		for x := -4; x <= 4; x++ {
			for y := -4; y <= 4; y++ {
				c := Coord{x, y}
				if got := BoundsToTileCoord(TileCoordToBounds(c, size), size); got != c {
					t.Errorf("size %v: round trip of %v = %v", size, c, got)
				}
			}
		}
	}
}

func TestHash(t *testing.T) {
	a := TileCoordToBounds(Coord{1, 2}, 200)
	b := TileCoordToBounds(Coord{1, 2}, 200)
	c := TileCoordToBounds(Coord{2, 1}, 200)

	if Hash(a, 255) != Hash(b, 255) {
		t.Error("identical bounds and segments should collide")
	}
	if Hash(a, 255) == Hash(c, 255) {
		t.Error("different bounds should not collide")
	}
	if Hash(a, 255) == Hash(a, 127) {
		t.Error("different segment counts should not collide")
	}
}

func TestWindow(t *testing.T) {
	w := Around(Coord{0, 0}, 2)
	if w.Len() != 25 || w.Side() != 5 {
		t.Fatalf("window len=%d side=%d, want 25 and 5", w.Len(), w.Side())
	}

	if !w.Contains(Coord{2, -2}) {
		t.Error("corner should be inside (inclusive)")
	}
	if w.Contains(Coord{3, 0}) {
		t.Error("(3,0) should be outside")
	}

	for i := 0; i < w.Len(); i++ {
		if got := w.Index(w.At(i)); got != i {
			t.Errorf("Index(At(%d)) = %d", i, got)
		}
	}

	if w.At(0) != w.Min || w.At(w.Len()-1) != w.Max {
		t.Errorf("row-major endpoints = %v, %v", w.At(0), w.At(w.Len()-1))
	}
	if w.At(1) != (Coord{-1, -2}) {
		t.Errorf("x should vary fastest, At(1) = %v", w.At(1))
	}

	if w.Index(Coord{9, 9}) != -1 {
		t.Error("outside coordinate should index to -1")
	}

	if !w.ContainsWindow(Around(Coord{0, 0}, 1)) {
		t.Error("radius-1 window should nest inside radius-2 window")
	}
}

func TestWindowBounds(t *testing.T) {
	w := Around(Coord{0, 0}, 1)
	b := w.Bounds(200)
	if b.Min != (Vec2{-300, -300}) || b.Max != (Vec2{300, 300}) {
		t.Errorf("window bounds = %+v", b)
	}
}

func TestWindowOnEdge(t *testing.T) {
	w := Around(Coord{0, 0}, 2)
	edge := 0
	for i := 0; i < w.Len(); i++ {
		if w.OnEdge(w.At(i)) {
			edge++
		}
	}
	if edge != 16 {
		t.Errorf("edge count = %d, want 16", edge)
	}
	if w.OnEdge(Coord{5, 5}) {
		t.Error("coordinate outside the window is not on its edge")
	}
}
