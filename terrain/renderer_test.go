package terrain

import (
	"testing"

	"github.com/pthm-cable/terrastream/gpu"
	"github.com/pthm-cable/terrastream/grid"
)

func TestRenderer_DrawsVisibleTiles(t *testing.T) {
	rec := gpu.NewRecorder(newSoft(t))
	tt := newTestTerrain(t, testConfig(t), rec)
	rec.Reset()

	tt.step(t, 0, 0)

	draws := rec.Filter(gpu.OpDraw)
	if len(draws) != 9 || tt.renderer.Draws() != 9 {
		t.Fatalf("draws = %d (renderer says %d), want 9", len(draws), tt.renderer.Draws())
	}
	want := tt.ctx.Config.Derived.IndexCount
	for _, d := range draws {
		if d.Draw.IndexCount != want {
			t.Errorf("index count = %d, want %d", d.Draw.IndexCount, want)
		}
		if d.Draw.Mesh != tt.ctx.Mesh {
			t.Errorf("draw used mesh %d, want shared mesh %d", d.Draw.Mesh, tt.ctx.Mesh)
		}
	}

	binds := 0
	for _, c := range rec.Filter(gpu.OpBind) {
		if c.Label == "tile_render" {
			binds++
		}
	}
	if binds != 1 {
		t.Errorf("render pipeline bound %d times, want once", binds)
	}
}

func TestRenderer_BindsActiveSoilWater(t *testing.T) {
	rec := gpu.NewRecorder(newSoft(t))
	tt := newTestTerrain(t, testConfig(t), rec)

	for step := 1; step <= 2; step++ {
		rec.Reset()
		tt.step(t, 0, 0)

		var sets [][]gpu.Binding
		for _, c := range rec.Filter(gpu.OpResources) {
			if c.Label == "tile_render" {
				sets = append(sets, c.Bindings)
			}
		}
		visible := tt.cache.Visible()
		if len(sets) != len(visible) {
			t.Fatalf("step %d: %d render binding sets for %d visible tiles", step, len(sets), len(visible))
		}
		for i, e := range visible {
			tile := tt.cache.Tile(e)
			if int(tile.Active) != step%2 {
				t.Fatalf("step %d: tile %v active = %d", step, tile.Coord, tile.Active)
			}
			want := tt.ctx.Pool.Bundle(tile.Block).SoilWater[tile.Active]
			if got := sets[i][renderSoilWater].Raster; got != want {
				t.Errorf("step %d: tile %v sampled raster %d, want %d", step, tile.Coord, got, want)
			}
		}
	}
}

func TestRenderer_FillsTarget(t *testing.T) {
	s := newSoft(t)
	tt := newTestTerrain(t, testConfig(t), s)
	tt.step(t, 0, 0)

	img, err := s.ReadTarget()
	if err != nil {
		t.Fatal(err)
	}
	b := img.Bounds()
	opaque := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y).A == 255 {
				opaque++
			}
		}
	}
	// The default view frames the visible window exactly.
	if opaque != b.Dx()*b.Dy() {
		t.Errorf("%d of %d pixels drawn", opaque, b.Dx()*b.Dy())
	}

	view := tt.renderer.View()
	if view != tt.cache.VisibleWindow().Bounds(200) {
		t.Errorf("view = %+v", view)
	}
}

func TestRenderer_NothingVisible(t *testing.T) {
	tt := newTestTerrain(t, testConfig(t), newSoft(t))
	tt.frame(t, func() error { return tt.renderer.DrawVisible(tt.cache) })
	if tt.renderer.Draws() != 0 {
		t.Errorf("draws = %d on an empty cache", tt.renderer.Draws())
	}

	tt.renderer.SetView(grid.Bounds{Max: grid.Vec2{X: 1, Y: 1}})
	if tt.renderer.View().Max.X != 1 {
		t.Error("SetView ignored")
	}
}

func TestRenderer_WaterTintsTerrain(t *testing.T) {
	blueness := func(initialWater float64) float64 {
		cfg := testConfig(t)
		cfg.Simulation.InitialWater = initialWater
		cfg.Simulation.RainRate = 0
		cfg.Simulation.EvaporationRate = 0
		cfg.Simulation.SeepageRate = 0
		s := newSoft(t)
		tt := newTestTerrain(t, cfg, s)
		tt.step(t, 0, 0)

		img, err := s.ReadTarget()
		if err != nil {
			t.Fatal(err)
		}
		b := img.Bounds()
		var sum float64
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := img.RGBAAt(x, y)
				sum += float64(c.B) - float64(c.R)
			}
		}
		return sum / float64(b.Dx()*b.Dy())
	}

	dry, wet := blueness(0), blueness(10)
	if wet <= dry {
		t.Errorf("mean blue-red with water = %.1f, without = %.1f; want water to tint blue", wet, dry)
	}
}
