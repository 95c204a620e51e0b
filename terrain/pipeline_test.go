package terrain

import (
	"math"
	"slices"
	"testing"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/terrastream/gpu"
	"github.com/pthm-cable/terrastream/grid"
)

func TestSimulation_PingPong(t *testing.T) {
	tt := newTestTerrain(t, testConfig(t), newSoft(t))

	for n := 1; n <= 5; n++ {
		tt.step(t, 0, 0)
		tt.cache.Each(func(_ ecs.Entity, tile *Tile, _ *Neighbors) {
			if tile.Flows != n {
				t.Fatalf("%v flows = %d after %d steps", tile.Coord, tile.Flows, n)
			}
			if int(tile.Active) != n%2 {
				t.Errorf("%v active = %d after %d flows, want %d", tile.Coord, tile.Active, n, n%2)
			}
		})
	}

	// Fresh tiles start over at index 0.
	tt.step(t, 201, 0)
	tt.cache.Each(func(_ ecs.Entity, tile *Tile, _ *Neighbors) {
		if int(tile.Active) != tile.Flows%2 {
			t.Errorf("%v active = %d with %d flows", tile.Coord, tile.Active, tile.Flows)
		}
		if tile.Coord.X == 3 && tile.Flows != 1 {
			t.Errorf("new tile %v flows = %d, want 1", tile.Coord, tile.Flows)
		}
	})
}

func TestSimulation_TransitionsBracketEveryDispatch(t *testing.T) {
	rec := gpu.NewRecorder(newSoft(t))
	tt := newTestTerrain(t, testConfig(t), rec)
	rec.Reset()

	tt.step(t, 0, 0)
	cmds := rec.Commands()

	dispatches := 0
	for i, c := range cmds {
		if c.Op != gpu.OpDispatch {
			continue
		}
		dispatches++

		// Find the binding set and the pipeline bind that opened this dispatch.
		var bindings []gpu.Binding
		start := -1
		for j := i - 1; j >= 0; j-- {
			if cmds[j].Op == gpu.OpResources && bindings == nil {
				bindings = cmds[j].Bindings
			}
			if cmds[j].Op == gpu.OpBind {
				start = j
				break
			}
		}
		if start < 0 || bindings == nil {
			t.Fatalf("dispatch %d (%s) has no bound pipeline or resources", i, c.Label)
		}

		for _, b := range bindings {
			if b.Access != gpu.Write {
				continue
			}
			before := slices.ContainsFunc(cmds[start:i], func(o gpu.Command) bool {
				return o.Op == gpu.OpTransition && o.Raster == b.Raster && o.From == gpu.ShaderRead && o.To == gpu.Storage
			})
			if !before {
				t.Errorf("%s: raster %d written without a ShaderRead->Storage transition", c.Label, b.Raster)
			}

			// The matching transition back comes before any other work.
			after := false
			for _, o := range cmds[i+1:] {
				if o.Op == gpu.OpBind || o.Op == gpu.OpDispatch || o.Op == gpu.OpDraw {
					break
				}
				if o.Op == gpu.OpTransition && o.Raster == b.Raster && o.From == gpu.Storage && o.To == gpu.ShaderRead {
					after = true
				}
			}
			if !after {
				t.Errorf("%s: raster %d not returned to ShaderRead after the dispatch", c.Label, b.Raster)
			}
		}
	}

	// 25 creations, 25 updates, 25 flows.
	if dispatches != 75 {
		t.Errorf("dispatches = %d, want 75", dispatches)
	}
}

func TestSimulation_CreationOncePerTile(t *testing.T) {
	rec := gpu.NewRecorder(newSoft(t))
	tt := newTestTerrain(t, testConfig(t), rec)

	count := func() int {
		n := 0
		for _, c := range rec.Filter(gpu.OpDispatch) {
			if c.Label == "tile_creation" {
				n++
			}
		}
		rec.Reset()
		return n
	}

	rec.Reset()
	tt.step(t, 0, 0)
	if n := count(); n != 25 {
		t.Errorf("first frame creations = %d, want 25", n)
	}
	tt.step(t, 0, 0)
	if n := count(); n != 0 {
		t.Errorf("steady frame creations = %d, want 0", n)
	}
	tt.step(t, 0, 201)
	if n := count(); n != 5 {
		t.Errorf("creations after one-tile move = %d, want 5", n)
	}
}

func TestSimulation_DispatchSizes(t *testing.T) {
	rec := gpu.NewRecorder(newSoft(t))
	tt := newTestTerrain(t, testConfig(t), rec)
	rec.Reset()
	tt.step(t, 0, 0)

	want := map[string][3]uint32{
		"tile_creation": {2, 2, 1}, // 16 texels / 8
		"tile_update":   {1, 1, 1}, // 16 texels / 16
		"tile_flow":     {1, 1, 1},
	}
	for _, c := range rec.Filter(gpu.OpDispatch) {
		if c.Groups != want[c.Label] {
			t.Errorf("%s groups = %v, want %v", c.Label, c.Groups, want[c.Label])
		}
	}
}

func TestSimulation_FlowConservesWater(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.RainRate = 0
	cfg.Simulation.EvaporationRate = 0
	cfg.Simulation.SeepageRate = 0
	cfg.Simulation.FlowRate = 20
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}
	tt := newTestTerrain(t, cfg, newSoft(t))

	tt.move(t, 0, 0)
	before := totalWater(t, tt)
	if before <= 0 {
		t.Fatalf("no initial water")
	}

	for i := 0; i < 10; i++ {
		tt.step(t, 0, 0)
	}
	after := totalWater(t, tt)
	if rel := math.Abs(after-before) / before; rel > 1e-4 {
		t.Errorf("water %v -> %v (relative change %v)", before, after, rel)
	}
}

func TestSimulation_FlowCrossesTileEdges(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.RainRate = 0
	cfg.Simulation.EvaporationRate = 0
	cfg.Simulation.SeepageRate = 0
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}
	tt := newTestTerrain(t, cfg, newSoft(t))
	tt.move(t, 0, 0)

	// Flatten two neighbors and put all water in the west one, against
	// their shared edge.
	n := cfg.Terrain.RasterSize
	west, _ := tt.cache.Lookup(grid.Coord{X: 0, Y: 0})
	east, _ := tt.cache.Lookup(grid.Coord{X: 1, Y: 0})
	soft := tt.ctx.Backend.(*gpu.Soft)
	for _, e := range []ecs.Entity{west, east} {
		b := tt.ctx.Pool.Bundle(tt.cache.Tile(e).Block)
		data := soft.RasterData(b.SoilWater[0])
		for i := 0; i < n*n; i++ {
			data[i*4+chWater] = 0
			data[i*4+chRock] = 0
		}
	}
	wb := tt.ctx.Pool.Bundle(tt.cache.Tile(west).Block)
	data := soft.RasterData(wb.SoilWater[0])
	for y := 0; y < n; y++ {
		data[(y*n+n-1)*4+chWater] = 1
	}

	tt.step(t, 0, 0)

	et := tt.cache.Tile(east)
	got := readRaster(t, soft, tt.ctx.Pool.Bundle(et.Block).SoilWater[et.Active], n*n*4)
	for y := 0; y < n; y++ {
		if w := got[(y*n)*4+chWater]; !(w > 0) {
			t.Fatalf("row %d: no water crossed into the east tile (w=%v)", y, w)
		}
	}
}

func TestSimulation_DeterministicRecreation(t *testing.T) {
	tt := newTestTerrain(t, testConfig(t), newSoft(t))
	n := tt.ctx.Config.Terrain.RasterSize
	coord := grid.Coord{X: 1, Y: -1}

	snapshot := func() (rock, sw, anc []float32, block int) {
		e, ok := tt.cache.Lookup(coord)
		if !ok {
			t.Fatalf("tile %v not live", coord)
		}
		tile := tt.cache.Tile(e)
		b := tt.ctx.Pool.Bundle(tile.Block)
		return readRaster(t, tt.ctx.Backend, b.Rock, n*n),
			readRaster(t, tt.ctx.Backend, b.SoilWater[tile.Active], n*n*4),
			readRaster(t, tt.ctx.Backend, b.Ancillary, n*n*4),
			tile.Block
	}

	tt.move(t, 0, 0)
	rock1, sw1, anc1, _ := snapshot()

	// Run the simulation elsewhere so every block is reused, then return.
	tt.step(t, 5000, 5000)
	tt.step(t, 5000, 5000)
	tt.move(t, 0, 0)
	rock2, sw2, anc2, _ := snapshot()

	if !slices.Equal(rock1, rock2) {
		t.Error("rock differs after recreation")
	}
	if !slices.Equal(sw1, sw2) {
		t.Error("soil/water differs after recreation")
	}
	if !slices.Equal(anc1, anc2) {
		t.Error("ancillary differs after recreation")
	}
}

func TestUpdateParamsLayout(t *testing.T) {
	if updateParamsSize != 80 {
		t.Errorf("UpdateParams is %d bytes, want 80", updateParamsSize)
	}
	if drawParamsSize != 64 {
		t.Errorf("DrawParams is %d bytes, want 64", drawParamsSize)
	}
	if updateParamsSize%16 != 0 || drawParamsSize%16 != 0 {
		t.Error("parameter blocks must be 16-byte aligned")
	}

	p := UpdateParams{WidthPixels: 128, NeighborMask: 0b1010, DeltaT: 0.5}
	got, err := decodeUpdateParams(p.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got.WidthPixels != 128 || got.NeighborMask != 0b1010 || got.DeltaT != 0.5 {
		t.Errorf("decoded %+v", got)
	}
}

func TestSimulation_Update(t *testing.T) {
	tests := []struct {
		name              string
		rain, evap, seep  float64
		active            uint8
		wantWater         func(soil, water float64) float64
		wantSoilPlusWater bool // soil+water is conserved
		wantSoilUnchanged bool
	}{
		{
			name: "rain", rain: 1,
			wantWater:         func(_, w float64) float64 { return w + 1.0/60 },
			wantSoilUnchanged: true,
		},
		{
			name: "evaporation", evap: 6,
			wantWater:         func(_, w float64) float64 { return w * (1 - 6.0/60) },
			wantSoilUnchanged: true,
		},
		{
			name: "seepage", seep: 3,
			wantWater:         func(s, w float64) float64 { return w - min(w, 3.0/60*(1-s)) },
			wantSoilPlusWater: true,
		},
		{
			name: "rain on slot 1", rain: 1, active: 1,
			wantWater:         func(_, w float64) float64 { return w + 1.0/60 },
			wantSoilUnchanged: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Simulation.TimeStep = 1.0 / 60
			cfg.Simulation.RainRate = 0
			cfg.Simulation.EvaporationRate = 0
			cfg.Simulation.SeepageRate = 0
			tt := newTestTerrain(t, cfg, newSoft(t))
			tt.move(t, 0, 0)

			e, ok := tt.cache.Lookup(grid.Coord{})
			if !ok {
				t.Fatal("centre tile not cached")
			}
			tile := tt.cache.Tile(e)
			if tc.active == 1 {
				// One quiet step moves the water into slot 1.
				tt.step(t, 0, 0)
				tile = tt.cache.Tile(e)
			}
			if tile.Active != tc.active {
				t.Fatalf("active = %d, want %d", tile.Active, tc.active)
			}

			n := cfg.Terrain.RasterSize
			bundle := tt.ctx.Pool.Bundle(tile.Block)
			b := tt.ctx.Backend
			active := readRaster(t, b, bundle.SoilWater[tc.active], n*n*4)
			other := readRaster(t, b, bundle.SoilWater[1-tc.active], n*n*4)
			rock := readRaster(t, b, bundle.Rock, n*n)

			cfg.Simulation.RainRate = tc.rain
			cfg.Simulation.EvaporationRate = tc.evap
			cfg.Simulation.SeepageRate = tc.seep
			tt.frame(t, func() error { return tt.sim.Update(tile) })

			if tile.Active != tc.active {
				t.Errorf("Update flipped active to %d", tile.Active)
			}

			gotActive := readRaster(t, b, bundle.SoilWater[tc.active], n*n*4)
			for i := 0; i < n*n; i++ {
				soil, water := float64(active[i*4+chSoil]), float64(active[i*4+chWater])
				gs, gw := float64(gotActive[i*4+chSoil]), float64(gotActive[i*4+chWater])
				if want := tc.wantWater(soil, water); math.Abs(gw-want) > 1e-5 {
					t.Fatalf("texel %d water = %v, want %v (was %v)", i, gw, want, water)
				}
				if tc.wantSoilUnchanged && gs != soil {
					t.Fatalf("texel %d soil = %v, want %v", i, gs, soil)
				}
				if tc.wantSoilPlusWater && math.Abs((gs+gw)-(soil+water)) > 1e-5 {
					t.Fatalf("texel %d soil+water = %v, want %v", i, gs+gw, soil+water)
				}
			}

			if got := readRaster(t, b, bundle.SoilWater[1-tc.active], n*n*4); !slices.Equal(got, other) {
				t.Error("inactive soil/water slot changed")
			}
			if got := readRaster(t, b, bundle.Rock, n*n); !slices.Equal(got, rock) {
				t.Error("rock raster changed")
			}

			normal := readRaster(t, b, bundle.Normal, n*n*4)
			for i := 0; i < n*n; i++ {
				nx, ny, nz := normal[i*4], normal[i*4+1], normal[i*4+2]
				l := math.Sqrt(float64(nx*nx + ny*ny + nz*nz))
				if math.Abs(l-1) > 1e-4 || nz <= 0 {
					t.Fatalf("texel %d normal = (%v, %v, %v), want unit length facing up", i, nx, ny, nz)
				}
			}
		})
	}
}

func TestTexelWorld_FarFromOrigin(t *testing.T) {
	tt := newTestTerrain(t, testConfig(t), newSoft(t))
	n := tt.ctx.Config.Terrain.RasterSize
	rpp := tt.ctx.Config.Derived.RangePerPixel

	for _, origin := range []grid.Vec2{
		{X: 0, Y: 0},
		{X: 123456789.125, Y: -987654321.375},
		{X: -3.3e8 + 0.7, Y: 1e7 + 0.25},
	} {
		tile := &Tile{Bounds: grid.Bounds{Min: origin, Max: grid.Vec2{X: origin.X + 200, Y: origin.Y + 200}}}
		p := tt.sim.params(tile, 0)
		for _, xy := range [][2]int{{0, 0}, {n - 1, 0}, {n / 2, n - 1}} {
			wx, wy := texelWorld(&p, xy[0], xy[1])
			ex := origin.X + (float64(xy[0])+0.5)*rpp
			ey := origin.Y + (float64(xy[1])+0.5)*rpp
			if math.Abs(wx-ex) > 1e-3 || math.Abs(wy-ey) > 1e-3 {
				t.Errorf("origin %v texel %v: world (%v, %v), want (%v, %v)", origin, xy, wx, wy, ex, ey)
			}
		}
	}
}
