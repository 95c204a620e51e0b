package terrain

import (
	"testing"
)

func TestReadback_Water(t *testing.T) {
	tt := newTestTerrain(t, testConfig(t), newSoft(t))
	tt.step(t, 0, 0)
	rb := NewReadback(tt.ctx)

	depths, err := rb.Water(tt.cache, nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	// 3x3 visible tiles of 16x16 texels.
	if len(depths) != 9*16*16 {
		t.Fatalf("len = %d, want %d", len(depths), 9*16*16)
	}
	for i, d := range depths {
		if d < 0 {
			t.Fatalf("depth[%d] = %v, want >= 0", i, d)
		}
	}

	sparse, err := rb.Water(tt.cache, depths[:0], 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(sparse) != 9*4*4 {
		t.Errorf("strided len = %d, want %d", len(sparse), 9*4*4)
	}
}

func TestReadback_Heights(t *testing.T) {
	tt := newTestTerrain(t, testConfig(t), newSoft(t))
	tt.move(t, 0, 0)
	rb := NewReadback(tt.ctx)

	e := tt.cache.Visible()[0]
	h, err := rb.Heights(tt.cache, e)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 16*16 {
		t.Fatalf("len = %d", len(h))
	}
	hs := float32(tt.ctx.Config.Terrain.HeightScale)
	for i, v := range h {
		if v < 0 || v > hs {
			t.Fatalf("height[%d] = %v outside [0, %v]", i, v, hs)
		}
	}
}
