package terrain

import (
	"testing"

	"github.com/pthm-cable/terrastream/config"
)

func noiseConfig(basis string, seed int64) config.NoiseConfig {
	return config.NoiseConfig{
		Seed:       seed,
		Basis:      basis,
		Scale:      900,
		Octaves:    5,
		Lacunarity: 2,
		Gain:       0.5,
		Ridge:      0.35,
	}
}

func TestNoiseField_Deterministic(t *testing.T) {
	for _, basis := range []string{"simplex", "perlin"} {
		a := NewNoiseField(noiseConfig(basis, 42))
		b := NewNoiseField(noiseConfig(basis, 42))
		for i := 0; i < 50; i++ {
			x, y := float64(i)*137.5-3000, float64(i)*-91.25+1200
			if a.Height(x, y) != b.Height(x, y) {
				t.Fatalf("%s: same seed gave different heights at (%v,%v)", basis, x, y)
			}
		}
	}
}

func TestNoiseField_Range(t *testing.T) {
	f := NewNoiseField(noiseConfig("simplex", 7))
	var lo, hi = 1.0, 0.0
	for y := -20; y < 20; y++ {
		for x := -20; x < 20; x++ {
			h := f.Height(float64(x)*97, float64(y)*97)
			m := f.Moisture(float64(x)*97, float64(y)*97)
			if h < 0 || h > 1 || m < 0 || m > 1 {
				t.Fatalf("height %v moisture %v out of [0,1]", h, m)
			}
			lo, hi = min(lo, h), max(hi, h)
		}
	}
	if hi-lo < 0.1 {
		t.Errorf("height field is nearly flat: [%v, %v]", lo, hi)
	}
}

func TestNoiseField_SeedsDiffer(t *testing.T) {
	a := NewNoiseField(noiseConfig("simplex", 1))
	b := NewNoiseField(noiseConfig("simplex", 2))
	same := 0
	for i := 0; i < 20; i++ {
		x := float64(i) * 311
		if a.Height(x, x*0.5) == b.Height(x, x*0.5) {
			same++
		}
	}
	if same == 20 {
		t.Error("different seeds produced identical fields")
	}
}

func TestMaterialFor(t *testing.T) {
	tests := []struct {
		height, moisture float64
		want             int
	}{
		{0.1, 0.5, 0},
		{0.5, 0.5, 1},
		{0.5, 0.1, 2},
		{0.7, 0.9, 2},
		{0.9, 0.9, 3},
	}
	for _, tc := range tests {
		if got := materialFor(tc.height, tc.moisture); got != tc.want {
			t.Errorf("materialFor(%v, %v) = %d, want %d", tc.height, tc.moisture, got, tc.want)
		}
	}
}
