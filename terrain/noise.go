package terrain

import (
	"math"
	"math/rand"

	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/terrastream/config"
)

// Noise2D is a coherent noise basis returning values in roughly [-1, 1].
type Noise2D interface {
	Eval2(x, y float64) float64
}

// NoiseField produces the deterministic terrain heights used by the
// Creation stage. It is safe for concurrent use once built.
type NoiseField struct {
	basis      Noise2D
	detail     Noise2D
	scale      float64
	octaves    int
	lacunarity float64
	gain       float64
	ridge      float64
	seed       int64
}

// NewNoiseField builds a field from noise settings.
func NewNoiseField(cfg config.NoiseConfig) *NoiseField {
	f := &NoiseField{
		scale:      cfg.Scale,
		octaves:    cfg.Octaves,
		lacunarity: cfg.Lacunarity,
		gain:       cfg.Gain,
		ridge:      cfg.Ridge,
		seed:       cfg.Seed,
	}
	if f.scale <= 0 {
		f.scale = 1
	}
	if cfg.Basis == "perlin" {
		f.basis = NewPerlinNoise(cfg.Seed)
		f.detail = NewPerlinNoise(cfg.Seed + 1)
	} else {
		f.basis = opensimplex.New(cfg.Seed)
		f.detail = opensimplex.New(cfg.Seed + 1)
	}
	return f
}

// Seed returns the generator seed.
func (f *NoiseField) Seed() int64 { return f.seed }

// FBM sums octaves of the basis at a world position. The result is
// normalised to [-1, 1].
func (f *NoiseField) FBM(x, y float64) float64 {
	x /= f.scale
	y /= f.scale

	var sum, norm float64
	amp := 1.0
	for i := 0; i < f.octaves; i++ {
		n := f.basis.Eval2(x, y)
		if f.ridge > 0 {
			r := 1 - 2*math.Abs(n)
			n = n*(1-f.ridge) + r*f.ridge
		}
		sum += n * amp
		norm += amp
		amp *= f.gain
		x *= f.lacunarity
		y *= f.lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// Height returns rock height in [0, 1] at a world position.
func (f *NoiseField) Height(x, y float64) float64 {
	return clamp01(f.FBM(x, y)*0.5 + 0.5)
}

// Moisture returns an independent low-frequency field in [0, 1].
func (f *NoiseField) Moisture(x, y float64) float64 {
	return clamp01(f.detail.Eval2(x/(f.scale*0.5), y/(f.scale*0.5))*0.5 + 0.5)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PerlinNoise generates classic gradient noise.
type PerlinNoise struct {
	perm [512]int
}

// NewPerlinNoise creates a new Perlin noise generator.
func NewPerlinNoise(seed int64) *PerlinNoise {
	p := &PerlinNoise{}
	rng := rand.New(rand.NewSource(seed))

	var perm [256]int
	for i := range perm {
		perm[i] = i
	}
	for i := len(perm) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	for i := 0; i < 256; i++ {
		p.perm[i] = perm[i]
		p.perm[i+256] = perm[i]
	}

	return p
}

// Eval2 returns a noise value for 2D coordinates.
func (p *PerlinNoise) Eval2(x, y float64) float64 {
	X := int(math.Floor(x)) & 255
	Y := int(math.Floor(y)) & 255

	x -= math.Floor(x)
	y -= math.Floor(y)

	u := fade(x)
	v := fade(y)

	A := p.perm[X] + Y
	B := p.perm[X+1] + Y

	return lerp(v,
		lerp(u, grad2D(p.perm[A], x, y), grad2D(p.perm[B], x-1, y)),
		lerp(u, grad2D(p.perm[A+1], x, y-1), grad2D(p.perm[B+1], x-1, y-1)))
}

func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float64) float64 {
	return a + t*(b-a)
}

// grad2D picks one of eight gradient directions from the hash.
func grad2D(hash int, x, y float64) float64 {
	switch hash & 7 {
	case 0:
		return x + y
	case 1:
		return -x + y
	case 2:
		return x - y
	case 3:
		return -x - y
	case 4:
		return x
	case 5:
		return -x
	case 6:
		return y
	default:
		return -y
	}
}
