// Package config provides configuration loading and access for the terrain
// streamer.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Backends lists the accepted gpu.backend values.
var Backends = []string{"soft", "wgpu"}

// Trajectories lists the accepted camera.trajectory values.
var Trajectories = []string{"static", "line", "circle", "walk"}

// Config holds all configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Terrain    TerrainConfig    `yaml:"terrain"`
	Simulation SimulationConfig `yaml:"simulation"`
	Noise      NoiseConfig      `yaml:"noise"`
	Camera     CameraConfig     `yaml:"camera"`
	GPU        GPUConfig        `yaml:"gpu"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// TerrainConfig holds tile cache geometry.
type TerrainConfig struct {
	TileSize        float64 `yaml:"tile_size"`         // World units per tile edge
	CacheTileSize   int     `yaml:"cache_tile_size"`   // Cache window radius in tiles
	VisibleTileSize int     `yaml:"visible_tile_size"` // Visible window radius in tiles
	SegmentCount    int     `yaml:"segment_count"`     // Quads per mesh edge
	RasterSize      int     `yaml:"raster_size"`       // Texels per raster edge
	HeightScale     float64 `yaml:"height_scale"`      // Rock height range in world units
}

// SimulationConfig holds water simulation parameters.
type SimulationConfig struct {
	TimeStep        float64 `yaml:"time_step"`        // Seconds per frame
	RainRate        float64 `yaml:"rain_rate"`        // Water depth added per second
	EvaporationRate float64 `yaml:"evaporation_rate"` // Fraction of water lost per second
	SeepageRate     float64 `yaml:"seepage_rate"`     // Water moved into soil per second
	FlowRate        float64 `yaml:"flow_rate"`        // Pipe conductance
	FlowSpeedScale  float64 `yaml:"flow_speed_scale"` // Visual flow speed multiplier
	InitialWater    float64 `yaml:"initial_water"`    // Water depth at creation
}

// NoiseConfig holds procedural terrain generation parameters.
type NoiseConfig struct {
	Seed       int64   `yaml:"seed"`
	Basis      string  `yaml:"basis"`      // "simplex" or "perlin"
	Scale      float64 `yaml:"scale"`      // World units per base noise period
	Octaves    int     `yaml:"octaves"`    // FBM octave count
	Lacunarity float64 `yaml:"lacunarity"` // Frequency multiplier per octave
	Gain       float64 `yaml:"gain"`       // Amplitude multiplier per octave
	Ridge      float64 `yaml:"ridge"`      // 0 = smooth hills, 1 = ridged mountains
}

// CameraConfig holds viewpoint motion parameters.
type CameraConfig struct {
	Trajectory string  `yaml:"trajectory"` // static, line, circle, walk
	Speed      float64 `yaml:"speed"`      // World units per second
	Radius     float64 `yaml:"radius"`     // Circle radius
	StartX     float64 `yaml:"start_x"`
	StartY     float64 `yaml:"start_y"`
	PanSpeed   float64 `yaml:"pan_speed"` // Keyboard pan speed in screen pixels per second
}

// GPUConfig selects and sizes the compute backend.
type GPUConfig struct {
	Backend        string `yaml:"backend"`       // soft or wgpu
	Workers        int    `yaml:"workers"`       // Soft backend goroutines (0 = GOMAXPROCS)
	MemoryBudget   int    `yaml:"memory_budget"` // Soft backend raster budget in MiB (0 = unlimited)
	TargetWidth    int    `yaml:"target_width"`  // Offscreen colour target
	TargetHeight   int    `yaml:"target_height"`
	PreferDiscrete bool   `yaml:"prefer_discrete"` // wgpu adapter preference
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow   int `yaml:"stats_window"`   // Frames per stats window
	PerfWindow    int `yaml:"perf_window"`    // Frames in the perf rolling window
	SnapshotEvery int `yaml:"snapshot_every"` // Frames between PNG snapshots (0 = off)
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	NumCachedBlocks int     // (2*CacheTileSize+1)^2
	CacheSide       int     // 2*CacheTileSize+1
	VisibleSide     int     // 2*VisibleTileSize+1
	RangePerPixel   float64 // TileSize / RasterSize
	FlowSpeedFactor float64 // FlowSpeedScale / (1024 * RangePerPixel)
	CreationGroups  uint32  // Work groups per axis for 8x8 creation
	UpdateGroups    uint32  // Work groups per axis for 16x16 update and flow
	IndexCount      int     // SegmentCount^2 * 6
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the embedded defaults with derived values computed.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	cfg.computeDerived()
	return cfg, nil
}

// Finalize validates the config and recomputes derived values. Call it after
// changing fields by hand.
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// Validate checks the config for values the streamer cannot run with.
func (c *Config) Validate() error {
	t := c.Terrain
	switch {
	case !(t.TileSize > 0) || math.IsInf(t.TileSize, 0):
		return fmt.Errorf("terrain.tile_size must be positive, got %v: %w", t.TileSize, ErrInvalid)
	case t.CacheTileSize < 0:
		return fmt.Errorf("terrain.cache_tile_size must be >= 0, got %d: %w", t.CacheTileSize, ErrInvalid)
	case t.VisibleTileSize < 0 || t.VisibleTileSize > t.CacheTileSize:
		return fmt.Errorf("terrain.visible_tile_size must be in [0, %d], got %d: %w",
			t.CacheTileSize, t.VisibleTileSize, ErrInvalid)
	case t.SegmentCount < 1 || t.SegmentCount > 255:
		// 16-bit indices address at most 256x256 vertices.
		return fmt.Errorf("terrain.segment_count must be in [1, 255], got %d: %w", t.SegmentCount, ErrInvalid)
	case t.RasterSize < 2:
		return fmt.Errorf("terrain.raster_size must be >= 2, got %d: %w", t.RasterSize, ErrInvalid)
	}

	s := c.Simulation
	switch {
	case !(s.TimeStep > 0):
		return fmt.Errorf("simulation.time_step must be positive, got %v: %w", s.TimeStep, ErrInvalid)
	case s.RainRate < 0 || s.EvaporationRate < 0 || s.SeepageRate < 0 || s.FlowRate < 0:
		return fmt.Errorf("simulation rates must be >= 0: %w", ErrInvalid)
	case s.InitialWater < 0:
		return fmt.Errorf("simulation.initial_water must be >= 0, got %v: %w", s.InitialWater, ErrInvalid)
	}

	if c.Noise.Octaves < 1 {
		return fmt.Errorf("noise.octaves must be >= 1, got %d: %w", c.Noise.Octaves, ErrInvalid)
	}
	if err := oneOf("noise.basis", c.Noise.Basis, []string{"simplex", "perlin"}); err != nil {
		return err
	}
	if err := oneOf("gpu.backend", c.GPU.Backend, Backends); err != nil {
		return err
	}
	return oneOf("camera.trajectory", c.Camera.Trajectory, Trajectories)
}

// oneOf rejects values outside choices and suggests the closest match.
func oneOf(field, value string, choices []string) error {
	for _, ch := range choices {
		if value == ch {
			return nil
		}
	}
	if s := Suggest(value, choices); s != "" {
		return fmt.Errorf("%s %q unknown, did you mean %q? %w", field, value, s, ErrInvalid)
	}
	return fmt.Errorf("%s %q unknown (want one of %s): %w", field, value, strings.Join(choices, ", "), ErrInvalid)
}

// Suggest returns the choice closest to value by edit distance, or "" when
// nothing is within two edits.
func Suggest(value string, choices []string) string {
	best, bestDist := "", 3
	v := strings.ToLower(value)
	for _, ch := range choices {
		if d := levenshtein.ComputeDistance(v, ch); d < bestDist {
			best, bestDist = ch, d
		}
	}
	return best
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	t := c.Terrain
	c.Derived.CacheSide = 2*t.CacheTileSize + 1
	c.Derived.VisibleSide = 2*t.VisibleTileSize + 1
	c.Derived.NumCachedBlocks = c.Derived.CacheSide * c.Derived.CacheSide
	c.Derived.IndexCount = t.SegmentCount * t.SegmentCount * 6

	if t.RasterSize > 0 {
		c.Derived.RangePerPixel = t.TileSize / float64(t.RasterSize)
		c.Derived.CreationGroups = uint32((t.RasterSize + 7) / 8)
		c.Derived.UpdateGroups = uint32((t.RasterSize + 15) / 16)
	}
	if c.Derived.RangePerPixel > 0 {
		c.Derived.FlowSpeedFactor = c.Simulation.FlowSpeedScale / (1024 * c.Derived.RangePerPixel)
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
