package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load defaults: %v", err)
	}

	if cfg.Terrain.CacheTileSize != 3 || cfg.Terrain.VisibleTileSize != 2 {
		t.Errorf("cache/visible = %d/%d, want 3/2", cfg.Terrain.CacheTileSize, cfg.Terrain.VisibleTileSize)
	}
	if cfg.Derived.NumCachedBlocks != 49 {
		t.Errorf("NumCachedBlocks = %d, want 49", cfg.Derived.NumCachedBlocks)
	}
	if cfg.Derived.IndexCount != 255*255*6 {
		t.Errorf("IndexCount = %d", cfg.Derived.IndexCount)
	}
	if cfg.Derived.CreationGroups != 16 || cfg.Derived.UpdateGroups != 8 {
		t.Errorf("groups = %d/%d, want 16/8", cfg.Derived.CreationGroups, cfg.Derived.UpdateGroups)
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	overlay := "terrain:\n  cache_tile_size: 2\n  visible_tile_size: 1\n"
	if err := os.WriteFile(path, []byte(overlay), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Derived.NumCachedBlocks != 25 || cfg.Derived.VisibleSide != 3 {
		t.Errorf("blocks=%d visible side=%d, want 25 and 3", cfg.Derived.NumCachedBlocks, cfg.Derived.VisibleSide)
	}
	// Untouched keys keep their defaults.
	if cfg.Terrain.TileSize != 200 {
		t.Errorf("tile_size = %v, want default 200", cfg.Terrain.TileSize)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		hint   string
	}{
		{"visible larger than cache", func(c *Config) { c.Terrain.VisibleTileSize = c.Terrain.CacheTileSize + 1 }, "visible_tile_size"},
		{"zero tile size", func(c *Config) { c.Terrain.TileSize = 0 }, "tile_size"},
		{"segments overflow indices", func(c *Config) { c.Terrain.SegmentCount = 256 }, "segment_count"},
		{"tiny raster", func(c *Config) { c.Terrain.RasterSize = 1 }, "raster_size"},
		{"negative rain", func(c *Config) { c.Simulation.RainRate = -1 }, "rates"},
		{"misspelled backend", func(c *Config) { c.GPU.Backend = "wpgu" }, `did you mean "wgpu"`},
		{"unknown backend", func(c *Config) { c.GPU.Backend = "metalfx" }, "want one of"},
		{"bad trajectory", func(c *Config) { c.Camera.Trajectory = "circel" }, `did you mean "circle"`},
	}

	for _, tt := range tests {
		cfg, err := Defaults()
		if err != nil {
			t.Fatal(err)
		}
		tt.mutate(cfg)

		err = cfg.Finalize()
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: err = %v, want ErrInvalid", tt.name, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.hint) {
			t.Errorf("%s: error %q should mention %q", tt.name, err, tt.hint)
		}
	}
}

func TestSuggest(t *testing.T) {
	if got := Suggest("SOFT", Backends); got != "soft" {
		t.Errorf("Suggest(SOFT) = %q", got)
	}
	if got := Suggest("vulkan", Backends); got != "" {
		t.Errorf("Suggest(vulkan) = %q, want no suggestion", got)
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Terrain.CacheTileSize = 4
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatal(err)
	}

	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Derived.NumCachedBlocks != 81 {
		t.Errorf("reloaded NumCachedBlocks = %d, want 81", back.Derived.NumCachedBlocks)
	}
}
