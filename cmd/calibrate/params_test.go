package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/terrastream/config"
)

func TestParamVector_RoundTrip(t *testing.T) {
	pv := NewParamVector()
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatal(err)
	}

	raw := pv.ExtractFromConfig(cfg)
	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i]) > 1e-12 {
			t.Errorf("%s: %v -> %v", pv.Specs[i].Name, raw[i], back[i])
		}
	}
}

func TestParamVector_ApplyClamps(t *testing.T) {
	pv := NewParamVector()
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatal(err)
	}

	pv.ApplyToConfig(cfg, []float64{-1, 1, 0.01, 5})
	if cfg.Simulation.RainRate != 0 {
		t.Errorf("rain = %v, want clamped to 0", cfg.Simulation.RainRate)
	}
	if cfg.Simulation.EvaporationRate != 0.05 {
		t.Errorf("evaporation = %v, want clamped to 0.05", cfg.Simulation.EvaporationRate)
	}
	if cfg.Simulation.SeepageRate != 0.01 || cfg.Simulation.FlowRate != 5 {
		t.Errorf("seepage %v flow %v, want 0.01 and 5", cfg.Simulation.SeepageRate, cfg.Simulation.FlowRate)
	}
}

func TestFitness(t *testing.T) {
	target := Target{MeanDepth: 0.2, DryFrac: 0.3}

	if f := target.Score(0.2, 0.3); f != 0 {
		t.Errorf("exact match scored %v, want 0", f)
	}
	near := target.Score(0.21, 0.3)
	far := target.Score(0.4, 0.3)
	if !(near < far) {
		t.Errorf("near %v should score below far %v", near, far)
	}
	if f := target.Score(math.NaN(), 0); !math.IsInf(f, 1) {
		t.Errorf("NaN mean scored %v, want +Inf", f)
	}
}
