// Package main fits the water simulation rates to a target water regime
// with CMA-ES.
package main

import (
	"github.com/pthm-cable/terrastream/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name string  // Human-readable name
	Path string  // Config path for logging
	Min  float64 // Lower bound
	Max  float64 // Upper bound
	// get and set access the field in a Config.
	get func(*config.Config) float64
	set func(*config.Config, float64)
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "rain_rate", Path: "simulation.rain_rate", Min: 0, Max: 0.02,
				get: func(c *config.Config) float64 { return c.Simulation.RainRate },
				set: func(c *config.Config, v float64) { c.Simulation.RainRate = v }},
			{Name: "evaporation_rate", Path: "simulation.evaporation_rate", Min: 0, Max: 0.05,
				get: func(c *config.Config) float64 { return c.Simulation.EvaporationRate },
				set: func(c *config.Config, v float64) { c.Simulation.EvaporationRate = v }},
			{Name: "seepage_rate", Path: "simulation.seepage_rate", Min: 0, Max: 0.02,
				get: func(c *config.Config) float64 { return c.Simulation.SeepageRate },
				set: func(c *config.Config, v float64) { c.Simulation.SeepageRate = v }},
			{Name: "flow_rate", Path: "simulation.flow_rate", Min: 0.1, Max: 20,
				get: func(c *config.Config) float64 { return c.Simulation.FlowRate },
				set: func(c *config.Config, v float64) { c.Simulation.FlowRate = v }},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	for i, v := range pv.Clamp(values) {
		pv.Specs[i].set(cfg, v)
	}
}

// ExtractFromConfig reads the current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.get(cfg)
	}
	return v
}
