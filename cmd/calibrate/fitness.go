package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/terrastream/camera"
	"github.com/pthm-cable/terrastream/config"
	"github.com/pthm-cable/terrastream/gpu"
	"github.com/pthm-cable/terrastream/grid"
	"github.com/pthm-cable/terrastream/telemetry"
	"github.com/pthm-cable/terrastream/terrain"
)

// Target is the water regime the calibration aims for.
type Target struct {
	MeanDepth float64 // Mean water depth over the visible tiles
	DryFrac   float64 // Fraction of texels below the dry threshold
}

// Score returns the squared relative error of mean depth plus the squared
// error of the dry fraction. Lower is better.
func (t Target) Score(mean, dry float64) float64 {
	if math.IsNaN(mean) || math.IsNaN(dry) {
		return math.Inf(1)
	}
	rel := (mean - t.MeanDepth) / t.MeanDepth
	d := dry - t.DryFrac
	return rel*rel + d*d
}

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	frames     int
	seeds      []int64
	baseConfig *config.Config
	target     Target
	logger     *slog.Logger

	mu        sync.Mutex
	lastWater telemetry.WaterStats
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, frames int, seeds []int64, baseCfg *config.Config, target Target) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		frames:     frames,
		seeds:      seeds,
		baseConfig: baseCfg,
		target:     target,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// LastWater returns the seed-averaged water statistics of the most recent
// evaluation.
func (fe *FitnessEvaluator) LastWater() telemetry.WaterStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastWater
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	water telemetry.WaterStats
	err   error
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			cfg := fe.copyConfig()
			fe.params.ApplyToConfig(cfg, x)
			cfg.Noise.Seed = s
			w, err := fe.runSimulation(cfg)
			results[idx] = seedResult{water: w, err: err}
		}(i, seed)
	}
	wg.Wait()

	var avg telemetry.WaterStats
	for _, r := range results {
		if r.err != nil {
			fe.logger.Error("run failed", "error", r.err)
			return math.Inf(1)
		}
		avg.Total += r.water.Total
		avg.Mean += r.water.Mean
		avg.Std += r.water.Std
		avg.P10 += r.water.P10
		avg.P50 += r.water.P50
		avg.P90 += r.water.P90
		avg.Max = max(avg.Max, r.water.Max)
		avg.DryFrac += r.water.DryFrac
	}
	n := float64(len(results))
	avg.Total /= n
	avg.Mean /= n
	avg.Std /= n
	avg.P10 /= n
	avg.P50 /= n
	avg.P90 /= n
	avg.DryFrac /= n

	fe.mu.Lock()
	fe.lastWater = avg
	fe.mu.Unlock()

	return fe.target.Score(avg.Mean, avg.DryFrac)
}

// runSimulation steps one terrain along the configured trajectory on a
// private soft backend and returns the final water statistics.
func (fe *FitnessEvaluator) runSimulation(cfg *config.Config) (telemetry.WaterStats, error) {
	backend := gpu.NewSoft(gpu.SoftOptions{
		Workers:      1,
		TargetWidth:  cfg.GPU.TargetWidth,
		TargetHeight: cfg.GPU.TargetHeight,
		Logger:       fe.logger,
	})
	defer backend.Close()

	ctx, err := terrain.NewContext(backend, cfg, fe.logger)
	if err != nil {
		return telemetry.WaterStats{}, err
	}
	defer ctx.Close()

	traj, err := camera.NewTrajectory(camera.TrajectoryConfig{
		Kind:   cfg.Camera.Trajectory,
		Start:  grid.Vec2{X: cfg.Camera.StartX, Y: cfg.Camera.StartY},
		Speed:  cfg.Camera.Speed,
		Radius: cfg.Camera.Radius,
		Seed:   cfg.Noise.Seed,
	})
	if err != nil {
		return telemetry.WaterStats{}, err
	}

	sim := terrain.NewSimulation(ctx)
	cache := terrain.NewCache(ctx, sim)
	defer cache.Close()

	for i := 0; i < fe.frames; i++ {
		if _, err := ctx.BeginFrame(); err != nil {
			return telemetry.WaterStats{}, err
		}
		if _, err := cache.UpdateAllTiles(traj.At(sim.Time())); err != nil {
			ctx.EndFrame()
			return telemetry.WaterStats{}, fmt.Errorf("frame %d: %w", i, err)
		}
		if err := sim.StepAll(cache); err != nil {
			ctx.EndFrame()
			return telemetry.WaterStats{}, fmt.Errorf("frame %d: %w", i, err)
		}
		if err := ctx.EndFrame(); err != nil {
			return telemetry.WaterStats{}, err
		}
	}

	depths, err := terrain.NewReadback(ctx).Water(cache, nil, 2)
	if err != nil {
		return telemetry.WaterStats{}, err
	}
	return telemetry.ComputeWaterStats(depths), nil
}

// copyConfig returns a copy of the base config. Config holds no reference
// types, so a value copy is deep.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}
