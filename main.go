package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/terrastream/config"
	"github.com/pthm-cable/terrastream/game"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	backend := flag.String("backend", "", "Compute backend: soft or wgpu (empty = use config)")
	trajectory := flag.String("trajectory", "", "Camera trajectory: static, line, circle or walk (empty = use config)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config and snapshots")
	seed := flag.Int64("seed", 0, "Terrain seed (0 = use config)")
	maxFrames := flag.Int("max-frames", 0, "Stop after N frames (0 = unlimited)")
	stepsPerUpdate := flag.Int("steps-per-update", 1, "Simulation steps per frame")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *backend != "" {
		cfg.GPU.Backend = *backend
	}
	if *trajectory != "" {
		cfg.Camera.Trajectory = *trajectory
	}
	if *seed != 0 {
		cfg.Noise.Seed = *seed
	}
	if err := cfg.Finalize(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	opts := game.Options{
		LogStats:       *logStats,
		OutputDir:      *outputDir,
		Headless:       *headless,
		StepsPerUpdate: *stepsPerUpdate,
		Logger:         logger,
	}

	run := runWindowed
	if *headless {
		run = runHeadless
	}
	if err := run(cfg, opts, *maxFrames); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// runHeadless steps the game without a window until maxFrames or an error.
func runHeadless(cfg *config.Config, opts game.Options, maxFrames int) error {
	g, err := game.New(cfg, opts)
	if err != nil {
		return fmt.Errorf("starting game: %w", err)
	}
	defer g.Unload()

	slog.Info("starting headless run",
		"seed", cfg.Noise.Seed,
		"backend", cfg.GPU.Backend,
		"trajectory", cfg.Camera.Trajectory,
		"max_frames", maxFrames,
		"steps_per_update", opts.StepsPerUpdate,
	)

	if err := stepFrames(g, maxFrames); err != nil {
		return err
	}
	slog.Info("max frames reached", "frames", g.Frames(), "sim_time", g.SimTime())
	return nil
}

// runWindowed opens the raylib window and runs the update/draw loop until
// the window closes, maxFrames is reached or a frame fails.
func runWindowed(cfg *config.Config, opts game.Options, maxFrames int) error {
	rl.SetConfigFlags(rl.FlagWindowResizable)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "Terrain Stream")
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	g, err := game.New(cfg, opts)
	if err != nil {
		return fmt.Errorf("starting game: %w", err)
	}
	defer g.Unload()

	for !rl.WindowShouldClose() {
		if err := g.Update(); err != nil {
			return fmt.Errorf("frame %d: %w", g.Frame(), err)
		}
		g.Draw()

		if maxFrames > 0 && int(g.Frames()) >= maxFrames {
			break
		}
	}
	return nil
}

// stepper is the part of the game the headless loop drives.
type stepper interface {
	Step() error
	Frame() uint64
	Frames() uint64
}

// stepFrames runs Step until maxFrames frames have run (0 = unlimited). The
// first failing frame ends the run with its error.
func stepFrames(g stepper, maxFrames int) error {
	for maxFrames <= 0 || int(g.Frames()) < maxFrames {
		if err := g.Step(); err != nil {
			return fmt.Errorf("frame %d: %w", g.Frame(), err)
		}
	}
	return nil
}
