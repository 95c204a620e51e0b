package game

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/terrastream/config"
	"github.com/pthm-cable/terrastream/gpu"
	"github.com/pthm-cable/terrastream/gpu/wgpu"
)

// OpenBackend opens the backend named by cfg.GPU.Backend. When the device
// backend is unavailable on this machine the soft backend is used instead.
func OpenBackend(cfg *config.Config, logger *slog.Logger) (gpu.Backend, error) {
	soft := func() gpu.Backend {
		return gpu.NewSoft(gpu.SoftOptions{
			Workers:      cfg.GPU.Workers,
			MemoryBudget: cfg.GPU.MemoryBudget << 20,
			TargetWidth:  cfg.GPU.TargetWidth,
			TargetHeight: cfg.GPU.TargetHeight,
			Logger:       logger,
		})
	}

	switch cfg.GPU.Backend {
	case "soft":
		return soft(), nil
	case "wgpu":
		d, err := wgpu.New(wgpu.Options{
			TargetWidth:    cfg.GPU.TargetWidth,
			TargetHeight:   cfg.GPU.TargetHeight,
			PreferDiscrete: cfg.GPU.PreferDiscrete,
			Logger:         logger,
		})
		if errors.Is(err, gpu.ErrUnavailable) {
			logger.Warn("device backend unavailable, falling back to soft", "error", err)
			return soft(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("opening wgpu backend: %w", err)
		}
		logger.Info("device backend opened", "adapter", d.Adapter())
		return d, nil
	default:
		msg := fmt.Sprintf("unknown backend %q", cfg.GPU.Backend)
		if s := config.Suggest(cfg.GPU.Backend, config.Backends); s != "" {
			msg += fmt.Sprintf(", did you mean %q?", s)
		}
		return nil, fmt.Errorf("%s: %w", msg, config.ErrInvalid)
	}
}
