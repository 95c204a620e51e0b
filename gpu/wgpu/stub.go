//go:build nogpu

package wgpu

import (
	"log/slog"

	"github.com/pthm-cable/terrastream/gpu"
)

// Options configures the device backend.
type Options struct {
	TargetWidth, TargetHeight int
	PreferDiscrete            bool
	UniformSlots              int
	Logger                    *slog.Logger
}

// Device is unavailable in nogpu builds.
type Device struct{ gpu.Backend }

// New always fails in nogpu builds.
func New(Options) (*Device, error) {
	return nil, gpu.ErrUnavailable
}

// Adapter returns an empty name in nogpu builds.
func (d *Device) Adapter() string { return "" }
