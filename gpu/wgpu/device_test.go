//go:build !nogpu

package wgpu

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/pthm-cable/terrastream/gpu"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// openDevice skips the test on hosts without a Vulkan adapter.
func openDevice(t *testing.T) *Device {
	t.Helper()
	d, err := New(Options{TargetWidth: 32, TargetHeight: 16, UniformSlots: 16, Logger: quietLogger})
	if errors.Is(err, gpu.ErrUnavailable) {
		t.Skipf("no GPU: %v", err)
	}
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDevice_RasterZeroed(t *testing.T) {
	d := openDevice(t)
	r, err := d.AllocateRaster(gpu.RasterDesc{Label: "r", Width: 4, Height: 4, Format: gpu.FormatRGBA32F})
	if err != nil {
		t.Fatal(err)
	}
	got := make([]float32, 4*4*4)
	for i := range got {
		got[i] = -1
	}
	if err := d.ReadRaster(r, got); err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if v != 0 {
			t.Fatalf("texel float %d = %v, want 0", i, v)
		}
	}
}

func TestDevice_FrameSerials(t *testing.T) {
	d := openDevice(t)
	for want := uint64(1); want <= 4; want++ {
		got, err := d.BeginFrame()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("serial = %d, want %d", got, want)
		}
		if err := d.EndFrame(); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.WaitRetired(4); err != nil {
		t.Fatal(err)
	}
	if d.Retired() != 4 {
		t.Errorf("retired = %d, want 4", d.Retired())
	}

	img, err := d.ReadTarget()
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("target %v, want 32x16", b)
	}
}

func TestDevice_OutsideFrame(t *testing.T) {
	d := openDevice(t)
	if err := d.DispatchCompute(1, 1, 1); !errors.Is(err, gpu.ErrNotInFrame) {
		t.Errorf("dispatch outside frame: %v", err)
	}
	if err := d.EndFrame(); !errors.Is(err, gpu.ErrNotInFrame) {
		t.Errorf("EndFrame outside frame: %v", err)
	}
}

func TestDevice_BadTransition(t *testing.T) {
	d := openDevice(t)
	r, err := d.AllocateRaster(gpu.RasterDesc{Label: "r", Width: 2, Height: 2, Format: gpu.FormatR32F})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	defer d.EndFrame()
	if err := d.TransitionState(r, gpu.ShaderRead, gpu.Storage); !errors.Is(err, gpu.ErrStateMismatch) {
		t.Errorf("err = %v, want ErrStateMismatch", err)
	}
}

func TestBarrierFor(t *testing.T) {
	tests := []struct {
		from, to           gpu.ResourceState
		oldUsage, newUsage gputypes.BufferUsage
	}{
		{gpu.ShaderRead, gpu.Storage, gputypes.BufferUsageStorage, gputypes.BufferUsageStorage},
		{gpu.Storage, gpu.ShaderRead, gputypes.BufferUsageStorage, gputypes.BufferUsageStorage},
		{gpu.Undefined, gpu.ShaderRead, gputypes.BufferUsageCopyDst, gputypes.BufferUsageStorage},
	}
	for _, tt := range tests {
		b := barrierFor(nil, tt.from, tt.to)
		if b.Usage.OldUsage != tt.oldUsage || b.Usage.NewUsage != tt.newUsage {
			t.Errorf("%v->%v: usage %v->%v, want %v->%v",
				tt.from, tt.to, b.Usage.OldUsage, b.Usage.NewUsage, tt.oldUsage, tt.newUsage)
		}
	}
}

func TestDevice_BarrierPerTransition(t *testing.T) {
	d := openDevice(t)
	r, err := d.AllocateRaster(gpu.RasterDesc{Label: "r", Width: 2, Height: 2, Format: gpu.FormatR32F})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	before := d.Barriers()
	steps := [][2]gpu.ResourceState{
		{gpu.Undefined, gpu.ShaderRead},
		{gpu.ShaderRead, gpu.Storage},
		{gpu.Storage, gpu.ShaderRead},
	}
	for _, s := range steps {
		if err := d.TransitionState(r, s[0], s[1]); err != nil {
			t.Fatalf("%v->%v: %v", s[0], s[1], err)
		}
	}
	if got := d.Barriers() - before; got != len(steps) {
		t.Errorf("barriers = %d, want %d", got, len(steps))
	}

	// A rejected transition records nothing.
	if err := d.TransitionState(r, gpu.Storage, gpu.ShaderRead); !errors.Is(err, gpu.ErrStateMismatch) {
		t.Errorf("err = %v, want ErrStateMismatch", err)
	}
	if got := d.Barriers() - before; got != len(steps) {
		t.Errorf("barriers after rejected transition = %d, want %d", got, len(steps))
	}
	if err := d.EndFrame(); err != nil {
		t.Fatal(err)
	}
}
