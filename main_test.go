package main

import (
	"errors"
	"testing"

	"github.com/pthm-cable/terrastream/terrain"
)

// fakeGame counts frames and fails on frame failAt (0 = never).
type fakeGame struct {
	frames uint64
	failAt uint64
	err    error
}

func (f *fakeGame) Step() error {
	if f.failAt != 0 && f.frames+1 == f.failAt {
		return f.err
	}
	f.frames++
	return nil
}

func (f *fakeGame) Frame() uint64  { return f.frames }
func (f *fakeGame) Frames() uint64 { return f.frames }

func TestStepFrames(t *testing.T) {
	tests := []struct {
		name       string
		maxFrames  int
		failAt     uint64
		err        error
		wantFrames uint64
	}{
		{"runs to max", 5, 0, nil, 5},
		{"pool exhausted", 10, 3, terrain.ErrPoolExhausted, 2},
		{"missing neighbor", 10, 1, terrain.ErrMissingNeighbor, 0},
		{"unlimited until failure", 0, 7, terrain.ErrPoolExhausted, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fakeGame{failAt: tt.failAt, err: tt.err}
			err := stepFrames(g, tt.maxFrames)
			if tt.err == nil {
				if err != nil {
					t.Fatalf("err = %v, want nil", err)
				}
			} else if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if g.frames != tt.wantFrames {
				t.Errorf("frames = %d, want %d", g.frames, tt.wantFrames)
			}
		})
	}
}
