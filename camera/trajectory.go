package camera

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pthm-cable/terrastream/grid"
)

// Trajectory yields the viewpoint at a simulation time.
type Trajectory interface {
	Name() string
	At(t float64) grid.Vec2
}

// TrajectoryConfig parameterises NewTrajectory.
type TrajectoryConfig struct {
	Kind   string
	Start  grid.Vec2
	Speed  float64 // World units per second
	Radius float64 // Circle radius
	Seed   int64   // Walk seed
}

// NewTrajectory builds the named trajectory.
func NewTrajectory(cfg TrajectoryConfig) (Trajectory, error) {
	switch cfg.Kind {
	case "static":
		return Static{P: cfg.Start}, nil
	case "line":
		return Line{Start: cfg.Start, Velocity: grid.Vec2{X: cfg.Speed}}, nil
	case "circle":
		if cfg.Radius <= 0 {
			return nil, fmt.Errorf("circle trajectory needs a positive radius, got %v", cfg.Radius)
		}
		return Circle{Center: cfg.Start, Radius: cfg.Radius, Speed: cfg.Speed}, nil
	case "walk":
		return NewWalk(cfg.Start, cfg.Speed, cfg.Seed), nil
	default:
		return nil, fmt.Errorf("unknown trajectory %q", cfg.Kind)
	}
}

// Static never moves.
type Static struct{ P grid.Vec2 }

func (s Static) Name() string         { return "static" }
func (s Static) At(float64) grid.Vec2 { return s.P }

// Line moves at constant velocity.
type Line struct {
	Start, Velocity grid.Vec2
}

func (l Line) Name() string { return "line" }
func (l Line) At(t float64) grid.Vec2 {
	return l.Start.Add(l.Velocity.Scale(t))
}

// Circle orbits Center at Speed world units per second, starting east of it.
type Circle struct {
	Center grid.Vec2
	Radius float64
	Speed  float64
}

func (c Circle) Name() string { return "circle" }
func (c Circle) At(t float64) grid.Vec2 {
	a := c.Speed * t / c.Radius
	return grid.Vec2{X: c.Center.X + c.Radius*math.Cos(a), Y: c.Center.Y + c.Radius*math.Sin(a)}
}

// walkLeg is the duration of one straight walk segment in seconds.
const walkLeg = 4.0

// Walk is a seeded random walk of straight legs. Positions are a pure
// function of time, so At may be queried in any order.
type Walk struct {
	start grid.Vec2
	speed float64
	seed  int64
	legs  []grid.Vec2 // leg start points
}

// NewWalk creates a walk from start.
func NewWalk(start grid.Vec2, speed float64, seed int64) *Walk {
	return &Walk{start: start, speed: speed, seed: seed, legs: []grid.Vec2{start}}
}

func (w *Walk) Name() string { return "walk" }

func (w *Walk) At(t float64) grid.Vec2 {
	if t <= 0 {
		return w.start
	}
	leg := int(t / walkLeg)
	for len(w.legs) <= leg+1 {
		i := len(w.legs) - 1
		w.legs = append(w.legs, w.legs[i].Add(w.heading(i).Scale(w.speed*walkLeg)))
	}
	frac := (t - float64(leg)*walkLeg) / walkLeg
	a, b := w.legs[leg], w.legs[leg+1]
	return a.Add(b.Sub(a).Scale(frac))
}

// heading returns the unit direction of leg i.
func (w *Walk) heading(i int) grid.Vec2 {
	rng := rand.New(rand.NewSource(w.seed*7919 + int64(i)))
	a := rng.Float64() * 2 * math.Pi
	return grid.Vec2{X: math.Cos(a), Y: math.Sin(a)}
}
