package gpu

import "fmt"

// StateTracker records the ResourceState of every live raster and checks
// transitions and bindings against it.
type StateTracker struct {
	states map[Raster]ResourceState
}

// NewStateTracker creates an empty tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{states: make(map[Raster]ResourceState)}
}

// Add starts tracking r in the Undefined state.
func (t *StateTracker) Add(r Raster) {
	t.states[r] = Undefined
}

// Remove stops tracking r.
func (t *StateTracker) Remove(r Raster) {
	delete(t.states, r)
}

// State returns the tracked state of r.
func (t *StateTracker) State(r Raster) (ResourceState, bool) {
	s, ok := t.states[r]
	return s, ok
}

// Transition moves r from one state to another.
func (t *StateTracker) Transition(r Raster, from, to ResourceState) error {
	cur, ok := t.states[r]
	if !ok {
		return fmt.Errorf("raster %d: %w", r, ErrReleased)
	}
	if cur != from {
		return fmt.Errorf("raster %d is %s, transition expects %s: %w", r, cur, from, ErrStateMismatch)
	}
	t.states[r] = to
	return nil
}

// Check verifies a binding set before a dispatch or draw. Each raster must be
// in the state its access requires and may appear at most once.
func (t *StateTracker) Check(bindings []Binding) error {
	for i, b := range bindings {
		cur, ok := t.states[b.Raster]
		if !ok {
			return fmt.Errorf("slot %d raster %d: %w", b.Slot, b.Raster, ErrReleased)
		}
		if want := b.Access.Required(); cur != want {
			return fmt.Errorf("slot %d raster %d %s while %s: %w", b.Slot, b.Raster, b.Access, cur, ErrHazard)
		}
		for _, o := range bindings[:i] {
			if o.Raster == b.Raster && (o.Access == Write || b.Access == Write) {
				return fmt.Errorf("raster %d bound to slots %d and %d: %w", b.Raster, o.Slot, b.Slot, ErrHazard)
			}
		}
	}
	return nil
}
