package gpu

// Work counts the commands a backend has accepted.
type Work struct {
	Dispatches  int
	Draws       int
	Transitions int
}

// Sub returns w minus o.
func (w Work) Sub(o Work) Work {
	return Work{
		Dispatches:  w.Dispatches - o.Dispatches,
		Draws:       w.Draws - o.Draws,
		Transitions: w.Transitions - o.Transitions,
	}
}

// Add returns w plus o.
func (w Work) Add(o Work) Work {
	return Work{
		Dispatches:  w.Dispatches + o.Dispatches,
		Draws:       w.Draws + o.Draws,
		Transitions: w.Transitions + o.Transitions,
	}
}

// Counter wraps a Backend and counts successful dispatches, draws and state
// transitions. Unlike Recorder it keeps no log, so it can stay in the frame
// loop.
type Counter struct {
	Backend
	work Work
}

// NewCounter wraps b.
func NewCounter(b Backend) *Counter { return &Counter{Backend: b} }

// Work returns the running totals.
func (c *Counter) Work() Work { return c.work }

// DispatchCompute implements Backend.
func (c *Counter) DispatchCompute(x, y, z uint32) error {
	if err := c.Backend.DispatchCompute(x, y, z); err != nil {
		return err
	}
	c.work.Dispatches++
	return nil
}

// Draw implements Backend.
func (c *Counter) Draw(call DrawCall) error {
	if err := c.Backend.Draw(call); err != nil {
		return err
	}
	c.work.Draws++
	return nil
}

// TransitionState implements Backend.
func (c *Counter) TransitionState(r Raster, from, to ResourceState) error {
	if err := c.Backend.TransitionState(r, from, to); err != nil {
		return err
	}
	c.work.Transitions++
	return nil
}
