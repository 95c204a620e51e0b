package gpu

import "fmt"

// Op names a recorded backend call.
type Op string

const (
	OpBeginFrame  Op = "begin_frame"
	OpEndFrame    Op = "end_frame"
	OpBind        Op = "bind_pipeline"
	OpResources   Op = "bind_resources"
	OpParameters  Op = "set_parameters"
	OpDispatch    Op = "dispatch"
	OpDraw        Op = "draw"
	OpTransition  Op = "transition"
	OpWaitRetired Op = "wait_retired"
)

// Command is one call captured by a Recorder.
type Command struct {
	Op       Op
	Serial   uint64
	Pipeline Pipeline
	Label    string
	Raster   Raster
	From, To ResourceState
	Groups   [3]uint32
	Bindings []Binding
	Params   []byte
	Draw     DrawCall
}

func (c Command) String() string {
	switch c.Op {
	case OpTransition:
		return fmt.Sprintf("%s r%d %s->%s", c.Op, c.Raster, c.From, c.To)
	case OpDispatch:
		return fmt.Sprintf("%s %s %v", c.Op, c.Label, c.Groups)
	case OpBind, OpResources, OpParameters, OpDraw:
		return fmt.Sprintf("%s %s", c.Op, c.Label)
	default:
		return fmt.Sprintf("%s #%d", c.Op, c.Serial)
	}
}

// Recorder wraps a Backend and keeps a log of every successful call that
// records or orders work.
type Recorder struct {
	Backend

	labels   map[Pipeline]string
	bound    Pipeline
	serial   uint64
	commands []Command
}

// NewRecorder wraps b.
func NewRecorder(b Backend) *Recorder {
	return &Recorder{Backend: b, labels: make(map[Pipeline]string)}
}

// Commands returns the recorded log.
func (r *Recorder) Commands() []Command { return r.commands }

// Reset clears the recorded log.
func (r *Recorder) Reset() { r.commands = r.commands[:0] }

// Filter returns the recorded commands with the given op.
func (r *Recorder) Filter(op Op) []Command {
	var out []Command
	for _, c := range r.commands {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) record(c Command) {
	c.Serial = r.serial
	r.commands = append(r.commands, c)
}

// CreatePipeline implements Backend.
func (r *Recorder) CreatePipeline(desc PipelineDesc) (Pipeline, error) {
	p, err := r.Backend.CreatePipeline(desc)
	if err == nil {
		r.labels[p] = desc.Label
	}
	return p, err
}

// BeginFrame implements Backend.
func (r *Recorder) BeginFrame() (uint64, error) {
	serial, err := r.Backend.BeginFrame()
	if err != nil {
		return serial, err
	}
	r.serial = serial
	r.record(Command{Op: OpBeginFrame})
	return serial, nil
}

// EndFrame implements Backend.
func (r *Recorder) EndFrame() error {
	if err := r.Backend.EndFrame(); err != nil {
		return err
	}
	r.record(Command{Op: OpEndFrame})
	return nil
}

// WaitRetired implements Backend.
func (r *Recorder) WaitRetired(serial uint64) error {
	if err := r.Backend.WaitRetired(serial); err != nil {
		return err
	}
	r.commands = append(r.commands, Command{Op: OpWaitRetired, Serial: serial})
	return nil
}

// BindPipeline implements Backend.
func (r *Recorder) BindPipeline(p Pipeline) error {
	if err := r.Backend.BindPipeline(p); err != nil {
		return err
	}
	r.bound = p
	r.record(Command{Op: OpBind, Pipeline: p, Label: r.labels[p]})
	return nil
}

// BindResources implements Backend.
func (r *Recorder) BindResources(p Pipeline, bindings []Binding) error {
	if err := r.Backend.BindResources(p, bindings); err != nil {
		return err
	}
	r.record(Command{
		Op:       OpResources,
		Pipeline: p,
		Label:    r.labels[p],
		Bindings: append([]Binding(nil), bindings...),
	})
	return nil
}

// SetParameters implements Backend.
func (r *Recorder) SetParameters(p Pipeline, params []byte) error {
	if err := r.Backend.SetParameters(p, params); err != nil {
		return err
	}
	r.record(Command{
		Op:       OpParameters,
		Pipeline: p,
		Label:    r.labels[p],
		Params:   append([]byte(nil), params...),
	})
	return nil
}

// DispatchCompute implements Backend.
func (r *Recorder) DispatchCompute(x, y, z uint32) error {
	if err := r.Backend.DispatchCompute(x, y, z); err != nil {
		return err
	}
	r.record(Command{Op: OpDispatch, Pipeline: r.bound, Label: r.labels[r.bound], Groups: [3]uint32{x, y, z}})
	return nil
}

// Draw implements Backend.
func (r *Recorder) Draw(call DrawCall) error {
	if err := r.Backend.Draw(call); err != nil {
		return err
	}
	r.record(Command{Op: OpDraw, Pipeline: r.bound, Label: r.labels[r.bound], Draw: call})
	return nil
}

// TransitionState implements Backend.
func (r *Recorder) TransitionState(ras Raster, from, to ResourceState) error {
	if err := r.Backend.TransitionState(ras, from, to); err != nil {
		return err
	}
	r.record(Command{Op: OpTransition, Raster: ras, From: from, To: to})
	return nil
}
