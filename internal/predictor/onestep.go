package predictor

import (
	"fmt"

	"github.com/dispatchlab/simterm/internal/event"
	"github.com/dispatchlab/simterm/internal/variable"
)

// FMUType mirrors the original implementation's model-type tag. Kept as
// its own enum (rather than folded into variable.TypeTag) so the
// duplicate-branch condition in resolveModelKind stays recognizable.
type FMUType int

const (
	FMUInvalid FMUType = iota
	FMU10CS
	FMU10ME
	FMU20CS
	FMU20ME
	FMU20MEAndCS
)

func (t FMUType) String() string {
	switch t {
	case FMU10CS:
		return "FMI 1.0 CS"
	case FMU10ME:
		return "FMI 1.0 ME"
	case FMU20CS:
		return "FMI 2.0 CS"
	case FMU20ME:
		return "FMI 2.0 ME"
	case FMU20MEAndCS:
		return "FMI 2.0 CS and ME"
	default:
		return "unknown FMU type"
	}
}

// Model is the minimal numerical-integration boundary OneStepEventPredictor
// drives; the actual solver is out of scope (spec.md §1). Concrete models
// are obtained through a Loader registered with a Manager.
type Model interface {
	Type() FMUType
	DoStep(from, to event.SimTime) error
	Get(p variable.PortID) (variable.Value, error)
	Outputs() []variable.PortID
}

// NoopModel is a Model with no outputs that never fails to step. It
// lets cmd/simterm/main.go construct a runnable OneStepEventPredictor
// without a real FMU backend, since model integration itself is out of
// the CORE's scope (spec.md §1).
type NoopModel struct{}

func (NoopModel) Type() FMUType                                { return FMUInvalid }
func (NoopModel) DoStep(from, to event.SimTime) error           { return nil }
func (NoopModel) Get(p variable.PortID) (variable.Value, error) { return variable.UnknownValue(), nil }
func (NoopModel) Outputs() []variable.PortID                    { return nil }

// resolveModelKind picks the FMU backend for a loaded model's type.
//
// Grounded on original_source/src/model/OneStepEventPredictor.cpp's
// loadModel: "else if (fmuType == fmi_2_0_me || fmuType == fmi_2_0_me)".
//
// TODO: the second operand of that condition is almost certainly meant
// to be fmi_2_0_me_and_cs -- FMU20MEAndCS is never otherwise reachable
// here -- but spec.md §9 flags this only as a possible bug, not a
// confirmed one, so the duplicate comparison is preserved verbatim
// rather than silently "fixed".
func resolveModelKind(fmuType FMUType) (string, error) {
	switch {
	case fmuType == FMU10ME:
		return "fmi10me", nil
	case fmuType == FMU20ME || fmuType == FMU20ME:
		return "fmi20me", nil
	default:
		return "", fmt.Errorf("predictor: unsupported FMU type: %s", fmuType)
	}
}

// OneStepEventPredictor advances a Model one look-ahead step at a time
// and reports output variables only when an output actually changed, per
// original_source's updateOutputImage/getOutputEvent cycle.
//
// Grounded on OneStepEventPredictor.cpp's predictNext/eventTriggered
// pair; the per-port output image is the Go analogue of
// outputRealImage_/outputIntegerImage_/outputBooleanImage_/
// outputStringImage_ plus outputValueReference_.
type OneStepEventPredictor struct {
	model        Model
	lookAhead    event.SimTime
	variableStep bool

	image  map[variable.PortID]variable.Value
	synced event.SimTime

	pending *event.Static
}

// NewOneStepEventPredictor wraps model. lookAhead is the interval each
// PredictNext steps the model by (cmd/simterm passes
// app.lookAheadStepSize); variableStepOnEvent mirrors
// PROP_VARIABLE_STEP_SIZE ("app.variableStepSize" in the original
// appContext keys). The flag is stored but not consulted: PredictNext
// always steps a full look-ahead interval, since Model has no way to
// report an event raised inside a step.
func NewOneStepEventPredictor(model Model, lookAhead event.SimTime, variableStepOnEvent bool) *OneStepEventPredictor {
	return &OneStepEventPredictor{
		model:        model,
		lookAhead:    lookAhead,
		variableStep: variableStepOnEvent,
		image:        make(map[variable.PortID]variable.Value),
	}
}

// PredictNext steps the model to synced+lookAhead and compares every
// output port against the last image. It always returns an event at
// synced+lookAhead; the event carries the output variables only if at
// least one output changed (otherwise it has none), mirroring
// updateOutputImage's significantChange accumulation.
func (p *OneStepEventPredictor) PredictNext() (event.Event, error) {
	target := p.synced + p.lookAhead
	if err := p.model.DoStep(p.synced, target); err != nil {
		return nil, &ErrSolver{At: p.synced, Err: err}
	}

	changed := false
	vars := make([]variable.Variable, 0, len(p.model.Outputs()))
	for _, port := range p.model.Outputs() {
		v, err := p.model.Get(port)
		if err != nil {
			return nil, &ErrSolver{At: target, Err: err}
		}
		if prev, ok := p.image[port]; !ok || prev != v {
			changed = true
		}
		p.image[port] = v
		vars = append(vars, variable.MustNew(port, v))
	}

	if !changed {
		return event.NewStatic(target, nil), nil
	}
	return event.NewStatic(target, vars), nil
}

// EventTriggered commits the model to whatever event the dispatcher
// actually delivered -- the predicted one unmodified, or an external one
// that supersedes it -- advancing the synced clock.
func (p *OneStepEventPredictor) EventTriggered(e event.Event) error {
	p.synced = e.Time()
	return nil
}

// CommitAndRead satisfies event.Committer for Lazy events produced
// elsewhere in the pipeline that need this predictor's state without
// going through PredictNext/EventTriggered.
func (p *OneStepEventPredictor) CommitAndRead(at event.SimTime) ([]variable.Variable, error) {
	if err := p.model.DoStep(p.synced, at); err != nil {
		return nil, &ErrSolver{At: p.synced, Err: err}
	}
	p.synced = at
	vars := make([]variable.Variable, 0, len(p.model.Outputs()))
	for _, port := range p.model.Outputs() {
		v, err := p.model.Get(port)
		if err != nil {
			return nil, &ErrSolver{At: at, Err: err}
		}
		vars = append(vars, variable.MustNew(port, v))
	}
	return vars, nil
}
