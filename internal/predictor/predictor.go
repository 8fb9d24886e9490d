// Package predictor defines the external collaborator interface (C7)
// the dispatcher drives: given the committed state, produce the next
// internal model event, and commit state when that event's variables
// are read. The actual numerical model integration is out of scope
// (spec.md §1); this package only specifies the boundary and the
// process-scoped model registry around it (spec.md §9's ModelManager
// note, and §12 of SPEC_FULL.md).
package predictor

import (
	"github.com/dispatchlab/simterm/internal/event"
	"github.com/dispatchlab/simterm/internal/variable"
)

// Predictor is the external collaborator of spec.md §2 (C7): given
// current state, returns the next internal event, and is itself
// registered as a dispatcher listener so its EventTriggered commits the
// model to whatever event the dispatcher ultimately chose.
type Predictor interface {
	event.Committer

	// PredictNext returns the next tentative event the model would
	// produce if nothing external intervenes. Called once per
	// dispatcher iteration, before the queue's head is known.
	PredictNext() (event.Event, error)

	// EventTriggered is called by the dispatcher with the winning event
	// of each iteration (predicted or external); the predictor commits
	// its internal state to that event's time here, exactly once, in
	// registration order with every other listener (spec.md §4.5).
	EventTriggered(e event.Event) error
}

// ErrSolver is the taxonomy member of spec.md §7: the predictor cannot
// advance or commit. Concrete predictors should wrap this with the
// simulation time at failure.
type ErrSolver struct {
	At  event.SimTime
	Err error
}

func (e *ErrSolver) Error() string {
	return "predictor: solver error at t=" + formatTime(e.At) + ": " + e.Err.Error()
}

func (e *ErrSolver) Unwrap() error { return e.Err }

func formatTime(t event.SimTime) string {
	return variable.RealValue(float64(t)).String()
}
