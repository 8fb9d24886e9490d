package event

import (
	"fmt"

	"github.com/dispatchlab/simterm/internal/variable"
)

// Committer is the predictor-side capability a Lazy event needs: commit
// the simulator to a given time and read back its outputs. This is the
// explicit-parameter alternative to a back-reference cycle described in
// spec.md §9's Design Notes ("Prefer passing the predictor as an
// explicit parameter ... via a closure or handle captured at event
// creation, avoiding a long-lived reference cycle").
type Committer interface {
	// CommitAndRead advances the simulator to at and returns its output
	// variables. It must be idempotent for repeated calls at the same
	// time (only the first Variables() call on a given Lazy actually
	// invokes it; see Lazy.Variables).
	CommitAndRead(at SimTime) ([]variable.Variable, error)
}

// Lazy defers simulator commit until its Variables() is first called.
// If a listener never calls Variables(), no commit happens -- this is a
// deliberate feature used by the debug data logger (spec.md §4.5).
type Lazy struct {
	at        SimTime
	committer Committer
	cached    []variable.Variable
	committed bool
	err       error
}

// NewLazy constructs a Lazy event bound to committer, without touching
// the simulator yet.
func NewLazy(at SimTime, committer Committer) *Lazy {
	return &Lazy{at: at, committer: committer}
}

// Time implements Event.
func (l *Lazy) Time() SimTime { return l.at }

// Variables implements Event. On first call it commits the simulator to
// l.at via Committer.CommitAndRead and caches the result; subsequent
// calls return the cached values without re-committing.
func (l *Lazy) Variables() []variable.Variable {
	if !l.committed {
		vars, err := l.committer.CommitAndRead(l.at)
		l.cached = vars
		l.err = err
		l.committed = true
	}
	return l.cached
}

// Err returns the error, if any, from the (possibly not yet attempted)
// commit. Callers that care about SolverError propagation should check
// this immediately after calling Variables().
func (l *Lazy) Err() error { return l.err }

// Committed reports whether Variables() has ever been called on this
// event, i.e. whether the simulator was actually advanced.
func (l *Lazy) Committed() bool { return l.committed }

func (l *Lazy) String() string {
	return fmt.Sprintf("Lazy@%v(committed=%t)", l.at, l.committed)
}
