// Package event implements the Event capability trait of spec.md §4.3
// (C3): Static, Partial, Lazy and Delayed variants sharing a common
// time()/variables()/toString() surface.
//
// Grounded on the teacher's parse.Wrapper / netlink.ArchivalRecord
// split (m-lab/tcp-info parse/parse.go, netlink/archival-record.go):
// a small common data shape with variant-specific decoding, here
// expressed as a Go interface rather than C++ inheritance, per spec.md
// §9's Design Notes.
package event

import (
	"fmt"

	"github.com/dispatchlab/simterm/internal/variable"
)

// SimTime is simulation time, expressed in seconds since the model's
// t=0. It is distinct from wall-clock time; internal/queue converts
// between the two via the epoch.
type SimTime float64

// Event is the capability set every event variant implements: time() is
// always cheap and immediate; Variables() may be lazy, static, partial
// or delegate to an inner event with an overridden time (spec.md §3).
type Event interface {
	Time() SimTime
	Variables() []variable.Variable
	String() string
}

// Static owns its variable list at construction; Variables() always
// returns the same slice.
type Static struct {
	at   SimTime
	vars []variable.Variable
}

// NewStatic constructs a Static event.
func NewStatic(at SimTime, vars []variable.Variable) *Static {
	return &Static{at: at, vars: vars}
}

// Time implements Event.
func (s *Static) Time() SimTime { return s.at }

// Variables implements Event.
func (s *Static) Variables() []variable.Variable { return s.vars }

func (s *Static) String() string {
	return fmt.Sprintf("Static@%v(%d vars)", s.at, len(s.vars))
}
