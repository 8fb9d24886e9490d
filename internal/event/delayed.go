package event

import (
	"fmt"

	"github.com/dispatchlab/simterm/internal/variable"
)

// Delayed wraps another event with a replacement time-stamp, forwarding
// Variables() unchanged (spec.md §4.3).
type Delayed struct {
	inner       Event
	replacement SimTime
}

// NewDelayed constructs a Delayed event that reports replacement as its
// time but defers Variables() to inner.
func NewDelayed(inner Event, replacement SimTime) *Delayed {
	return &Delayed{inner: inner, replacement: replacement}
}

// Time implements Event, returning the replacement time rather than the
// inner event's own.
func (d *Delayed) Time() SimTime { return d.replacement }

// Variables implements Event by forwarding to the inner event unchanged.
func (d *Delayed) Variables() []variable.Variable {
	return d.inner.Variables()
}

func (d *Delayed) String() string {
	return fmt.Sprintf("Delayed@%v(%s)", d.replacement, d.inner.String())
}
