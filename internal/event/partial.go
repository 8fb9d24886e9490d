package event

import (
	"fmt"

	"github.com/dispatchlab/simterm/internal/variable"
)

// Partial holds a port-ID template and a growing variable list,
// modelling a packet cut short by a per-packet timeout (spec.md §4.3,
// §4.6). PushNext and IgnoreNext consume template slots in order;
// Variables() returns what has been appended so far. internal/subscriber
// does not build Partial events: its reassembly tracks the same slot
// state itself and publishes event.Static values.
type Partial struct {
	at       SimTime
	template []variable.PortID
	next     int
	vars     []variable.Variable
}

// NewPartial constructs a Partial event against the given port template,
// with its time fixed at construction (typically the sink's
// GetTimeStampNow() at packet start).
func NewPartial(at SimTime, template []variable.PortID) *Partial {
	return &Partial{at: at, template: template}
}

// Time implements Event.
func (p *Partial) Time() SimTime { return p.at }

// Variables implements Event: returns only what has been received so far.
func (p *Partial) Variables() []variable.Variable { return p.vars }

// Done reports whether every template slot has been filled or ignored.
func (p *Partial) Done() bool { return p.next >= len(p.template) }

// PushNext appends val for the next template slot, advancing the
// cursor. It is a programming error to call this when Done().
func (p *Partial) PushNext(val variable.Value) error {
	if p.Done() {
		return errDone
	}
	port := p.template[p.next]
	v, err := variable.New(port, val)
	if err != nil {
		// The declared port type disagrees with the decoded value's
		// type; still consume the slot so the template advances, but
		// do not record a variable for it (the codec already reports
		// this case as TypeMismatch before PushNext is ever called for
		// ordinary decode errors -- this path only guards against a
		// Static/Unknown port being filled with an incompatible value).
		p.next++
		return err
	}
	p.vars = append(p.vars, v)
	p.next++
	return nil
}

// IgnoreNext skips the next template slot without recording a variable
// (used for codec TypeMismatch/InvalidTag outcomes).
func (p *Partial) IgnoreNext() {
	if !p.Done() {
		p.next++
	}
}

func (p *Partial) String() string {
	return "Partial@" + itoa(int(p.at)) + "(" + itoa(len(p.vars)) + "/" + itoa(len(p.template)) + ")"
}

var errDone = fmt.Errorf("event: partial template already exhausted")

func itoa(i int) string { return fmt.Sprintf("%d", i) }
