// Package datalog implements the CSVDataLogger EventListener named in
// spec.md §6's configuration surface and carried forward as an ambient
// concern in SPEC_FULL.md §12.5: it drives gocsv over every delivered
// event's variables, leaving the actual file/rotation policy to the
// caller.
//
// Grounded on the teacher's cmd/csvtool (m-lab/tcp-info): gocsv.Marshal
// over a slice of flat records, written to an io.Writer the caller
// supplies.
package datalog

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/dispatchlab/simterm/internal/event"
)

// row is the flat, gocsv-tagged shape one delivered variable is
// rendered as. One Event expands into len(Variables()) rows.
type row struct {
	Time  float64 `csv:"time"`
	Port  string  `csv:"port"`
	Type  string  `csv:"type"`
	Value string  `csv:"value"`
}

// Logger is an EventListener that appends every delivered event's
// variables to w as CSV rows. It is Lazy-safe: if e is a Lazy event, the
// commit happens on Logger's first Variables() call rather than before
// Logger is reached, as described in spec.md §4.5 ("a feature used by
// the debug logger") -- though the predictor shipped here always emits
// Static (see DESIGN.md), so no caller currently exercises that path.
type Logger struct {
	w      io.Writer
	header bool
}

// New constructs a Logger writing to w. Header is written before the
// first batch of rows.
func New(w io.Writer) *Logger {
	return &Logger{w: w}
}

// EventTriggered implements dispatcher.Listener.
func (l *Logger) EventTriggered(e event.Event) error {
	vars := e.Variables()
	if len(vars) == 0 {
		return nil
	}
	rows := make([]*row, len(vars))
	for i, v := range vars {
		rows[i] = &row{
			Time:  float64(e.Time()),
			Port:  v.Port.String(),
			Type:  v.Port.Type.String(),
			Value: v.Value.String(),
		}
	}

	if !l.header {
		if err := gocsv.Marshal(rows, l.w); err != nil {
			return fmt.Errorf("datalog: marshal failed: %w", err)
		}
		l.header = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(rows, l.w)
}
