package dispatcher

import (
	"errors"
	"testing"

	"github.com/dispatchlab/simterm/internal/event"
	"github.com/dispatchlab/simterm/internal/queue"
	"github.com/dispatchlab/simterm/internal/variable"
)

// fakePredictor returns one entry from times per PredictNext call, then
// repeats the last time forever (stopTime ends the run before that
// matters in these tests).
type fakePredictor struct {
	times   []event.SimTime
	i       int
	commits []event.SimTime
}

func (f *fakePredictor) PredictNext() (event.Event, error) {
	t := f.times[f.i]
	if f.i < len(f.times)-1 {
		f.i++
	}
	return event.NewStatic(t, nil), nil
}

func (f *fakePredictor) EventTriggered(e event.Event) error {
	f.commits = append(f.commits, e.Time())
	return nil
}

func (f *fakePredictor) CommitAndRead(at event.SimTime) ([]variable.Variable, error) {
	return nil, nil
}

type recordingListener struct {
	times []event.SimTime
}

func (r *recordingListener) EventTriggered(e event.Event) error {
	r.times = append(r.times, e.Time())
	return nil
}

type failingListener struct {
	failAt event.SimTime
}

func (f *failingListener) EventTriggered(e event.Event) error {
	if e.Time() == f.failAt {
		return errors.New("listener boom")
	}
	return nil
}

const scale = 0.001

func TestRunDeliversInOrderAndStops(t *testing.T) {
	q := queue.New()
	q.InitStartTimeNow(0)

	p := &fakePredictor{times: []event.SimTime{2 * scale, 4 * scale, 6 * scale}}
	d := New(q, p, 6*scale)

	rec := &recordingListener{}
	d.Register(p)
	d.Register(rec)

	err := d.Run()
	if !errors.Is(err, ErrStopTimeReached) {
		t.Fatalf("Run() error = %v, want ErrStopTimeReached", err)
	}

	want := []event.SimTime{2 * scale, 4 * scale, 6 * scale}
	if len(rec.times) != len(want) {
		t.Fatalf("got %d events, want %d", len(rec.times), len(want))
	}
	for i, w := range want {
		if rec.times[i] != w {
			t.Fatalf("event %d: got %v, want %v", i, rec.times[i], w)
		}
	}
	if len(p.commits) != len(want) {
		t.Fatalf("predictor committed %d times, want %d (predictor must be a listener too)", len(p.commits), len(want))
	}
}

func TestRunAbortsOnListenerError(t *testing.T) {
	q := queue.New()
	q.InitStartTimeNow(0)

	p := &fakePredictor{times: []event.SimTime{2 * scale, 4 * scale}}
	d := New(q, p, 100*scale)
	d.Register(p)
	d.Register(&failingListener{failAt: 2 * scale})

	err := d.Run()
	if err == nil || errors.Is(err, ErrStopTimeReached) {
		t.Fatalf("Run() error = %v, want a propagated listener error", err)
	}
}

type fakeErrorSource struct {
	err error
	hit bool
}

func (f *fakeErrorSource) PollError() (error, bool) {
	if f.hit {
		return nil, false
	}
	f.hit = true
	return f.err, true
}

func TestRunAbortsOnAsyncErrorSource(t *testing.T) {
	q := queue.New()
	q.InitStartTimeNow(0)

	p := &fakePredictor{times: []event.SimTime{2 * scale}}
	d := New(q, p, 100*scale)
	d.Register(p)

	wantErr := errors.New("subscriber reconnect exhausted")
	d.RegisterErrorSource(&fakeErrorSource{err: wantErr})

	err := d.Run()
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run() error = %v, want %v", err, wantErr)
	}
}
