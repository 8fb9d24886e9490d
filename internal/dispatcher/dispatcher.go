// Package dispatcher implements the top-level event loop of spec.md
// §4.5 (C8): it ties the predictor (C7) and the queue (C6) together,
// broadcasting every delivered event to a fixed, ordered set of
// listeners (the predictor itself, publishers, the data logger).
//
// Grounded on the teacher's collector.Run main loop (m-lab/tcp-info
// collector/collector.go): a single-threaded driving loop that polls a
// producer, fans out to a fixed set of consumers and logs+aborts on the
// first hard error, here adapted to the queue's blocking Get instead of
// a ticker.
package dispatcher

import (
	"errors"
	"log"

	"github.com/dispatchlab/simterm/internal/event"
	"github.com/dispatchlab/simterm/internal/metrics"
	"github.com/dispatchlab/simterm/internal/predictor"
	"github.com/prometheus/client_golang/prometheus"
)

// Queue is the C6 boundary the dispatcher drives.
type Queue interface {
	Add(ev event.Event, predicted bool)
	Get() (event.Event, error)
	Len() int
}

// Listener is the EventListener capability of spec.md §3/§4.5: it
// observes every delivered event, in registration order, and must treat
// it as read-only.
type Listener interface {
	EventTriggered(e event.Event) error
}

// ErrorSource lets an asynchronous listener (a network subscriber) push
// a terminal error onto the dispatcher's single-producer/single-consumer
// error slot, per spec.md §4.6/§7. PollError returns (err, true) exactly
// once per reported error, nil/false otherwise.
type ErrorSource interface {
	PollError() (error, bool)
}

// Dispatcher runs the loop of spec.md §4.5. Listeners is used as the
// registration-order list: the predictor must appear in it if its
// EventTriggered commit is required, since the dispatcher does not call
// it separately.
type Dispatcher struct {
	queue     Queue
	predictor predictor.Predictor
	listeners []Listener
	sources   []ErrorSource
	stopTime  event.SimTime
}

// New constructs a Dispatcher. stopTime is the terminal simulation time
// (spec.md §4.5); pass math.Inf(1) (wrapped in event.SimTime) for no
// limit, matching the "defaults to +infinity" configuration note.
func New(q Queue, p predictor.Predictor, stopTime event.SimTime) *Dispatcher {
	return &Dispatcher{queue: q, predictor: p, stopTime: stopTime}
}

// Register appends a listener to the broadcast list. Order is
// significant (spec.md §4.5: "Listener registration order is
// deterministic").
func (d *Dispatcher) Register(l Listener) {
	d.listeners = append(d.listeners, l)
}

// RegisterErrorSource adds a source of asynchronous terminal errors (a
// network subscriber), polled once per iteration per spec.md §4.6. It
// does not register s as a Listener.
func (d *Dispatcher) RegisterErrorSource(s ErrorSource) {
	d.sources = append(d.sources, s)
}

// ErrStopTimeReached is returned by Run when the loop ends because the
// delivered event's time reached stopTime, as opposed to an error.
var ErrStopTimeReached = errors.New("dispatcher: stop time reached")

// Run executes the loop of spec.md §4.5 until stopTime is reached, a
// listener returns an error, or an error source reports a terminal
// error. It always returns a non-nil error: ErrStopTimeReached on a
// clean stop, or the error that aborted the run.
func (d *Dispatcher) Run() error {
	for {
		if err := d.pollErrorSources(); err != nil {
			return err
		}

		predicted, err := d.predictor.PredictNext()
		if err != nil {
			log.Printf("dispatcher: predictor.PredictNext failed: %v", err)
			return err
		}
		d.queue.Add(predicted, true)

		e, err := d.queue.Get()
		if err != nil {
			log.Printf("dispatcher: queue.Get failed: %v", err)
			return err
		}
		metrics.QueueDepth.Set(float64(d.queue.Len()))

		for _, l := range d.listeners {
			if err := l.EventTriggered(e); err != nil {
				log.Printf("dispatcher: listener returned an error at t=%v: %v", e.Time(), err)
				return err
			}
		}
		metrics.EventCount.With(prometheus.Labels{"listener": "dispatcher"}).Inc()

		if e.Time() >= d.stopTime {
			log.Printf("dispatcher: stop time %v reached at t=%v", d.stopTime, e.Time())
			return ErrStopTimeReached
		}
	}
}

func (d *Dispatcher) pollErrorSources() error {
	for _, s := range d.sources {
		if err, ok := s.PollError(); ok {
			log.Printf("dispatcher: asynchronous listener error: %v", err)
			return err
		}
	}
	return nil
}
