// Package queue implements the timed event queue of spec.md §4.4 (C6):
// the central synchronization point between the subscriber threads, the
// predictor, and the dispatcher loop. It maintains a single tentative
// prediction alongside externally injected events, ages out stale
// predictions, and blocks its single consumer (the dispatcher) in
// wall-clock time.
//
// Grounded on the teacher's collector.Run ticker-driven pacing loop
// (m-lab/tcp-info collector/collector.go), adapted from a fixed-interval
// ticker to a one-shot deadline timer per head entry, and on the
// mutex+condition-variable discipline of sync.Cond as used throughout
// the pack for single-writer/single-reader rendezvous.
package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/dispatchlab/simterm/internal/event"
)

// ErrTerminated is returned by Get after the queue has been shut down.
var ErrTerminated = errors.New("queue: terminated")

type entry struct {
	ev        event.Event
	predicted bool
}

// Queue is the concurrent, time-ordered event queue. The zero value is
// not usable; construct with New.
type Queue struct {
	mu          sync.Mutex
	cond        *sync.Cond
	entries     []entry
	epoch       time.Time
	start       event.SimTime
	initialized bool
	terminated  bool

	// now is overridable in tests to avoid real sleeps.
	now func() time.Time
}

// New creates an empty Queue. InitStartTimeNow must be called exactly
// once before the first Get.
func New() *Queue {
	q := &Queue{now: time.Now}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// InitStartTimeNow sets epoch = wall-now and simulation-start = start.
// External events may be pushed before this call; Get blocks until it
// completes.
func (q *Queue) InitStartTimeNow(start event.SimTime) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.epoch = q.now()
	q.start = start
	q.initialized = true
	q.cond.Broadcast()
}

// GetTimeStampNow returns start + (now - epoch). It is safe to call
// before InitStartTimeNow, though the result is meaningless until then.
func (q *Queue) GetTimeStampNow() event.SimTime {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.timeStampNowLocked()
}

func (q *Queue) timeStampNowLocked() event.SimTime {
	return q.start + event.SimTime(q.now().Sub(q.epoch).Seconds())
}

func (q *Queue) dueTimeLocked(t event.SimTime) time.Time {
	delta := time.Duration(float64(t-q.start) * float64(time.Second))
	return q.epoch.Add(delta)
}

// Add inserts ev into the queue per the ordering and invalidation rules
// of spec.md §4.4, and notifies one waiter.
//
// Decision (see DESIGN.md): spec.md's add() prose says an external
// event invalidates predicted entries with time >= its own time, but
// spec.md §3's entry invariant and scenario 4 of §8 both require that a
// predicted entry survive an external arriving at exactly the same
// time (predicted is delivered first). This implementation follows the
// invariant and the testable scenario: invalidation uses strictly
// greater time, never equal.
func (q *Queue) Add(ev event.Event, predicted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if predicted {
		q.addPredictedLocked(ev)
	} else {
		q.addExternalLocked(ev)
	}
	q.cond.Signal()
}

// PushExternal is equivalent to Add(ev, false).
func (q *Queue) PushExternal(ev event.Event) {
	q.Add(ev, false)
}

func (q *Queue) addPredictedLocked(ev event.Event) {
	t := ev.Time()
	for _, e := range q.entries {
		if e.ev.Time() < t {
			return // prediction is already stale
		}
	}
	// Remove any existing predicted entry at exactly this time (at most
	// one may exist).
	for i, e := range q.entries {
		if e.predicted && e.ev.Time() == t {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	// Insert at the head of the time-equal group.
	pos := 0
	for pos < len(q.entries) && q.entries[pos].ev.Time() < t {
		pos++
	}
	q.insertAt(pos, entry{ev: ev, predicted: true})
}

func (q *Queue) addExternalLocked(ev event.Event) {
	t := ev.Time()
	// Invalidate predicted entries with strictly greater time.
	filtered := q.entries[:0:0]
	for _, e := range q.entries {
		if e.predicted && e.ev.Time() > t {
			continue
		}
		filtered = append(filtered, e)
	}
	q.entries = filtered

	// Insert preserving non-decreasing order; within an equal-time
	// group, after any predicted entry and after existing externals
	// (FIFO), and before any entry with strictly larger time.
	pos := 0
	for pos < len(q.entries) && q.entries[pos].ev.Time() <= t {
		pos++
	}
	q.insertAt(pos, entry{ev: ev, predicted: false})
}

func (q *Queue) insertAt(pos int, e entry) {
	q.entries = append(q.entries, entry{})
	copy(q.entries[pos+1:], q.entries[pos:])
	q.entries[pos] = e
}

// Get blocks until either the head entry's wall-clock target has
// arrived or the queue has been terminated. It handles spurious
// wake-ups and never returns while the head is still in the future.
func (q *Queue) Get() (event.Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.terminated {
			return nil, ErrTerminated
		}
		if !q.initialized || len(q.entries) == 0 {
			q.cond.Wait()
			continue
		}
		head := q.entries[0]
		due := q.dueTimeLocked(head.ev.Time())
		now := q.now()
		if !now.Before(due) {
			q.entries = q.entries[1:]
			return head.ev, nil
		}
		d := due.Sub(now)
		timer := time.AfterFunc(d, func() {
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		})
		q.cond.Wait()
		timer.Stop()
	}
}

// Terminate unblocks any pending or future Get call with ErrTerminated.
func (q *Queue) Terminate() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.terminated = true
	q.cond.Broadcast()
}

// Len returns the current number of entries; exposed for
// internal/debugsrv and tests, not part of the dispatch hot path.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
