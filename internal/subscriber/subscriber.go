// Package subscriber implements the per-channel network input runtime
// of spec.md §4.6 (C5): one TCP client socket per input channel, a
// reassembly loop driven by internal/codec, a per-packet timeout, and a
// reconnection state machine.
//
// Grounded on the teacher's eventsocket.Server connection-handling
// idiom (m-lab/tcp-info eventsocket/server.go): a mutex-protected state
// plus a sync.WaitGroup tracking the worker goroutine, dial/accept via
// net, and log.Printf diagnostics on connection churn.
package subscriber

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/dispatchlab/simterm/internal/channel"
	"github.com/dispatchlab/simterm/internal/codec"
	"github.com/dispatchlab/simterm/internal/event"
	"github.com/dispatchlab/simterm/internal/metrics"
	"github.com/dispatchlab/simterm/internal/sessionid"
	"github.com/dispatchlab/simterm/internal/variable"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sys/unix"
)

// State is the subscriber lifecycle of spec.md §4.6.
type State int

const (
	Created State = iota
	Initializing
	Running
	Reconnecting
	Draining
	Exited
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Initializing:
		return "Initializing"
	case Running:
		return "Running"
	case Reconnecting:
		return "Reconnecting"
	case Draining:
		return "Draining"
	case Exited:
		return "Exited"
	default:
		return "?"
	}
}

// Sink is the EventSink boundary the subscriber thread calls into
// (spec.md §4.6: "the subscriber thread only calls
// EventSink::pushExternal and getTimeStampNow").
type Sink interface {
	PushExternal(ev event.Event)
	GetTimeStampNow() event.SimTime
}

// Dialer abstracts net.Dial for tests.
type Dialer func(network, address string) (net.Conn, error)

// Subscriber owns one TCP client socket for one input channel.
type Subscriber struct {
	ch     *channel.Channel
	sink   Sink
	dial   Dialer
	addr   string

	packetTimeout   time.Duration
	retryInterval   time.Duration
	retryCount      int

	mu       sync.Mutex
	state    State
	conn     net.Conn
	cancel   chan struct{}
	wg       sync.WaitGroup

	errMu sync.Mutex
	err   error
	hasErr bool
}

// New constructs a Subscriber for ch, reading packetTimeout,
// reconnectionInterval and reconnectionRetryCount from the channel's
// config map (spec.md §4.2/§6), defaulting retryCount to 3 and
// retryInterval to 1s if absent or unparsable.
func New(ch *channel.Channel, sink Sink, dial Dialer) *Subscriber {
	s := &Subscriber{
		ch:            ch,
		sink:          sink,
		dial:          dial,
		addr:          ch.Config["addr"],
		packetTimeout: durationOr(ch.Config["packetTimeout"], 5*time.Second),
		retryInterval: durationOr(ch.Config["reconnectionInterval"], time.Second),
		retryCount:    intOr(ch.Config["reconnectionRetryCount"], 3),
		state:         Created,
	}
	return s
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	var secs float64
	if _, err := fmt.Sscanf(s, "%f", &secs); err != nil {
		return def
	}
	return time.Duration(secs * float64(time.Second))
}

func intOr(s string, def int) int {
	if s == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return def
	}
	return n
}

// ErrAlreadyStarted is returned by InitAndStart when called more than once.
var ErrAlreadyStarted = errors.New("subscriber: already started")

// InitAndStart dials the channel's address synchronously (spec.md §4.6:
// "Initialization errors ... are raised synchronously from
// initAndStart") and, on success, starts the worker goroutine.
func (s *Subscriber) InitAndStart() error {
	s.mu.Lock()
	if s.state != Created {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = Initializing
	s.mu.Unlock()

	conn, err := s.dial("tcp", s.addr)
	if err != nil {
		s.mu.Lock()
		s.state = Exited
		s.mu.Unlock()
		return fmt.Errorf("subscriber: initial connect to %s failed: %w", s.addr, err)
	}
	setReceiveTimeout(conn, s.packetTimeout)

	s.mu.Lock()
	s.conn = conn
	s.state = Running
	s.cancel = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
	return nil
}

// Terminate cancels pending I/O and joins the worker. Idempotent.
func (s *Subscriber) Terminate() {
	s.mu.Lock()
	if s.state == Exited || s.cancel == nil {
		s.mu.Unlock()
		return
	}
	if s.state != Draining {
		s.state = Draining
	}
	cancel := s.cancel
	conn := s.conn
	s.mu.Unlock()

	select {
	case <-cancel:
	default:
		close(cancel)
	}
	if conn != nil {
		conn.Close()
	}
	s.wg.Wait()
}

// State returns the current lifecycle state.
func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PollError implements dispatcher.ErrorSource: a terminal reconnection
// failure reported once (spec.md §4.6: "surface a terminal error
// through the registered error callback (single-shot)").
func (s *Subscriber) PollError() (error, bool) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if !s.hasErr {
		return nil, false
	}
	s.hasErr = false
	return s.err, true
}

func (s *Subscriber) reportError(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if !s.hasErr {
		s.err = err
		s.hasErr = true
	}
}

func (s *Subscriber) run() {
	defer s.wg.Done()

	buf := newReassembly(s.ch, s.sink, s.packetTimeout)
	read := make([]byte, 4096)

	for {
		s.mu.Lock()
		cancel := s.cancel
		conn := s.conn
		s.mu.Unlock()

		select {
		case <-cancel:
			s.finishDraining(buf)
			return
		default:
		}

		n, err := conn.Read(read)
		if n > 0 {
			buf.feed(read[:n])
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// SO_RCVTIMEO firing on an idle-but-healthy connection,
				// not a lost peer; loop back and check cancel again.
				continue
			}
			select {
			case <-cancel:
				s.finishDraining(buf)
				return
			default:
			}
			if !s.reconnect() {
				s.finishDraining(buf)
				return
			}
			buf.reset()
		}
	}
}

// finishDraining disarms any in-flight packet timer before marking the
// subscriber Exited, so nothing can flush through sink.PushExternal
// after Terminate's wg.Wait has already returned (spec.md §5).
func (s *Subscriber) finishDraining(buf *reassembly) {
	buf.reset()
	s.mu.Lock()
	s.state = Exited
	s.mu.Unlock()
}

// reconnect implements spec.md §4.6's Reconnecting state: re-resolve and
// reconnect, retrying up to retryCount times with retryInterval backoff.
// It returns false if the run of retries was exhausted (the caller must
// stop and surface the terminal error).
func (s *Subscriber) reconnect() bool {
	s.mu.Lock()
	if s.state == Draining {
		s.mu.Unlock()
		return false
	}
	s.state = Reconnecting
	s.mu.Unlock()

	metrics.ReconnectCount.With(prometheus.Labels{"channel": s.ch.ID}).Inc()
	session := sessionid.Next()

	for attempt := 0; attempt < s.retryCount; attempt++ {
		conn, err := s.dial("tcp", s.addr)
		if err == nil {
			setReceiveTimeout(conn, s.packetTimeout)
			s.mu.Lock()
			s.conn = conn
			s.state = Running
			s.mu.Unlock()
			log.Printf("subscriber[%s] session=%s: reconnected on attempt %d/%d", s.ch.ID, session, attempt+1, s.retryCount)
			return true
		}
		log.Printf("subscriber[%s] session=%s: reconnect attempt %d/%d failed: %v", s.ch.ID, session, attempt+1, s.retryCount, err)
		time.Sleep(s.retryInterval)
	}

	s.reportError(fmt.Errorf("subscriber[%s]: exhausted %d reconnection attempts to %s", s.ch.ID, s.retryCount, s.addr))
	return false
}

// setReceiveTimeout sets SO_RCVTIMEO on the client socket so a peer that
// stops sending without closing the connection still unblocks Read
// periodically, rather than wedging the worker goroutine until
// Terminate's conn.Close. Best-effort: a non-TCPConn or an unsupported
// platform just keeps the default (no timeout) behavior.
//
// Grounded on the teacher's use of golang.org/x/sys/unix for
// syscall-level socket manipulation (m-lab/tcp-info's netlink/inetdiag
// packages), adapted here from raw netlink socket options to SO_RCVTIMEO
// on a plain TCP client socket.
func setReceiveTimeout(conn net.Conn, d time.Duration) {
	tc, ok := conn.(*net.TCPConn)
	if !ok || d <= 0 {
		return
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return
	}
	tv := unix.NsecToTimeval(d.Nanoseconds())
	raw.Control(func(fd uintptr) {
		unix.SetsockoptTimeval(int(fd), unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
	})
}

// reassembly buffers bytes from the socket and decodes them against the
// channel's port template, per spec.md §4.6's parser invariants. It is
// driven from two goroutines (the socket-read loop and the per-packet
// timer callback), so every field access is guarded by mu.
type reassembly struct {
	ch      *channel.Channel
	sink    Sink
	timeout time.Duration

	mu    sync.Mutex
	buf   []byte
	next  int // index into ch.Ports/template for the current packet
	vars  []variable.Variable
	start event.SimTime

	timer *time.Timer
}

func newReassembly(ch *channel.Channel, sink Sink, timeout time.Duration) *reassembly {
	return &reassembly{ch: ch, sink: sink, timeout: timeout}
}

func (r *reassembly) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = nil
	r.next = 0
	r.vars = nil
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *reassembly) feed(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, b...)
	for r.tryDecodeOne() {
	}
}

func (r *reassembly) tryDecodeOne() bool {
	if len(r.ch.Ports) == 0 {
		return false
	}
	if r.next == 0 && len(r.vars) == 0 && len(r.buf) > 0 {
		r.start = r.sink.GetTimeStampNow()
		r.armTimer()
	}

	expected := r.ch.Ports[r.next].Type
	outcome := codec.DecodeNext(r.buf, expected)
	switch outcome.Kind {
	case codec.Incomplete:
		return false
	case codec.Ok:
		r.buf = r.buf[outcome.Consumed:]
		port := r.ch.Ports[r.next]
		r.vars = append(r.vars, variable.MustNew(port, outcome.Value))
		r.advance()
		return true
	case codec.TypeMismatch:
		r.buf = r.buf[outcome.Consumed:]
		metrics.CodecErrorCount.With(prometheus.Labels{"kind": "type_mismatch"}).Inc()
		r.advance()
		return true
	case codec.InvalidTag:
		r.buf = r.buf[outcome.Consumed:]
		metrics.CodecErrorCount.With(prometheus.Labels{"kind": "invalid_tag"}).Inc()
		return true
	default:
		return false
	}
}

// advance moves to the next template slot, finalizing and publishing
// the partial event once the template is exhausted (spec.md §4.6: "When
// the port template is exhausted, the partial event is finalized and
// published; a fresh partial event is allocated").
func (r *reassembly) advance() {
	r.next++
	if r.next >= len(r.ch.Ports) {
		r.publish()
	}
}

func (r *reassembly) publish() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.sink.PushExternal(event.NewStatic(r.start, r.vars))
	r.next = 0
	r.vars = nil
}

// armTimer starts the per-packet timeout of spec.md §4.6: if the whole
// template is not filled within timeout after the first byte of a
// packet, the partial event commits with whatever arrived so far.
//
// The callback closes over the *time.Timer it was scheduled from and
// re-checks r.timer == self once it holds the lock: time.Timer.Stop
// does not block on (or cancel) a callback that has already started
// running, so reset/disarm racing a firing timer could otherwise still
// let a stale callback flush a partial event after the subscriber has
// finished draining (spec.md §5: nothing flushes after terminate
// returns). The identity check makes reset/disarm authoritative even in
// that race.
func (r *reassembly) armTimer() {
	var self *time.Timer
	self = time.AfterFunc(r.timeout, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.timer != self {
			return
		}
		metrics.PacketTimeoutCount.With(prometheus.Labels{"channel": r.ch.ID}).Inc()
		partial := make([]variable.Variable, len(r.vars))
		copy(partial, r.vars)
		at := r.start
		r.sink.PushExternal(event.NewStatic(at, partial))
		r.next = 0
		r.vars = nil
		r.timer = nil
	})
	r.timer = self
}
