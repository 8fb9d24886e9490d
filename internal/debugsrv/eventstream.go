package debugsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"sync"

	"github.com/dispatchlab/simterm/internal/event"
)

// EventStream broadcasts every event the dispatcher delivers to every
// connected debug client, one JSONL line per event, over a Unix domain
// socket. It is registered as an ordinary dispatcher.Listener; a slow
// or absent client never blocks the dispatcher -- writes are
// best-effort and a failing client is dropped.
//
// Adapted from the teacher's eventsocket.Server (m-lab/tcp-info
// eventsocket/server.go): the same client-map-plus-mutex broadcast
// loop and channel-buffered producer/consumer split, repurposed from
// TCP flow open/close notifications to simulation event broadcast.
type EventStream struct {
	eventC       chan *streamEvent
	filename     string
	clients      map[net.Conn]struct{}
	unixListener net.Listener
	mu           sync.Mutex
	servingWG    sync.WaitGroup
}

// streamEvent is the JSONL shape sent to each connected debug client.
type streamEvent struct {
	Time float64           `json:"time"`
	Vars []streamVariable `json:"vars"`
}

type streamVariable struct {
	Port  string `json:"port"`
	Value string `json:"value"`
}

// NewEventStream builds an EventStream that will listen on the given
// Unix domain socket filename once Listen is called.
func NewEventStream(filename string) *EventStream {
	return &EventStream{
		filename: filename,
		eventC:   make(chan *streamEvent, 100),
		clients:  make(map[net.Conn]struct{}),
	}
}

// EventTriggered implements dispatcher.Listener: it never blocks on a
// full channel -- a debug stream that can't keep up drops events rather
// than stalling the simulation.
func (s *EventStream) EventTriggered(e event.Event) error {
	se := toStreamEvent(e)
	select {
	case s.eventC <- se:
	default:
		log.Printf("debugsrv: event stream buffer full, dropping event at t=%v", e.Time())
	}
	return nil
}

func toStreamEvent(e event.Event) *streamEvent {
	vars := e.Variables()
	out := make([]streamVariable, len(vars))
	for i, v := range vars {
		out[i] = streamVariable{Port: v.Port.String(), Value: v.Value.String()}
	}
	return &streamEvent{Time: float64(e.Time()), Vars: out}
}

func (s *EventStream) addClient(c net.Conn) {
	log.Println("debugsrv: adding new event stream client", c.RemoteAddr())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *EventStream) removeClient(c net.Conn) {
	s.servingWG.Add(1)
	defer s.servingWG.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
}

func (s *EventStream) sendToAllListeners(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if _, err := fmt.Fprintln(c, data); err != nil {
			log.Println("debugsrv: write to event stream client failed, removing it:", err)
			go s.removeClient(c)
			go c.Close()
		}
	}
}

func (s *EventStream) notifyClients(ctx context.Context) {
	s.servingWG.Add(1)
	defer s.servingWG.Done()
	for ctx.Err() == nil {
		ev, ok := <-s.eventC
		if !ok {
			return
		}
		b, err := json.Marshal(ev)
		if err != nil {
			log.Printf("debugsrv: could not marshal event stream entry: %v", err)
			continue
		}
		s.sendToAllListeners(string(b))
	}
}

// Listen opens the Unix domain socket. Call Serve afterward in a
// goroutine.
func (s *EventStream) Listen() error {
	s.servingWG.Add(1)
	os.Remove(s.filename)
	var err error
	s.unixListener, err = net.Listen("unix", s.filename)
	return err
}

// Serve accepts clients and broadcasts events until ctx is canceled.
func (s *EventStream) Serve(ctx context.Context) error {
	defer s.servingWG.Done()
	derivedCtx, derivedCancel := context.WithCancel(ctx)
	defer derivedCancel()

	go s.notifyClients(derivedCtx)

	s.servingWG.Add(1)
	go func() {
		<-derivedCtx.Done()
		s.unixListener.Close()
		close(s.eventC)
		s.servingWG.Done()
	}()

	var err error
	for derivedCtx.Err() == nil {
		var conn net.Conn
		conn, err = s.unixListener.Accept()
		if err != nil {
			continue
		}
		s.addClient(conn)
	}
	return err
}
