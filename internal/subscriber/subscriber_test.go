package subscriber

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dispatchlab/simterm/internal/channel"
	"github.com/dispatchlab/simterm/internal/event"
	"github.com/dispatchlab/simterm/internal/variable"
)

type fakeSink struct {
	mu     sync.Mutex
	events []event.Event
	now    event.SimTime
}

func (f *fakeSink) PushExternal(ev event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeSink) GetTimeStampNow() event.SimTime {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeSink) snapshot() []event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]event.Event, len(f.events))
	copy(out, f.events)
	return out
}

func boolTemplate(n int) []variable.PortID {
	ports := make([]variable.PortID, n)
	for i := range ports {
		ports[i] = variable.PortID{Type: variable.Boolean, ID: i}
	}
	return ports
}

func testChannel(n int) *channel.Channel {
	ports := boolTemplate(n)
	perPort := make([]channel.PortConfig, n)
	ch, err := channel.NewChannel("0", ports, perPort, map[string]string{}, "")
	if err != nil {
		panic(err)
	}
	return ch
}

func TestReassemblyCompletesOnFullTemplate(t *testing.T) {
	sink := &fakeSink{}
	r := newReassembly(testChannel(2), sink, time.Second)

	r.feed([]byte{0x41, 0x41}) // two BOOL true tags
	got := sink.snapshot()
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if len(got[0].Variables()) != 2 {
		t.Fatalf("got %d vars, want 2", len(got[0].Variables()))
	}
}

func TestReassemblySplitAcrossFeeds(t *testing.T) {
	sink := &fakeSink{}
	r := newReassembly(testChannel(2), sink, time.Second)

	r.feed([]byte{0x41})
	if len(sink.snapshot()) != 0 {
		t.Fatal("should not publish before template is full")
	}
	r.feed([]byte{0x40})
	got := sink.snapshot()
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
}

func TestReassemblyPacketTimeoutFlushesPartial(t *testing.T) {
	sink := &fakeSink{}
	r := newReassembly(testChannel(3), sink, 10*time.Millisecond)

	r.feed([]byte{0x41}) // one of three
	time.Sleep(50 * time.Millisecond)

	got := sink.snapshot()
	if len(got) != 1 {
		t.Fatalf("got %d events after timeout, want 1", len(got))
	}
	if len(got[0].Variables()) != 1 {
		t.Fatalf("got %d vars, want 1 (whatever arrived before timeout)", len(got[0].Variables()))
	}
}

func TestReassemblyFreshPacketAfterCompletion(t *testing.T) {
	sink := &fakeSink{}
	r := newReassembly(testChannel(1), sink, time.Second)

	r.feed([]byte{0x41})
	r.feed([]byte{0x40})
	got := sink.snapshot()
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
}

// pipeDialer returns a Dialer that hands back one end of an in-memory
// net.Pipe connection; the other end is returned for the test to drive.
func pipeDialer() (Dialer, net.Conn) {
	client, server := net.Pipe()
	return func(network, address string) (net.Conn, error) {
		return client, nil
	}, server
}

func TestSubscriberInitAndStartDeliversEvent(t *testing.T) {
	dial, server := pipeDialer()
	defer server.Close()

	ch := testChannel(1)
	ch.Config = map[string]string{"addr": "test:0"}
	sink := &fakeSink{}
	s := New(ch, sink, dial)

	if err := s.InitAndStart(); err != nil {
		t.Fatalf("InitAndStart: %v", err)
	}
	defer s.Terminate()

	if _, err := server.Write([]byte{0x40}); err != nil {
		t.Fatalf("server write: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		if len(sink.snapshot()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("event was never delivered to the sink")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSubscriberTerminateIsIdempotent(t *testing.T) {
	dial, server := pipeDialer()
	defer server.Close()

	ch := testChannel(1)
	ch.Config = map[string]string{"addr": "test:0"}
	s := New(ch, &fakeSink{}, dial)
	if err := s.InitAndStart(); err != nil {
		t.Fatalf("InitAndStart: %v", err)
	}

	s.Terminate()
	s.Terminate()

	if got := s.State(); got != Exited {
		t.Fatalf("state = %v, want Exited", got)
	}
}
