package debugsrv

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/dispatchlab/simterm/internal/event"
	"github.com/dispatchlab/simterm/internal/variable"
)

func TestEventStreamBroadcastsToClient(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "events.sock")
	s := NewEventStream(sock)
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx)

	conn, err := net.Dial("unix", sock)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// Give Accept a moment to register the client before we publish.
	time.Sleep(20 * time.Millisecond)

	port := variable.PortID{Type: variable.Real, ID: 0}
	ev := event.NewStatic(1.5, []variable.Variable{variable.MustNew(port, variable.RealValue(2))})
	if err := s.EventTriggered(ev); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if line == "" {
		t.Fatal("expected a broadcast line, got empty")
	}
}
