// Package publisher implements the per-output-channel EventListener of
// spec.md §4.7 (C9): on every delivered event, walk the channel's port
// template, detect which variables changed since the last publication,
// and re-encode and send the whole channel frame.
//
// Grounded on the teacher's saver.Task fan-out (m-lab/tcp-info
// saver/saver.go): one goroutine-free, synchronous write-on-event
// consumer per output, keeping its own small piece of state (the last
// buffered values) rather than sharing it, mirroring saver's
// per-connection file state.
package publisher

import (
	"fmt"
	"log"
	"net"

	"github.com/dispatchlab/simterm/internal/channel"
	"github.com/dispatchlab/simterm/internal/codec"
	"github.com/dispatchlab/simterm/internal/event"
	"github.com/dispatchlab/simterm/internal/metrics"
	"github.com/dispatchlab/simterm/internal/variable"
	"github.com/prometheus/client_golang/prometheus"
)

// Transport is the atomic-send boundary a Publisher writes frames to:
// one net.Conn for a TCP channel, one net.PacketConn for UDP.
type Transport interface {
	Write(frame []byte) error
}

// tcpTransport wraps a connected net.Conn; TCP writes must complete in
// full (spec.md §4.7).
type tcpTransport struct{ conn net.Conn }

func (t *tcpTransport) Write(frame []byte) error {
	n, err := t.conn.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("publisher: short TCP write: %d of %d bytes", n, len(frame))
	}
	return nil
}

// NewTCPTransport wraps conn as a Transport.
func NewTCPTransport(conn net.Conn) Transport { return &tcpTransport{conn: conn} }

// udpTransport wraps a connected net.PacketConn; short writes are
// reported as warnings rather than errors (spec.md §4.7).
type udpTransport struct {
	conn net.PacketConn
	addr net.Addr
}

func (t *udpTransport) Write(frame []byte) error {
	n, err := t.conn.WriteTo(frame, t.addr)
	if err != nil {
		return err
	}
	if n != len(frame) {
		log.Printf("publisher: short UDP write (warning): %d of %d bytes", n, len(frame))
	}
	return nil
}

// NewUDPTransport wraps conn/addr as a Transport.
func NewUDPTransport(conn net.PacketConn, addr net.Addr) Transport {
	return &udpTransport{conn: conn, addr: addr}
}

// Publisher is the EventListener of spec.md §4.7, one per output
// channel.
type Publisher struct {
	ch        *channel.Channel
	transport Transport
	wire      []codec.WireType
	last      []variable.Value
}

// New constructs a Publisher for ch, resolving each port's wire type
// from its per-port config override or the type's default (spec.md
// §4.1), and initializing the buffered last values to each type's zero
// value (spec.md §4.7: "0.0, 0, false, \"\""). A declared wire type that
// cannot carry its port's source type is rejected here, synchronously on
// the configuration path, rather than on the first encode (spec.md
// §4.1/§7).
func New(ch *channel.Channel, transport Transport) (*Publisher, error) {
	wire := make([]codec.WireType, len(ch.Ports))
	last := make([]variable.Value, len(ch.Ports))
	for i, port := range ch.Ports {
		w, err := resolveWireType(port.Type, ch.PerPortConfig[i].WireTypeOverride)
		if err != nil {
			return nil, err
		}
		if !codec.Admissible(port.Type, w) {
			return nil, fmt.Errorf("publisher[%s]: port %s: %w: %s onto %s", ch.ID, port, codec.ErrNotAdmissible, port.Type, w)
		}
		wire[i] = w
		last[i] = zeroValue(port.Type)
	}
	return &Publisher{ch: ch, transport: transport, wire: wire, last: last}, nil
}

func resolveWireType(t variable.TypeTag, override string) (codec.WireType, error) {
	switch override {
	case "":
		return codec.DefaultWireType(t)
	case "REAL":
		return codec.REAL, nil
	case "LREAL":
		return codec.LREAL, nil
	case "DINT":
		return codec.DINT, nil
	case "BOOL":
		return codec.BOOL, nil
	case "STRING":
		return codec.STRING, nil
	default:
		return 0, fmt.Errorf("publisher: unknown wire type override %q", override)
	}
}

func zeroValue(t variable.TypeTag) variable.Value {
	switch t {
	case variable.Real:
		return variable.RealValue(0)
	case variable.Integer:
		return variable.IntValue(0)
	case variable.Boolean:
		return variable.BoolValue(false)
	case variable.String:
		return variable.StringValue("")
	default:
		return variable.UnknownValue()
	}
}

// EventTriggered implements dispatcher.Listener. It looks up each of the
// channel's ports in e.Variables(), and re-encodes and sends the whole
// frame only if at least one value changed since the last publication
// (spec.md §4.7).
func (p *Publisher) EventTriggered(e event.Event) error {
	byPort := make(map[variable.PortID]variable.Value, len(e.Variables()))
	for _, v := range e.Variables() {
		byPort[v.Port] = v.Value
	}

	changed := false
	next := make([]variable.Value, len(p.ch.Ports))
	for i, port := range p.ch.Ports {
		v, ok := byPort[port]
		if !ok {
			v = p.last[i]
		} else if v != p.last[i] {
			changed = true
		}
		next[i] = v
	}
	if !changed {
		return nil
	}

	var buf []byte
	var err error
	for i := range p.ch.Ports {
		buf, err = codec.Encode(buf, p.wire[i], next[i])
		if err != nil {
			return fmt.Errorf("publisher[%s]: encode failed: %w", p.ch.ID, err)
		}
	}

	if err := p.transport.Write(buf); err != nil {
		metrics.PublishErrorCount.With(prometheus.Labels{"channel": p.ch.ID}).Inc()
		return fmt.Errorf("publisher[%s]: write failed: %w", p.ch.ID, err)
	}
	p.last = next
	return nil
}
