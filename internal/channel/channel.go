// Package channel implements the channel map and PortID drawer of
// spec.md §4.2 (C2): the static mapping from configuration to the set
// of channels the dispatcher subscribes to and publishes on.
//
// Grounded on the teacher's cache.Cache (m-lab/tcp-info cache/cache.go)
// for the "current/previous generation" bookkeeping idiom, adapted here
// to dedupe (name,type) pairs into a single PortID instead of deduping
// connections by cookie.
package channel

import (
	"fmt"
	"strings"

	"github.com/dispatchlab/simterm/internal/variable"
)

// ErrEmptyName is a ConfigurationError: a variable entry had an empty name.
var ErrEmptyName = fmt.Errorf("channel: empty variable name")

// ErrBadTypeCode is a ConfigurationError: a variable entry's type code
// was out of range.
var ErrBadTypeCode = fmt.Errorf("channel: type code out of range")

// ErrPortConfigLenMismatch is a ConfigurationError: |ports| != |per-port-config|.
var ErrPortConfigLenMismatch = fmt.Errorf("channel: ports/per-port-config length mismatch")

// ErrConnectionCollision is a ConfigurationError: an explicit connection
// id collided with the reserved "."+channel-id implicit form.
var ErrConnectionCollision = fmt.Errorf("channel: connection id collides with an implicit channel connection")

// PortConfig is the arbitrary per-port configuration carried alongside a
// PortID within a Channel (wire type override, etc).
type PortConfig struct {
	WireTypeOverride string // one of REAL,LREAL,DINT,BOOL,STRING; empty = default
}

// Channel is (channel-id, ports, per-port-config, channel-config,
// connection-ref), per spec.md §3.
type Channel struct {
	ID               string
	Ports            []variable.PortID
	PerPortConfig    []PortConfig
	Config           map[string]string
	ConnectionRef    string // empty means implicit connection "."+ID
}

// NewChannel validates the |ports| = |per-port-config| invariant.
func NewChannel(id string, ports []variable.PortID, perPort []PortConfig, cfg map[string]string, connRef string) (*Channel, error) {
	if len(ports) != len(perPort) {
		return nil, ErrPortConfigLenMismatch
	}
	return &Channel{ID: id, Ports: ports, PerPortConfig: perPort, Config: cfg, ConnectionRef: connRef}, nil
}

// ConnectionID returns the channel's connection identifier: the
// explicit ConnectionRef if set, otherwise the reserved implicit form
// "."+ID (spec.md §3, tested by spec.md §8).
func (c *Channel) ConnectionID() string {
	if c.ConnectionRef != "" {
		return c.ConnectionRef
	}
	return "." + c.ID
}

// ValidateConnections checks that no explicit connection id in conns
// collides with any channel's reserved implicit id.
func ValidateConnections(channels []*Channel, explicitConns map[string]struct{}) error {
	for id := range explicitConns {
		if strings.HasPrefix(id, ".") {
			for _, c := range channels {
				if c.ConnectionRef == "" && "."+c.ID == id {
					return ErrConnectionCollision
				}
			}
		}
	}
	return nil
}
