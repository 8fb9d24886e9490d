// Package config implements the dotted configuration surface of
// spec.md §6 (app.startTime, app.stopTime, in.N.*, out.N.*,
// channel.N.*, connection.<id>.*) as a channel.Tree, backed by
// github.com/spf13/viper. The loader *engine* (file formats, watch,
// env binding) is out of scope for the CORE per spec.md §1; this
// package only adapts viper's nested-key access to the minimal Tree
// surface internal/channel needs.
package config

import (
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/viper"

	"github.com/dispatchlab/simterm/internal/channel"
	"github.com/dispatchlab/simterm/internal/event"
)

// Tree adapts a viper instance (or a sub-tree of one) to
// channel.Tree.
type Tree struct {
	v      *viper.Viper
	prefix string
}

// Load reads path into a fresh viper instance, taking the format (e.g.
// JSON) from the file's extension, and returns its root Tree.
func Load(path string) (*Tree, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	return &Tree{v: v}, nil
}

// New wraps an already-populated viper instance, for tests and for
// callers that build config from flags/env rather than a file.
func New(v *viper.Viper) *Tree {
	return &Tree{v: v}
}

func (t *Tree) key(k string) string {
	if t.prefix == "" {
		return k
	}
	return t.prefix + "." + k
}

// Sub implements channel.Tree.
func (t *Tree) Sub(key string) channel.Tree {
	full := t.key(key)
	if !t.v.IsSet(full) {
		return nil
	}
	return &Tree{v: t.v, prefix: full}
}

// GetString implements channel.Tree.
func (t *Tree) GetString(key string) string {
	return t.v.GetString(t.key(key))
}

// IsSet implements channel.Tree.
func (t *Tree) IsSet(key string) bool {
	return t.v.IsSet(t.key(key))
}

// StartTime returns app.startTime, defaulting to 0.
func (t *Tree) StartTime() event.SimTime {
	return event.SimTime(t.v.GetFloat64(t.key("app.startTime")))
}

// StopTime returns app.stopTime, defaulting to +infinity per spec.md
// §4.5 ("Configuration: stopTime (defaults to +∞)").
func (t *Tree) StopTime() event.SimTime {
	raw := t.GetString("app.stopTime")
	if raw == "" {
		return event.SimTime(math.Inf(1))
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return event.SimTime(math.Inf(1))
	}
	return event.SimTime(f)
}

// LookAheadStepSize returns app.lookAheadStepSize, the predictor's
// per-iteration prediction horizon (original_source's
// PROP_LOOK_AHEAD_TIME), defaulting to 0.1 simulated seconds.
func (t *Tree) LookAheadStepSize() event.SimTime {
	raw := t.GetString("app.lookAheadStepSize")
	if raw == "" {
		return 0.1
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0.1
	}
	return event.SimTime(f)
}

// VariableStepSizeOnModelEvent returns app.variableStepSize
// (original_source's PROP_VARIABLE_STEP_SIZE), defaulting to false.
func (t *Tree) VariableStepSizeOnModelEvent() bool {
	return t.GetString("app.variableStepSize") == "true"
}

// InChannels returns the subtree rooted at "in", the input-channel list
// consumed by channel.FromConfig.
func (t *Tree) InChannels() channel.Tree {
	return t.Sub("in")
}

// OutChannels returns the subtree rooted at "out", the output-channel
// list consumed by channel.FromConfig.
func (t *Tree) OutChannels() channel.Tree {
	return t.Sub("out")
}

// Connection returns the subtree rooted at "connection.<id>", the
// shared connection parameters a channel's ConnectionID may reference.
func (t *Tree) Connection(id string) channel.Tree {
	return t.Sub("connection." + id)
}
