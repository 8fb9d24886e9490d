package predictor

import (
	"fmt"
	"sync"
)

// Manager is the process-scoped model registry described in spec.md
// §9's Design Notes: "Global ModelManager / model cache: treat as a
// process-scoped registry with explicit lifetime, created before the
// dispatcher, destroyed after all subscribers and publishers have
// terminated." It de-duplicates repeated loads of the same model path,
// handing back the same handle to every caller.
//
// Grounded on the teacher's cache.Cache generation bookkeeping
// (m-lab/tcp-info cache/cache.go), adapted from "current/previous" round
// tracking to a simple load-once-by-key registry, since the model
// manager has no notion of generations -- only a stable set of loaded
// handles for the process lifetime.
type Manager struct {
	mu     sync.Mutex
	models map[string]any
	closed bool
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{models: make(map[string]any)}
}

// Loader loads a model handle from a filesystem path. Concrete predictor
// implementations supply this; the Manager only handles the
// once-per-path memoization.
type Loader func(path string) (any, error)

// Load returns the cached handle for path, loading it via load if this
// is the first request for that path.
func (m *Manager) Load(path string, load Loader) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("predictor: manager already closed")
	}
	if h, ok := m.models[path]; ok {
		return h, nil
	}
	h, err := load(path)
	if err != nil {
		return nil, err
	}
	m.models[path] = h
	return h, nil
}

// Close marks the manager closed. Per spec.md §9, this must happen only
// after every subscriber and publisher has terminated; callers that hold
// a handle obtained from Load are expected to release their own
// resources independently -- Manager only owns the load-dedup table,
// not the handles' lifetimes.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.models = nil
}

// Len reports how many distinct model paths are currently loaded.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.models)
}
