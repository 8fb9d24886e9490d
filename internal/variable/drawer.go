package variable

import "sync"

// Drawer is the single process-wide source of fresh PortIDs. It is
// consulted only during configuration parsing (see internal/channel),
// never on the dispatch hot path.
type Drawer struct {
	mu   sync.Mutex
	next map[TypeTag]int
}

// NewDrawer creates a Drawer with every counter starting at zero.
func NewDrawer() *Drawer {
	return &Drawer{next: make(map[TypeTag]int)}
}

// Next returns a fresh PortID for the given type. Numbering is
// monotonically increasing per type, starting at 0.
func (d *Drawer) Next(t TypeTag) PortID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.next[t]
	d.next[t] = id + 1
	return PortID{Type: t, ID: id}
}
