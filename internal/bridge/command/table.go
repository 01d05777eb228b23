package command

import (
	"fmt"
	"sync"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/protocol"
)

// Table maps correlation ids to pending reply slots.
// All methods are safe for concurrent use.
//
// Invariant: at most one slot per id; a slot is removed exactly once, either by
// Resolve or by Evict.
type Table struct {
	mu      sync.Mutex
	pending map[string]chan *protocol.Response
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{pending: make(map[string]chan *protocol.Response)}
}

// Register creates a pending slot for id.
//
// Precondition: id must be non-empty.
// Postcondition: Returns a receive channel that yields exactly one reply, or an
// error if id is already pending.
func (t *Table) Register(id string) (<-chan *protocol.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.pending[id]; exists {
		return nil, fmt.Errorf("request %q already pending", id)
	}
	ch := make(chan *protocol.Response, 1)
	t.pending[id] = ch
	return ch, nil
}

// Resolve removes the slot for id and delivers resp to its waiter.
//
// Postcondition: Returns false when no slot exists (late or unsolicited reply).
func (t *Table) Resolve(id string, resp *protocol.Response) bool {
	t.mu.Lock()
	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	// Buffered with capacity 1 and removed from the map above, so this never blocks.
	ch <- resp
	return true
}

// Evict removes the slot for id without fulfilling it.
//
// Postcondition: Returns true if a slot was removed.
func (t *Table) Evict(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[id]; !ok {
		return false
	}
	delete(t.pending, id)
	return true
}

// Len returns the number of pending slots.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
