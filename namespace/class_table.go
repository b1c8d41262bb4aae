package namespace

import (
	"sync"

	"go.ivtree.dev/server/ivtypes"
)

// ClassEntry binds one class id within a namespace to the embedder's
// upcall pack for that class. A namespace's classes are registered
// independently on every rank that attaches it; the registry never
// ships Callbacks across the wire (see SPEC_FULL.md §6).
type ClassEntry struct {
	ClassID   uint32
	Callbacks ivtypes.Callbacks
}

// ClassTable is the per-namespace map from class id to its Callbacks.
type ClassTable struct {
	mu      sync.RWMutex
	entries map[uint32]ivtypes.Callbacks
}

// NewClassTable builds an empty ClassTable.
func NewClassTable() *ClassTable {
	return &ClassTable{entries: make(map[uint32]ivtypes.Callbacks)}
}

// Set registers (or replaces) the Callbacks for classID.
func (t *ClassTable) Set(classID uint32, cb ivtypes.Callbacks) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[classID] = cb
}

// ClassOps returns the Callbacks registered for classID.
func (t *ClassTable) ClassOps(classID uint32) (ivtypes.Callbacks, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cb, ok := t.entries[classID]
	return cb, ok
}

// Len reports how many classes have registered Callbacks.
func (t *ClassTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
