package namespace

import (
	"go.ivtree.dev/server/common/collection"
	"go.ivtree.dev/server/ivtypes"
)

// PendingFetch is one waiter coalesced onto an in-flight fetch for the
// same key. Complete is invoked exactly once, with the value the
// in-flight fetch resolved (or the error it failed with), when that
// fetch's RPC response (or local completion) arrives. This is the Go
// shape of the linked "pending request" list the distilled algorithm
// walks on fetch completion, replacing the list with direct
// continuations so resuming a waiter never means re-deriving its
// original call context.
type PendingFetch struct {
	ClassID  uint32
	Version  ivtypes.Version
	Complete func(value ivtypes.Value, err error)
}

// InProgressEntry tracks one key with an in-flight upstream fetch.
// Every PendingFetch appended to Waiters is resolved together when the
// owning fetch completes; see Design Notes in SPEC_FULL.md §4.4.
type InProgressEntry struct {
	Key     ivtypes.Key
	Waiters []PendingFetch
}

// InProgressTable is the per-namespace single-flight coalescing table:
// at most one upstream fetch is outstanding per key at a time, sharded
// by key hash so unrelated keys never contend on each other's lock.
type InProgressTable struct {
	m *collection.ShardedMap
}

// NewInProgressTable builds an empty InProgressTable.
func NewInProgressTable() *InProgressTable {
	return &InProgressTable{m: collection.NewShardedMap(0)}
}

// FindOrCreate appends waiter to the entry for key. If no fetch is
// already in flight for key, it creates one and reports isLeader=true
// — the caller owns issuing the upstream request. If a fetch is
// already in flight, isLeader=false and the caller must do nothing
// further: waiter.Complete will run when the leader's fetch resolves.
func (t *InProgressTable) FindOrCreate(key ivtypes.Key, waiter PendingFetch) (isLeader bool) {
	raw := []byte(key)
	t.m.Mutate(raw, func(cur any, found bool) (any, bool) {
		if found {
			entry := cur.(*InProgressEntry)
			entry.Waiters = append(entry.Waiters, waiter)
			isLeader = false
			return entry, true
		}
		isLeader = true
		return &InProgressEntry{Key: key.Clone(), Waiters: []PendingFetch{waiter}}, true
	})
	return isLeader
}

// Remove deletes and returns the entry for key, or nil if none exists.
// The leader calls this once its upstream fetch resolves, then drains
// Waiters outside the table (see engine.Fetch).
func (t *InProgressTable) Remove(key ivtypes.Key) *InProgressEntry {
	raw := []byte(key)
	var removed *InProgressEntry
	t.m.Mutate(raw, func(cur any, found bool) (any, bool) {
		if found {
			removed = cur.(*InProgressEntry)
		}
		return nil, false
	})
	return removed
}

// AbandonIfSoleWaiter removes the entry for key only if its leader is
// still the only waiter (no follower joined while the leader was
// failing to dispatch its upstream request), reporting whether it
// removed the entry. This generalizes the original algorithm's
// "unset in-progress only if the pending list is still empty" race
// check (SPEC_FULL.md §9, Open Question 5): there the leader's own
// request was never itself a pending-list entry, so "empty" was the
// right test; here the leader occupies Waiters[0], so the equivalent
// test is "no more than one waiter".
func (t *InProgressTable) AbandonIfSoleWaiter(key ivtypes.Key) bool {
	raw := []byte(key)
	removed := false
	t.m.Mutate(raw, func(cur any, found bool) (any, bool) {
		if !found {
			return nil, false
		}
		entry := cur.(*InProgressEntry)
		if len(entry.Waiters) <= 1 {
			removed = true
			return nil, false
		}
		return entry, true
	})
	return removed
}

// Len reports how many keys currently have an in-flight fetch. Used
// only by the namespace busy-check and tests.
func (t *InProgressTable) Len() int {
	return t.m.Len()
}
