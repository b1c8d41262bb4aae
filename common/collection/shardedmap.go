// Package collection provides the concurrent map the in-progress
// fetch table is built on, sharded by
// key hash to keep lock contention off the hot request path. No
// example repo in this codebase's lineage ships a generic sharded map;
// this is a new primitive, reusing that lineage's single-mutex
// lock-guarded-map idiom (as in the namespace registry) at each shard.
package collection

import (
	"sync"

	farm "github.com/dgryski/go-farm"
)

const defaultShardCount = 32

// ShardedMap is a concurrent map keyed by arbitrary byte slices,
// sharded by a hash of the key so that unrelated keys never contend on
// the same lock. It does not preserve iteration order.
type ShardedMap struct {
	shards []*shard
	mask   uint64
}

type shard struct {
	mu   sync.Mutex
	data map[string]any
}

// NewShardedMap builds a ShardedMap with shardCount shards, rounded up
// to the next power of two. shardCount <= 0 selects a default.
func NewShardedMap(shardCount int) *ShardedMap {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	n := 1
	for n < shardCount {
		n <<= 1
	}
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{data: make(map[string]any)}
	}
	return &ShardedMap{shards: shards, mask: uint64(n - 1)}
}

func (m *ShardedMap) shardFor(key []byte) *shard {
	h := farm.Hash64(key)
	return m.shards[h&m.mask]
}

// Get returns the value stored under key, if any.
func (m *ShardedMap) Get(key []byte) (any, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[string(key)]
	return v, ok
}

// Put unconditionally stores value under key.
func (m *ShardedMap) Put(key []byte, value any) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = value
}

// GetOrInsert returns the existing value for key if present; otherwise
// it stores and returns value, reporting whether it inserted. The
// whole check-then-set happens under the shard's lock, which is what
// lets callers use this for single-flight-style coalescing without a
// separate top-level lock.
func (m *ShardedMap) GetOrInsert(key []byte, value any) (actual any, inserted bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[string(key)]; ok {
		return v, false
	}
	s.data[string(key)] = value
	return value, true
}

// Delete removes key if present.
func (m *ShardedMap) Delete(key []byte) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
}

// Mutate runs fn with the shard for key locked, passing the current
// value (nil if absent) and letting fn return the new value to store
// (or ok=false to delete). This is the primitive the in-progress table
// uses to atomically append a pending waiter to an existing entry or
// create a fresh one.
func (m *ShardedMap) Mutate(key []byte, fn func(cur any, found bool) (next any, keep bool)) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, found := s.data[string(key)]
	next, keep := fn(cur, found)
	if keep {
		s.data[string(key)] = next
	} else {
		delete(s.data, string(key))
	}
}

// Len reports the total number of entries across all shards. Used only
// by tests and busy-checks, never on the request fast path.
func (m *ShardedMap) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.Lock()
		total += len(s.data)
		s.mu.Unlock()
	}
	return total
}
