package bulk

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"go.ivtree.dev/server/internal/transport"
	"go.ivtree.dev/server/ivtypes"
)

// InMemAdapter is a process-local Adapter: Create stores bytes in a
// map, Transfer copies them directly. Used by tests and by
// multi-namespace simulations that run every simulated rank in one
// process, where there is no real wire to cross.
type InMemAdapter struct {
	rank ivtypes.Rank
	next atomic.Uint64

	mu   sync.Mutex
	data map[uint64][]byte
}

var _ Adapter = (*InMemAdapter)(nil)

// NewInMemAdapter builds an InMemAdapter that tags every handle it
// creates with rank, so a multi-rank in-process simulation can route
// Transfer calls to the right adapter instance.
func NewInMemAdapter(rank ivtypes.Rank) *InMemAdapter {
	return &InMemAdapter{rank: rank, data: make(map[uint64][]byte)}
}

func (a *InMemAdapter) Create(value ivtypes.Value) transport.BulkHandle {
	id := a.next.Inc()
	flat := value.Flatten()

	a.mu.Lock()
	a.data[id] = flat
	a.mu.Unlock()

	return transport.BulkHandle{Rank: a.rank, ID: id}
}

func (a *InMemAdapter) Free(handle transport.BulkHandle) {
	a.mu.Lock()
	delete(a.data, handle.ID)
	a.mu.Unlock()
}

// Transfer only resolves handles registered on this adapter's own
// rank; a multi-rank simulation is expected to route through a
// registry of per-rank adapters (see bulk.Registry) rather than call
// Transfer on the wrong instance directly.
func (a *InMemAdapter) Transfer(_ context.Context, handle transport.BulkHandle, shape ivtypes.Value) (ivtypes.Value, error) {
	if handle.Rank != a.rank {
		return ivtypes.Value{}, fmt.Errorf("bulk: in-mem adapter for rank %d cannot transfer handle owned by rank %d", a.rank, handle.Rank)
	}

	a.mu.Lock()
	flat, ok := a.data[handle.ID]
	a.mu.Unlock()
	if !ok {
		return ivtypes.Value{}, fmt.Errorf("bulk: unknown handle %d on rank %d", handle.ID, handle.Rank)
	}

	return ivtypes.SplitLike(shape, flat), nil
}

// Registry dispatches Transfer calls to the adapter owning each
// handle's rank, giving an in-process multi-rank simulation something
// that behaves like the real GRPCAdapter's cross-rank routing
// without a real connection.
type Registry struct {
	mu       sync.RWMutex
	adapters map[ivtypes.Rank]*InMemAdapter
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[ivtypes.Rank]*InMemAdapter)}
}

// Register associates rank with its InMemAdapter.
func (r *Registry) Register(rank ivtypes.Rank, adapter *InMemAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[rank] = adapter
}

// Transfer routes to the adapter that owns handle.Rank.
func (r *Registry) Transfer(ctx context.Context, handle transport.BulkHandle, shape ivtypes.Value) (ivtypes.Value, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[handle.Rank]
	r.mu.RUnlock()
	if !ok {
		return ivtypes.Value{}, fmt.Errorf("bulk: no adapter registered for rank %d", handle.Rank)
	}
	return adapter.Transfer(ctx, handle, shape)
}
