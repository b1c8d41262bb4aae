package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"go.ivtree.dev/server/internal/transport"
	"go.ivtree.dev/server/ivtypes"
)

// GRPCAdapter is the production Adapter: Create/Free register bytes in
// a local map exactly like InMemAdapter, but Transfer against a
// handle owned by another rank issues a BulkRead RPC through the
// shared transport.Group rather than reaching into process memory.
type GRPCAdapter struct {
	rank  ivtypes.Rank
	group *transport.Group

	next atomic.Uint64

	mu   sync.Mutex
	data map[uint64][]byte
}

var _ Adapter = (*GRPCAdapter)(nil)

// NewGRPCAdapter builds a GRPCAdapter for this rank, dialing peers
// through group when Transfer targets a handle it does not own.
func NewGRPCAdapter(rank ivtypes.Rank, group *transport.Group) *GRPCAdapter {
	return &GRPCAdapter{rank: rank, group: group, data: make(map[uint64][]byte)}
}

func (a *GRPCAdapter) Create(value ivtypes.Value) transport.BulkHandle {
	id := a.next.Inc()
	flat := value.Flatten()

	a.mu.Lock()
	a.data[id] = flat
	a.mu.Unlock()

	return transport.BulkHandle{Rank: a.rank, ID: id}
}

func (a *GRPCAdapter) Free(handle transport.BulkHandle) {
	a.mu.Lock()
	delete(a.data, handle.ID)
	a.mu.Unlock()
}

func (a *GRPCAdapter) Transfer(ctx context.Context, handle transport.BulkHandle, shape ivtypes.Value) (ivtypes.Value, error) {
	if handle.Rank == a.rank {
		flat, ok := a.localBytes(handle.ID)
		if !ok {
			return ivtypes.Value{}, fmt.Errorf("bulk: unknown local handle %d", handle.ID)
		}
		return ivtypes.SplitLike(shape, flat), nil
	}

	client, err := a.group.Client(handle.Rank)
	if err != nil {
		return ivtypes.Value{}, ivtypes.WrapTransport("bulk: dial owning rank", err)
	}

	resp, err := client.BulkRead(ctx, &transport.BulkReadRequest{Handle: handle})
	if err != nil {
		return ivtypes.Value{}, ivtypes.WrapTransport("bulk: BulkRead RPC", err)
	}
	if resp.Err != "" {
		return ivtypes.Value{}, ivtypes.WrapTransport("bulk: remote BulkRead", errors.New(resp.Err))
	}

	return ivtypes.SplitLike(shape, resp.Data), nil
}

func (a *GRPCAdapter) localBytes(id uint64) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	flat, ok := a.data[id]
	return flat, ok
}

// HandleBulkRead serves a peer's BulkRead RPC against this rank's
// locally registered handles. Embed this (or delegate to it) from
// whatever type implements transport.Handlers for the process.
func (a *GRPCAdapter) HandleBulkRead(_ context.Context, req *transport.BulkReadRequest) (*transport.BulkReadResponse, error) {
	if req.Handle.Rank != a.rank {
		return &transport.BulkReadResponse{Err: fmt.Sprintf("bulk: handle owned by rank %d, not %d", req.Handle.Rank, a.rank)}, nil
	}
	flat, ok := a.localBytes(req.Handle.ID)
	if !ok {
		return &transport.BulkReadResponse{Err: fmt.Sprintf("bulk: unknown handle %d", req.Handle.ID)}, nil
	}
	return &transport.BulkReadResponse{Data: flat}, nil
}
