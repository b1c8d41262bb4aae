// Package bulk implements the Bulk Transfer Adapter: the indirection
// that lets the engine move a Value's bytes to a peer rank without
// that peer needing to understand the engine's RPC wire format for
// every byte. This is the Go-idiomatic stand-in for the original's
// RDMA-registered-buffer primitive (see SPEC_FULL.md §4.8) — the
// "remote bulk handle" here is an opaque (rank, id) pair that only the
// Adapter on the owning rank knows how to resolve.
package bulk

import (
	"context"

	"go.ivtree.dev/server/internal/transport"
	"go.ivtree.dev/server/ivtypes"
)

// Adapter registers local values for remote transfer and fetches
// values registered on a remote rank. A handle created by Create must
// be released by Free exactly once, on the registering request's
// terminal continuation (SPEC_FULL.md §3, invariant 4).
type Adapter interface {
	// Create registers value's flattened bytes locally and returns a
	// handle a peer rank can Transfer against.
	Create(value ivtypes.Value) transport.BulkHandle

	// Free releases a handle created by this rank's Create.
	Free(handle transport.BulkHandle)

	// Transfer retrieves the bytes registered under handle, which may
	// belong to a remote rank, and reconstructs a Value with the same
	// segment shape as shape.
	Transfer(ctx context.Context, handle transport.BulkHandle, shape ivtypes.Value) (ivtypes.Value, error)
}
