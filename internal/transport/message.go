// Package transport carries IV requests between ranks. The wire
// representation is gob-encoded (see SPEC_FULL.md §3: this repo does
// not attempt an endian-agnostic layout) and travels over a hand-rolled
// gRPC service — hand-rolled because generating protobuf stubs here
// would need protoc, which this module does not assume is available.
// grpc's codec registry lets a service use any Marshal/Unmarshal pair,
// so the gob codec in codec.go stands in for generated marshaling
// without changing how the service is dialed, registered, or called.
package transport

import "go.ivtree.dev/server/ivtypes"

// FetchRequest is the wire form of one hop of a forwarded fetch. Root
// is carried explicitly from the originator's OnHash result rather
// than re-derived at each hop, so every hop agrees on who the root is
// even though OnHash is deterministic and would in principle agree
// anyway.
type FetchRequest struct {
	NamespaceID ivtypes.NamespaceId
	ClassID     uint32
	Key         ivtypes.Key
	Version     ivtypes.Version
	Root        ivtypes.Rank
	RequestID   string
}

// FetchResponse carries either a resolved value or a forwarding
// error. The value always travels inline in Value: the engine never
// sets Handle or HasBulk, and never reads them on receipt.
type FetchResponse struct {
	Value   ivtypes.Value
	Handle  BulkHandle
	HasBulk bool
	Err     string
}

// UpdateRequest is the wire form of one hop of a forwarded update (or
// invalidate, when Value.IsEmpty()).
type UpdateRequest struct {
	NamespaceID ivtypes.NamespaceId
	ClassID     uint32
	Key         ivtypes.Key
	Version     ivtypes.Version
	Value       ivtypes.Value
	Root        ivtypes.Rank
	SyncType    ivtypes.SyncType
	OriginRank  ivtypes.Rank
	RequestID   string
}

// UpdateResponse acknowledges an update; Err is non-empty on failure.
type UpdateResponse struct {
	Err string
}

// SyncRequest is one peer's leg of the post-update collective sync.
type SyncRequest struct {
	NamespaceID ivtypes.NamespaceId
	ClassID     uint32
	Key         ivtypes.Key
	Version     ivtypes.Version
	Value       ivtypes.Value
	Event       ivtypes.SyncEvent
}

// SyncResponse acknowledges a sync leg; Err is non-empty on failure.
type SyncResponse struct {
	Err string
}

// BulkReadRequest asks the peer holding handle to stream back the
// bytes previously registered under it via the bulk adapter.
type BulkReadRequest struct {
	Handle BulkHandle
}

// BulkReadResponse carries the bytes registered under the requested
// handle.
type BulkReadResponse struct {
	Data []byte
	Err  string
}

// BulkHandle opaquely identifies a bulk buffer registered on a
// specific rank, mirroring the (rank, local descriptor) pair CaRT's
// bulk handles carry on the wire.
type BulkHandle struct {
	Rank ivtypes.Rank
	ID   uint64
}
