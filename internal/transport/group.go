package transport

import (
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.ivtree.dev/server/common/log"
	"go.ivtree.dev/server/common/log/tag"
	"go.ivtree.dev/server/ivtypes"
)

// AddressBook resolves a rank to a dialable address. The engine is
// agnostic to how membership is discovered; this repo does not handle
// membership changing mid-request (see SPEC_FULL.md §1, Non-goals).
type AddressBook interface {
	Address(rank ivtypes.Rank) (string, bool)
}

// StaticAddressBook is an AddressBook fixed at construction, the
// common case for a process group launched from a static host list.
type StaticAddressBook map[ivtypes.Rank]string

func (b StaticAddressBook) Address(rank ivtypes.Rank) (string, bool) {
	addr, ok := b[rank]
	return addr, ok
}

// Group owns this rank's outbound connections to every other rank in
// its process group, dialing lazily and caching the result.
type Group struct {
	selfRank  ivtypes.Rank
	groupSize int
	addresses AddressBook
	logger    log.Logger

	mu    sync.Mutex
	conns map[ivtypes.Rank]*grpc.ClientConn
}

// NewGroup builds a Group for selfRank among groupSize peers resolved
// through addresses.
func NewGroup(selfRank ivtypes.Rank, groupSize int, addresses AddressBook, logger log.Logger) *Group {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Group{
		selfRank:  selfRank,
		groupSize: groupSize,
		addresses: addresses,
		logger:    logger,
		conns:     make(map[ivtypes.Rank]*grpc.ClientConn),
	}
}

// SelfRank returns this process's rank within the group.
func (g *Group) SelfRank() ivtypes.Rank { return g.selfRank }

// GroupSize returns the number of ranks in the group.
func (g *Group) GroupSize() int { return g.groupSize }

// Client returns (dialing lazily if needed) a Client connected to
// rank.
func (g *Group) Client(rank ivtypes.Rank) (*Client, error) {
	conn, err := g.connFor(rank)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

func (g *Group) connFor(rank ivtypes.Rank) (*grpc.ClientConn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if conn, ok := g.conns[rank]; ok {
		return conn, nil
	}

	addr, ok := g.addresses.Address(rank)
	if !ok {
		return nil, fmt.Errorf("transport: no address known for rank %d", rank)
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("transport: dial rank %d at %s: %w", rank, addr, err)
	}
	g.logger.Debug("dialed peer rank", tag.Rank(uint32(rank)), tag.NewStringTag("address", addr))
	g.conns[rank] = conn
	return conn, nil
}

// Close tears down every cached connection.
func (g *Group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var first error
	for rank, conn := range g.conns {
		if err := conn.Close(); err != nil && first == nil {
			first = fmt.Errorf("transport: close rank %d: %w", rank, err)
		}
	}
	g.conns = make(map[ivtypes.Rank]*grpc.ClientConn)
	return first
}

// NewServer constructs the gRPC server an engine listens on, wired to
// the gob codec via content-subtype negotiation rather than a
// generated proto service.
func NewServer(impl Handlers) *grpc.Server {
	s := grpc.NewServer()
	RegisterServer(s, impl)
	return s
}
