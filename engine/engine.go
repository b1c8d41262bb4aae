// Package engine implements the tree-forwarded request engine: Fetch,
// Update, Invalidate, and the RPC handlers those operations dispatch
// to on every hop toward a key's root rank. This is the core this
// whole repository exists to exercise; the namespace, topology,
// transport, and bulk packages exist to support it.
package engine

import (
	"context"
	"fmt"

	"go.ivtree.dev/server/common/log"
	"go.ivtree.dev/server/common/metrics"
	"go.ivtree.dev/server/internal/bulk"
	"go.ivtree.dev/server/internal/transport"
	"go.ivtree.dev/server/ivtypes"
	"go.ivtree.dev/server/namespace"
	"go.ivtree.dev/server/topology"
)

// Engine is the per-process handle to the tree-forwarded request
// machinery: it looks up namespaces by id, applies class callbacks,
// and dials peers through the shared transport.Group.
type Engine struct {
	registry *namespace.Registry
	group    *transport.Group
	bulk     bulk.Adapter
	sync     *SyncEngine

	logger         log.Logger
	metricsHandler metrics.Handler
}

var _ transport.Handlers = (*Engine)(nil)

// bulkReader is satisfied by an Adapter that can also serve incoming
// BulkRead RPCs against its own locally registered handles (GRPCAdapter
// does; InMemAdapter has no RPC surface to serve, since nothing ever
// dials it remotely).
type bulkReader interface {
	HandleBulkRead(ctx context.Context, req *transport.BulkReadRequest) (*transport.BulkReadResponse, error)
}

// NewEngine builds an Engine backed by registry for namespace lookup,
// group for dialing peers, and adapter for bulk value transfer.
func NewEngine(registry *namespace.Registry, group *transport.Group, adapter bulk.Adapter, logger log.Logger, metricsHandler metrics.Handler) *Engine {
	if logger == nil {
		logger = log.NewNop()
	}
	if metricsHandler == nil {
		metricsHandler = metrics.NewNoopHandler()
	}
	return &Engine{
		registry:       registry,
		group:          group,
		bulk:           adapter,
		sync:           newSyncEngine(group, logger, metricsHandler),
		logger:         logger,
		metricsHandler: metricsHandler,
	}
}

// HandleBulkRead serves an incoming BulkRead RPC by delegating to the
// engine's bulk adapter, if it exposes one (see bulkReader). Adapters
// with no remote-serving surface (InMemAdapter) reject it outright:
// nothing should ever dial a process using one.
func (e *Engine) HandleBulkRead(ctx context.Context, req *transport.BulkReadRequest) (*transport.BulkReadResponse, error) {
	reader, ok := e.bulk.(bulkReader)
	if !ok {
		return &transport.BulkReadResponse{Err: "engine: bulk adapter does not serve BulkRead"}, nil
	}
	return reader.HandleBulkRead(ctx, req)
}

func (e *Engine) resolveClass(nsID ivtypes.NamespaceId, classID uint32) (*namespace.Namespace, ivtypes.Callbacks, error) {
	ns, ok := e.registry.Lookup(nsID)
	if !ok {
		return nil, nil, fmt.Errorf("engine: %w: %s", ivtypes.ErrNamespaceNotFound, nsID)
	}
	ops, ok := ns.Classes().ClassOps(classID)
	if !ok {
		return nil, nil, ivtypes.NewInvalidArgument(fmt.Sprintf("engine: namespace %s has no class %d", nsID, classID))
	}
	return ns, ops, nil
}

// nextHop applies shortcut to decide the next rank a forwarded
// request travels to: straight to root, or the tree parent.
func (e *Engine) nextHop(ns *namespace.Namespace, root ivtypes.Rank, shortcut ivtypes.Shortcut) (ivtypes.Rank, error) {
	switch shortcut {
	case ivtypes.ShortcutToRoot:
		return root, nil
	case ivtypes.ShortcutNone:
		return topology.Parent(ns.Topology(), root, ns.SelfRank(), ns.GroupSize()), nil
	default:
		return 0, ivtypes.NewInvalidArgument("engine: unknown shortcut")
	}
}
