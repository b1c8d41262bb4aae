package engine

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.ivtree.dev/server/common/dynamicconfig"
	"go.ivtree.dev/server/common/log/tag"
	"go.ivtree.dev/server/common/metrics"
	"go.ivtree.dev/server/internal/transport"
	"go.ivtree.dev/server/ivtypes"
	"go.ivtree.dev/server/namespace"
)

// SyncEngine runs the post-update collective that refreshes or
// invalidates every other rank in a namespace's group, choosing
// between waiting for the fan-out (EAGER) and returning immediately
// (LAZY) per SPEC_FULL.md §4.7.
type SyncEngine struct {
	group          syncDialer
	logger         syncLogger
	metricsHandler metrics.Handler
}

// syncDialer is the subset of *transport.Group the sync engine needs,
// narrowed for testability.
type syncDialer interface {
	SelfRank() ivtypes.Rank
	Client(rank ivtypes.Rank) (*transport.Client, error)
}

type syncLogger interface {
	Warn(msg string, fields ...tag.Field)
}

func newSyncEngine(group syncDialer, logger syncLogger, metricsHandler metrics.Handler) *SyncEngine {
	return &SyncEngine{group: group, logger: logger, metricsHandler: metricsHandler}
}

// Run performs the local refresh step and fans SyncRequest out to
// every non-self rank in ns's group. Under SyncNone neither the local
// refresh nor any RPC happens and complete runs with the pre-sync
// error (always nil here, since Run is only reached after a
// successful apply). Under SyncEager, complete only runs once the
// local refresh and every peer leg have finished, aggregated
// first-error-wins. Under SyncLazy, complete runs immediately and the
// local refresh plus fan-out's outcome is only logged and counted.
//
// The local refresh matters whenever the originator isn't the root:
// it never ran OnUpdate itself (that happened upstream, at the root),
// so without this call it would have no way to learn the new value
// except by round-tripping a sync RPC to itself, which the fan-out
// deliberately excludes (crt_ivsync_rpc_issue performs this same local
// on_refresh call before issuing its exclude-self corpc).
func (s *SyncEngine) Run(ctx context.Context, ns *namespace.Namespace, classID uint32, key ivtypes.Key, ver ivtypes.Version, value ivtypes.Value, event ivtypes.SyncEvent, mode ivtypes.SyncMode, complete func(err error)) {
	if mode == ivtypes.SyncNone {
		complete(nil)
		return
	}

	run := func() error {
		s.refreshLocal(context.Background(), ns, classID, key, ver, value, event)
		return s.fanOut(context.Background(), ns, classID, key, ver, value, event)
	}

	if mode == ivtypes.SyncLazy {
		complete(nil)
		go func() {
			if err := run(); err != nil {
				s.logger.Warn("lazy sync fan-out failed", tag.Key(key), tag.Error(err))
				s.metricsHandler.WithTags(metrics.OperationTag("sync")).Counter("sync_failed").Record(1)
			}
		}()
		return
	}

	// SyncEager.
	err := run()
	if err != nil {
		s.metricsHandler.WithTags(metrics.OperationTag("sync")).Counter("sync_failed").Record(1)
	}
	complete(err)
}

// refreshLocal applies the sync directly on this rank, the same
// callback pack HandleSync would invoke on a peer. Its outcome is only
// logged: a failed local refresh doesn't abort the collective, mirroring
// crt_ivsync_rpc_issue, which never inspects on_refresh's return value
// before proceeding to the corpc.
func (s *SyncEngine) refreshLocal(ctx context.Context, ns *namespace.Namespace, classID uint32, key ivtypes.Key, ver ivtypes.Version, value ivtypes.Value, event ivtypes.SyncEvent) {
	ops, ok := ns.Classes().ClassOps(classID)
	if !ok {
		s.logger.Warn("sync: local refresh has no class ops", tag.Key(key), tag.ClassID(classID))
		return
	}
	invalidate := event == ivtypes.SyncEventNotify
	if err := ops.OnRefresh(ctx, ns, key, ver, value, invalidate); err != nil {
		s.logger.Warn("sync: local refresh failed", tag.Key(key), tag.Error(err))
	}
}

func (s *SyncEngine) fanOut(ctx context.Context, ns *namespace.Namespace, classID uint32, key ivtypes.Key, ver ivtypes.Version, value ivtypes.Value, event ivtypes.SyncEvent) error {
	self := s.group.SelfRank()
	size := ns.GroupSize()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dynamicconfig.SyncFanoutConcurrency())

	var failures error
	var mu sync.Mutex

	for r := 0; r < size; r++ {
		rank := ivtypes.Rank(r)
		if rank == self {
			continue
		}
		g.Go(func() error {
			err := s.syncOne(gctx, ns, classID, key, ver, value, event, rank)
			if err != nil {
				mu.Lock()
				failures = multierr.Append(failures, err)
				mu.Unlock()
			}
			return err
		})
	}

	firstErr := g.Wait()
	if failures != nil {
		s.logger.Warn("sync collective had peer failures", tag.Key(key), tag.Error(failures))
	}
	return firstErr
}

func (s *SyncEngine) syncOne(ctx context.Context, ns *namespace.Namespace, classID uint32, key ivtypes.Key, ver ivtypes.Version, value ivtypes.Value, event ivtypes.SyncEvent, rank ivtypes.Rank) error {
	client, err := s.group.Client(rank)
	if err != nil {
		return ivtypes.WrapTransport("sync: dial peer", err)
	}

	rpcCtx, cancel := context.WithTimeout(ctx, dynamicconfig.SyncRPCTimeout())
	defer cancel()

	resp, err := client.Sync(rpcCtx, &transport.SyncRequest{
		NamespaceID: ns.ID(),
		ClassID:     classID,
		Key:         key,
		Version:     ver,
		Value:       value,
		Event:       event,
	})
	if err != nil {
		return ivtypes.WrapTransport("sync: peer RPC", err)
	}
	if resp.Err != "" {
		return ivtypes.WrapUpcall("sync: peer refresh", errors.New(resp.Err))
	}
	return nil
}

// HandleSync serves an incoming SyncRequest from the update
// originator: refresh (or invalidate) the local cache via OnRefresh.
// A peer never forwards a Sync RPC; it always lands where it's sent.
func (e *Engine) HandleSync(ctx context.Context, req *transport.SyncRequest) (*transport.SyncResponse, error) {
	ns, ops, err := e.resolveClass(req.NamespaceID, req.ClassID)
	if err != nil {
		return &transport.SyncResponse{Err: err.Error()}, nil
	}

	invalidate := req.Event == ivtypes.SyncEventNotify
	if err := ops.OnRefresh(ctx, ns, req.Key, req.Version, req.Value, invalidate); err != nil {
		return &transport.SyncResponse{Err: ivtypes.WrapUpcall("OnRefresh", err).Error()}, nil
	}
	return &transport.SyncResponse{}, nil
}
