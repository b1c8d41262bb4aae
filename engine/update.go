package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"go.ivtree.dev/server/common/dynamicconfig"
	"go.ivtree.dev/server/common/log/tag"
	"go.ivtree.dev/server/internal/transport"
	"go.ivtree.dev/server/ivtypes"
	"go.ivtree.dev/server/namespace"
)

// UpdateCompletion is invoked exactly once with the outcome of an
// Update or Invalidate call, after the post-update sync collective has
// been dispatched per syncType (SPEC_FULL.md §4.6, §4.7).
type UpdateCompletion func(err error)

// Update pushes value toward key's root rank, applying it locally if
// this rank already owns the key. On success it hands off to the sync
// engine before invoking complete; EAGER sync waits for the
// collective, LAZY does not (SyncEngine.Run decides which).
func (e *Engine) Update(ctx context.Context, ns *namespace.Namespace, classID uint32, key ivtypes.Key, ver ivtypes.Version, value ivtypes.Value, shortcut ivtypes.Shortcut, syncType ivtypes.SyncType, complete UpdateCompletion) {
	e.updateInternal(ctx, ns, classID, key, ver, value, false, shortcut, syncType, complete)
}

// Invalidate marks key stale via OnRefresh(invalidate) on this rank
// (and, via sync, on every other rank), carrying no value. This is the
// null-update path: the same forwarding machinery as Update, routed to
// OnRefresh(invalidate) instead of OnUpdate; the request only travels
// toward root while OnRefresh returns ErrForward.
func (e *Engine) Invalidate(ctx context.Context, ns *namespace.Namespace, classID uint32, key ivtypes.Key, ver ivtypes.Version, shortcut ivtypes.Shortcut, syncType ivtypes.SyncType, complete UpdateCompletion) {
	e.updateInternal(ctx, ns, classID, key, ver, ivtypes.Value{}, true, shortcut, syncType, complete)
}

func (e *Engine) updateInternal(ctx context.Context, ns *namespace.Namespace, classID uint32, key ivtypes.Key, ver ivtypes.Version, value ivtypes.Value, invalidate bool, shortcut ivtypes.Shortcut, syncType ivtypes.SyncType, complete UpdateCompletion) {
	if key == nil {
		complete(ivtypes.NewInvalidArgument("update: key is nil"))
		return
	}
	// The forward and sync continuations can run after this call has
	// returned, so they work on private copies of the caller's buffers.
	key, value = key.Clone(), value.Clone()
	ops, ok := ns.Classes().ClassOps(classID)
	if !ok {
		complete(ivtypes.NewInvalidArgument("update: unknown class id"))
		return
	}

	root, err := ops.OnHash(ctx, ns, key)
	if err != nil {
		complete(ivtypes.WrapUpcall("update: OnHash", err))
		return
	}
	isRoot := ns.IsRoot(root)

	if invalidate {
		err = ops.OnRefresh(ctx, ns, key, ver, ivtypes.Value{}, true)
	} else {
		err = ops.OnUpdate(ctx, ns, key, ver, isRoot, value)
	}

	if err == nil {
		e.syncThenComplete(ctx, ns, classID, key, ver, value, invalidate, syncType, complete)
		return
	}
	if !ivtypes.IsForward(err) {
		complete(ivtypes.WrapUpcall("update: apply", err))
		return
	}
	if isRoot {
		complete(ivtypes.NewInvalidArgument("update: root rank returned forward"))
		return
	}

	next, err := e.nextHop(ns, root, shortcut)
	if err != nil {
		complete(err)
		return
	}

	e.issueUpdate(ctx, ns, classID, key, ver, value, invalidate, root, next, syncType, func(err error) {
		if err != nil {
			complete(err)
			return
		}
		e.syncThenComplete(ctx, ns, classID, key, ver, value, invalidate, syncType, complete)
	})
}

// issueUpdate sends one hop of a forwarded update toward next and
// resolves complete with the hop's outcome. Unlike fetch, updates are
// never coalesced: each caller's write is independent and must be
// individually acknowledged.
func (e *Engine) issueUpdate(ctx context.Context, ns *namespace.Namespace, classID uint32, key ivtypes.Key, ver ivtypes.Version, value ivtypes.Value, invalidate bool, root, next ivtypes.Rank, syncType ivtypes.SyncType, complete func(err error)) {
	client, err := e.group.Client(next)
	if err != nil {
		complete(ivtypes.WrapTransport("update: dial next hop", err))
		return
	}

	req := &transport.UpdateRequest{
		NamespaceID: ns.ID(),
		ClassID:     classID,
		Key:         key,
		Version:     ver,
		Root:        root,
		SyncType:    syncType,
		OriginRank:  ns.SelfRank(),
		RequestID:   uuid.NewString(),
	}
	if !invalidate {
		req.Value = value
	}

	rpcCtx, cancel := context.WithTimeout(ctx, dynamicconfig.UpdateRPCTimeout())
	go func() {
		defer cancel()
		resp, rpcErr := client.Update(rpcCtx, req)
		ns.Executor().Submit(func() {
			if rpcErr != nil {
				e.logger.Warn("update hop failed", tag.Key(key), tag.RequestID(req.RequestID), tag.Error(rpcErr))
				complete(ivtypes.WrapTransport("update: upstream RPC", rpcErr))
				return
			}
			if resp.Err != "" {
				complete(errors.New(resp.Err))
				return
			}
			complete(nil)
		})
	}()
}

// syncThenComplete runs the post-update collective (per SyncType.Mode)
// and only then resolves complete, except under SyncLazy where
// complete runs immediately and the collective finishes unobserved.
func (e *Engine) syncThenComplete(ctx context.Context, ns *namespace.Namespace, classID uint32, key ivtypes.Key, ver ivtypes.Version, value ivtypes.Value, invalidate bool, syncType ivtypes.SyncType, complete UpdateCompletion) {
	event := ivtypes.SyncEventUpdate
	syncValue := value
	if invalidate {
		event = ivtypes.SyncEventNotify
		syncValue = ivtypes.Value{}
	}
	e.sync.Run(ctx, ns, classID, key, ver, syncValue, event, syncType.Mode, complete)
}

// HandleUpdate serves an incoming UpdateRequest from a child rank:
// apply locally if possible, otherwise forward upstream and block
// until that resolves. It never triggers the sync collective itself —
// that is the originator's responsibility once its own forward chain
// round-trips back (SPEC_FULL.md §4.6).
func (e *Engine) HandleUpdate(ctx context.Context, req *transport.UpdateRequest) (*transport.UpdateResponse, error) {
	ns, ops, err := e.resolveClass(req.NamespaceID, req.ClassID)
	if err != nil {
		return &transport.UpdateResponse{Err: err.Error()}, nil
	}

	isRoot := ns.IsRoot(req.Root)
	invalidate := req.Value.IsEmpty()

	value := req.Value
	if !invalidate {
		// OnGet's own return value is unused: with no real RDMA buffer
		// to fill, req.Value already carries the bytes the RPC
		// delivered. OnGet is still called for its acquisition side
		// effect, paired with OnPut below.
		if _, err = ops.OnGet(ctx, ns, req.Key, req.Version, ivtypes.PermWrite); err != nil {
			return &transport.UpdateResponse{Err: ivtypes.WrapUpcall("OnGet", err).Error()}, nil
		}
	}

	if invalidate {
		err = ops.OnRefresh(ctx, ns, req.Key, req.Version, ivtypes.Value{}, true)
	} else {
		err = ops.OnUpdate(ctx, ns, req.Key, req.Version, isRoot, value)
	}

	if err == nil {
		if !invalidate {
			if putErr := ops.OnPut(ctx, ns, req.Key, req.Version, value); putErr != nil {
				e.logger.Warn("OnPut after local update hit failed", tag.Key(req.Key), tag.Error(putErr))
			}
		}
		return &transport.UpdateResponse{}, nil
	}
	if !ivtypes.IsForward(err) {
		if !invalidate {
			_ = ops.OnPut(ctx, ns, req.Key, req.Version, value)
		}
		return &transport.UpdateResponse{Err: ivtypes.WrapUpcall("apply", err).Error()}, nil
	}
	if isRoot {
		if !invalidate {
			_ = ops.OnPut(ctx, ns, req.Key, req.Version, value)
		}
		return &transport.UpdateResponse{Err: "update: forward requested at root"}, nil
	}

	if !invalidate {
		if putErr := ops.OnPut(ctx, ns, req.Key, req.Version, value); putErr != nil {
			return &transport.UpdateResponse{Err: ivtypes.WrapUpcall("OnPut before forward", putErr).Error()}, nil
		}
	}

	next, hopErr := e.nextHop(ns, req.Root, ivtypes.ShortcutNone)
	if hopErr != nil {
		return &transport.UpdateResponse{Err: hopErr.Error()}, nil
	}

	result := make(chan *transport.UpdateResponse, 1)
	e.issueUpdate(ctx, ns, req.ClassID, req.Key, req.Version, value, invalidate, req.Root, next, req.SyncType, func(err error) {
		if err != nil {
			result <- &transport.UpdateResponse{Err: err.Error()}
			return
		}
		result <- &transport.UpdateResponse{}
	})

	select {
	case resp := <-result:
		return resp, nil
	case <-ctx.Done():
		return &transport.UpdateResponse{Err: ctx.Err().Error()}, nil
	}
}
