package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"go.ivtree.dev/server/common/dynamicconfig"
	"go.ivtree.dev/server/common/log/tag"
	"go.ivtree.dev/server/common/metrics"
	"go.ivtree.dev/server/internal/transport"
	"go.ivtree.dev/server/ivtypes"
	"go.ivtree.dev/server/namespace"
)

// FetchCompletion is invoked exactly once with the fetch's outcome.
type FetchCompletion func(value ivtypes.Value, err error)

// Fetch resolves key's value, walking toward root one hop at a time
// if this rank cannot answer locally. value is the caller's
// destination buffer: OnFetch may fill it directly if answered
// locally.
func (e *Engine) Fetch(ctx context.Context, ns *namespace.Namespace, classID uint32, key ivtypes.Key, ver ivtypes.Version, value ivtypes.Value, shortcut ivtypes.Shortcut, complete FetchCompletion) {
	if key == nil {
		complete(ivtypes.Value{}, ivtypes.NewInvalidArgument("fetch: key is nil"))
		return
	}
	ops, ok := ns.Classes().ClassOps(classID)
	if !ok {
		complete(ivtypes.Value{}, ivtypes.NewInvalidArgument("fetch: unknown class id"))
		return
	}

	root, err := ops.OnHash(ctx, ns, key)
	if err != nil {
		complete(ivtypes.Value{}, ivtypes.WrapUpcall("fetch: OnHash", err))
		return
	}

	isRoot := ns.IsRoot(root)
	err = ops.OnFetch(ctx, ns, key, ver, isRoot, &value)
	if err == nil {
		complete(value, nil)
		return
	}
	if !ivtypes.IsForward(err) {
		complete(ivtypes.Value{}, ivtypes.WrapUpcall("fetch: OnFetch", err))
		return
	}
	if isRoot {
		complete(ivtypes.Value{}, ivtypes.NewInvalidArgument("fetch: root rank returned forward"))
		return
	}

	next, err := e.nextHop(ns, root, shortcut)
	if err != nil {
		complete(ivtypes.Value{}, err)
		return
	}

	e.issueFetch(ctx, ns, classID, key, ver, root, next, complete)
}

// issueFetch coalesces concurrent fetches for the same key: the first
// caller becomes the leader and actually dispatches the upstream RPC;
// every other caller appends to the leader's waiter list and is
// resolved when that RPC completes (SPEC_FULL.md §4.4, invariants 1-2).
func (e *Engine) issueFetch(ctx context.Context, ns *namespace.Namespace, classID uint32, key ivtypes.Key, ver ivtypes.Version, root, next ivtypes.Rank, complete FetchCompletion) {
	waiter := namespace.PendingFetch{ClassID: classID, Version: ver, Complete: complete}
	isLeader := ns.InProgress().FindOrCreate(key, waiter)
	if !isLeader {
		return
	}

	client, err := e.group.Client(next)
	if err != nil {
		e.abandonFetch(ns, key, ivtypes.WrapTransport("fetch: dial next hop", err))
		return
	}

	req := &transport.FetchRequest{
		NamespaceID: ns.ID(),
		ClassID:     classID,
		Key:         key,
		Version:     ver,
		Root:        root,
		RequestID:   uuid.NewString(),
	}

	rpcCtx, cancel := context.WithTimeout(ctx, dynamicconfig.FetchRPCTimeout())
	go func() {
		defer cancel()
		resp, err := client.Fetch(rpcCtx, req)
		ns.Executor().Submit(func() {
			if err != nil {
				e.logger.Warn("fetch hop failed", tag.Key(key), tag.RequestID(req.RequestID), tag.Error(err))
			}
			e.finishFetch(ns, classID, key, ver, resp, err)
		})
	}()
}

// abandonFetch handles a dispatch-time failure (dial or bulk-create):
// it removes the in-progress entry and fails every current waiter
// with err, the leader included, whether or not a follower joined
// while the dispatch was failing. No waiter is left behind for a
// retry; this collapses the original's separate leader-retry path
// into one outcome, documented in DESIGN.md as a deliberate
// simplification.
func (e *Engine) abandonFetch(ns *namespace.Namespace, key ivtypes.Key, err error) {
	entry := ns.InProgress().Remove(key)
	if entry == nil {
		return
	}
	for _, w := range entry.Waiters {
		w.Complete(ivtypes.Value{}, err)
	}
}

func (e *Engine) finishFetch(ns *namespace.Namespace, classID uint32, key ivtypes.Key, ver ivtypes.Version, resp *transport.FetchResponse, rpcErr error) {
	entry := ns.InProgress().Remove(key)
	if entry == nil {
		e.logger.Warn("fetch completion for unknown in-progress key", tag.Key(key))
		return
	}

	if rpcErr != nil {
		e.metricsHandler.WithTags(metrics.OperationTag("fetch")).Counter("fetch_failed").Record(1)
		for _, w := range entry.Waiters {
			w.Complete(ivtypes.Value{}, ivtypes.WrapTransport("fetch: upstream RPC", rpcErr))
		}
		return
	}
	if resp.Err != "" {
		for _, w := range entry.Waiters {
			w.Complete(ivtypes.Value{}, errors.New(resp.Err))
		}
		return
	}

	value := resp.Value
	ops, ok := ns.Classes().ClassOps(classID)
	if !ok {
		err := ivtypes.NewInvalidArgument("fetch: unknown class id")
		for _, w := range entry.Waiters {
			w.Complete(ivtypes.Value{}, err)
		}
		return
	}

	ctx := context.Background()
	if err := ops.OnRefresh(ctx, ns, key, ver, value, false); err != nil {
		e.logger.Warn("OnRefresh after fetch failed", tag.Key(key), tag.Error(err))
	}

	e.drainPending(ctx, ns, ops, classID, key, ver, entry.Waiters)
}

// drainPending finalizes every queued waiter for key after the leader's
// upstream fetch has landed and OnRefresh has cached its value. It runs
// the same on_get(READ)/on_fetch/on_put cycle once for the whole list,
// the way crt_ivf_pending_reqs_process does, rather than per waiter:
// the in-progress table coalesces purely on key bytes (namespace/inprogress.go),
// so this mirrors the original's single shared cycle keyed by the
// completing fetch's own class id.
func (e *Engine) drainPending(ctx context.Context, ns *namespace.Namespace, ops ivtypes.Callbacks, classID uint32, key ivtypes.Key, ver ivtypes.Version, waiters []namespace.PendingFetch) {
	drained, err := ops.OnGet(ctx, ns, key, ver, ivtypes.PermRead)
	if err != nil {
		e.logger.Warn("OnGet during pending drain failed", tag.Key(key), tag.ClassID(classID), tag.Error(err))
		wrapped := ivtypes.WrapUpcall("OnGet", err)
		for _, w := range waiters {
			w.Complete(ivtypes.Value{}, wrapped)
		}
		return
	}

	root, hashErr := ops.OnHash(ctx, ns, key)
	isRoot := hashErr == nil && ns.IsRoot(root)
	if err := ops.OnFetch(ctx, ns, key, ver, isRoot, &drained); err != nil {
		e.logger.Warn("OnFetch during pending drain failed", tag.Key(key), tag.ClassID(classID), tag.Error(err))
		wrapped := ivtypes.WrapUpcall("OnFetch", err)
		for _, w := range waiters {
			w.Complete(ivtypes.Value{}, wrapped)
		}
		if putErr := ops.OnPut(ctx, ns, key, ver, drained); putErr != nil {
			e.logger.Warn("OnPut after failed drain fetch", tag.Key(key), tag.ClassID(classID), tag.Error(putErr))
		}
		return
	}

	for _, w := range waiters {
		w.Complete(drained.Clone(), nil)
	}

	if err := ops.OnPut(ctx, ns, key, ver, drained); err != nil {
		e.logger.Warn("OnPut during pending drain failed", tag.Key(key), tag.ClassID(classID), tag.Error(err))
	}
}

// HandleFetch serves an incoming FetchRequest from a child rank:
// answer locally if this rank's callback pack can, otherwise forward
// upstream and block until that resolves.
func (e *Engine) HandleFetch(ctx context.Context, req *transport.FetchRequest) (*transport.FetchResponse, error) {
	ns, ops, err := e.resolveClass(req.NamespaceID, req.ClassID)
	if err != nil {
		return &transport.FetchResponse{Err: err.Error()}, nil
	}

	value, err := ops.OnGet(ctx, ns, req.Key, req.Version, ivtypes.PermRead)
	if err != nil {
		return &transport.FetchResponse{Err: ivtypes.WrapUpcall("OnGet", err).Error()}, nil
	}

	isRoot := ns.IsRoot(req.Root)
	err = ops.OnFetch(ctx, ns, req.Key, req.Version, isRoot, &value)
	if err == nil {
		if putErr := ops.OnPut(ctx, ns, req.Key, req.Version, value); putErr != nil {
			e.logger.Warn("OnPut after local fetch hit failed", tag.Key(req.Key), tag.Error(putErr))
		}
		return &transport.FetchResponse{Value: value.Clone()}, nil
	}
	if !ivtypes.IsForward(err) {
		_ = ops.OnPut(ctx, ns, req.Key, req.Version, value)
		return &transport.FetchResponse{Err: ivtypes.WrapUpcall("OnFetch", err).Error()}, nil
	}
	if isRoot {
		_ = ops.OnPut(ctx, ns, req.Key, req.Version, value)
		return &transport.FetchResponse{Err: "fetch: forward requested at root"}, nil
	}

	if err := ops.OnPut(ctx, ns, req.Key, req.Version, value); err != nil {
		return &transport.FetchResponse{Err: ivtypes.WrapUpcall("OnPut before re-get", err).Error()}, nil
	}
	value, err = ops.OnGet(ctx, ns, req.Key, req.Version, ivtypes.PermWrite)
	if err != nil {
		return &transport.FetchResponse{Err: ivtypes.WrapUpcall("OnGet for write", err).Error()}, nil
	}

	next, hopErr := e.nextHop(ns, req.Root, ivtypes.ShortcutNone)
	if hopErr != nil {
		_ = ops.OnPut(ctx, ns, req.Key, req.Version, value)
		return &transport.FetchResponse{Err: hopErr.Error()}, nil
	}

	result := make(chan *transport.FetchResponse, 1)
	e.issueFetch(ctx, ns, req.ClassID, req.Key, req.Version, req.Root, next, func(v ivtypes.Value, err error) {
		if err != nil {
			if putErr := ops.OnPut(context.Background(), ns, req.Key, req.Version, value); putErr != nil {
				e.logger.Warn("OnPut after failed forward failed", tag.Key(req.Key), tag.Error(putErr))
			}
			result <- &transport.FetchResponse{Err: err.Error()}
			return
		}
		if putErr := ops.OnPut(context.Background(), ns, req.Key, req.Version, value); putErr != nil {
			e.logger.Warn("OnPut after forwarded fetch failed", tag.Key(req.Key), tag.Error(putErr))
		}
		result <- &transport.FetchResponse{Value: v}
	})

	select {
	case resp := <-result:
		return resp, nil
	case <-ctx.Done():
		return &transport.FetchResponse{Err: ctx.Err().Error()}, nil
	}
}
