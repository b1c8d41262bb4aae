package engine_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"go.ivtree.dev/server/engine"
	"go.ivtree.dev/server/internal/bulk"
	"go.ivtree.dev/server/internal/transport"
	"go.ivtree.dev/server/ivtypes"
	"go.ivtree.dev/server/namespace"
)

// storeCallbacks is a minimal Callbacks implementation used across
// engine tests: the root rank holds authoritative state in a map,
// every non-root rank forwards unless OnRefresh has already cached the
// value locally (the pending-fetch drain relies on this: it calls
// OnFetch a second time expecting a cache hit instead of another
// forward).
type storeCallbacks struct {
	root ivtypes.Rank

	mu      sync.Mutex
	store   map[string]ivtypes.Value
	cache   map[string]ivtypes.Value
	invalid map[string]bool
}

func newStoreCallbacks(root ivtypes.Rank) *storeCallbacks {
	return &storeCallbacks{
		root:    root,
		store:   make(map[string]ivtypes.Value),
		cache:   make(map[string]ivtypes.Value),
		invalid: make(map[string]bool),
	}
}

func (s *storeCallbacks) OnHash(_ context.Context, _ ivtypes.NamespaceHandle, _ ivtypes.Key) (ivtypes.Rank, error) {
	return s.root, nil
}

func (s *storeCallbacks) OnGet(_ context.Context, _ ivtypes.NamespaceHandle, _ ivtypes.Key, _ ivtypes.Version, _ ivtypes.Permission) (ivtypes.Value, error) {
	return ivtypes.Value{}, nil
}

func (s *storeCallbacks) OnPut(_ context.Context, _ ivtypes.NamespaceHandle, _ ivtypes.Key, _ ivtypes.Version, _ ivtypes.Value) error {
	return nil
}

func (s *storeCallbacks) OnFetch(_ context.Context, _ ivtypes.NamespaceHandle, key ivtypes.Key, _ ivtypes.Version, isRoot bool, value *ivtypes.Value) error {
	s.mu.Lock()
	if cached, ok := s.cache[key.String()]; ok {
		*value = cached
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if !isRoot {
		return ivtypes.ErrForward
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.store[key.String()]
	if !ok {
		return ivtypes.NewInvalidArgument("fetch: key not found at root")
	}
	*value = v
	return nil
}

func (s *storeCallbacks) OnUpdate(_ context.Context, _ ivtypes.NamespaceHandle, key ivtypes.Key, _ ivtypes.Version, isRoot bool, value ivtypes.Value) error {
	if !isRoot {
		return ivtypes.ErrForward
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key.String()] = value.Clone()
	return nil
}

func (s *storeCallbacks) OnRefresh(_ context.Context, _ ivtypes.NamespaceHandle, key ivtypes.Key, _ ivtypes.Version, value ivtypes.Value, invalidate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if invalidate {
		s.invalid[key.String()] = true
		delete(s.cache, key.String())
		return nil
	}
	s.cache[key.String()] = value.Clone()
	delete(s.invalid, key.String())
	return nil
}

func (s *storeCallbacks) cachedValue(key ivtypes.Key) (ivtypes.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache[key.String()]
	return v, ok
}

func (s *storeCallbacks) isInvalidated(key ivtypes.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalid[key.String()]
}

// testRank is one simulated process in a flat-topology group: its own
// registry, engine, bulk adapter, and a real grpc.Server listening on
// loopback so forwarding genuinely crosses the wire.
type testRank struct {
	rank     ivtypes.Rank
	registry *namespace.Registry
	engine   *engine.Engine
	callback *storeCallbacks
	server   *grpc.Server
	addr     string
}

// testCluster wires groupSize ranks in a flat topology rooted at rank
// 0, each dialing every other rank through a shared StaticAddressBook.
type testCluster struct {
	t     *testing.T
	ranks []*testRank
	ns    []*namespace.Namespace
	gns   ivtypes.GlobalNamespace
}

const testClassID = uint32(1)

func newTestCluster(t *testing.T, groupSize int) *testCluster {
	t.Helper()

	addresses := make(transport.StaticAddressBook)
	listeners := make([]net.Listener, groupSize)
	for r := 0; r < groupSize; r++ {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		listeners[r] = lis
		addresses[ivtypes.Rank(r)] = lis.Addr().String()
	}

	c := &testCluster{t: t}
	for r := 0; r < groupSize; r++ {
		rank := ivtypes.Rank(r)
		group := transport.NewGroup(rank, groupSize, addresses, nil)
		registry := namespace.NewRegistry(rank, "test-group", groupSize, nil, nil)
		adapter := bulk.NewInMemAdapter(rank)
		eng := engine.NewEngine(registry, group, adapter, nil, nil)

		server := transport.NewServer(eng)
		go func(lis net.Listener) {
			_ = server.Serve(lis)
		}(listeners[r])

		c.ranks = append(c.ranks, &testRank{
			rank:     rank,
			registry: registry,
			engine:   eng,
			server:   server,
			addr:     listeners[r].Addr().String(),
		})
	}

	topo := ivtypes.Topology{Tag: "flat"}
	_, gns, err := c.ranks[0].registry.Create(context.Background(), topo, 1)
	require.NoError(t, err)
	c.gns = gns

	for r, tr := range c.ranks {
		var ns *namespace.Namespace
		var err error
		if r == 0 {
			ns, _ = tr.registry.Lookup(gns.ID)
		} else {
			ns, err = tr.registry.Attach(context.Background(), gns)
			require.NoError(t, err)
		}
		cb := newStoreCallbacks(0)
		ns.Classes().Set(testClassID, cb)
		tr.callback = cb
		c.ns = append(c.ns, ns)
	}

	t.Cleanup(func() {
		for _, tr := range c.ranks {
			tr.server.Stop()
		}
	})

	return c
}

func (c *testCluster) fetch(rank int, key ivtypes.Key) (ivtypes.Value, error) {
	done := make(chan struct {
		v   ivtypes.Value
		err error
	}, 1)
	c.ranks[rank].engine.Fetch(context.Background(), c.ns[rank], testClassID, key, nil, ivtypes.Value{}, ivtypes.ShortcutNone, func(v ivtypes.Value, err error) {
		done <- struct {
			v   ivtypes.Value
			err error
		}{v, err}
	})
	select {
	case r := <-done:
		return r.v, r.err
	case <-time.After(5 * time.Second):
		c.t.Fatal("fetch timed out")
		return ivtypes.Value{}, nil
	}
}

func (c *testCluster) update(rank int, key ivtypes.Key, value ivtypes.Value, mode ivtypes.SyncMode) error {
	done := make(chan error, 1)
	syncType := ivtypes.SyncType{Mode: mode, Event: ivtypes.SyncEventUpdate}
	c.ranks[rank].engine.Update(context.Background(), c.ns[rank], testClassID, key, nil, value, ivtypes.ShortcutNone, syncType, func(err error) {
		done <- err
	})
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		c.t.Fatal("update timed out")
		return nil
	}
}

func (c *testCluster) invalidate(rank int, key ivtypes.Key, mode ivtypes.SyncMode) error {
	done := make(chan error, 1)
	syncType := ivtypes.SyncType{Mode: mode, Event: ivtypes.SyncEventNotify}
	c.ranks[rank].engine.Invalidate(context.Background(), c.ns[rank], testClassID, key, nil, ivtypes.ShortcutNone, syncType, func(err error) {
		done <- err
	})
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		c.t.Fatal("invalidate timed out")
		return nil
	}
}

func key(s string) ivtypes.Key { return ivtypes.Key(s) }

func value(s string) ivtypes.Value { return ivtypes.NewValue([]byte(s)) }

func TestFetch_FollowerForwardsToRoot(t *testing.T) {
	c := newTestCluster(t, 3)
	c.ranks[0].callback.store["k1"] = value("hello")

	v, err := c.fetch(2, key("k1"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(v.Flatten()))
}

func TestFetch_RootAnswersLocally(t *testing.T) {
	c := newTestCluster(t, 3)
	c.ranks[0].callback.store["k1"] = value("direct")

	v, err := c.fetch(0, key("k1"))
	require.NoError(t, err)
	require.Equal(t, "direct", string(v.Flatten()))
}

func TestFetch_UnknownKeyFails(t *testing.T) {
	c := newTestCluster(t, 3)

	_, err := c.fetch(1, key("missing"))
	require.Error(t, err)
}

func TestFetch_CoalescesConcurrentCallsForSameKey(t *testing.T) {
	c := newTestCluster(t, 3)
	c.ranks[0].callback.store["k1"] = value("shared")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	values := make([]ivtypes.Value, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			values[i], errs[i] = c.fetch(2, key("k1"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "shared", string(values[i].Flatten()))
	}
}

func TestUpdate_FollowerForwardsToRootAndSyncsEager(t *testing.T) {
	c := newTestCluster(t, 3)

	err := c.update(2, key("k1"), value("new-value"), ivtypes.SyncEager)
	require.NoError(t, err)

	require.Equal(t, "new-value", string(c.ranks[0].callback.store["k1"].Flatten()))

	// The RPC fan-out excludes the originator (rank 2), but the sync
	// engine still refreshes it directly: rank 2 never ran OnUpdate
	// itself (the write landed at root), so without this local step it
	// would have no way to learn the new value. Every rank, including
	// the originator, ends up with the same cached value.
	for r := 0; r < 3; r++ {
		cached, ok := c.ranks[r].callback.cachedValue(key("k1"))
		require.True(t, ok, "rank %d should have been synced", r)
		require.Equal(t, "new-value", string(cached.Flatten()))
	}
}

func TestUpdate_RootUpdatesLocallyAndSyncsLazy(t *testing.T) {
	c := newTestCluster(t, 3)

	err := c.update(0, key("k1"), value("lazy-value"), ivtypes.SyncLazy)
	require.NoError(t, err)
	require.Equal(t, "lazy-value", string(c.ranks[0].callback.store["k1"].Flatten()))

	require.Eventually(t, func() bool {
		v, ok := c.ranks[1].callback.cachedValue(key("k1"))
		return ok && string(v.Flatten()) == "lazy-value"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInvalidate_MarksEveryPeerStale(t *testing.T) {
	c := newTestCluster(t, 3)
	c.ranks[0].callback.store["k1"] = value("stale-soon")
	for r := 0; r < 3; r++ {
		c.ranks[r].callback.cache["k1"] = value("stale-soon")
	}

	err := c.invalidate(1, key("k1"), ivtypes.SyncEager)
	require.NoError(t, err)

	// OnRefresh(invalidate) succeeds wherever it's called without
	// needing to forward toward root, so rank 1 marks itself stale
	// directly, then the eager sync fans Notify out to ranks 0 and 2.
	for r := 0; r < 3; r++ {
		require.True(t, c.ranks[r].callback.isInvalidated(key("k1")), "rank %d should be invalidated", r)
	}
}
