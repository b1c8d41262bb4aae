package namespace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.ivtree.dev/server/common/clock"
	"go.ivtree.dev/server/common/log"
	"go.ivtree.dev/server/common/metrics"
	"go.ivtree.dev/server/ivtypes"
)

func newTestRegistry() *Registry {
	return NewRegistry(0, "group-a", 4, log.NewNop(), metrics.NewNoopHandler())
}

func TestRegistry_Create_AssignsDistinctIds(t *testing.T) {
	r := newTestRegistry()
	topo := ivtypes.Topology{Tag: "knomial", Arity: 2}

	_, g1, err := r.Create(context.Background(), topo, 1)
	require.NoError(t, err)
	_, g2, err := r.Create(context.Background(), topo, 1)
	require.NoError(t, err)

	require.NotEqual(t, g1.ID, g2.ID)
	require.Equal(t, 2, r.Len())
}

func TestRegistry_Lookup(t *testing.T) {
	r := newTestRegistry()
	ns, global, err := r.Create(context.Background(), ivtypes.Topology{Tag: "flat"}, 1)
	require.NoError(t, err)

	got, ok := r.Lookup(global.ID)
	require.True(t, ok)
	require.Same(t, ns, got)

	_, ok = r.Lookup(ivtypes.NamespaceId{CreatorRank: 99, LocalNSID: 99})
	require.False(t, ok)
}

func TestRegistry_Attach_IdempotentForSameGlobal(t *testing.T) {
	r := newTestRegistry()
	_, global, err := r.Create(context.Background(), ivtypes.Topology{Tag: "flat"}, 1)
	require.NoError(t, err)

	a1, err := r.Attach(context.Background(), global)
	require.NoError(t, err)
	a2, err := r.Attach(context.Background(), global)
	require.NoError(t, err)
	require.Same(t, a1, a2)
}

func TestRegistry_Attach_RejectsMismatchedReattach(t *testing.T) {
	r := newTestRegistry()
	_, global, err := r.Create(context.Background(), ivtypes.Topology{Tag: "flat"}, 1)
	require.NoError(t, err)

	mutated := global
	mutated.ClassCount = global.ClassCount + 1

	_, err = r.Attach(context.Background(), mutated)
	require.Error(t, err)
}

func TestRegistry_Destroy_RefusesWhenBusy(t *testing.T) {
	r := newTestRegistry()
	ns, _, err := r.Create(context.Background(), ivtypes.Topology{Tag: "flat"}, 1)
	require.NoError(t, err)

	ns.BeginRequest()
	err = r.Destroy(ns)
	require.ErrorIs(t, err, ivtypes.ErrNamespaceBusy)
	require.Equal(t, 1, r.Len())

	ns.EndRequest()
	err = r.Destroy(ns)
	require.NoError(t, err)
	require.Equal(t, 0, r.Len())
}

func TestRegistry_Destroy_RefusesWhenFetchCoalescing(t *testing.T) {
	r := newTestRegistry()
	ns, _, err := r.Create(context.Background(), ivtypes.Topology{Tag: "flat"}, 1)
	require.NoError(t, err)

	ns.InProgress().FindOrCreate(ivtypes.Key("k"), PendingFetch{Complete: func(ivtypes.Value, error) {}})

	err = r.Destroy(ns)
	require.ErrorIs(t, err, ivtypes.ErrNamespaceBusy)
}

func TestRegistry_Create_RejectsNonPositiveGroupSize(t *testing.T) {
	r := NewRegistry(0, "group-a", 0, log.NewNop(), metrics.NewNoopHandler())
	_, _, err := r.Create(context.Background(), ivtypes.Topology{Tag: "flat"}, 1)
	require.Error(t, err)
}

func TestRegistry_Create_StampsCreatedAtFromClock(t *testing.T) {
	fake := clock.NewFakeTimeSource(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r := NewRegistryWithClock(0, "group-a", 4, log.NewNop(), metrics.NewNoopHandler(), fake)

	ns, _, err := r.Create(context.Background(), ivtypes.Topology{Tag: "flat"}, 1)
	require.NoError(t, err)
	require.Equal(t, fake.Now(), ns.CreatedAt())

	fake.Advance(10 * time.Minute)
	require.Equal(t, 10*time.Minute, ns.Age(fake.Now()))
}
