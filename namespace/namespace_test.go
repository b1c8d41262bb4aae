package namespace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.ivtree.dev/server/ivtypes"
)

func TestNamespace_IsRoot(t *testing.T) {
	global := ivtypes.GlobalNamespace{ID: ivtypes.NamespaceId{CreatorRank: 0, LocalNSID: 1}}
	ns := newNamespace(global, 3, 8, time.Now())

	require.True(t, ns.IsRoot(3))
	require.False(t, ns.IsRoot(0))
}

func TestNamespace_CreatedAt_TracksAge(t *testing.T) {
	start := time.Now()
	global := ivtypes.GlobalNamespace{ID: ivtypes.NamespaceId{CreatorRank: 0, LocalNSID: 1}}
	ns := newNamespace(global, 0, 4, start)

	require.Equal(t, start, ns.CreatedAt())
	later := start.Add(5 * time.Second)
	require.Equal(t, 5*time.Second, ns.Age(later))
}

func TestNamespace_Busy_TracksInFlightAndCoalescing(t *testing.T) {
	global := ivtypes.GlobalNamespace{ID: ivtypes.NamespaceId{CreatorRank: 0, LocalNSID: 1}}
	ns := newNamespace(global, 0, 4, time.Now())
	require.False(t, ns.Busy())

	ns.BeginRequest()
	require.True(t, ns.Busy())
	ns.EndRequest()
	require.False(t, ns.Busy())

	ns.InProgress().FindOrCreate(ivtypes.Key("k"), PendingFetch{Complete: func(ivtypes.Value, error) {}})
	require.True(t, ns.Busy())
}

func TestClassTable_SetAndLookup(t *testing.T) {
	ct := NewClassTable()
	_, ok := ct.ClassOps(1)
	require.False(t, ok)

	ct.Set(1, fakeCallbacks{})
	cb, ok := ct.ClassOps(1)
	require.True(t, ok)
	require.NotNil(t, cb)
	require.Equal(t, 1, ct.Len())
}

type fakeCallbacks struct{}

func (fakeCallbacks) OnHash(context.Context, ivtypes.NamespaceHandle, ivtypes.Key) (ivtypes.Rank, error) {
	return 0, nil
}

func (fakeCallbacks) OnGet(context.Context, ivtypes.NamespaceHandle, ivtypes.Key, ivtypes.Version, ivtypes.Permission) (ivtypes.Value, error) {
	return ivtypes.Value{}, nil
}

func (fakeCallbacks) OnPut(context.Context, ivtypes.NamespaceHandle, ivtypes.Key, ivtypes.Version, ivtypes.Value) error {
	return nil
}

func (fakeCallbacks) OnFetch(context.Context, ivtypes.NamespaceHandle, ivtypes.Key, ivtypes.Version, bool, *ivtypes.Value) error {
	return nil
}

func (fakeCallbacks) OnUpdate(context.Context, ivtypes.NamespaceHandle, ivtypes.Key, ivtypes.Version, bool, ivtypes.Value) error {
	return nil
}

func (fakeCallbacks) OnRefresh(context.Context, ivtypes.NamespaceHandle, ivtypes.Key, ivtypes.Version, ivtypes.Value, bool) error {
	return nil
}
