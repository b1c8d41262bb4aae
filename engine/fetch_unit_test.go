package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go.ivtree.dev/server/engine"
	"go.ivtree.dev/server/internal/bulk"
	"go.ivtree.dev/server/internal/transport"
	"go.ivtree.dev/server/ivtypes"
	"go.ivtree.dev/server/namespace"
)

// singleRankEngine builds an Engine with no peers: enough to exercise
// the local-answer and error paths of Fetch/Update without a network,
// using a gomock Callbacks in place of a real class implementation.
func singleRankEngine(t *testing.T) (*engine.Engine, *namespace.Namespace, *ivtypes.MockCallbacks) {
	t.Helper()

	registry := namespace.NewRegistry(0, "unit-test", 1, nil, nil)
	group := transport.NewGroup(0, 1, transport.StaticAddressBook{}, nil)
	adapter := bulk.NewInMemAdapter(0)
	eng := engine.NewEngine(registry, group, adapter, nil, nil)

	ns, _, err := registry.Create(context.Background(), ivtypes.Topology{Tag: "flat"}, 1)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	cb := ivtypes.NewMockCallbacks(ctrl)
	ns.Classes().Set(testClassID, cb)

	return eng, ns, cb
}

func TestFetch_OnHashErrorFailsWithoutForwarding(t *testing.T) {
	eng, ns, cb := singleRankEngine(t)

	cb.EXPECT().OnHash(gomock.Any(), gomock.Any(), gomock.Any()).Return(ivtypes.Rank(0), context.DeadlineExceeded)

	done := make(chan error, 1)
	eng.Fetch(context.Background(), ns, testClassID, key("k1"), nil, ivtypes.Value{}, ivtypes.ShortcutNone, func(_ ivtypes.Value, err error) {
		done <- err
	})
	require.Error(t, <-done)
}

func TestFetch_RootForwardIsRejected(t *testing.T) {
	eng, ns, cb := singleRankEngine(t)

	cb.EXPECT().OnHash(gomock.Any(), gomock.Any(), gomock.Any()).Return(ivtypes.Rank(0), nil)
	cb.EXPECT().OnFetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), true, gomock.Any()).Return(ivtypes.ErrForward)

	done := make(chan error, 1)
	eng.Fetch(context.Background(), ns, testClassID, key("k1"), nil, ivtypes.Value{}, ivtypes.ShortcutNone, func(_ ivtypes.Value, err error) {
		done <- err
	})
	require.Error(t, <-done)
}

func TestUpdate_InvalidateCallsOnRefreshRegardlessOfRoot(t *testing.T) {
	eng, ns, cb := singleRankEngine(t)

	cb.EXPECT().OnHash(gomock.Any(), gomock.Any(), gomock.Any()).Return(ivtypes.Rank(0), nil)
	cb.EXPECT().OnRefresh(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), true).Return(nil)

	done := make(chan error, 1)
	syncType := ivtypes.SyncType{Mode: ivtypes.SyncNone, Event: ivtypes.SyncEventNotify}
	eng.Invalidate(context.Background(), ns, testClassID, key("k1"), nil, ivtypes.ShortcutNone, syncType, func(err error) {
		done <- err
	})
	require.NoError(t, <-done)
}
