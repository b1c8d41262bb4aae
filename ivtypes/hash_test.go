package ivtypes_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.ivtree.dev/server/ivtypes"
)

func TestHashKeyToRank_Deterministic(t *testing.T) {
	r1 := ivtypes.HashKeyToRank(ivtypes.Key("some-key"), 7)
	r2 := ivtypes.HashKeyToRank(ivtypes.Key("some-key"), 7)
	require.Equal(t, r1, r2)
	require.Less(t, uint32(r1), uint32(7))
}

func TestHashKeyToRank_ZeroGroupSize(t *testing.T) {
	require.Equal(t, ivtypes.Rank(0), ivtypes.HashKeyToRank(ivtypes.Key("k"), 0))
}

func TestHashKeyToRank_SpreadsAcrossRanks(t *testing.T) {
	seen := make(map[ivtypes.Rank]bool)
	for i := 0; i < 200; i++ {
		k := ivtypes.Key(string(rune('a' + i%26)))
		seen[ivtypes.HashKeyToRank(k, 5)] = true
	}
	require.Greater(t, len(seen), 1)
}
