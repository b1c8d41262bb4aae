package ivtypes

import "github.com/dgryski/go-farm"

// HashKeyToRank maps key onto one of groupSize ranks with FarmHash,
// the same hash family the teacher's history-shard routing uses. A
// Callbacks implementation whose root assignment is pure hash
// distribution (no application-level ownership table) can use this
// directly as OnHash; callbacks that route ownership some other way
// are free to ignore it entirely.
func HashKeyToRank(key Key, groupSize int) Rank {
	if groupSize <= 0 {
		return 0
	}
	sum := farm.Hash64(key)
	return Rank(sum % uint64(groupSize))
}
