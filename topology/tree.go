// Package topology implements the pure tree-routing function every IV
// engine consults when it needs to decide the next hop toward a key's
// root rank. Given (tag, root, cur, groupSize) it returns parent(cur);
// repeated application converges to root in a bounded number of hops.
package topology

import "go.ivtree.dev/server/ivtypes"

// Kind names a topology family. The tag carried in GlobalNamespace
// (ivtypes.Topology.Tag) must resolve to one of these.
type Kind string

const (
	// KindFlat is a star: every non-root rank's parent is root.
	KindFlat Kind = "flat"
	// KindKnomial arranges ranks in a k-ary tree rooted at root, laid
	// out heap-style over each rank's distance from root. Arity is
	// carried separately (ivtypes.Topology.Arity).
	KindKnomial Kind = "knomial"
)

// Parent returns the next hop from cur toward root under the named
// topology. If cur == root, it returns root (the fixed point).
//
// For KindKnomial, ranks are relativized to root (distance mod
// groupSize) and arranged as a k-ary tree over that distance: rank at
// distance d's parent sits at distance (d-1)/arity, the layout of a
// k-ary heap (with arity 2 and root 0, rank 3's parent is rank 1,
// whose parent is rank 0). A k-nomial broadcast tree has a different
// shape; the tag name does not imply that layout.
func Parent(tag ivtypes.Topology, root, cur ivtypes.Rank, groupSize int) ivtypes.Rank {
	if cur == root {
		return root
	}
	if groupSize <= 0 {
		return root
	}

	switch Kind(tag.Tag) {
	case KindKnomial:
		arity := tag.Arity
		if arity < 2 {
			arity = 2
		}
		dist := distance(root, cur, groupSize)
		if dist == 0 {
			return root
		}
		parentDist := (dist - 1) / arity
		return rankAtDistance(root, parentDist, groupSize)
	case KindFlat, "":
		return root
	default:
		return root
	}
}

// distance returns cur's position relative to root in [0, groupSize).
func distance(root, cur ivtypes.Rank, groupSize int) int {
	d := int(cur) - int(root)
	if d < 0 {
		d += groupSize
	}
	return d % groupSize
}

// rankAtDistance is the inverse of distance: the rank sitting dist
// steps after root in the ring of size groupSize.
func rankAtDistance(root ivtypes.Rank, dist int, groupSize int) ivtypes.Rank {
	r := (int(root) + dist) % groupSize
	return ivtypes.Rank(r)
}
