package ivtypes

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Rank identifies a process within the group a namespace is bound to.
type Rank uint32

// NamespaceId uniquely identifies a namespace across the whole group:
// the creator's rank plus a counter local to that rank.
type NamespaceId struct {
	CreatorRank Rank
	LocalNSID   uint32
}

func (id NamespaceId) String() string {
	return fmt.Sprintf("%d/%d", id.CreatorRank, id.LocalNSID)
}

// Topology names the tree-topology tag a namespace was created with.
// The concrete shape (arity, etc.) is resolved by the topology package;
// the registry only needs to carry the tag across the wire.
type Topology struct {
	Tag   string
	Arity int
}

// GlobalNamespace is the serializable form of a Namespace: everything
// needed by a remote rank to Attach and participate in requests for
// this namespace. Crosses the wire via encoding/gob — this repo does
// not attempt an endian-agnostic layout (see SPEC_FULL.md §3).
type GlobalNamespace struct {
	ID         NamespaceId
	ClassCount uint32
	Topology   Topology
	GroupID    string
}

// Marshal serializes a GlobalNamespace for transport to a peer rank.
func (g GlobalNamespace) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(g); err != nil {
		return nil, fmt.Errorf("marshal global namespace: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalGlobalNamespace reverses Marshal.
func UnmarshalGlobalNamespace(b []byte) (GlobalNamespace, error) {
	var g GlobalNamespace
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&g); err != nil {
		return GlobalNamespace{}, fmt.Errorf("unmarshal global namespace: %w", err)
	}
	return g, nil
}
