package ivtypes

// Version is an opaque token threaded unchanged through fetch, update,
// and refresh calls. The engine never compares or orders versions; it
// is pure pass-through payload for the embedder.
type Version []byte

// Clone deep-copies the version token.
func (v Version) Clone() Version {
	if v == nil {
		return nil
	}
	out := make(Version, len(v))
	copy(out, v)
	return out
}
