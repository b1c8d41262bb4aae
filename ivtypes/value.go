package ivtypes

// Segment is one buffer of a scatter/gather value.
type Segment []byte

// Value is a scatter/gather sequence of buffers. The engine treats the
// contents as opaque but must preserve segment boundaries across
// transfers: a Value transferred as three segments of lengths 4/8/2
// arrives as three segments of lengths 4/8/2, never as one contiguous
// blob of 14.
type Value struct {
	Segments []Segment
}

// NewValue wraps raw bytes as a single-segment Value.
func NewValue(b []byte) Value {
	return Value{Segments: []Segment{b}}
}

// Len returns the sum of all segment lengths.
func (v Value) Len() int {
	total := 0
	for _, s := range v.Segments {
		total += len(s)
	}
	return total
}

// IsEmpty reports whether the value has no segments (the wire
// representation of a NULL value, e.g. for invalidate).
func (v Value) IsEmpty() bool {
	return len(v.Segments) == 0
}

// Clone deep-copies every segment. Required before handing a value to
// an EAGER sync continuation, since the caller's buffers may be reused
// or freed before the collective completes.
func (v Value) Clone() Value {
	out := Value{Segments: make([]Segment, len(v.Segments))}
	for i, s := range v.Segments {
		seg := make(Segment, len(s))
		copy(seg, s)
		out.Segments[i] = seg
	}
	return out
}

// Flatten concatenates all segments into one contiguous buffer. Used by
// the bulk adapter, which moves bytes over the wire as one blob and
// relies on the segment table to split/rejoin them.
func (v Value) Flatten() []byte {
	out := make([]byte, 0, v.Len())
	for _, s := range v.Segments {
		out = append(out, s...)
	}
	return out
}

// SplitLike copies flat into a new Value whose segments have the same
// lengths as shape's, in order. Used on the receiving side of a bulk
// transfer to restore segment boundaries from a flat wire buffer.
func SplitLike(shape Value, flat []byte) Value {
	out := Value{Segments: make([]Segment, len(shape.Segments))}
	off := 0
	for i, s := range shape.Segments {
		n := len(s)
		seg := make(Segment, n)
		copy(seg, flat[off:off+n])
		out.Segments[i] = seg
		off += n
	}
	return out
}
