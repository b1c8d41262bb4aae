package ivtypes

import "context"

// NamespaceHandle is the minimal view of a namespace that a Callbacks
// implementation needs: enough to call back into OnHash without the
// callback package importing the namespace package (which imports this
// one), avoiding an import cycle.
type NamespaceHandle interface {
	SelfRank() Rank
	GroupSize() int
	ID() NamespaceId
}

// Callbacks is the upcall pack the embedder registers per class (see
// SPEC_FULL.md §6). The engine invokes these; it never implements them.
type Callbacks interface {
	// OnHash returns the root rank that owns key. Deterministic: the
	// same key on any rank must yield the same root.
	OnHash(ctx context.Context, ns NamespaceHandle, key Key) (Rank, error)

	// OnGet acquires an appropriately permissioned scatter list for
	// key. Every successful OnGet must be paired with exactly one
	// OnPut for the same value.
	OnGet(ctx context.Context, ns NamespaceHandle, key Key, ver Version, perm Permission) (Value, error)

	// OnPut releases a value previously acquired by OnGet.
	OnPut(ctx context.Context, ns NamespaceHandle, key Key, ver Version, value Value) error

	// OnFetch returns nil if value is now filled locally, ErrForward
	// to escalate toward root, or any other error to fail the fetch.
	OnFetch(ctx context.Context, ns NamespaceHandle, key Key, ver Version, isRoot bool, value *Value) error

	// OnUpdate accepts or escalates a write. Same return convention as
	// OnFetch.
	OnUpdate(ctx context.Context, ns NamespaceHandle, key Key, ver Version, isRoot bool, value Value) error

	// OnRefresh caches a newly known value (invalidate=false) or marks
	// the key stale (invalidate=true, value ignored).
	OnRefresh(ctx context.Context, ns NamespaceHandle, key Key, ver Version, value Value, invalidate bool) error
}
