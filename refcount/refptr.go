// Package refcount implements the reference-counted handle described by the
// format/audio runtime: a typed, heap-allocated payload with a lock-free
// strong count and a destructor invoked exactly once when the count reaches
// zero. The original C layout packed a {type_id, strong} header immediately
// before an inline payload in one allocation; Go has no equivalent of
// "allocate header+payload as one block" without unsafe tricks, so this is
// expressed as the idiomatic target the design notes call for instead: an
// Arc-like generic handle with a stored drop function.
package refcount

import (
	"sync/atomic"

	"github.com/oxsomi/oxc3core/oxerr"
)

// RefPtr is a reference-counted handle to a T. TypeID lets API boundaries
// validate down-casts the way the original's dispatch-by-typeId did; the
// destructor call itself no longer needs it since Go dispatches by the
// closure captured at Create time.
type RefPtr[T any] struct {
	strong     atomic.Int64
	typeID     uint32
	payload    *T
	destructor func(*T)
}

// Create allocates the payload (already constructed by the caller) into a new
// handle with strong count 1.
func Create[T any](typeID uint32, payload *T, destructor func(*T)) *RefPtr[T] {
	r := &RefPtr[T]{typeID: typeID, payload: payload, destructor: destructor}
	r.strong.Store(1)
	return r
}

// TypeID returns the tag this handle was created with.
func (r *RefPtr[T]) TypeID() uint32 { return r.typeID }

// Ptr returns the payload. Valid as long as the caller holds a strong
// reference (directly or transitively).
func (r *RefPtr[T]) Ptr() *T { return r.payload }

// Inc increments the strong count. Fails only if r is nil.
func (r *RefPtr[T]) Inc() error {
	if r == nil {
		return oxerr.New(oxerr.NullPointer, "RefPtr.Inc", "receiver is nil")
	}
	r.strong.Add(1)
	return nil
}

// Dec decrements the strong count, invoking the destructor exactly once when
// it reaches zero. Destructors must be idempotent under re-entry from a
// nested ref's own destructor, since a destructor that releases child refs
// may itself trigger further Dec calls before returning.
func (r *RefPtr[T]) Dec() error {
	if r == nil {
		return oxerr.New(oxerr.NullPointer, "RefPtr.Dec", "receiver is nil")
	}
	if r.strong.Add(-1) == 0 {
		if r.destructor != nil {
			r.destructor(r.payload)
		}
	}
	return nil
}

// Strong returns the current strong count, for tests and diagnostics.
func (r *RefPtr[T]) Strong() int64 { return r.strong.Load() }

// Weak is a non-owning handle: "a raw pointer we promise to keep alive via
// external bookkeeping" in the original source, reinterpreted per the design
// notes as an explicit non-owning index into a list that's always accessed
// under a lock (see WeakList) rather than a bare pointer. A Weak never
// participates in strong-count changes.
type Weak[T any] struct {
	ref *RefPtr[T]
}

// WrapWeak creates a Weak view of r without incrementing its strong count.
func WrapWeak[T any](r *RefPtr[T]) Weak[T] { return Weak[T]{ref: r} }

// Deref returns the underlying RefPtr. Callers must only do this while the
// container holding the Weak is locked, per the concurrency model.
func (w Weak[T]) Deref() *RefPtr[T] { return w.ref }

// WeakList is an ordered collection of Weak[T], e.g. an AudioDevice's list of
// currently playing streams or sources with a dirty mask. All mutation goes
// through a lock owned by the caller (the device's spinlock) -- WeakList
// itself does no locking, matching the "non-owning index into a list
// protected by a lock" model.
type WeakList[T any] struct {
	items []Weak[T]
}

// Push appends w to the list.
func (l *WeakList[T]) Push(w Weak[T]) { l.items = append(l.items, w) }

// Contains reports whether r is already present, by pointer identity.
func (l *WeakList[T]) Contains(r *RefPtr[T]) bool {
	for _, it := range l.items {
		if it.ref == r {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (l *WeakList[T]) Len() int { return len(l.items) }

// At returns the entry at index i.
func (l *WeakList[T]) At(i int) Weak[T] { return l.items[i] }

// SwapRemove removes the entry at index i by swapping it with the last entry
// and truncating, so iterating the list backwards while removing never skips
// a neighbour -- the pattern the scheduler's per-tick update loop relies on.
func (l *WeakList[T]) SwapRemove(i int) {
	last := len(l.items) - 1
	l.items[i] = l.items[last]
	l.items = l.items[:last]
}

// Each calls fn for every entry, front to back. Because the iteration is
// forward, fn must not call SwapRemove; removal during a walk needs a
// reverse index loop instead (as the device's Update does).
func (l *WeakList[T]) Each(fn func(i int, w Weak[T])) {
	for i, w := range l.items {
		fn(i, w)
	}
}
