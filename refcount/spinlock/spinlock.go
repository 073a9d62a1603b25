// Package spinlock implements a non-reentrant, re-entrancy-detecting spinlock:
// CAS 0->tid to acquire, CAS tid->0 to release. Acquiring it again from the
// thread that already holds it does NOT nest -- it is reported back as
// AlreadyHeld so the caller can short-circuit, and the caller must not then
// call Unlock.
package spinlock

import (
	"sync/atomic"
	"time"

	"github.com/oxsomi/oxc3core/oxerr"
)

// Acquired is the outcome taxonomy of a Lock call.
type Acquired int

const (
	// Fresh means the caller now holds the lock and must Unlock it.
	Fresh Acquired = iota
	// AlreadyHeld means the calling goroutine already holds the lock; this
	// is not re-entrant support, it's deadlock avoidance -- the caller must
	// skip the protected section's Unlock.
	AlreadyHeld
	// TimedOut means another goroutine held the lock past maxWait.
	TimedOut
)

// Spinlock holds the id of the goroutine-equivalent owner that currently
// holds it, or 0 when free. Since Go has no stable goroutine id, callers
// supply their own non-zero token (typically a pointer address or a
// monotonic id assigned to the logical owner, e.g. an AudioDevice's calling
// thread convention).
type Spinlock struct {
	owner int64
}

// Lock attempts to acquire l, busy-waiting up to maxWait for the current
// holder (if any) to release it. maxWait == 0 means try-lock (no waiting);
// a negative maxWait means wait forever.
func (l *Spinlock) Lock(token int64, maxWait time.Duration) Acquired {
	if token == 0 {
		panic("spinlock: token must be non-zero")
	}

	deadline := time.Time{}
	if maxWait > 0 {
		deadline = time.Now().Add(maxWait)
	}

	for {
		if atomic.CompareAndSwapInt64(&l.owner, 0, token) {
			return Fresh
		}
		if atomic.LoadInt64(&l.owner) == token {
			return AlreadyHeld
		}
		if maxWait == 0 {
			return TimedOut
		}
		if maxWait > 0 && !time.Now().Before(deadline) {
			return TimedOut
		}
	}
}

// Unlock releases l. It is an error to call this unless the caller holds the
// lock (i.e. the prior Lock call returned Fresh); callers that got
// AlreadyHeld must not call Unlock.
func (l *Spinlock) Unlock(token int64) error {
	if !atomic.CompareAndSwapInt64(&l.owner, token, 0) {
		return oxerr.New(oxerr.InvalidOperation, "Spinlock.Unlock", "caller does not hold the lock")
	}
	return nil
}

// HeldBy reports whether token currently holds l, for diagnostics/tests.
func (l *Spinlock) HeldBy(token int64) bool {
	return atomic.LoadInt64(&l.owner) == token
}
