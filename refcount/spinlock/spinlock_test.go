package spinlock

import (
	"testing"
	"time"
)

func TestFreshThenAlreadyHeld(t *testing.T) {
	var l Spinlock
	if got := l.Lock(1, 0); got != Fresh {
		t.Fatalf("got %v, want Fresh", got)
	}
	if got := l.Lock(1, 0); got != AlreadyHeld {
		t.Fatalf("got %v, want AlreadyHeld", got)
	}
	if err := l.Unlock(1); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestTimedOutWhenHeldByAnother(t *testing.T) {
	var l Spinlock
	if got := l.Lock(1, 0); got != Fresh {
		t.Fatalf("got %v, want Fresh", got)
	}
	start := time.Now()
	got := l.Lock(2, 20*time.Millisecond)
	elapsed := time.Since(start)
	if got != TimedOut {
		t.Fatalf("got %v, want TimedOut", got)
	}
	if elapsed < 20*time.Millisecond {
		t.Fatalf("returned after %v, want at least 20ms", elapsed)
	}
}

func TestUnlockWithoutHoldingFails(t *testing.T) {
	var l Spinlock
	l.Lock(1, 0)
	if err := l.Unlock(2); err == nil {
		t.Fatal("expected error unlocking from a different token")
	}
}
