package lockout

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLocksAtThreshold(t *testing.T) {
	m := NewMemory(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := m.RecordFailure(ctx, "alice"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
		locked, _, err := m.IsLocked(ctx, "alice")
		if err != nil {
			t.Fatalf("is locked: %v", err)
		}
		if locked {
			t.Fatalf("locked after %d failures, threshold is 3", i+1)
		}
	}

	if err := m.RecordFailure(ctx, "alice"); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	locked, retryAfter, err := m.IsLocked(ctx, "alice")
	if err != nil {
		t.Fatalf("is locked: %v", err)
	}
	if !locked {
		t.Fatal("expected lockout at threshold")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("retry-after out of range: %s", retryAfter)
	}
}

func TestMemoryIdentifiersAreIndependent(t *testing.T) {
	m := NewMemory(1, time.Minute)
	ctx := context.Background()

	if err := m.RecordFailure(ctx, "alice"); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	if locked, _, _ := m.IsLocked(ctx, "alice"); !locked {
		t.Fatal("expected alice to be locked")
	}
	if locked, _, _ := m.IsLocked(ctx, "bob"); locked {
		t.Fatal("expected bob to be unaffected")
	}
}

func TestMemorySuccessClearsCounter(t *testing.T) {
	m := NewMemory(2, time.Minute)
	ctx := context.Background()

	_ = m.RecordFailure(ctx, "alice")
	_ = m.RecordFailure(ctx, "alice")
	if locked, _, _ := m.IsLocked(ctx, "alice"); !locked {
		t.Fatal("expected lockout")
	}

	if err := m.RecordSuccess(ctx, "alice"); err != nil {
		t.Fatalf("record success: %v", err)
	}
	if locked, _, _ := m.IsLocked(ctx, "alice"); locked {
		t.Fatal("expected success to clear the lockout")
	}
}

func TestMemoryWindowExpiry(t *testing.T) {
	m := NewMemory(2, time.Minute)
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }

	_ = m.RecordFailure(ctx, "alice")
	_ = m.RecordFailure(ctx, "alice")
	if locked, _, _ := m.IsLocked(ctx, "alice"); !locked {
		t.Fatal("expected lockout")
	}

	now = now.Add(time.Minute + time.Second)

	if locked, _, _ := m.IsLocked(ctx, "alice"); locked {
		t.Fatal("expected window elapse to unlock")
	}
	if _, ok := m.attempts["alice"]; ok {
		t.Fatal("expected expired entry to be dropped")
	}
}

func TestMemoryFailureDuringLockoutSlidesWindow(t *testing.T) {
	m := NewMemory(2, time.Minute)
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }

	_ = m.RecordFailure(ctx, "alice")
	_ = m.RecordFailure(ctx, "alice")

	// Thirty seconds into the lockout another failure lands; the window
	// anchors to it.
	now = now.Add(30 * time.Second)
	_ = m.RecordFailure(ctx, "alice")

	now = now.Add(45 * time.Second)
	if locked, _, _ := m.IsLocked(ctx, "alice"); !locked {
		t.Fatal("expected slid window to still be active")
	}

	now = now.Add(16 * time.Second)
	if locked, _, _ := m.IsLocked(ctx, "alice"); locked {
		t.Fatal("expected slid window to have elapsed")
	}
}

func TestMemoryStaleCounterRestartsAtOne(t *testing.T) {
	m := NewMemory(2, time.Minute)
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }

	_ = m.RecordFailure(ctx, "alice")

	// The window elapses before the next failure, so the counter starts
	// over instead of reaching the threshold.
	now = now.Add(2 * time.Minute)
	_ = m.RecordFailure(ctx, "alice")

	if locked, _, _ := m.IsLocked(ctx, "alice"); locked {
		t.Fatal("expected stale counter to restart below the threshold")
	}
}
