package lockout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisTracker(t *testing.T, maxAttempts int, window time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedis(client, maxAttempts, window), mr
}

func TestRedisLocksAtThreshold(t *testing.T) {
	tracker, _ := newRedisTracker(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := tracker.RecordFailure(ctx, "alice"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if locked, _, _ := tracker.IsLocked(ctx, "alice"); locked {
		t.Fatal("locked below threshold")
	}

	if err := tracker.RecordFailure(ctx, "alice"); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	locked, retryAfter, err := tracker.IsLocked(ctx, "alice")
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

func TestRedisSuccessDeletesCounter(t *testing.T) {
	tracker, mr := newRedisTracker(t, 1, time.Minute)
	ctx := context.Background()

	if err := tracker.RecordFailure(ctx, "alice"); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if locked, _, _ := tracker.IsLocked(ctx, "alice"); !locked {
		t.Fatal("expected lockout")
	}

	if err := tracker.RecordSuccess(ctx, "alice"); err != nil {
		t.Fatalf("record success: %v", err)
	}

	if mr.Exists("gl:alice") {
		t.Fatal("expected counter key to be deleted")
	}
	if locked, _, _ := tracker.IsLocked(ctx, "alice"); locked {
		t.Fatal("expected success to clear the lockout")
	}
}

func TestRedisWindowExpiry(t *testing.T) {
	tracker, mr := newRedisTracker(t, 1, time.Minute)
	ctx := context.Background()

	if err := tracker.RecordFailure(ctx, "alice"); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if locked, _, _ := tracker.IsLocked(ctx, "alice"); !locked {
		t.Fatal("expected lockout")
	}

	mr.FastForward(time.Minute + time.Second)

	if locked, _, _ := tracker.IsLocked(ctx, "alice"); locked {
		t.Fatal("expected TTL expiry to unlock")
	}
}

func TestRedisFailureRefreshesTTL(t *testing.T) {
	tracker, mr := newRedisTracker(t, 2, time.Minute)
	ctx := context.Background()

	_ = tracker.RecordFailure(ctx, "alice")
	mr.FastForward(45 * time.Second)
	_ = tracker.RecordFailure(ctx, "alice")

	// The second failure re-anchored the window, so 45 more seconds do
	// not release the lock.
	mr.FastForward(45 * time.Second)
	if locked, _, _ := tracker.IsLocked(ctx, "alice"); !locked {
		t.Fatal("expected refreshed window to still be active")
	}

	mr.FastForward(16 * time.Second)
	if locked, _, _ := tracker.IsLocked(ctx, "alice"); locked {
		t.Fatal("expected refreshed window to have elapsed")
	}
}

func TestRedisUnavailableBackend(t *testing.T) {
	tracker, mr := newRedisTracker(t, 3, time.Minute)
	ctx := context.Background()

	mr.Close()

	if err := tracker.RecordFailure(ctx, "alice"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, _, err := tracker.IsLocked(ctx, "alice"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
