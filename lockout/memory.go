package lockout

import (
	"context"
	"sync"
	"time"
)

type attempt struct {
	count         int
	lastAttemptAt time.Time
}

// Memory is the in-process tracker: a mutex-guarded map keyed by
// identifier. State is lost on restart, and in a horizontally scaled
// deployment lockout is best-effort per instance; use [Redis] when
// fleet-wide consistency matters.
type Memory struct {
	mu          sync.Mutex
	attempts    map[string]attempt
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// NewMemory creates a process-local tracker locking after maxAttempts
// consecutive failures for window measured from the last failure.
func NewMemory(maxAttempts int, window time.Duration) *Memory {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}

	return &Memory{
		attempts:    make(map[string]attempt),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// RecordFailure counts one failure. The window anchor moves to now, so
// a failure during an active lockout slides the whole window forward.
func (m *Memory) RecordFailure(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry := m.attempts[identifier]
	if entry.count > 0 && now.Sub(entry.lastAttemptAt) >= m.window {
		// Stale counter: the window elapsed, start over.
		entry = attempt{}
	}
	entry.count++
	entry.lastAttemptAt = now
	m.attempts[identifier] = entry

	return nil
}

// RecordSuccess drops the identifier's counter entirely.
func (m *Memory) RecordSuccess(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.attempts, identifier)
	return nil
}

// IsLocked reports an active lockout. An elapsed window removes the
// entry rather than resetting it to zero: the tracker fails open.
func (m *Memory) IsLocked(_ context.Context, identifier string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.attempts[identifier]
	if !ok {
		return false, 0, nil
	}

	since := m.now().Sub(entry.lastAttemptAt)
	if since >= m.window {
		delete(m.attempts, identifier)
		return false, 0, nil
	}

	if entry.count >= m.maxAttempts {
		return true, m.window - since, nil
	}

	return false, 0, nil
}
