// Package lockout tracks consecutive login failures per identifier and
// enforces a sliding lockout window. The process-local [Memory] tracker
// is the default; [Redis] provides fleet-wide counters behind the same
// interface so deployments can swap implementations without touching
// the session engine.
package lockout

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps backend failures from shared-store trackers.
var ErrUnavailable = errors.New("lockout backend unavailable")

// Tracker is the login-attempt counter contract consumed by the
// session engine. Implementations must make increment/read/clear on a
// given identifier mutually exclusive.
type Tracker interface {
	// RecordFailure counts one failed attempt and advances the window
	// anchor, so failures during an active lockout extend it.
	RecordFailure(ctx context.Context, identifier string) error
	// RecordSuccess clears the identifier's counter entirely.
	RecordSuccess(ctx context.Context, identifier string) error
	// IsLocked reports whether the identifier is locked out and, when
	// it is, how long until the window expires.
	IsLocked(ctx context.Context, identifier string) (bool, time.Duration, error)
}
