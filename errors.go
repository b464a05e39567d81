package gatehouse

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is an exported constant or variable used by the session engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is an exported constant or variable used by the session engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrTokenExpired is an exported constant or variable used by the session engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is an exported constant or variable used by the session engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenSignature is an exported constant or variable used by the session engine.
	ErrTokenSignature = errors.New("invalid token signature")
	// ErrSecurityBreach is an exported constant or variable used by the session engine.
	ErrSecurityBreach = errors.New("refresh token reuse detected")
	// ErrResetTokenInvalid is an exported constant or variable used by the session engine.
	ErrResetTokenInvalid = errors.New("invalid reset token")
	// ErrPasswordPolicy is an exported constant or variable used by the session engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is an exported constant or variable used by the session engine.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrUserNotFound is an exported constant or variable used by the session engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrStoreUnavailable is an exported constant or variable used by the session engine.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the session engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// AccountLockedError reports an active lockout window. It unwraps to
// [ErrAccountLocked] so callers can keep matching with errors.Is while
// still reading the remaining cooldown for Retry-After mapping.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *AccountLockedError) Unwrap() error {
	return ErrAccountLocked
}
