// Package store defines the transactional credential-store contract the
// engine orchestrates against, together with the persisted record
// shapes. Implementations must make [Store.RotateRefreshToken] an
// atomic compare-and-set on the revoked flag: two concurrent rotations
// of the same token must yield exactly one winner.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the addressed user or token record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrRotationConflict is returned when the rotation compare-and-set
	// loses: the presented token was already revoked (or rotated away)
	// by the time the update ran.
	ErrRotationConflict = errors.New("refresh token rotation conflict")
	// ErrDuplicateEmail is returned by CreateUser on a unique-email violation.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUnavailable wraps backend failures (connectivity, timeout, constraint machinery).
	ErrUnavailable = errors.New("store unavailable")
)

// User is the credential-bearing account record. The engine never
// deletes users and mutates only PasswordHash.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Role         string
	PasswordHash string
}

// RefreshTokenRecord is one issued refresh token. TokenValue holds the
// signed token verbatim and acts as the lookup key; Revoked is
// monotonic false→true.
type RefreshTokenRecord struct {
	ID         string
	TokenValue string
	UserID     string
	ExpiresAt  time.Time
	Revoked    bool
	CreatedAt  time.Time
}

// ResetTokenRecord is one issued password-reset request. Only the
// slow hash of the secret is persisted; the plaintext never is.
type ResetTokenRecord struct {
	ID         string
	SecretHash string
	UserID     string
	ExpiresAt  time.Time
	Revoked    bool
	CreatedAt  time.Time
}

// Store is the collaborator contract consumed by the engine. Every
// method is an atomic unit; RotateRefreshToken additionally composes
// its check/set/insert sequence into one transaction.
type Store interface {
	CreateUser(ctx context.Context, user *User) error
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, userID string) (*User, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error

	CreateRefreshToken(ctx context.Context, record *RefreshTokenRecord) error
	FindRefreshToken(ctx context.Context, tokenValue string) (*RefreshTokenRecord, error)
	LatestActiveRefreshToken(ctx context.Context, userID string) (*RefreshTokenRecord, error)
	// RevokeRefreshToken is idempotent: revoking an already-revoked or
	// unknown token is not an error.
	RevokeRefreshToken(ctx context.Context, tokenValue string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	// RotateRefreshToken marks oldTokenValue revoked and persists next
	// in a single transaction. The update is conditional on
	// revoked = false; losing that compare-and-set returns
	// [ErrRotationConflict], an unknown token [ErrNotFound].
	RotateRefreshToken(ctx context.Context, oldTokenValue string, next *RefreshTokenRecord) error

	CreateResetToken(ctx context.Context, record *ResetTokenRecord) error
	// LiveResetTokens returns every non-revoked, non-expired reset
	// record store-wide; the presented reset token carries no user
	// identifier in cleartext, so redemption scans.
	LiveResetTokens(ctx context.Context) ([]ResetTokenRecord, error)
	RevokeUserResetTokens(ctx context.Context, userID string) error
}
