package gormstore

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-auth/gatehouse/store"
)

var dbSeq int64

// openTestStore gives each test its own in-memory SQLite database.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:gormstore_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	s, err := Open(dsn)
	require.NoError(t, err)
	return s
}

func seedTestUser(t *testing.T, s *Store, id, email string) {
	t.Helper()
	require.NoError(t, s.CreateUser(context.Background(), &store.User{
		ID:           id,
		Email:        email,
		DisplayName:  "Test User",
		Role:         "member",
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA==$aGFzaA==",
	}))
}

func seedRefreshToken(t *testing.T, s *Store, id, tokenValue, userID string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, s.CreateRefreshToken(context.Background(), &store.RefreshTokenRecord{
		ID:         id,
		TokenValue: tokenValue,
		UserID:     userID,
		ExpiresAt:  expiresAt,
	}))
}

func TestUserLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedTestUser(t, s, "u1", "alice@example.com")

	byEmail, err := s.FindUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)
	assert.Equal(t, "alice@example.com", byEmail.Email)
	assert.Equal(t, "member", byEmail.Role)

	byID, err := s.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, byEmail.Email, byID.Email)

	_, err = s.FindUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.FindUserByID(ctx, "no-such-id")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := openTestStore(t)

	seedTestUser(t, s, "u1", "alice@example.com")

	err := s.CreateUser(context.Background(), &store.User{
		ID:           "u2",
		Email:        "alice@example.com",
		PasswordHash: "x",
	})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)
}

func TestUpdateUserPassword(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedTestUser(t, s, "u1", "alice@example.com")

	require.NoError(t, s.UpdateUserPassword(ctx, "u1", "new-hash"))

	user, err := s.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", user.PasswordHash)

	assert.ErrorIs(t, s.UpdateUserPassword(ctx, "no-such-id", "hash"), store.ErrNotFound)
}

func TestRefreshTokenLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedTestUser(t, s, "u1", "alice@example.com")
	expiry := time.Now().Add(time.Hour)
	seedRefreshToken(t, s, "rt1", "token-value-1", "u1", expiry)

	record, err := s.FindRefreshToken(ctx, "token-value-1")
	require.NoError(t, err)
	assert.Equal(t, "rt1", record.ID)
	assert.Equal(t, "u1", record.UserID)
	assert.False(t, record.Revoked)
	assert.WithinDuration(t, expiry, record.ExpiresAt, time.Second)

	_, err = s.FindRefreshToken(ctx, "no-such-token")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRevokeRefreshTokenIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedTestUser(t, s, "u1", "alice@example.com")
	seedRefreshToken(t, s, "rt1", "token-value-1", "u1", time.Now().Add(time.Hour))

	// Live, repeated, and unknown revocations all succeed.
	require.NoError(t, s.RevokeRefreshToken(ctx, "token-value-1"))
	require.NoError(t, s.RevokeRefreshToken(ctx, "token-value-1"))
	require.NoError(t, s.RevokeRefreshToken(ctx, "no-such-token"))

	record, err := s.FindRefreshToken(ctx, "token-value-1")
	require.NoError(t, err)
	assert.True(t, record.Revoked)
}

func TestLatestActiveRefreshToken(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedTestUser(t, s, "u1", "alice@example.com")

	_, err := s.LatestActiveRefreshToken(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	future := time.Now().Add(time.Hour)
	seedRefreshToken(t, s, "rt1", "token-value-1", "u1", future)
	time.Sleep(10 * time.Millisecond)
	seedRefreshToken(t, s, "rt2", "token-value-2", "u1", future)

	latest, err := s.LatestActiveRefreshToken(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "rt2", latest.ID)

	// Revoked and expired rows never count as latest.
	require.NoError(t, s.RevokeRefreshToken(ctx, "token-value-2"))
	latest, err = s.LatestActiveRefreshToken(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "rt1", latest.ID)

	time.Sleep(10 * time.Millisecond)
	seedRefreshToken(t, s, "rt3", "token-value-3", "u1", time.Now().Add(-time.Minute))
	latest, err = s.LatestActiveRefreshToken(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "rt1", latest.ID)
}

func TestRevokeUserRefreshTokens(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedTestUser(t, s, "u1", "alice@example.com")
	seedTestUser(t, s, "u2", "bob@example.com")

	future := time.Now().Add(time.Hour)
	seedRefreshToken(t, s, "rt1", "token-value-1", "u1", future)
	seedRefreshToken(t, s, "rt2", "token-value-2", "u1", future)
	seedRefreshToken(t, s, "rt3", "token-value-3", "u2", future)

	require.NoError(t, s.RevokeUserRefreshTokens(ctx, "u1"))

	for _, tokenValue := range []string{"token-value-1", "token-value-2"} {
		record, err := s.FindRefreshToken(ctx, tokenValue)
		require.NoError(t, err)
		assert.True(t, record.Revoked, tokenValue)
	}

	record, err := s.FindRefreshToken(ctx, "token-value-3")
	require.NoError(t, err)
	assert.False(t, record.Revoked, "other users' tokens must be untouched")
}

func TestRotateRefreshToken(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedTestUser(t, s, "u1", "alice@example.com")
	future := time.Now().Add(time.Hour)
	seedRefreshToken(t, s, "rt1", "token-value-1", "u1", future)

	next := &store.RefreshTokenRecord{
		ID:         "rt2",
		TokenValue: "token-value-2",
		UserID:     "u1",
		ExpiresAt:  future,
	}
	require.NoError(t, s.RotateRefreshToken(ctx, "token-value-1", next))

	old, err := s.FindRefreshToken(ctx, "token-value-1")
	require.NoError(t, err)
	assert.True(t, old.Revoked)

	fresh, err := s.FindRefreshToken(ctx, "token-value-2")
	require.NoError(t, err)
	assert.False(t, fresh.Revoked)

	// The old token is spent: a second rotation loses the compare-and-set.
	err = s.RotateRefreshToken(ctx, "token-value-1", &store.RefreshTokenRecord{
		ID:         "rt3",
		TokenValue: "token-value-3",
		UserID:     "u1",
		ExpiresAt:  future,
	})
	assert.ErrorIs(t, err, store.ErrRotationConflict)

	// The loser's replacement row must not exist.
	_, err = s.FindRefreshToken(ctx, "token-value-3")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.RotateRefreshToken(ctx, "no-such-token", &store.RefreshTokenRecord{
		ID:         "rt4",
		TokenValue: "token-value-4",
		UserID:     "u1",
		ExpiresAt:  future,
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResetTokenLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedTestUser(t, s, "u1", "alice@example.com")
	seedTestUser(t, s, "u2", "bob@example.com")

	future := time.Now().Add(time.Hour)
	require.NoError(t, s.CreateResetToken(ctx, &store.ResetTokenRecord{
		ID:         "pr1",
		SecretHash: "hash-1",
		UserID:     "u1",
		ExpiresAt:  future,
	}))
	require.NoError(t, s.CreateResetToken(ctx, &store.ResetTokenRecord{
		ID:         "pr2",
		SecretHash: "hash-2",
		UserID:     "u2",
		ExpiresAt:  future,
	}))
	require.NoError(t, s.CreateResetToken(ctx, &store.ResetTokenRecord{
		ID:         "pr3",
		SecretHash: "hash-3",
		UserID:     "u1",
		ExpiresAt:  time.Now().Add(-time.Minute),
	}))

	live, err := s.LiveResetTokens(ctx)
	require.NoError(t, err)
	require.Len(t, live, 2, "expired rows must be filtered out")

	require.NoError(t, s.RevokeUserResetTokens(ctx, "u1"))

	live, err = s.LiveResetTokens(ctx)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "pr2", live[0].ID)
}
