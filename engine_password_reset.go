package gatehouse

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/gatehouse-auth/gatehouse/internal"
	"github.com/gatehouse-auth/gatehouse/store"
)

// InitiateReset describes the initiatereset operation and its observable behavior.
//
// InitiateReset may return an error when input validation, dependency calls, or security checks fail.
// InitiateReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The returned plaintext secret is for out-of-band delivery and is
// never persisted. An unknown email returns ("", nil): the caller must
// not be able to distinguish it from the known-email path.
func (e *Engine) InitiateReset(ctx context.Context, email string) (string, error) {
	if e == nil || e.passwordHash == nil || e.store == nil {
		return "", ErrEngineNotReady
	}

	// Both outcomes pay the same randomized delay so response timing
	// does not reveal whether the email exists.
	if err := e.sleepEnumerationDelay(ctx); err != nil {
		return "", err
	}

	email = normalizeEmail(email)

	user, err := e.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.metricInc(MetricPasswordResetRequest)
			e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", "", nil, func() map[string]string {
				return map[string]string{
					"known_identifier": "false",
				}
			})
			return "", nil
		}
		return "", storeFailure(err)
	}

	// Only the latest request stays honorable.
	if err := e.store.RevokeUserResetTokens(ctx, user.ID); err != nil {
		return "", storeFailure(err)
	}

	secret, err := internal.NewResetSecret()
	if err != nil {
		return "", err
	}

	secretHash, err := e.passwordHash.Hash(secret)
	if err != nil {
		return "", err
	}

	record := &store.ResetTokenRecord{
		ID:         uuid.NewString(),
		SecretHash: secretHash,
		UserID:     user.ID,
		ExpiresAt:  time.Now().Add(e.config.Reset.ResetTTL),
	}
	if err := e.store.CreateResetToken(ctx, record); err != nil {
		return "", storeFailure(err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, "", nil, nil)

	return secret, nil
}

// CompleteReset describes the completereset operation and its observable behavior.
//
// CompleteReset may return an error when input validation, dependency calls, or security checks fail.
// CompleteReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CompleteReset(ctx context.Context, presentedSecret, newPassword string) error {
	if e == nil || e.passwordHash == nil || e.store == nil {
		return ErrEngineNotReady
	}

	if presentedSecret == "" {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrResetTokenInvalid, nil)
		return ErrResetTokenInvalid
	}
	if len(newPassword) < 10 {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrPasswordPolicy, nil)
		return ErrPasswordPolicy
	}

	candidates, err := e.store.LiveResetTokens(ctx)
	if err != nil {
		return storeFailure(err)
	}

	// The stored secret is hashed, so it cannot serve as an index;
	// candidates are scanned with a constant-time compare each.
	var matched *store.ResetTokenRecord
	for i := range candidates {
		ok, err := e.passwordHash.Verify(presentedSecret, candidates[i].SecretHash)
		if err != nil {
			continue
		}
		if ok {
			matched = &candidates[i]
			break
		}
	}
	if matched == nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrResetTokenInvalid, nil)
		return ErrResetTokenInvalid
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := e.store.UpdateUserPassword(ctx, matched.UserID, newHash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeFailure(err)
	}

	// A completed reset invalidates every session and every outstanding
	// reset record for the user.
	if err := e.store.RevokeUserRefreshTokens(ctx, matched.UserID); err != nil {
		return storeFailure(err)
	}
	if err := e.store.RevokeUserResetTokens(ctx, matched.UserID); err != nil {
		return storeFailure(err)
	}

	if user, err := e.store.FindUserByID(ctx, matched.UserID); err == nil {
		_ = e.tracker.RecordSuccess(ctx, user.Email)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, matched.UserID, "", nil, nil)

	return nil
}

func (e *Engine) sleepEnumerationDelay(ctx context.Context) error {
	minDelay := e.config.Reset.MinDelay
	maxDelay := e.config.Reset.MaxDelay
	if maxDelay <= 0 {
		return nil
	}

	span := int64(maxDelay-minDelay) + 1
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return err
	}

	timer := time.NewTimer(minDelay + time.Duration(n.Int64()))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
