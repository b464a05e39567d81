package gatehouse

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gatehouse-auth/gatehouse/lockout"
	"github.com/gatehouse-auth/gatehouse/password"
	"github.com/gatehouse-auth/gatehouse/store"
	"github.com/gatehouse-auth/gatehouse/token"
)

// Engine defines a public type used by gatehouse APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	store        store.Store
	tracker      lockout.Tracker
	audit        *auditDispatcher
	metrics      *Metrics
	passwordHash *password.Hasher
	codec        *token.Codec
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func storeFailure(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, email, plainPassword string) (*LoginResult, error) {
	if e == nil || e.passwordHash == nil || e.codec == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)

	// Lockout check happens before any store access.
	locked, retryAfter, err := e.tracker.IsLocked(ctx, email)
	if err != nil {
		// Tracker backends fail open.
		locked = false
	}
	if locked {
		lockErr := &AccountLockedError{RetryAfter: retryAfter}
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, "", "", lockErr, func() map[string]string {
			return map[string]string{
				"identifier": email,
			}
		})
		return nil, lockErr
	}

	user, err := e.store.FindUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, storeFailure(err)
		}
		_ = e.tracker.RecordFailure(ctx, email)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "user_not_found",
			}
		})
		return nil, ErrInvalidCredentials
	}

	ok, err := e.passwordHash.Verify(plainPassword, user.PasswordHash)
	if err != nil || !ok {
		_ = e.tracker.RecordFailure(ctx, email)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "password_mismatch",
			}
		})
		return nil, ErrInvalidCredentials
	}

	_ = e.tracker.RecordSuccess(ctx, email)

	if e.config.Password.UpgradeOnLogin {
		e.upgradePasswordHash(ctx, user, plainPassword)
	}

	// Single active refresh chain per login: a fresh login retires the
	// previous chain's head. Already-issued access tokens expire on
	// their own.
	prev, err := e.store.LatestActiveRefreshToken(ctx, user.ID)
	switch {
	case err == nil:
		if err := e.store.RevokeRefreshToken(ctx, prev.TokenValue); err != nil {
			return nil, storeFailure(err)
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, storeFailure(err)
	}

	tokenID := uuid.NewString()
	payload := token.Payload{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		DisplayName: user.DisplayName,
		TokenID:     tokenID,
	}

	accessToken, err := e.codec.IssueAccess(payload)
	if err != nil {
		return nil, err
	}
	refreshToken, err := e.codec.IssueRefresh(payload)
	if err != nil {
		return nil, err
	}

	record := &store.RefreshTokenRecord{
		ID:         uuid.NewString(),
		TokenValue: refreshToken,
		UserID:     user.ID,
		ExpiresAt:  time.Now().Add(e.config.Token.RefreshTTL),
	}
	if err := e.store.CreateRefreshToken(ctx, record); err != nil {
		return nil, storeFailure(err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, tokenID, nil, nil)

	return &LoginResult{
		User: SafeUser{
			ID:          user.ID,
			Email:       user.Email,
			Role:        user.Role,
			DisplayName: user.DisplayName,
		},
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (e *Engine) upgradePasswordHash(ctx context.Context, user *store.User, plainPassword string) {
	needs, err := e.passwordHash.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}

	// Best effort; login already succeeded.
	rehash, err := e.passwordHash.Hash(plainPassword)
	if err != nil {
		return
	}
	_ = e.store.UpdateUserPassword(ctx, user.ID, rehash)
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, presentedToken string) (*TokenPair, error) {
	if e == nil || e.codec == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	payload, err := e.codec.VerifyRefresh(presentedToken)
	if err != nil {
		mapped := mapCodecError(err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", mapped, nil)
		return nil, mapped
	}

	record, err := e.store.FindRefreshToken(ctx, presentedToken)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, storeFailure(err)
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, payload.UserID, payload.TokenID, ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}

	if record.Revoked {
		return nil, e.handleRefreshReuse(ctx, record.UserID, payload.TokenID)
	}

	if time.Now().After(record.ExpiresAt) {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, record.UserID, payload.TokenID, ErrTokenExpired, nil)
		return nil, ErrTokenExpired
	}

	nextTokenID := uuid.NewString()
	nextPayload := token.Payload{
		UserID:      payload.UserID,
		Email:       payload.Email,
		Role:        payload.Role,
		DisplayName: payload.DisplayName,
		TokenID:     nextTokenID,
	}

	accessToken, err := e.codec.IssueAccess(nextPayload)
	if err != nil {
		return nil, err
	}
	refreshToken, err := e.codec.IssueRefresh(nextPayload)
	if err != nil {
		return nil, err
	}

	next := &store.RefreshTokenRecord{
		ID:         uuid.NewString(),
		TokenValue: refreshToken,
		UserID:     record.UserID,
		ExpiresAt:  time.Now().Add(e.config.Token.RefreshTTL),
	}

	// The store revokes the presented record and inserts the next one
	// atomically; losing the revoked-flag race is indistinguishable
	// from replay and is treated the same way.
	if err := e.store.RotateRefreshToken(ctx, presentedToken, next); err != nil {
		switch {
		case errors.Is(err, store.ErrRotationConflict):
			return nil, e.handleRefreshReuse(ctx, record.UserID, payload.TokenID)
		case errors.Is(err, store.ErrNotFound):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, record.UserID, payload.TokenID, ErrTokenInvalid, nil)
			return nil, ErrTokenInvalid
		default:
			// Fail closed: never hand out tokens without confirmed
			// persistence of the rotation.
			return nil, storeFailure(err)
		}
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, record.UserID, nextTokenID, nil, nil)

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (e *Engine) handleRefreshReuse(ctx context.Context, userID, tokenID string) error {
	if err := e.store.RevokeUserRefreshTokens(ctx, userID); err != nil {
		log.Printf("gatehouse: failed to revoke sessions after refresh reuse for user %s: %v", userID, err)
	}
	log.Printf("gatehouse: refresh token reuse detected for user %s; all sessions revoked", userID)

	e.metricInc(MetricRefreshReuseDetected)
	e.emitAudit(ctx, auditEventRefreshReuseDetected, false, userID, tokenID, ErrSecurityBreach, nil)

	return ErrSecurityBreach
}

// VerifyAccess describes the verifyaccess operation and its observable behavior.
//
// VerifyAccess may return an error when input validation, dependency calls, or security checks fail.
// VerifyAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (*TokenPayload, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	payload, err := e.codec.VerifyAccess(accessToken)

	if !start.IsZero() {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}

	if err != nil {
		e.metricInc(MetricVerifyFailure)
		return nil, mapCodecError(err)
	}

	e.metricInc(MetricVerifySuccess)

	return &TokenPayload{
		UserID:      payload.UserID,
		Email:       payload.Email,
		Role:        payload.Role,
		DisplayName: payload.DisplayName,
		TokenID:     payload.TokenID,
	}, nil
}

// Revoke describes the revoke operation and its observable behavior.
//
// Revoke never fails observably: revoking an already-revoked or unknown
// token must look exactly like revoking a live one, so session state
// cannot be probed through error codes.
func (e *Engine) Revoke(ctx context.Context, selector RevokeSelector) {
	if e == nil || e.store == nil {
		return
	}

	switch {
	case selector.RefreshToken != "":
		if err := e.store.RevokeRefreshToken(ctx, selector.RefreshToken); err != nil {
			log.Printf("gatehouse: token revocation failed: %v", err)
		}
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogoutSession, true, selector.UserID, "", nil, nil)
	case selector.UserID != "":
		if err := e.store.RevokeUserRefreshTokens(ctx, selector.UserID); err != nil {
			log.Printf("gatehouse: session revocation failed for user %s: %v", selector.UserID, err)
		}
		e.metricInc(MetricLogoutAll)
		e.emitAudit(ctx, auditEventLogoutAll, true, selector.UserID, "", nil, nil)
	}
}

func mapCodecError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrSignature):
		return ErrTokenSignature
	default:
		return ErrTokenInvalid
	}
}
