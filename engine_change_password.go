package gatehouse

import (
	"context"
	"errors"

	"github.com/gatehouse-auth/gatehouse/store"
)

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if e == nil || e.passwordHash == nil || e.store == nil {
		return ErrEngineNotReady
	}

	user, err := e.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeFailure(err)
	}

	ok, err := e.passwordHash.Verify(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, user.ID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if newPassword == oldPassword {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeReuse, false, user.ID, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}
	if len(newPassword) < 10 {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, user.ID, "", ErrPasswordPolicy, nil)
		return ErrPasswordPolicy
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := e.store.UpdateUserPassword(ctx, user.ID, newHash); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, user.ID, "", ErrStoreUnavailable, nil)
		return storeFailure(err)
	}

	// A changed password forces re-login everywhere.
	if err := e.store.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
		return storeFailure(err)
	}

	_ = e.tracker.RecordSuccess(ctx, user.Email)

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, user.ID, "", nil, nil)

	return nil
}
