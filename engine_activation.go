package goGuard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goGuard/account"
	"github.com/MrEthical07/goGuard/internal/errs"
	"github.com/MrEthical07/goGuard/splittoken"
)

// ErrAlreadyActive is returned by RequestActivation for active accounts.
var ErrAlreadyActive = errors.New("account already active")

// RequestActivation issues an activation key for a pending account and
// supersedes any earlier key. The key is a selector:token string; the
// caller URL-encodes it into the link it delivers.
func (e *Engine) RequestActivation(ctx context.Context, userID int64) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	usr, err := e.users.ByID(ctx, userID)
	if err != nil {
		return "", mapAccountErr(err)
	}
	if !usr.State.Pending() {
		return "", ErrAlreadyActive
	}

	issued, err := e.tokens.Issue(ctx, usr.ID, splittoken.Activation)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricActivationRequested)
	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventActivationRequested, true, usr.ID, nil, nil, func() map[string]string {
		return map[string]string{"state": usr.State.String()}
	})
	return issued.Credential, nil
}

// ActivateUser verifies key, marks its account active and drops every
// activation key of the account. Unknown, expired and altered keys fail
// with ErrActivationInvalid; a malformed key also matches
// ValidationError.
func (e *Engine) ActivateUser(ctx context.Context, key string) (int64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	owner, err := e.verifyActivation(ctx, key)
	if err != nil {
		return 0, err
	}

	if err := e.users.SetState(ctx, owner, account.StateActive); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			e.activationFailed(ctx, owner, err)
			return 0, ErrActivationInvalid
		}
		return 0, err
	}
	if err := e.tokens.Revoke(ctx, owner, splittoken.Activation); err != nil {
		return 0, err
	}

	e.metricInc(MetricActivationSuccess)
	e.metricInc(MetricTokenRevoked)
	e.logger.Info("activation_success", slog.Int64("user_id", owner))
	e.emitAudit(ctx, auditEventActivationSuccess, true, owner, nil, nil, nil)
	return owner, nil
}

// DenyActivation deletes the account behind key together with its
// credentials and sessions. It reports false for keys that do not verify.
func (e *Engine) DenyActivation(ctx context.Context, key string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}

	owner, err := e.verifyActivation(ctx, key)
	if err != nil {
		if errors.Is(err, ErrActivationInvalid) && !errs.IsValidation(err) {
			return false, nil
		}
		return false, err
	}

	if err := e.deleteAccount(ctx, owner); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}

	e.metricInc(MetricActivationDenied)
	e.logger.Info("activation_denied", slog.Int64("user_id", owner))
	e.emitAudit(ctx, auditEventActivationDenied, true, owner, nil, nil, nil)
	return true, nil
}

func (e *Engine) verifyActivation(ctx context.Context, key string) (int64, error) {
	v, err := e.tokens.Verify(ctx, splittoken.Activation, key)
	if err == nil {
		return v.OwnerID, nil
	}
	if !isCredentialFailure(err) {
		return 0, err
	}
	e.activationFailed(ctx, 0, err)
	if errs.IsValidation(err) {
		return 0, fmt.Errorf("%w: %w", ErrActivationInvalid, err)
	}
	return 0, ErrActivationInvalid
}

func (e *Engine) activationFailed(ctx context.Context, userID int64, cause error) {
	e.metricInc(MetricActivationFailure)
	e.logger.Info("activation_failed", slog.String("error", cause.Error()))
	e.emitAudit(ctx, auditEventActivationFailure, false, userID, nil, ErrActivationInvalid, nil)
}
