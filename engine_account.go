package goGuard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goGuard/account"
	"github.com/MrEthical07/goGuard/password"
	"github.com/MrEthical07/goGuard/splittoken"
)

// generatedPasswordLength is used when CreateUser gets no password. It
// must stay at or above password.MinPasswordBytes.
const generatedPasswordLength = 12

// CreateUser inserts an account in the state chosen by
// Config.Account.Activation. User row and password hash are written in one
// transaction. With mail activation an activation key is issued and
// returned; with an empty password one is generated and returned.
func (e *Engine) CreateUser(ctx context.Context, in NewUserInput) (CreatedUser, error) {
	if err := e.ready(); err != nil {
		return CreatedUser{}, err
	}

	var out CreatedUser
	plain := in.Password
	if plain == "" {
		generated, err := password.Generate(generatedPasswordLength, "lud")
		if err != nil {
			return CreatedUser{}, err
		}
		plain = generated
		out.GeneratedPassword = generated
	}

	state := e.config.Account.initialState()
	id, err := e.users.Create(ctx, account.NewUser{
		Username:    in.Username,
		DisplayName: in.DisplayName,
		Password:    plain,
		State:       state,
	})
	if err != nil {
		err = mapAccountErr(err)
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricAccountCreationDuplicate)
		}
		e.emitAudit(ctx, auditEventAccountCreated, false, 0, nil, err, nil)
		return CreatedUser{}, err
	}
	out.ID = id

	if state == account.StatePendingMail {
		issued, err := e.tokens.Issue(ctx, id, splittoken.Activation)
		if err != nil {
			return out, err
		}
		e.metricInc(MetricTokenIssued)
		out.ActivationKey = issued.Credential
	}

	e.metricInc(MetricAccountCreated)
	e.logger.Info("account_created", slog.Int64("user_id", id), slog.String("state", state.String()))
	e.emitAudit(ctx, auditEventAccountCreated, true, id, nil, nil, func() map[string]string {
		return map[string]string{"state": state.String()}
	})
	return out, nil
}

// ChangePassword replaces the password of userID after checking the old
// one. Every autologin credential and every session of the account is
// dropped, so other devices must sign in again.
func (e *Engine) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	usr, err := e.users.ByID(ctx, userID)
	if err != nil {
		return mapAccountErr(err)
	}

	ok, err := e.hasher.Verify(oldPassword, usr.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEventPasswordChange, false, userID, nil, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if err := e.users.ChangePassword(ctx, userID, newPassword); err != nil {
		err = mapAccountErr(err)
		e.emitAudit(ctx, auditEventPasswordChange, false, userID, nil, err, nil)
		return err
	}
	if err := e.tokens.Revoke(ctx, userID, splittoken.Autologin); err != nil {
		return err
	}
	if err := e.sessions.DeleteUser(ctx, userID); err != nil {
		e.logger.Warn("session_invalidation_failed", slog.Int64("user_id", userID), slog.String("error", err.Error()))
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, userID, nil, nil, nil)
	return nil
}

// SetUserState changes the activation state of userID. Leaving the active
// state drops the account's sessions and autologin credentials.
func (e *Engine) SetUserState(ctx context.Context, userID int64, state account.State) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.users.SetState(ctx, userID, state); err != nil {
		return mapAccountErr(err)
	}
	if state != account.StateActive {
		if err := e.tokens.Revoke(ctx, userID, splittoken.Autologin); err != nil {
			return err
		}
		if err := e.sessions.DeleteUser(ctx, userID); err != nil {
			e.logger.Warn("session_invalidation_failed", slog.Int64("user_id", userID), slog.String("error", err.Error()))
		}
	}
	e.emitAudit(ctx, auditEventAccountStateChange, true, userID, nil, nil, func() map[string]string {
		return map[string]string{"state": state.String()}
	})
	return nil
}

// DeleteUser removes the account, its memberships, credentials and
// sessions.
func (e *Engine) DeleteUser(ctx context.Context, userID int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.deleteAccount(ctx, userID)
}

func (e *Engine) deleteAccount(ctx context.Context, userID int64) error {
	if err := e.users.Delete(ctx, userID); err != nil {
		return mapAccountErr(err)
	}
	if err := e.sessions.DeleteUser(ctx, userID); err != nil {
		e.logger.Warn("session_invalidation_failed", slog.Int64("user_id", userID), slog.String("error", err.Error()))
	}
	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, userID, nil, nil, nil)
	return nil
}

// mapAccountErr translates repository sentinels to the engine's public
// errors while keeping the original in the chain.
func mapAccountErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, account.ErrNotFound), errors.Is(err, account.ErrGuest):
		return fmt.Errorf("%w: %w", ErrUserNotFound, err)
	case errors.Is(err, account.ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrAccountExists, err)
	case errors.Is(err, password.ErrPolicy):
		return fmt.Errorf("%w: %w", ErrPasswordPolicy, err)
	default:
		return err
	}
}
