package goGuard

import (
	"context"
	"errors"

	"github.com/MrEthical07/goGuard/account"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/splittoken"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginBanned         = "login_banned"
	auditEventLogout              = "logout"
	auditEventAutologinSuccess    = "autologin_success"
	auditEventAutologinFailure    = "autologin_failure"
	auditEventBanActivated        = "ban_activated"
	auditEventActivationRequested = "activation_requested"
	auditEventActivationSuccess   = "activation_success"
	auditEventActivationFailure   = "activation_failure"
	auditEventActivationDenied    = "activation_denied"
	auditEventPasswordChange      = "password_change"
	auditEventPasswordRehash      = "password_rehash"
	auditEventAccountCreated      = "account_created"
	auditEventAccountDeleted      = "account_deleted"
	auditEventAccountStateChange  = "account_state_change"
)

// AuditErrorCode is the stable error label written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrBanned             AuditErrorCode = "banned"
	auditErrPending            AuditErrorCode = "account_pending"
	auditErrAutologin          AuditErrorCode = "autologin_failed"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrValidation         AuditErrorCode = "validation"
	auditErrStorage            AuditErrorCode = "storage"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID int64,
	req *Request,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := audit.NewEvent(eventType, e.now())
	event.UserID = userID
	event.Success = success
	if req != nil {
		event.IP = req.Client.IP
		if req.Session != nil {
			event.SessionID = req.Session.ID
		}
	}
	if metadataBuilder != nil {
		event.Metadata = metadataBuilder()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrBanned):
		return auditErrBanned
	case errors.Is(err, ErrAccountPending):
		return auditErrPending
	case errors.Is(err, ErrAutologinFailed):
		return auditErrAutologin
	case errors.Is(err, ErrActivationInvalid),
		errors.Is(err, splittoken.ErrNotFound),
		errors.Is(err, splittoken.ErrExpired),
		errors.Is(err, splittoken.ErrMismatch):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound), errors.Is(err, account.ErrNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountExists), errors.Is(err, account.ErrDuplicate):
		return auditErrDuplicate
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case IsValidation(err):
		return auditErrValidation
	case IsStorage(err):
		return auditErrStorage
	default:
		return auditErrInternal
	}
}
