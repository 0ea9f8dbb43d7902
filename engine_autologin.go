package goGuard

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/goGuard/account"
	"github.com/MrEthical07/goGuard/internal/errs"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/splittoken"
)

// AutoLogin signs the client in from its autologin cookie.
//
// A logged-in session returns its user id. After a failed attempt in the
// same session the cookie is dropped without another lookup. A valid
// cookie is rotated: the old credential is deleted, a fresh one is set and
// the session id changes. Any rejected cookie is cleared, the session is
// reset to guest and ErrAutologinFailed is returned.
func (e *Engine) AutoLogin(ctx context.Context, req *Request) (int64, error) {
	if err := e.readyRequest(req); err != nil {
		return 0, err
	}
	st := req.Session
	if !st.IsGuest() {
		return st.UserID, nil
	}

	if st.TakeAutologinFailed() {
		e.clearAutologinCookie(req)
		return 0, ErrAutologinFailed
	}

	credential, ok := req.Cookies.Get(e.config.Cookie.AutologinName)
	if !ok || credential == "" {
		return 0, ErrNoAutologinCookie
	}

	v, err := e.tokens.Verify(ctx, splittoken.Autologin, credential)
	if err != nil {
		if !isCredentialFailure(err) {
			return 0, err
		}
		return 0, e.rejectAutologin(ctx, req, 0, err)
	}

	// The old row is gone once Verify returns; the client must receive the
	// replacement even if loading the account fails below.
	e.metricInc(MetricTokenRotated)
	req.Cookies.Set(Cookie{
		Name:    e.config.Cookie.AutologinName,
		Value:   v.Rotated.Credential,
		Expires: v.Rotated.ExpiresAt,
	})

	usr, err := e.users.ByID(ctx, v.OwnerID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return 0, e.rejectAutologin(ctx, req, v.OwnerID, err)
		}
		return 0, err
	}
	if usr.State.Pending() {
		// Pending accounts may not hold autologin credentials.
		if err := e.tokens.Revoke(ctx, usr.ID, splittoken.Autologin); err != nil {
			return 0, err
		}
		return 0, e.rejectAutologin(ctx, req, usr.ID, ErrAccountPending)
	}

	st.Bind(usr.ID, true)
	if err := e.rotateSession(ctx, req); err != nil {
		return 0, err
	}

	e.metricInc(MetricAutologinSuccess)
	e.logger.Info("autologin_success", slog.Int64("user_id", usr.ID), slog.String("ip", req.Client.IP))
	e.emitAudit(ctx, auditEventAutologinSuccess, true, usr.ID, req, nil, nil)
	return usr.ID, nil
}

func (e *Engine) rejectAutologin(ctx context.Context, req *Request, userID int64, cause error) error {
	e.clearAutologinCookie(req)
	req.Session.Set(session.FlagAutologinFailed)
	req.Session.ResetToGuest()

	reason := "invalid"
	switch {
	case errs.IsValidation(cause):
		reason = "malformed"
	case errors.Is(cause, splittoken.ErrExpired):
		reason = "expired"
	case errors.Is(cause, splittoken.ErrMismatch):
		reason = "mismatch"
	case errors.Is(cause, splittoken.ErrNotFound):
		reason = "unknown"
	}

	e.metricInc(MetricAutologinFailure)
	e.logger.Info("autologin_failed",
		slog.String("reason", reason),
		slog.String("ip", req.Client.IP),
	)
	e.emitAudit(ctx, auditEventAutologinFailure, false, userID, req, ErrAutologinFailed, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ErrAutologinFailed
}
