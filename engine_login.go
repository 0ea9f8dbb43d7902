package goGuard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/account"
	"github.com/MrEthical07/goGuard/ban"
	"github.com/MrEthical07/goGuard/internal/errs"
	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/splittoken"
)

// CheckBan evaluates the ban policy for client. A fresh activation is
// written to the ban log when the threshold is crossed without a running
// ban.
func (e *Engine) CheckBan(ctx context.Context, client ClientInfo) (ban.Decision, error) {
	if err := e.ready(); err != nil {
		return ban.Allowed, err
	}
	d, err := e.bans.Check(ctx, client.banClient())
	if err != nil {
		return ban.Allowed, err
	}
	if d == ban.Blocked {
		e.metricInc(MetricBanBlocked)
	}
	return d, nil
}

func (e *Engine) onBanActivated(ctx context.Context, ip string, failures int) {
	e.metricInc(MetricBanActivated)
	e.emitAudit(ctx, auditEventBanActivated, true, 0, &Request{Client: ClientInfo{IP: ip}}, nil, func() map[string]string {
		return map[string]string{"failures": fmt.Sprint(failures)}
	})
}

// Login checks username and password and binds the account to
// req.Session. Every credential failure returns ErrInvalidCredentials and
// is written to the ban log. Accounts awaiting activation fail with an
// error matching ErrAccountPending and are not logged as brute force.
//
// On success the session id is rotated. With in.Remember an autologin
// cookie is issued; without it any existing autologin credential of the
// account is revoked.
func (e *Engine) Login(ctx context.Context, req *Request, in LoginInput) (int64, error) {
	if err := e.readyRequest(req); err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricLoginLatency, time.Since(start))
	}()

	if e.bans.Policy().Enabled() {
		d, err := e.CheckBan(ctx, req.Client)
		if err != nil && !errs.IsValidation(err) {
			return 0, err
		}
		if err != nil {
			e.logger.Warn("ban_check_skipped",
				slog.String("ip", req.Client.IP),
				slog.String("error", err.Error()),
			)
		}
		if d == ban.Blocked {
			e.metricInc(MetricLoginBanned)
			e.emitAudit(ctx, auditEventLoginBanned, false, 0, req, ErrBanned, nil)
			return 0, ErrBanned
		}
	}

	username := strings.TrimSpace(in.Username)
	plain := in.Password
	blankPassword := strings.TrimSpace(plain) == ""

	if username == "" || blankPassword {
		return 0, e.rejectLogin(ctx, req, 0, emptyFieldText(username, blankPassword), ban.FailureCode(username == "", blankPassword))
	}

	usr, err := e.users.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) || errs.IsValidation(err) {
			return 0, e.rejectLogin(ctx, req, 0,
				fmt.Sprintf("Login failed because user %q does not exist", username),
				ban.CodeUsernameError)
		}
		return 0, err
	}

	switch usr.State {
	case account.StatePendingMail:
		req.Session.Set(session.FlagActivationByMail)
		return 0, e.pendingLogin(ctx, req, usr.ID, ErrActivationByMailPending)
	case account.StatePendingAdmin:
		req.Session.Set(session.FlagActivationByAdmin)
		return 0, e.pendingLogin(ctx, req, usr.ID, ErrActivationByAdminPending)
	}

	ok, err := e.hasher.Verify(plain, usr.PasswordHash)
	if err != nil {
		// Oversized input and unreadable stored hashes count as a wrong password.
		e.logger.Warn("password_verify_error", slog.Int64("user_id", usr.ID), slog.String("error", err.Error()))
		ok = false
	}
	if !ok {
		return 0, e.rejectLogin(ctx, req, usr.ID,
			fmt.Sprintf("Login for user %q failed because of wrong password", usr.Username),
			ban.CodePasswordError)
	}

	e.upgradePasswordHash(ctx, usr.ID, plain, usr.PasswordHash)

	if in.Remember {
		issued, err := e.tokens.Issue(ctx, usr.ID, splittoken.Autologin)
		if err != nil {
			return 0, err
		}
		e.metricInc(MetricTokenIssued)
		req.Cookies.Set(Cookie{
			Name:    e.config.Cookie.AutologinName,
			Value:   issued.Credential,
			Expires: issued.ExpiresAt,
		})
	} else {
		if err := e.tokens.Revoke(ctx, usr.ID, splittoken.Autologin); err != nil {
			return 0, err
		}
		e.clearAutologinCookie(req)
	}

	req.Session.Bind(usr.ID, in.Remember)
	req.Session.Clear(session.FlagLoginFailed)
	req.Session.Clear(session.FlagAutologinFailed)
	if err := e.rotateSession(ctx, req); err != nil {
		return 0, err
	}

	e.metricInc(MetricLoginSuccess)
	e.logger.Info("login_success",
		slog.Int64("user_id", usr.ID),
		slog.Bool("remember", in.Remember),
		slog.String("ip", req.Client.IP),
	)
	e.emitAudit(ctx, auditEventLoginSuccess, true, usr.ID, req, nil, func() map[string]string {
		return map[string]string{"remember": fmt.Sprint(in.Remember)}
	})
	return usr.ID, nil
}

// rejectLogin records a banable failure, raises the one-shot login_failed
// flag and returns ErrInvalidCredentials, or a storage error when the ban
// log could not be written.
func (e *Engine) rejectLogin(ctx context.Context, req *Request, userID int64, text string, code ban.Code) error {
	if err := e.recordFailure(ctx, req, userID, text, code); err != nil {
		return err
	}
	req.Session.Set(session.FlagLoginFailed)

	e.metricInc(MetricLoginFailure)
	e.logger.Info("login_failed",
		slog.String("ip", req.Client.IP),
		slog.Int("code", int(code)),
		slog.Int64("user_id", userID),
	)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, req, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"code": fmt.Sprint(int(code))}
	})
	return ErrInvalidCredentials
}

func (e *Engine) pendingLogin(ctx context.Context, req *Request, userID int64, err error) error {
	e.metricInc(MetricLoginPending)
	e.logger.Info("login_pending_activation", slog.Int64("user_id", userID))
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, req, err, nil)
	return err
}

func emptyFieldText(username string, blankPassword bool) string {
	switch {
	case username == "" && blankPassword:
		return "Login failed because of empty username and password"
	case username == "":
		return "Login failed because of empty username"
	default:
		return fmt.Sprintf("Login for user %q failed because of empty password", username)
	}
}

// upgradePasswordHash replaces a stored hash made with outdated
// parameters. Failures are logged and never fail the login.
func (e *Engine) upgradePasswordHash(ctx context.Context, userID int64, plain, stored string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(stored)
	if err != nil || !needs {
		return
	}
	next, err := e.hasher.Hash(plain)
	if err == nil {
		err = e.users.UpdatePasswordHash(ctx, userID, next)
	}
	if err != nil {
		e.logger.Warn("password_rehash_failed", slog.Int64("user_id", userID), slog.String("error", err.Error()))
		return
	}
	e.metricInc(MetricPasswordRehash)
	e.emitAudit(ctx, auditEventPasswordRehash, true, userID, nil, nil, nil)
}

// Logout unbinds the account from req.Session. A guest session is a
// no-op. When the session was remembered the autologin credential is
// revoked and its cookie cleared.
func (e *Engine) Logout(ctx context.Context, req *Request) error {
	if err := e.readyRequest(req); err != nil {
		return err
	}
	st := req.Session
	if st.IsGuest() {
		return nil
	}

	userID := st.UserID
	if st.Remember {
		if err := e.tokens.Revoke(ctx, userID, splittoken.Autologin); err != nil {
			return err
		}
		e.metricInc(MetricTokenRevoked)
		e.clearAutologinCookie(req)
	}

	// Delete while the state is still bound so the store drops the id from
	// the user's session index.
	if err := e.sessions.Delete(ctx, st.ID); err != nil {
		return errs.Storage("delete session", err)
	}
	st.ResetToGuest()
	st.FormToken = ""
	st.Clear(session.FlagAutologinFailed)
	if err := e.rotateSession(ctx, req); err != nil {
		return err
	}

	e.metricInc(MetricLogout)
	e.logger.Info("logout", slog.Int64("user_id", userID), slog.String("ip", req.Client.IP))
	e.emitAudit(ctx, auditEventLogout, true, userID, req, nil, nil)
	return nil
}

// LoggedIn reports whether an account is bound to req.Session.
func (e *Engine) LoggedIn(req *Request) bool {
	return req != nil && req.Session != nil && !req.Session.IsGuest()
}

// CurrentPrincipal rebuilds the principal of req from storage. Guests and
// accounts deleted since login yield the guest principal.
func (e *Engine) CurrentPrincipal(ctx context.Context, req *Request) (permission.Principal, error) {
	if err := e.readyRequest(req); err != nil {
		return permission.Guest(), err
	}
	if req.Session.IsGuest() {
		return permission.Guest(), nil
	}
	return e.directory.LoadPrincipal(ctx, req.Session.UserID)
}

// Require returns ErrPermissionDenied unless the principal of req holds at
// least one of required. With no names any logged-in principal passes.
func (e *Engine) Require(ctx context.Context, req *Request, required ...string) error {
	p, err := e.CurrentPrincipal(ctx, req)
	if err != nil {
		return err
	}
	if !p.AllowedTo(required...) {
		e.metricInc(MetricPermissionDenied)
		return ErrPermissionDenied
	}
	return nil
}
