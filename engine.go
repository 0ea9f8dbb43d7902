package goGuard

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/goGuard/account"
	"github.com/MrEthical07/goGuard/ban"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/errs"
	"github.com/MrEthical07/goGuard/password"
	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/splittoken"
	"github.com/MrEthical07/goGuard/token"
)

// Engine runs the login, autologin, activation and ban flows. It is safe
// for concurrent use after Builder.Build. Per-request state lives in the
// Request passed to each call.
type Engine struct {
	config Config

	db     *sqlx.DB
	ownsDB bool

	tokens    *splittoken.Store
	gen       token.Generator
	bans      *ban.Tracker
	hasher    *password.Hasher
	users     *account.Users
	groups    *account.Groups
	directory account.Directory
	registry  *permission.Registry
	sessions  session.Store

	logger  *slog.Logger
	audit   *audit.Dispatcher
	metrics *Metrics
	now     func() time.Time

	closed atomic.Bool
}

// Close drains the audit dispatcher and closes the database when the
// engine opened it. Close is idempotent.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.audit.Close()
	if e.ownsDB && e.db != nil {
		_ = e.db.Close()
	}
}

// AuditDropped returns the number of audit events lost to backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditFailed returns the number of audit events whose sink panicked.
func (e *Engine) AuditFailed() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Failed()
}

// MetricsSnapshot copies the current counters.
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

// Config returns a copy of the validated configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Users exposes the users repository.
func (e *Engine) Users() *account.Users { return e.users }

// Groups exposes the groups repository for permission administration.
func (e *Engine) Groups() *account.Groups { return e.groups }

// Registry exposes the declared permission names.
func (e *Engine) Registry() *permission.Registry { return e.registry }

// Tokens exposes the split credential store.
func (e *Engine) Tokens() *splittoken.Store { return e.tokens }

// Bans exposes the ban tracker and its log.
func (e *Engine) Bans() *ban.Tracker { return e.bans }

// Ping checks the database connection.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	return errs.Storage("ping", e.db.PingContext(ctx))
}

func (e *Engine) ready() error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) readyRequest(req *Request) error {
	if err := e.ready(); err != nil {
		return err
	}
	if req == nil || req.Session == nil {
		return ErrSessionRequired
	}
	if req.Cookies == nil {
		req.Cookies = NewMemoryCookieJar(nil)
	}
	return nil
}

// StartSession loads the session named by the session cookie in jar or
// starts a guest session. A new session id is written back to jar.
func (e *Engine) StartSession(ctx context.Context, jar CookieJar, client ClientInfo) (*Request, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if jar == nil {
		jar = NewMemoryCookieJar(nil)
	}

	id, _ := jar.Get(e.config.Session.CookieName)
	st, err := session.LoadOrNew(ctx, e.sessions, id, e.now())
	if err != nil {
		return nil, errs.Storage("load session", err)
	}
	if st.ID != id {
		jar.Set(Cookie{Name: e.config.Session.CookieName, Value: st.ID})
	}
	return &Request{Session: st, Cookies: jar, Client: client}, nil
}

// SaveSession persists req.Session. Concurrent requests of one client
// overwrite each other; the last save wins.
func (e *Engine) SaveSession(ctx context.Context, req *Request) error {
	if err := e.readyRequest(req); err != nil {
		return err
	}
	req.Session.UpdatedAt = e.now().Unix()
	return errs.Storage("save session", e.sessions.Save(ctx, req.Session))
}

// rotateSession moves the session to a fresh id and announces the new id
// through the session cookie.
func (e *Engine) rotateSession(ctx context.Context, req *Request) error {
	if err := e.sessions.Rotate(ctx, req.Session); err != nil {
		return errs.Storage("rotate session", err)
	}
	req.Cookies.Set(Cookie{Name: e.config.Session.CookieName, Value: req.Session.ID})
	return nil
}

func (e *Engine) clearAutologinCookie(req *Request) {
	req.Cookies.Clear(e.config.Cookie.AutologinName)
}

// recordFailure appends a ban log row. Only storage failures reach the
// caller; a client without a usable IP is logged and skipped.
func (e *Engine) recordFailure(ctx context.Context, req *Request, userID int64, text string, code ban.Code) error {
	err := e.bans.RecordFailure(ctx, req.Client.banClient(), userID, text, code)
	if err == nil {
		return nil
	}
	if errs.IsStorage(err) {
		return err
	}
	e.logger.Warn("ban_log_skipped",
		slog.String("ip", req.Client.IP),
		slog.String("error", err.Error()),
	)
	return nil
}

// isCredentialFailure reports whether err means "no valid credential"
// rather than a backend failure.
func isCredentialFailure(err error) bool {
	return errors.Is(err, splittoken.ErrNotFound) ||
		errors.Is(err, splittoken.ErrExpired) ||
		errors.Is(err, splittoken.ErrMismatch) ||
		errs.IsValidation(err)
}
