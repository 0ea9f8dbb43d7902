// Package ban throttles brute-force logins per client IP.
//
// Failed attempts are appended to the ban_log table. A check counts the
// recent failures of an IP and, once the threshold is crossed, either finds
// a running ban or starts a new one by writing an activation row. Bans run
// from the activation row, so a client that stops immediately still serves
// the full duration.
package ban

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/goGuard/internal/errs"
)

// ErrInvalidIP is matched when a client IP cannot be parsed.
var ErrInvalidIP = errors.New("invalid client ip")

// Code classifies a ban log row. Every code above CodeBanActivated counts
// toward the threshold.
type Code int

const (
	CodeBanActivated Code = 0
	CodeBanable      Code = 1
	CodeNotice       Code = 2
)

// Login failures reuse the code column as a bit set: username and password
// errors add up to 3 when both fields were wrong.
const (
	CodeUsernameError Code = 1
	CodePasswordError Code = 2
)

// FailureCode combines the login error classes into one code.
func FailureCode(username, password bool) Code {
	var c Code
	if username {
		c += CodeUsernameError
	}
	if password {
		c += CodePasswordError
	}
	if c == 0 {
		c = CodeBanable
	}
	return c
}

// Policy is the conjunctive gate. A zero in any field disables banning.
type Policy struct {
	MaxTries    int
	LogWindow   time.Duration
	BanDuration time.Duration
}

// DefaultPolicy mirrors the stock settings: a five minute window and ten
// minute bans, disabled until MaxTries is set.
func DefaultPolicy() Policy {
	return Policy{
		MaxTries:    0,
		LogWindow:   5 * time.Minute,
		BanDuration: 10 * time.Minute,
	}
}

// Enabled reports whether all three thresholds are set.
func (p Policy) Enabled() bool {
	return p.MaxTries > 0 && p.LogWindow > 0 && p.BanDuration > 0
}

// Client identifies the caller of a request.
type Client struct {
	IP        string
	UserAgent string
	URL       string
}

// Decision is the outcome of a check.
type Decision uint8

const (
	Allowed Decision = iota
	Blocked
)

func (d Decision) String() string {
	if d == Blocked {
		return "blocked"
	}
	return "allowed"
}

// Tracker evaluates the policy against the ban log.
type Tracker struct {
	log        *Log
	policy     Policy
	logger     *slog.Logger
	now        func() time.Time
	onActivate func(ctx context.Context, ip string, failures int)
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now for the tracker and its log.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
		t.log.now = now
	}
}

// WithLogger sets the logger used for ban notices.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithActivationHook registers fn to run after a new ban activation row
// is written.
func WithActivationHook(fn func(ctx context.Context, ip string, failures int)) Option {
	return func(t *Tracker) { t.onActivate = fn }
}

// NewTracker builds a Tracker writing to the ban_log table of conn.
func NewTracker(conn *sqlx.DB, policy Policy, opts ...Option) *Tracker {
	t := &Tracker{
		log:    NewLog(conn),
		policy: policy,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Policy returns the tracker's thresholds.
func (t *Tracker) Policy() Policy { return t.policy }

// Log exposes the underlying ban log.
func (t *Tracker) Log() *Log { return t.log }

// Check decides whether client may proceed. Crossing the threshold without
// a running ban writes a new activation row.
func (t *Tracker) Check(ctx context.Context, client Client) (Decision, error) {
	if !t.policy.Enabled() {
		return Allowed, nil
	}
	ip, err := normalizeIP(client.IP)
	if err != nil {
		return Allowed, err
	}

	now := t.now()
	count, err := t.log.CountSince(ctx, ip, now.Add(-t.policy.LogWindow))
	if err != nil {
		return Allowed, err
	}
	if count < t.policy.MaxTries {
		return Allowed, nil
	}

	activated, ok, err := t.log.LastActivation(ctx, ip)
	if err != nil {
		return Allowed, err
	}
	if ok && now.Before(activated.Add(t.policy.BanDuration)) {
		t.logger.Warn("banned_ip_access",
			slog.Bool("notice", true),
			slog.String("ip", ip),
			slog.Time("banned_at", activated),
		)
		return Blocked, nil
	}

	if _, err := t.log.Add(ctx, Entry{
		IP:     ip,
		Text:   "User got banned because of too many tries.",
		Code:   CodeBanActivated,
		Client: client.UserAgent,
		URL:    client.URL,
	}); err != nil {
		return Allowed, err
	}
	t.logger.Warn("ban_activated",
		slog.Bool("notice", true),
		slog.String("ip", ip),
		slog.Int("failures", count),
	)
	if t.onActivate != nil {
		t.onActivate(ctx, ip, count)
	}
	return Blocked, nil
}

// RecordFailure appends a banable row for client. Only storage failures
// are returned.
func (t *Tracker) RecordFailure(ctx context.Context, client Client, userID int64, text string, code Code) error {
	ip, err := normalizeIP(client.IP)
	if err != nil {
		return err
	}
	if code <= CodeBanActivated {
		code = CodeBanable
	}
	_, err = t.log.Add(ctx, Entry{
		IP:     ip,
		Text:   text,
		Code:   code,
		UserID: userID,
		Client: client.UserAgent,
		URL:    client.URL,
	})
	return err
}

func normalizeIP(raw string) (string, error) {
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return "", errs.Invalid("ip", "not an ip address", ErrInvalidIP)
	}
	return addr.Unmap().String(), nil
}
