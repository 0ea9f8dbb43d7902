// Package splittoken persists selector:token credentials for autologin
// cookies and account activation links.
//
// Only the SHA-256 of the secret half is stored. Expired rows are swept
// before every read and write, and issuing a credential supersedes any
// earlier one for the same owner and purpose.
package splittoken

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/goGuard/internal/db"
	"github.com/MrEthical07/goGuard/internal/errs"
	"github.com/MrEthical07/goGuard/token"
)

var (
	ErrNotFound          = errors.New("split credential not found")
	ErrExpired           = errors.New("split credential expired")
	ErrMismatch          = errors.New("split credential mismatch")
	ErrMissingOwner      = errors.New("split credential requires an owner id")
	ErrUnknownPurpose    = errors.New("unknown split credential purpose")
	ErrSelectorExhausted = errors.New("no free selector after retries")
)

const (
	minSelectorBytes   = 6
	minTokenBytes      = 12
	maxSelectorRetries = 16
)

// Purpose partitions the credential namespace. Each purpose has its own
// table and TTL policy.
type Purpose uint8

const (
	Autologin Purpose = iota + 1
	Activation
)

func (p Purpose) String() string {
	switch p {
	case Autologin:
		return "autologin"
	case Activation:
		return "activation"
	default:
		return "unknown"
	}
}

func (p Purpose) table() (string, error) {
	switch p {
	case Autologin:
		return "auth_tokens", nil
	case Activation:
		return "activation_tokens", nil
	default:
		return "", ErrUnknownPurpose
	}
}

// Policy sizes and ages the credentials of one purpose.
type Policy struct {
	SelectorBytes int
	TokenBytes    int
	TTL           time.Duration
}

// DefaultPolicy returns the stock policy: 30 day autologin cookies with a
// 60 byte secret, 10 day activation links with a 32 byte secret.
func DefaultPolicy(p Purpose) Policy {
	switch p {
	case Activation:
		return Policy{SelectorBytes: 6, TokenBytes: 32, TTL: 240 * time.Hour}
	default:
		return Policy{SelectorBytes: 6, TokenBytes: 60, TTL: 30 * 24 * time.Hour}
	}
}

// Validate enforces the minimum sizes.
func (p Policy) Validate() error {
	if p.SelectorBytes < minSelectorBytes {
		return fmt.Errorf("selector must be at least %d bytes", minSelectorBytes)
	}
	if p.TokenBytes < minTokenBytes {
		return fmt.Errorf("token must be at least %d bytes", minTokenBytes)
	}
	if p.TTL <= 0 {
		return errors.New("token ttl must be > 0")
	}
	return nil
}

// Record is a persisted credential. ExpiresAt is unix seconds.
type Record struct {
	Selector  string `db:"selector"`
	TokenHash string `db:"token_hash"`
	OwnerID   int64  `db:"owner_id"`
	ExpiresAt int64  `db:"expires_at"`
}

// Expired reports whether the record is no longer usable at now.
func (r Record) Expired(now time.Time) bool {
	return now.Unix() >= r.ExpiresAt
}

// Issued is a freshly minted credential. Credential is the only copy of the
// plaintext secret.
type Issued struct {
	Credential string
	Selector   string
	OwnerID    int64
	ExpiresAt  time.Time
}

// Verified is the outcome of a successful Verify. Rotated is set for
// autologin credentials, which are replaced on every use.
type Verified struct {
	OwnerID int64
	Rotated *Issued
}

// Store persists split credentials in SQL tables.
type Store struct {
	db       *sqlx.DB
	gen      token.Generator
	policies map[Purpose]Policy
	now      func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithGenerator replaces the default token codec.
func WithGenerator(g token.Generator) Option {
	return func(s *Store) { s.gen = g }
}

// WithPolicy overrides the policy of one purpose.
func WithPolicy(p Purpose, pol Policy) Option {
	return func(s *Store) { s.policies[p] = pol }
}

// New builds a Store on conn.
func New(conn *sqlx.DB, opts ...Option) (*Store, error) {
	if conn == nil {
		return nil, errors.New("splittoken: nil db")
	}
	s := &Store{
		db:  conn,
		gen: token.New(),
		policies: map[Purpose]Policy{
			Autologin:  DefaultPolicy(Autologin),
			Activation: DefaultPolicy(Activation),
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for p, pol := range s.policies {
		if _, err := p.table(); err != nil {
			return nil, err
		}
		if err := pol.Validate(); err != nil {
			return nil, fmt.Errorf("splittoken %s: %w", p, err)
		}
	}
	return s, nil
}

// Policy returns the active policy for p.
func (s *Store) Policy(p Purpose) Policy {
	return s.policies[p]
}

// Issue mints a credential for owner. Older credentials of the same owner
// and purpose are deleted in the same transaction. A selector that races
// another insert is regenerated.
func (s *Store) Issue(ctx context.Context, owner int64, p Purpose) (Issued, error) {
	if owner <= 0 {
		return Issued{}, ErrMissingOwner
	}
	if _, err := p.table(); err != nil {
		return Issued{}, err
	}

	for attempt := 0; attempt < maxSelectorRetries; attempt++ {
		var issued Issued
		err := db.WithTx(ctx, s.db, "issue "+p.String(), func(tx *sqlx.Tx) error {
			now := s.now()
			if _, err := s.purge(ctx, tx, p, now); err != nil {
				return err
			}
			if err := s.deleteOwner(ctx, tx, owner, p); err != nil {
				return err
			}
			var err error
			issued, err = s.insert(ctx, tx, owner, p, now)
			return err
		})
		if err == nil {
			return issued, nil
		}
		if !db.IsUniqueViolation(err) {
			return Issued{}, err
		}
	}
	return Issued{}, ErrSelectorExhausted
}

// Lookup sweeps expired rows of p and returns the record for selector.
func (s *Store) Lookup(ctx context.Context, p Purpose, selector string) (*Record, error) {
	table, err := p.table()
	if err != nil {
		return nil, err
	}
	if _, err := s.purge(ctx, s.db, p, s.now()); err != nil {
		return nil, err
	}

	var rec Record
	q := s.db.Rebind(`SELECT selector, token_hash, owner_id, expires_at FROM ` + table + ` WHERE selector = ?`)
	if err := sqlx.GetContext(ctx, s.db, &rec, q, selector); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, errs.Storage("lookup "+p.String(), err)
	}
	return &rec, nil
}

// ForOwner returns the current credential of owner for p.
func (s *Store) ForOwner(ctx context.Context, owner int64, p Purpose) (*Record, error) {
	if owner <= 0 {
		return nil, ErrMissingOwner
	}
	table, err := p.table()
	if err != nil {
		return nil, err
	}
	if _, err := s.purge(ctx, s.db, p, s.now()); err != nil {
		return nil, err
	}

	var rec Record
	q := s.db.Rebind(`SELECT selector, token_hash, owner_id, expires_at FROM ` + table + ` WHERE owner_id = ?`)
	if err := sqlx.GetContext(ctx, s.db, &rec, q, owner); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, errs.Storage("lookup owner "+p.String(), err)
	}
	return &rec, nil
}

// Verify checks a selector:token credential. Unknown, expired and
// mismatched credentials fail with ErrNotFound, ErrExpired and ErrMismatch;
// callers should treat all three the same. A malformed credential is a
// validation error.
func (s *Store) Verify(ctx context.Context, p Purpose, credential string) (Verified, error) {
	split, err := token.ParseSplit(credential)
	if err != nil {
		return Verified{}, err
	}
	raw, err := split.TokenBytes()
	if err != nil {
		return Verified{}, errs.Invalid("credential", "not hex encoded", token.ErrMalformed)
	}

	rec, err := s.Lookup(ctx, p, split.Selector)
	if err != nil {
		return Verified{}, err
	}
	if rec.Expired(s.now()) {
		return Verified{}, ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(s.gen.Hash(raw)), []byte(rec.TokenHash)) != 1 {
		return Verified{}, ErrMismatch
	}

	out := Verified{OwnerID: rec.OwnerID}
	if p != Autologin {
		return out, nil
	}

	rotated, err := s.rotate(ctx, rec)
	if err != nil {
		return Verified{}, err
	}
	out.Rotated = &rotated
	return out, nil
}

// Revoke deletes every credential of owner for p. Revoking nothing is not
// an error.
func (s *Store) Revoke(ctx context.Context, owner int64, p Purpose) error {
	if owner <= 0 {
		return ErrMissingOwner
	}
	if _, err := p.table(); err != nil {
		return err
	}
	return db.WithTx(ctx, s.db, "revoke "+p.String(), func(tx *sqlx.Tx) error {
		if _, err := s.purge(ctx, tx, p, s.now()); err != nil {
			return err
		}
		return s.deleteOwner(ctx, tx, owner, p)
	})
}

// RevokeAll removes the credentials of owner for every purpose.
func (s *Store) RevokeAll(ctx context.Context, tx *sqlx.Tx, owner int64) error {
	for _, p := range []Purpose{Autologin, Activation} {
		if err := s.deleteOwner(ctx, tx, owner, p); err != nil {
			return err
		}
	}
	return nil
}

// PurgeExpired sweeps expired rows. With no purposes given both tables are
// swept. It returns the number of rows removed.
func (s *Store) PurgeExpired(ctx context.Context, purposes ...Purpose) (int64, error) {
	if len(purposes) == 0 {
		purposes = []Purpose{Autologin, Activation}
	}
	now := s.now()
	var total int64
	for _, p := range purposes {
		n, err := s.purge(ctx, s.db, p, now)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// rotate swaps rec for a fresh credential of the same owner. Deleting by
// selector and hash makes a concurrent replay of the same cookie lose.
func (s *Store) rotate(ctx context.Context, rec *Record) (Issued, error) {
	var issued Issued
	err := db.WithTx(ctx, s.db, "rotate autologin", func(tx *sqlx.Tx) error {
		q := tx.Rebind(`DELETE FROM auth_tokens WHERE selector = ? AND token_hash = ?`)
		res, err := tx.ExecContext(ctx, q, rec.Selector, rec.TokenHash)
		if err != nil {
			return errs.Storage("rotate autologin: delete", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return errs.Storage("rotate autologin: rows", err)
		} else if n == 0 {
			return ErrNotFound
		}

		issued, err = s.insert(ctx, tx, rec.OwnerID, Autologin, s.now())
		return err
	})
	return issued, err
}

func (s *Store) insert(ctx context.Context, tx *sqlx.Tx, owner int64, p Purpose, now time.Time) (Issued, error) {
	table, err := p.table()
	if err != nil {
		return Issued{}, err
	}
	pol := s.policies[p]

	selector, err := s.freeSelector(ctx, tx, table, pol.SelectorBytes)
	if err != nil {
		return Issued{}, err
	}

	secret, err := s.gen.Random(pol.TokenBytes)
	if err != nil {
		return Issued{}, err
	}

	expires := now.Add(pol.TTL).Truncate(time.Second)
	q := tx.Rebind(`INSERT INTO ` + table + ` (selector, token_hash, owner_id, expires_at) VALUES (?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, q, selector, s.gen.Hash(secret), owner, expires.Unix()); err != nil {
		return Issued{}, errs.Storage("insert "+p.String(), err)
	}

	return Issued{
		Credential: token.Split{Selector: selector, Token: token.Hex(secret)}.String(),
		Selector:   selector,
		OwnerID:    owner,
		ExpiresAt:  expires,
	}, nil
}

// freeSelector draws selectors until one is unused in table.
func (s *Store) freeSelector(ctx context.Context, tx *sqlx.Tx, table string, size int) (string, error) {
	q := tx.Rebind(`SELECT COUNT(*) FROM ` + table + ` WHERE selector = ?`)
	for i := 0; i < maxSelectorRetries; i++ {
		raw, err := s.gen.Random(size)
		if err != nil {
			return "", err
		}
		selector := token.Hex(raw)

		var n int
		if err := sqlx.GetContext(ctx, tx, &n, q, selector); err != nil {
			return "", errs.Storage("count selector", err)
		}
		if n == 0 {
			return selector, nil
		}
	}
	return "", ErrSelectorExhausted
}

func (s *Store) deleteOwner(ctx context.Context, ex sqlx.ExecerContext, owner int64, p Purpose) error {
	table, err := p.table()
	if err != nil {
		return err
	}
	q := sqlx.Rebind(sqlx.BindType(s.db.DriverName()), `DELETE FROM `+table+` WHERE owner_id = ?`)
	if _, err := ex.ExecContext(ctx, q, owner); err != nil {
		return errs.Storage("delete "+p.String(), err)
	}
	return nil
}

func (s *Store) purge(ctx context.Context, ex sqlx.ExecerContext, p Purpose, now time.Time) (int64, error) {
	table, err := p.table()
	if err != nil {
		return 0, err
	}
	q := sqlx.Rebind(sqlx.BindType(s.db.DriverName()), `DELETE FROM `+table+` WHERE expires_at <= ?`)
	res, err := ex.ExecContext(ctx, q, now.Unix())
	if err != nil {
		return 0, errs.Storage("purge "+p.String(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Storage("purge "+p.String(), err)
	}
	return n, nil
}
