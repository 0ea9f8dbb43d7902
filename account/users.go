package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/text/unicode/norm"

	"github.com/MrEthical07/goGuard/internal/db"
	"github.com/MrEthical07/goGuard/internal/errs"
)

const maxUsernameBytes = 255

var (
	// ErrNotFound is returned when a user or group does not exist.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate is returned when a username or group title is taken.
	ErrDuplicate = errors.New("account already exists")
	// ErrInvalidUsername is matched for empty, reserved or oversized names.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidState is matched for state values outside the known range.
	ErrInvalidState = errors.New("invalid account state")
	// ErrEmptyPassword is matched when a user is created without password.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrGuest is returned when an operation targets the guest principal.
	ErrGuest = errors.New("operation not allowed for guest")
)

// State is the activation state stored in users.state.
type State int

const (
	StateActive       State = 0
	StatePendingMail  State = 1
	StatePendingAdmin State = 2
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	return s >= StateActive && s <= StatePendingAdmin
}

// Pending reports whether the account still awaits activation.
func (s State) Pending() bool {
	return s == StatePendingMail || s == StatePendingAdmin
}

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePendingMail:
		return "pending_mail_activation"
	case StatePendingAdmin:
		return "pending_admin_activation"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// User is one users row.
type User struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	DisplayName  string `db:"display_name"`
	PasswordHash string `db:"password_hash"`
	State        State  `db:"state"`
	CreatedAt    int64  `db:"created_at"`
}

// NewUser is the input of Users.Create. Password is plaintext.
type NewUser struct {
	Username    string
	DisplayName string
	Password    string
	State       State
}

// PasswordHasher turns a plaintext password into its stored form.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// TokenRevoker drops every credential of owner inside tx.
type TokenRevoker interface {
	RevokeAll(ctx context.Context, tx *sqlx.Tx, owner int64) error
}

// Users reads and writes the users table.
type Users struct {
	db     *sqlx.DB
	hasher PasswordHasher
	tokens TokenRevoker
	now    func() time.Time
}

// NewUsers builds a repository. tokens may be nil when no credential
// tables need cleaning on delete.
func NewUsers(conn *sqlx.DB, hasher PasswordHasher, tokens TokenRevoker) *Users {
	return &Users{db: conn, hasher: hasher, tokens: tokens, now: time.Now}
}

// NormalizeUsername trims and NFC-normalizes name and rejects empty,
// reserved and oversized names.
func NormalizeUsername(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	switch {
	case name == "":
		return "", errs.Invalid("username", "empty", ErrInvalidUsername)
	case strings.EqualFold(name, "guest"):
		return "", errs.Invalid("username", "reserved", ErrInvalidUsername)
	case len(name) > maxUsernameBytes:
		return "", errs.Invalid("username", "too long", ErrInvalidUsername)
	}
	return name, nil
}

func validState(s State) error {
	if !s.Valid() {
		return errs.Invalid("state", "must be 0 (active), 1 (mail activation) or 2 (admin activation)", ErrInvalidState)
	}
	return nil
}

// Create inserts the user and stores its password hash in one
// transaction. Any failure leaves no row behind.
func (u *Users) Create(ctx context.Context, in NewUser) (int64, error) {
	name, err := NormalizeUsername(in.Username)
	if err != nil {
		return 0, err
	}
	if err := validState(in.State); err != nil {
		return 0, err
	}
	if in.Password == "" {
		return 0, errs.Invalid("password", "empty", ErrEmptyPassword)
	}
	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = name
	}

	var id int64
	err = db.WithTx(ctx, u.db, "create user", func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM users WHERE username = ?`), name); err != nil {
			return errs.Storage("count users", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: username %q", ErrDuplicate, name)
		}

		q := tx.Rebind(`INSERT INTO users (username, display_name, password_hash, state, created_at)
			VALUES (?, ?, '', ?, ?) RETURNING id`)
		if err := tx.QueryRowxContext(ctx, q, name, display, int(in.State), u.now().Unix()).Scan(&id); err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("%w: username %q", ErrDuplicate, name)
			}
			return errs.Storage("insert user", err)
		}

		return u.storePassword(ctx, tx, id, in.Password)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (u *Users) storePassword(ctx context.Context, tx *sqlx.Tx, id int64, plain string) error {
	hash, err := u.hasher.Hash(plain)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE users SET password_hash = ? WHERE id = ?`), hash, id)
	if err != nil {
		return errs.Storage("store password", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const userColumns = `id, username, display_name, password_hash, state, created_at`

// ByUsername loads the user named name.
func (u *Users) ByUsername(ctx context.Context, name string) (*User, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	return u.one(ctx, "load user by name", `SELECT `+userColumns+` FROM users WHERE username = ?`, name)
}

// ByID loads the user with id.
func (u *Users) ByID(ctx context.Context, id int64) (*User, error) {
	return u.one(ctx, "load user", `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (u *Users) one(ctx context.Context, op, q string, arg any) (*User, error) {
	var out User
	if err := u.db.GetContext(ctx, &out, u.db.Rebind(q), arg); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, errs.Storage(op, err)
	}
	return &out, nil
}

// UpdatePasswordHash replaces the stored hash without re-hashing. Used for
// transparent upgrades after a successful login.
func (u *Users) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return u.exec(ctx, "update password hash", `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
}

// ChangePassword hashes plain and stores it in one transaction.
func (u *Users) ChangePassword(ctx context.Context, id int64, plain string) error {
	if id <= 0 {
		return ErrGuest
	}
	return db.WithTx(ctx, u.db, "change password", func(tx *sqlx.Tx) error {
		return u.storePassword(ctx, tx, id, plain)
	})
}

// SetState changes the activation state of id.
func (u *Users) SetState(ctx context.Context, id int64, s State) error {
	if err := validState(s); err != nil {
		return err
	}
	return u.exec(ctx, "set user state", `UPDATE users SET state = ? WHERE id = ?`, int(s), id)
}

// Update writes username, display name and state of usr.
func (u *Users) Update(ctx context.Context, usr User) error {
	if usr.ID <= 0 {
		return ErrGuest
	}
	name, err := NormalizeUsername(usr.Username)
	if err != nil {
		return err
	}
	if err := validState(usr.State); err != nil {
		return err
	}
	err = u.exec(ctx, "update user",
		`UPDATE users SET username = ?, display_name = ?, state = ? WHERE id = ?`,
		name, usr.DisplayName, int(usr.State), usr.ID)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: username %q", ErrDuplicate, name)
	}
	return err
}

// Delete removes the user, its group memberships and all its credentials.
func (u *Users) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrGuest
	}
	return db.WithTx(ctx, u.db, "delete user", func(tx *sqlx.Tx) error {
		if u.tokens != nil {
			if err := u.tokens.RevokeAll(ctx, tx, id); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM user_groups WHERE user_id = ?`), id); err != nil {
			return errs.Storage("delete user groups", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM users WHERE id = ?`), id)
		if err != nil {
			return errs.Storage("delete user", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Count returns the number of users.
func (u *Users) Count(ctx context.Context) (int, error) {
	var n int
	if err := u.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, errs.Storage("count users", err)
	}
	return n, nil
}

func (u *Users) exec(ctx context.Context, op, q string, args ...any) error {
	res, err := u.db.ExecContext(ctx, u.db.Rebind(q), args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return err
		}
		return errs.Storage(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
