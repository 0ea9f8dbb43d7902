package goGuard

import (
	"errors"

	"github.com/MrEthical07/goGuard/internal/errs"
)

var (
	// ErrInvalidCredentials is returned for every failed password login. It
	// never tells which field was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrBanned is returned while the client IP serves a ban.
	ErrBanned = errors.New("access blocked by ban")
	// ErrAccountPending is matched by both pending-activation errors.
	ErrAccountPending = errors.New("account pending activation")
	// ErrActivationByMailPending is returned when the account awaits its activation link.
	ErrActivationByMailPending = pendingError{"account awaits mail activation"}
	// ErrActivationByAdminPending is returned when the account awaits an administrator.
	ErrActivationByAdminPending = pendingError{"account awaits admin activation"}
	// ErrAutologinFailed is returned when the autologin cookie was rejected.
	ErrAutologinFailed = errors.New("autologin failed")
	// ErrNoAutologinCookie is returned by AutoLogin when no cookie was sent.
	ErrNoAutologinCookie = errors.New("no autologin cookie")
	// ErrActivationInvalid is returned for unknown, expired or altered activation keys.
	ErrActivationInvalid = errors.New("activation key invalid")
	// ErrPermissionDenied is returned by Require when the principal lacks every permission.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUserNotFound is returned by account operations on unknown ids.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned when a username is taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrPasswordPolicy is returned when a new password is too short or too long.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrEngineNotReady is returned when a method runs on a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrSessionRequired is returned when a Request carries no session state.
	ErrSessionRequired = errors.New("request has no session")
)

// pendingError lets both activation errors match ErrAccountPending.
type pendingError struct{ msg string }

func (e pendingError) Error() string        { return e.msg }
func (e pendingError) Is(target error) bool { return target == ErrAccountPending }

// ValidationError reports caller input with the wrong shape, such as a
// malformed selector:token string or an empty password.
type ValidationError = errs.ValidationError

// StorageError wraps a failed database or session store call.
type StorageError = errs.StorageError

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool { return errs.IsValidation(err) }

// IsStorage reports whether err carries a StorageError.
func IsStorage(err error) bool { return errs.IsStorage(err) }
