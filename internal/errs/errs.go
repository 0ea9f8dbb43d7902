// Package errs holds the error taxonomy shared by the storage-facing
// packages. The root package re-exports these types so callers never
// import internal paths.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError reports caller input with the wrong shape. It is always
// surfaced to the caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError. sentinel may be nil; when set,
// errors.Is matches it through the returned error.
func Invalid(field, reason string, sentinel error) error {
	return &ValidationError{Field: field, Reason: reason, Err: sentinel}
}

// StorageError wraps a failed database or cache call. Any transaction the
// call was part of has been rolled back before the error is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError unless it already is one or err is nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err carries a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
