package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Load for unknown or expired ids.
	ErrNotFound = errors.New("session not found")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("session store unavailable")
)

// Store persists session states keyed by State.ID.
//
// Concurrent requests of one client race on Save; the last writer wins.
type Store interface {
	// Load returns the state stored under id or ErrNotFound.
	Load(ctx context.Context, id string) (*State, error)
	// Save writes s and refreshes its lifetime.
	Save(ctx context.Context, s *State) error
	// Delete removes id. Unknown ids are not an error.
	Delete(ctx context.Context, id string) error
	// Rotate moves s to a fresh id and removes the old key.
	Rotate(ctx context.Context, s *State) error
	// DeleteUser removes every session bound to userID.
	DeleteUser(ctx context.Context, userID int64) error
}

// NewState returns a guest state with a fresh id.
func NewState(now time.Time) (*State, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	return &State{ID: id, CreatedAt: now.Unix(), UpdatedAt: now.Unix()}, nil
}

// LoadOrNew loads id, falling back to a fresh guest state when id is
// empty, malformed, unknown or expired. Backend failures are returned.
func LoadOrNew(ctx context.Context, store Store, id string, now time.Time) (*State, error) {
	if id != "" && ValidID(id) == nil {
		s, err := store.Load(ctx, id)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrCorrupt) {
			return nil, err
		}
	}
	return NewState(now)
}
