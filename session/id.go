package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const idSize = 16

// ErrInvalidID is returned for session ids that were not produced by NewID.
var ErrInvalidID = errors.New("invalid session id")

// NewID returns a random session id, base64url without padding.
func NewID() (string, error) {
	var raw [idSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ValidID checks the shape of a client supplied session id.
func ValidID(id string) error {
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil || len(raw) != idSize {
		return ErrInvalidID
	}
	return nil
}
