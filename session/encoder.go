package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// CurrentSchemaVersion is the first byte of every encoded State. Version 2
// appends the form token; version 1 blobs still decode with an empty one.
const CurrentSchemaVersion = 2

const schemaV1 = 1

const (
	boolLoggedIn byte = 1 << iota
	boolRemember
)

// fixedSize is version, bools, flags and three int64 fields.
const fixedSize = 3 + 3*8

// maxFormToken bounds the length-prefixed form token.
const maxFormToken = 255

// ErrCorrupt is returned when a stored blob cannot be decoded.
var ErrCorrupt = errors.New("session blob corrupt")

// Encode renders s without its ID; the ID is the storage key.
func Encode(s *State) []byte {
	var buf bytes.Buffer
	buf.Grow(fixedSize + 1 + len(s.FormToken))

	buf.WriteByte(CurrentSchemaVersion)

	var bools byte
	if s.LoggedIn {
		bools |= boolLoggedIn
	}
	if s.Remember {
		bools |= boolRemember
	}
	buf.WriteByte(bools)
	buf.WriteByte(byte(s.Flags))

	var word [8]byte
	for _, v := range []int64{s.UserID, s.CreatedAt, s.UpdatedAt} {
		binary.BigEndian.PutUint64(word[:], uint64(v))
		buf.Write(word[:])
	}

	formToken := s.FormToken
	if len(formToken) > maxFormToken {
		formToken = ""
	}
	buf.WriteByte(byte(len(formToken)))
	buf.WriteString(formToken)
	return buf.Bytes()
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (*State, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrCorrupt)
	}
	switch data[0] {
	case schemaV1:
		if len(data) != fixedSize {
			return nil, fmt.Errorf("%w: length %d", ErrCorrupt, len(data))
		}
	case CurrentSchemaVersion:
		if len(data) < fixedSize+1 || len(data) != fixedSize+1+int(data[fixedSize]) {
			return nil, fmt.Errorf("%w: length %d", ErrCorrupt, len(data))
		}
	default:
		return nil, fmt.Errorf("%w: unsupported session schema version %d", ErrCorrupt, data[0])
	}

	s := &State{
		LoggedIn: data[1]&boolLoggedIn != 0,
		Remember: data[1]&boolRemember != 0,
		Flags:    Flag(data[2]),
	}
	s.UserID = int64(binary.BigEndian.Uint64(data[3:11]))
	s.CreatedAt = int64(binary.BigEndian.Uint64(data[11:19]))
	s.UpdatedAt = int64(binary.BigEndian.Uint64(data[19:27]))
	if data[0] == CurrentSchemaVersion {
		s.FormToken = string(data[fixedSize+1:])
	}
	return s, nil
}
