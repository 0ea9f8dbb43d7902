package goGuard

import "crypto/subtle"

// formTokenBytes is the random input behind one form token.
const formTokenBytes = 32

// SessionToken returns the form token of req.Session, creating it on first
// use. The token is the hex SHA-256 of fresh random bytes and lives as long
// as the session; Logout discards it. The caller saves the session.
func (e *Engine) SessionToken(req *Request) (string, error) {
	if err := e.readyRequest(req); err != nil {
		return "", err
	}
	if req.Session.FormToken != "" {
		return req.Session.FormToken, nil
	}
	raw, err := e.gen.Random(formTokenBytes)
	if err != nil {
		return "", err
	}
	req.Session.FormToken = e.gen.Hash(raw)
	return req.Session.FormToken, nil
}

// ValidateSessionToken reports whether s is the form token of req.Session.
// A session without a token accepts nothing.
func (e *Engine) ValidateSessionToken(req *Request, s string) bool {
	if e.readyRequest(req) != nil {
		return false
	}
	want := req.Session.FormToken
	if want == "" || s == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s), []byte(want)) == 1
}
