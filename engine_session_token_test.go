package goGuard

import (
	"context"
	"strings"
	"testing"
)

func TestSessionTokenIsStableAndValidated(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	req, jar := te.newRequest(t, nil)
	if te.ValidateSessionToken(req, "") {
		t.Fatalf("session without a token accepted an empty value")
	}

	tok, err := te.SessionToken(req)
	if err != nil {
		t.Fatalf("SessionToken: %v", err)
	}
	if len(tok) != 64 || strings.Trim(tok, "0123456789abcdef") != "" {
		t.Fatalf("unexpected token %q", tok)
	}
	if again, _ := te.SessionToken(req); again != tok {
		t.Fatalf("token changed within the session: %q vs %q", again, tok)
	}
	if !te.ValidateSessionToken(req, tok) {
		t.Fatalf("own token rejected")
	}
	for _, bad := range []string{"", tok[:63], strings.ToUpper(tok), tok + "0"} {
		if te.ValidateSessionToken(req, bad) {
			t.Fatalf("accepted %q", bad)
		}
	}

	if err := te.SaveSession(ctx, req); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	next, err := te.StartSession(ctx, jar, testClient)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if !te.ValidateSessionToken(next, tok) {
		t.Fatalf("token lost across requests")
	}

	other, _ := te.newRequest(t, nil)
	if te.ValidateSessionToken(other, tok) {
		t.Fatalf("token accepted by another session")
	}
}

func TestLogoutDiscardsSessionToken(t *testing.T) {
	te := newTestEngine(t, nil)
	te.createUser(t, "olga")
	ctx := context.Background()

	req, _ := te.newRequest(t, nil)
	if _, err := te.Login(ctx, req, LoginInput{Username: "olga", Password: testPassword}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	tok, err := te.SessionToken(req)
	if err != nil {
		t.Fatalf("SessionToken: %v", err)
	}
	if err := te.Logout(ctx, req); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if te.ValidateSessionToken(req, tok) {
		t.Fatalf("token survived logout")
	}
	if next, _ := te.SessionToken(req); next == tok {
		t.Fatalf("logout did not yield a fresh token")
	}
}

func TestSessionTokenRequiresSession(t *testing.T) {
	te := newTestEngine(t, nil)
	if _, err := te.SessionToken(&Request{}); err == nil {
		t.Fatalf("expected error without a session")
	}
	if te.ValidateSessionToken(nil, "x") {
		t.Fatalf("nil request validated")
	}
}
