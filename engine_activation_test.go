package goGuard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/account"
)

func TestMailActivationFlow(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Account.Activation = ActivationMail })
	ctx := context.Background()

	created, err := te.CreateUser(ctx, NewUserInput{Username: "alice", Password: testPassword})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if created.ActivationKey == "" {
		t.Fatalf("mail activation returned no key")
	}

	req, _ := te.newRequest(t, nil)
	_, err = te.Login(ctx, req, LoginInput{Username: "alice", Password: testPassword})
	if !errors.Is(err, ErrActivationByMailPending) || !errors.Is(err, ErrAccountPending) {
		t.Fatalf("expected mail pending error, got %v", err)
	}
	if !req.Session.TakeActivationByMail() {
		t.Fatalf("activation_by_mail flag not set")
	}

	id, err := te.ActivateUser(ctx, created.ActivationKey)
	if err != nil {
		t.Fatalf("ActivateUser: %v", err)
	}
	if id != created.ID {
		t.Fatalf("activated %d, want %d", id, created.ID)
	}
	if n := te.countRows(t, `SELECT COUNT(*) FROM activation_tokens WHERE owner_id = ?`, id); n != 0 {
		t.Fatalf("activation keys survived activation: %d", n)
	}

	req, _ = te.newRequest(t, nil)
	if _, err := te.Login(ctx, req, LoginInput{Username: "alice", Password: testPassword}); err != nil {
		t.Fatalf("Login after activation: %v", err)
	}

	if _, err := te.ActivateUser(ctx, created.ActivationKey); !errors.Is(err, ErrActivationInvalid) {
		t.Fatalf("expected used key to be invalid, got %v", err)
	}
	if _, err := te.RequestActivation(ctx, id); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
}

func TestRequestActivationSupersedesKey(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Account.Activation = ActivationMail })
	ctx := context.Background()

	created, err := te.CreateUser(ctx, NewUserInput{Username: "bob", Password: testPassword})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	next, err := te.RequestActivation(ctx, created.ID)
	if err != nil {
		t.Fatalf("RequestActivation: %v", err)
	}
	if next == created.ActivationKey {
		t.Fatalf("RequestActivation returned the old key")
	}
	if _, err := te.ActivateUser(ctx, created.ActivationKey); !errors.Is(err, ErrActivationInvalid) {
		t.Fatalf("superseded key still valid: %v", err)
	}
	if _, err := te.ActivateUser(ctx, next); err != nil {
		t.Fatalf("ActivateUser with fresh key: %v", err)
	}
}

func TestActivationKeyExpires(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Account.Activation = ActivationMail })
	ctx := context.Background()

	created, err := te.CreateUser(ctx, NewUserInput{Username: "carol", Password: testPassword})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	te.clock.Advance(te.config.Token.ActivationTTL + time.Second)
	if _, err := te.ActivateUser(ctx, created.ActivationKey); !errors.Is(err, ErrActivationInvalid) {
		t.Fatalf("expected expired key to be invalid, got %v", err)
	}
}

func TestActivateUserRejectsMalformedKey(t *testing.T) {
	te := newTestEngine(t, nil)
	_, err := te.ActivateUser(context.Background(), "not-a-key")
	if !errors.Is(err, ErrActivationInvalid) || !IsValidation(err) {
		t.Fatalf("expected invalid validation error, got %v", err)
	}
}

func TestDenyActivationDeletesAccount(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Account.Activation = ActivationMail })
	ctx := context.Background()

	created, err := te.CreateUser(ctx, NewUserInput{Username: "dave", Password: testPassword})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	ok, err := te.DenyActivation(ctx, "abcdef123456:00112233445566778899aabbccddeeff")
	if err != nil || ok {
		t.Fatalf("unknown key: ok=%v err=%v", ok, err)
	}

	ok, err = te.DenyActivation(ctx, created.ActivationKey)
	if err != nil || !ok {
		t.Fatalf("DenyActivation: ok=%v err=%v", ok, err)
	}
	if _, err := te.users.ByID(ctx, created.ID); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("denied account still present: %v", err)
	}
	if n := te.countRows(t, `SELECT COUNT(*) FROM activation_tokens WHERE owner_id = ?`, created.ID); n != 0 {
		t.Fatalf("denied account kept %d activation keys", n)
	}
}

func TestAdminActivationIssuesNoKey(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Account.Activation = ActivationAdmin })
	ctx := context.Background()

	created, err := te.CreateUser(ctx, NewUserInput{Username: "erin", Password: testPassword})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if created.ActivationKey != "" {
		t.Fatalf("admin activation returned a key")
	}

	if err := te.SetUserState(ctx, created.ID, account.StateActive); err != nil {
		t.Fatalf("SetUserState: %v", err)
	}
	req, _ := te.newRequest(t, nil)
	if _, err := te.Login(ctx, req, LoginInput{Username: "erin", Password: testPassword}); err != nil {
		t.Fatalf("Login after admin activation: %v", err)
	}
}
