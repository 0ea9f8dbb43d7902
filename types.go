package goGuard

import (
	"time"

	"github.com/MrEthical07/goGuard/ban"
	"github.com/MrEthical07/goGuard/session"
)

// ClientInfo identifies the caller of one request. The outer HTTP layer
// fills it; the engine never reads process globals.
type ClientInfo struct {
	IP        string
	UserAgent string
	URL       string
}

func (c ClientInfo) banClient() ban.Client {
	return ban.Client{IP: c.IP, UserAgent: c.UserAgent, URL: c.URL}
}

// Cookie is a cookie the engine wants delivered to the client. A zero
// Expires means a browser-session cookie.
type Cookie struct {
	Name    string
	Value   string
	Expires time.Time
}

// CookieJar reads request cookies and queues response cookies.
type CookieJar interface {
	Get(name string) (string, bool)
	Set(c Cookie)
	// Clear deletes the cookie on the client with an already expired one.
	Clear(name string)
}

// Request is the explicit per-request context passed to every flow.
// Session is mutated in place; the caller persists it with SaveSession.
type Request struct {
	Session *session.State
	Cookies CookieJar
	Client  ClientInfo
}

// LoginInput is one submitted login form.
type LoginInput struct {
	Username string
	Password string
	Remember bool
}

// NewUserInput describes an account to create. An empty Password makes
// the engine generate one, returned by CreateUser.
type NewUserInput struct {
	Username    string
	DisplayName string
	Password    string
}

// CreatedUser is the result of CreateUser. ActivationKey is set when the
// account awaits mail activation; GeneratedPassword when none was given.
type CreatedUser struct {
	ID                int64
	ActivationKey     string
	GeneratedPassword string
}
