package middleware

import (
	"net/http"
	"sync"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

var _ goGuard.CookieJar = (*CookieJar)(nil)

// CookieJar reads request cookies and writes Set-Cookie headers. Values set
// during the request shadow the incoming ones.
type CookieJar struct {
	w   http.ResponseWriter
	r   *http.Request
	cfg goGuard.CookieConfig

	mu      sync.Mutex
	pending map[string]*string
}

// NewCookieJar returns a jar bound to one request and its response.
func NewCookieJar(w http.ResponseWriter, r *http.Request, cfg goGuard.CookieConfig) *CookieJar {
	return &CookieJar{w: w, r: r, cfg: cfg, pending: map[string]*string{}}
}

// Get implements goGuard.CookieJar.
func (j *CookieJar) Get(name string) (string, bool) {
	j.mu.Lock()
	v, touched := j.pending[name]
	j.mu.Unlock()
	if touched {
		if v == nil {
			return "", false
		}
		return *v, true
	}

	c, err := j.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// Set implements goGuard.CookieJar. A zero Expires writes a browser
// session cookie.
func (j *CookieJar) Set(c goGuard.Cookie) {
	hc := j.base(c.Name)
	hc.Value = c.Value
	if !c.Expires.IsZero() {
		hc.Expires = c.Expires.UTC()
	}
	http.SetCookie(j.w, hc)

	v := c.Value
	j.mu.Lock()
	j.pending[c.Name] = &v
	j.mu.Unlock()
}

// Clear implements goGuard.CookieJar by writing an already expired cookie.
func (j *CookieJar) Clear(name string) {
	hc := j.base(name)
	hc.MaxAge = -1
	hc.Expires = time.Unix(0, 0)
	http.SetCookie(j.w, hc)

	j.mu.Lock()
	j.pending[name] = nil
	j.mu.Unlock()
}

func (j *CookieJar) base(name string) *http.Cookie {
	path := j.cfg.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Path:     path,
		Domain:   j.cfg.Domain,
		Secure:   j.cfg.Secure,
		HttpOnly: j.cfg.HTTPOnly,
		SameSite: sameSite(j.cfg.SameSite),
	}
}

func sameSite(mode string) http.SameSite {
	switch mode {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}
