package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
)

type requestContextKey struct{}

// RequestFromContext returns the goGuard request stored by Session.
func RequestFromContext(ctx context.Context) (*goGuard.Request, bool) {
	req, ok := ctx.Value(requestContextKey{}).(*goGuard.Request)
	return req, ok && req != nil
}

// WithRequest stores req in ctx.
func WithRequest(ctx context.Context, req *goGuard.Request) context.Context {
	return context.WithValue(ctx, requestContextKey{}, req)
}

// Session starts or resumes the client session and saves it once the
// wrapped handler returns. Session store failures answer 503.
func Session(engine *goGuard.Engine, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			jar := NewCookieJar(w, r, engine.Config().Cookie)
			req, err := engine.StartSession(r.Context(), jar, ClientInfo(r))
			if err != nil {
				logger.Error("session_start_failed", slog.String("error", err.Error()))
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithRequest(r.Context(), req)))

			if err := engine.SaveSession(r.Context(), req); err != nil {
				logger.Error("session_save_failed",
					slog.String("session_id", req.Session.ID),
					slog.String("error", err.Error()),
				)
			}
		})
	}
}

// Autologin signs a guest in from the autologin cookie before the wrapped
// handler runs. A missing or rejected cookie leaves the client a guest.
// Backend failures answer 503. Requires Session in front.
func Autologin(engine *goGuard.Engine, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := RequestFromContext(r.Context())
			if !ok {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			_, err := engine.AutoLogin(r.Context(), req)
			switch {
			case err == nil,
				errors.Is(err, goGuard.ErrNoAutologinCookie),
				errors.Is(err, goGuard.ErrAutologinFailed):
			default:
				logger.Error("autologin_error", slog.String("error", err.Error()))
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLogin refuses guests with 401.
func RequireLogin(engine *goGuard.Engine) func(http.Handler) http.Handler {
	return RequirePermission(engine)
}

// RequirePermission refuses guests with 401 and principals holding none of
// names with 403. Admins always pass.
func RequirePermission(engine *goGuard.Engine, names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := RequestFromContext(r.Context())
			if !ok || !engine.LoggedIn(req) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			err := engine.Require(r.Context(), req, names...)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, goGuard.ErrPermissionDenied):
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}
		})
	}
}
