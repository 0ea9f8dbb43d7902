// Package middleware adapts goGuard.Engine to net/http.
//
// # Handlers
//
//   - [Session] loads the session named by the session cookie, stores the
//     [goGuard.Request] in the request context and saves the session after
//     the wrapped handler returns.
//   - [Autologin] signs guests in from their autologin cookie.
//   - [RequireLogin] and [RequirePermission] refuse guests and principals
//     lacking a permission.
//
// Cookies are written through [CookieJar], which applies the path, domain,
// Secure, HttpOnly and SameSite attributes of goGuard.CookieConfig.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not
// decide anything itself: every decision is delegated to the Engine.
package middleware
