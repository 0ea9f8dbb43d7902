// Package goGuard is the authentication layer of a web application: password
// login with brute-force banning, remember-me autologin, account activation
// and group based permissions.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. Per-request state travels in a [Request], which carries the
// session, the cookie jar and the client address.
//
// # Architecture boundaries
//
// goGuard is the public surface. It exposes [Engine], [Builder], [Config] and
// value types. Storage lives in the sub-packages:
//
//   - splittoken: selector:token credentials for autologin and activation.
//   - ban: the append-only ban log and the conjunctive ban gate.
//   - account: users, groups and principals, written in transactions.
//   - session: per-client login state in memory or Redis.
//   - permission: the registry of declared names and permission sets.
//
// # Failure model
//
// Every credential failure of Login returns [ErrInvalidCredentials]; the
// reason is only visible in the ban log. Backend failures surface as
// [StorageError] and never count as a failed attempt.
package goGuard
