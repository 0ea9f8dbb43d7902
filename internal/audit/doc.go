// Package audit relays security events to a caller-supplied sink without
// blocking the request path.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines writer, no-op).
//   - [Dispatcher]: buffered async relay that either drops or blocks when full.
//   - [Event]: one record with id, time, type, user, session, IP and metadata.
//
// The dispatcher does not decide which events to emit; the engine does.
// This package never imports goGuard or a sibling internal package.
package audit
