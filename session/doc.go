// Package session holds the per-client login state and its persistence.
//
// # Binary encoding
//
// States are stored as a compact versioned binary blob. Decoding rejects
// unknown versions instead of guessing.
//
// # Architecture boundaries
//
// This package owns [State], the [Store] interface and its Redis and
// in-memory implementations. It does NOT verify credentials, evaluate
// permissions or touch the relational database; the Engine does that and
// passes the State around explicitly.
//
// # What this package must NOT do
//
//   - Import goGuard, account or splittoken (no upward imports).
//   - Store plaintext credentials in [State] fields.
package session
