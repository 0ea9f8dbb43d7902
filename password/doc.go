// Package password hashes and verifies account passwords.
//
// # Output format
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Legacy bcrypt hashes ($2a$, $2b$, $2y$) still verify and always report
// [Hasher.NeedsUpgrade], so they are replaced on the next successful login.
// Argon2id hashes produced with weaker parameters are upgraded the same way.
//
// An optional pepper is appended to the plaintext before hashing. Changing
// it invalidates every stored hash.
//
// This package never stores passwords and never logs plaintext.
package password
