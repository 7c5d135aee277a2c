// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Legacy bcrypt digests ($2a$, $2b$, $2y$) verify through the same entry
// point and always report [Argon2.NeedsUpgrade] so callers rehash them on the
// next successful login.
//
// [Pool] bounds concurrent hash work behind a weighted semaphore; callers
// still see a synchronous API. [Strength] exposes a zxcvbn score for policy
// checks.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// strength threshold) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other goAccount package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
