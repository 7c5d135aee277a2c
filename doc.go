// Package goAccount is the authentication and session core of a user-account
// backend: registration, password login with lockout, TOTP second factor with
// single-use backup codes, rotating refresh tokens and per-client admission
// control.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Login state machine
//
//	AwaitingCredentials ─┬─> Locked                (LockedError)
//	                     ├─> PasswordRejected      (ErrInvalidCredentials)
//	                     ├─> AwaitingSecondFactor  (LoginResult.TwoFactorRequired)
//	                     └─> Authenticated         (LoginResult.Session)
//
// AwaitingSecondFactor is left through [Engine.VerifyTwoFactor] with a TOTP
// code or a backup code.
//
// # Architecture boundaries
//
// goAccount is the public surface. It exposes [Engine], [Builder], [Config], the
// store interfaces it consumes and the result types it returns. Persistence,
// HTTP and metrics export live in sibling packages (store/..., httpapi,
// middleware, metrics/export/...). Per-account serialization and rate-limit
// state live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, SQL or encoding details in its public API.
//   - Perform I/O outside of Engine methods.
//   - Import any sub-package that re-imports goAccount (no import cycles).
package goAccount
