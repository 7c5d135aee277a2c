// Package model defines the persisted entities of the account backend and the
// explicit state transitions applied to them.
//
// # Ownership
//
// Account is the root entity. RefreshToken, BackupCode and VerificationToken
// reference their owner by AccountID only; no back-collections exist on
// Account. Cascade removal is performed explicitly by the Engine.
//
// # What this package must NOT do
//
//   - Perform I/O or talk to a store.
//   - Import any other goAccount package.
//   - Read the wall clock; every time-dependent method takes `now`.
package model
