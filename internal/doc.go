// Package internal holds helpers private to goAccount: opaque token
// generation and hashing, and backup code formatting.
//
// # Sub-packages
//
//   - audit: async event dispatch to a Sink
//   - keylock: per-account mutex map
//   - rate: token bucket and Redis fixed-window admission
//
// # What this package must NOT do
//
//   - Export types that appear in the public goAccount API.
//   - Store plaintext tokens; callers persist HashToken output only.
package internal
