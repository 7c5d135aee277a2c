// Package httpapi exposes goAccount.Engine over HTTP with gin.
//
// Routes live under /api/v1/users. Engine errors map to status codes in
// errors.go; a login that needs a second factor answers 202 with only the
// challenge token. /healthz and /metrics sit outside the versioned prefix.
//
// # What this package must NOT do
//
//   - Implement authentication rules; it only translates requests.
//   - Return password hashes, TOTP secrets after setup, or stored token hashes.
package httpapi
