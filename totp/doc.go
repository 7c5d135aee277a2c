// Package totp implements RFC 6238 time-based one-time passwords: secret
// generation, otpauth provisioning URIs with a rendered QR code, and code
// verification with a configurable clock-skew window.
//
// Secrets are exchanged as unpadded base32 strings, the format authenticator
// apps expect.
//
// # What this package must NOT do
//
//   - Persist secrets or track used counters.
//   - Import any other goAccount package.
package totp
