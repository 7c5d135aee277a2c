// Package jwt manages access-token issuance and verification using configured signing keys
// and strict validation semantics suitable for low-latency authentication paths.
//
// Access tokens carry the account ID as `sub` plus email and role. They are
// verified from key material alone; there is no revocation list, so their TTL
// should stay short.
package jwt
