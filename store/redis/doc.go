// Package redisstore keeps verification tokens (2FA login challenges, email
// verification and password reset tokens) in Redis.
//
// # Design
//
// Each token is a versioned, binary-encoded record under
// <prefix>t:<token-hash> with a TTL matching its expiry. A set per account,
// <prefix>a:<account-id>, indexes the account's token hashes for cascade
// deletes. Consume and RecordFailure use WATCH/MULTI optimistic transactions
// with bounded retries on contention.
//
// # What this package must NOT do
//
//   - Import goAccount.
//   - Store or log plaintext tokens; keys are already hashed by the caller.
package redisstore
