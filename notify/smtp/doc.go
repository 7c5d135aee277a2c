// Package smtp delivers verification and password reset tokens by email.
//
// [Mailer] implements goAccount.Notifier over a pooled SMTP connection
// (github.com/jordan-wright/email). Each message carries a plain-text and an
// HTML part rendered from the configured link templates.
//
// # What this package must NOT do
//
//   - Log or persist token values.
//   - Retry sends; the Engine reports delivery failures to its caller.
package smtp
