package internaldefs

import (
	goAccount "github.com/MrEthical07/goAccount"
)

// CounterDef names one engine counter for every exporter.
type CounterDef struct {
	ID   goAccount.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the engine counters.
const (
	AuditDroppedName = "goaccount_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the sink buffer was full."
)

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goAccount.MetricRegisterSuccess, Name: "goaccount_register_success_total", Help: "Accounts created through registration."},
	{ID: goAccount.MetricRegisterDuplicate, Name: "goaccount_register_duplicate_total", Help: "Registrations rejected because the email is taken."},
	{ID: goAccount.MetricLoginSuccess, Name: "goaccount_login_success_total", Help: "Logins that issued a session."},
	{ID: goAccount.MetricLoginFailure, Name: "goaccount_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: goAccount.MetricLoginLocked, Name: "goaccount_login_locked_total", Help: "Logins rejected while the account was locked."},
	{ID: goAccount.MetricAccountLocked, Name: "goaccount_account_locked_total", Help: "Accounts locked after repeated failures."},
	{ID: goAccount.MetricTwoFactorRequired, Name: "goaccount_two_factor_required_total", Help: "Logins that issued a second-factor challenge."},
	{ID: goAccount.MetricTwoFactorSuccess, Name: "goaccount_two_factor_success_total", Help: "Challenges completed with a valid code."},
	{ID: goAccount.MetricTwoFactorFailure, Name: "goaccount_two_factor_failure_total", Help: "Challenges answered with an invalid code."},
	{ID: goAccount.MetricTwoFactorChallengeBurned, Name: "goaccount_two_factor_challenge_burned_total", Help: "Challenges discarded after too many attempts."},
	{ID: goAccount.MetricTwoFactorEnabled, Name: "goaccount_two_factor_enabled_total", Help: "Two-factor enrolments confirmed."},
	{ID: goAccount.MetricTwoFactorDisabled, Name: "goaccount_two_factor_disabled_total", Help: "Two-factor enrolments removed."},
	{ID: goAccount.MetricBackupCodeUsed, Name: "goaccount_backup_code_used_total", Help: "Backup codes consumed."},
	{ID: goAccount.MetricBackupCodeFailed, Name: "goaccount_backup_code_failed_total", Help: "Backup codes that matched nothing."},
	{ID: goAccount.MetricBackupCodeRegenerated, Name: "goaccount_backup_code_regenerated_total", Help: "Backup code sets regenerated."},
	{ID: goAccount.MetricRefreshSuccess, Name: "goaccount_refresh_success_total", Help: "Refresh tokens rotated."},
	{ID: goAccount.MetricRefreshFailure, Name: "goaccount_refresh_failure_total", Help: "Refresh attempts with an unknown token."},
	{ID: goAccount.MetricRefreshExpired, Name: "goaccount_refresh_expired_total", Help: "Refresh attempts with an expired token."},
	{ID: goAccount.MetricRefreshRevoked, Name: "goaccount_refresh_revoked_total", Help: "Refresh attempts with a revoked token."},
	{ID: goAccount.MetricLogout, Name: "goaccount_logout_total", Help: "Single-session logouts."},
	{ID: goAccount.MetricLogoutAll, Name: "goaccount_logout_all_total", Help: "Logout-all operations."},
	{ID: goAccount.MetricRateLimitHit, Name: "goaccount_rate_limit_hit_total", Help: "Requests denied by the rate limiter."},
	{ID: goAccount.MetricRateLimitBackendError, Name: "goaccount_rate_limit_backend_error_total", Help: "Rate limiter failures that admitted the request."},
	{ID: goAccount.MetricEmailVerificationSent, Name: "goaccount_email_verification_sent_total", Help: "Email verification tokens issued."},
	{ID: goAccount.MetricEmailVerified, Name: "goaccount_email_verified_total", Help: "Emails marked verified."},
	{ID: goAccount.MetricPasswordResetRequest, Name: "goaccount_password_reset_request_total", Help: "Password reset tokens issued."},
	{ID: goAccount.MetricPasswordResetConfirm, Name: "goaccount_password_reset_confirm_total", Help: "Passwords replaced through a reset token."},
	{ID: goAccount.MetricPasswordRehash, Name: "goaccount_password_rehash_total", Help: "Stored hashes upgraded to current parameters on login."},
}
