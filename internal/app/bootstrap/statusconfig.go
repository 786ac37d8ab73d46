// internal/app/bootstrap/statusconfig.go
package bootstrap

import (
	"fmt"
	"strconv"

	statusfeature "github.com/dalemusser/stayhome/internal/app/features/status"
	"github.com/dalemusser/waffle/config"
)

type item = statusfeature.ConfigItem

// statusConfig is the configuration snapshot shown on the admin status
// report. Secrets are masked here; nothing else should reach the report.
func statusConfig(coreCfg *config.CoreConfig, c AppConfig) []statusfeature.ConfigGroup {
	mask := statusfeature.Mask
	student, owner, common := c.mongoURIs()
	dur := func(name string, v fmt.Stringer) item { return item{Name: name, Value: v.String()} }
	num := func(name string, v int) item { return item{Name: name, Value: strconv.Itoa(v)} }
	flag := func(name string, v bool) item { return item{Name: name, Value: strconv.FormatBool(v)} }

	var groups []statusfeature.ConfigGroup
	if coreCfg != nil {
		groups = append(groups, statusfeature.ConfigGroup{
			Name: "Environment",
			Items: []item{
				{Name: "env", Value: coreCfg.Env},
				{Name: "log_level", Value: coreCfg.LogLevel},
			},
		})
	}

	groups = append(groups,
		statusfeature.ConfigGroup{Name: "Database", Items: []item{
			{Name: "student_mongo_uri", Value: statusfeature.MaskURI(student)},
			{Name: "owner_mongo_uri", Value: statusfeature.MaskURI(owner)},
			{Name: "common_mongo_uri", Value: statusfeature.MaskURI(common)},
			{Name: "student_db", Value: c.StudentDB},
			{Name: "owner_db", Value: c.OwnerDB},
			{Name: "common_db", Value: c.CommonDB},
			{Name: "mongo_max_pool_size", Value: strconv.FormatUint(c.MongoMaxPoolSize, 10)},
			{Name: "mongo_min_pool_size", Value: strconv.FormatUint(c.MongoMinPoolSize, 10)},
		}},
		statusfeature.ConfigGroup{Name: "Tokens & Sessions", Items: []item{
			{Name: "jwt_secret", Value: mask(c.JWTSecret)},
			dur("jwt_expiry", c.JWTExpiry),
			dur("jwt_google_expiry", c.JWTGoogleExpiry),
			{Name: "session_key", Value: mask(c.SessionKey)},
			{Name: "session_name", Value: c.SessionName},
			{Name: "session_domain", Value: c.SessionDomain},
			dur("session_max_age", c.SessionMaxAge),
		}},
		statusfeature.ConfigGroup{Name: "URLs", Items: []item{
			{Name: "frontend_url", Value: c.FrontendURL},
			{Name: "base_url", Value: c.BaseURL},
		}},
		statusfeature.ConfigGroup{Name: "Codes & Rate Limits", Items: []item{
			dur("otp_expiry", c.OTPExpiry),
			dur("email_change_otp_expiry", c.EmailChangeOTPExpiry),
			dur("reset_token_expiry", c.ResetTokenExpiry),
			flag("rate_limit_enabled", c.RateLimitEnabled),
			num("rate_limit_login_attempts", c.RateLimitLoginAttempts),
			dur("rate_limit_login_window", c.RateLimitLoginWindow),
			dur("rate_limit_login_lockout", c.RateLimitLoginLockout),
			num("auth_rate_limit_requests", c.AuthRateLimitRequests),
			dur("auth_rate_limit_window", c.AuthRateLimitWindow),
		}},
		statusfeature.ConfigGroup{Name: "Storage", Items: []item{
			{Name: "storage_type", Value: c.StorageType},
			{Name: "storage_local_path", Value: c.StorageLocalPath},
			{Name: "storage_local_url", Value: c.StorageLocalURL},
			{Name: "storage_s3_region", Value: c.StorageS3Region},
			{Name: "storage_s3_bucket", Value: c.StorageS3Bucket},
			{Name: "storage_s3_prefix", Value: c.StorageS3Prefix},
			{Name: "storage_cf_url", Value: c.StorageCFURL},
			{Name: "storage_cf_keypair_id", Value: c.StorageCFKeyPairID},
		}},
		statusfeature.ConfigGroup{Name: "Email", Items: []item{
			{Name: "mail_smtp_host", Value: c.MailSMTPHost},
			num("mail_smtp_port", c.MailSMTPPort),
			{Name: "mail_smtp_user", Value: c.MailSMTPUser},
			{Name: "mail_smtp_pass", Value: mask(c.MailSMTPPass)},
			{Name: "mail_from", Value: c.MailFrom},
			{Name: "mail_from_name", Value: c.MailFromName},
			num("mail_queue_workers", c.MailQueueWorkers),
			dur("mail_queue_retry_delay", c.MailQueueRetryDelay),
		}},
		statusfeature.ConfigGroup{Name: "Audit & Monitoring", Items: []item{
			{Name: "audit_log_auth", Value: c.AuditLogAuth},
			{Name: "audit_log_admin", Value: c.AuditLogAdmin},
			dur("audit_retention", c.AuditRetention),
			flag("ledger_enabled", c.LedgerEnabled),
			dur("ledger_retention", c.LedgerRetention),
			flag("api_stats_enabled", c.APIStatsEnabled),
			dur("api_stats_retention", c.APIStatsRetention),
			dur("job_retention", c.JobRetention),
		}},
		statusfeature.ConfigGroup{Name: "Google Sign-in", Items: []item{
			{Name: "google_client_id", Value: mask(c.GoogleClientID)},
			{Name: "google_client_secret", Value: mask(c.GoogleClientSecret)},
		}},
		statusfeature.ConfigGroup{Name: "Admin Seeding", Items: []item{
			{Name: "seed_admin_email", Value: c.SeedAdminEmail},
			{Name: "seed_admin_name", Value: c.SeedAdminName},
		}},
	)
	return groups
}
