// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/stayhome/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "STAYHOME"

// minJWTSecret is the shortest JWT secret accepted in production.
const minJWTSecret = 32

const devJWTSecret = "dev-only-jwt-secret-change-me-0123456789"

// appConfigKeys defines the configuration keys for this application.
// They are read from config files (mongo_uri), environment variables
// (STAYHOME_MONGO_URI) and command-line flags (--mongo_uri).
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "Default MongoDB connection URI"},
	{Name: "student_mongo_uri", Default: "", Desc: "MongoDB URI for the student database (blank uses mongo_uri)"},
	{Name: "owner_mongo_uri", Default: "", Desc: "MongoDB URI for the owner database (blank uses mongo_uri)"},
	{Name: "common_mongo_uri", Default: "", Desc: "MongoDB URI for the common database (blank uses mongo_uri)"},
	{Name: "student_db", Default: "stayhome_students", Desc: "Student database name"},
	{Name: "owner_db", Default: "stayhome_owners", Desc: "Owner database name"},
	{Name: "common_db", Default: "stayhome_common", Desc: "Common database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size per client"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size per client"},

	{Name: "jwt_secret", Default: devJWTSecret, Desc: "HS256 signing secret for access tokens (32+ chars in production)"},
	{Name: "jwt_expiry", Default: "1h", Desc: "Access token lifetime for password sign-ins"},
	{Name: "jwt_google_expiry", Default: "24h", Desc: "Access token lifetime for Google sign-ins"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Registration cookie signing key (must be strong in production)"},
	{Name: "session_name", Default: "stayhome-registration", Desc: "Registration cookie name"},
	{Name: "session_domain", Default: "", Desc: "Registration cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "15m", Desc: "Registration cookie max age"},

	{Name: "frontend_url", Default: "http://localhost:3000", Desc: "Browser frontend origin (CORS, OAuth redirects, email links)"},
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public URL of this API"},

	{Name: "otp_expiry", Default: "10m", Desc: "Registration OTP lifetime"},
	{Name: "email_change_otp_expiry", Default: "5m", Desc: "Email change OTP lifetime"},
	{Name: "reset_token_expiry", Default: "1h", Desc: "Password reset link lifetime"},

	{Name: "rate_limit_enabled", Default: true, Desc: "Lock out logins after repeated failures"},
	{Name: "rate_limit_login_attempts", Default: 5, Desc: "Max failed login attempts before lockout"},
	{Name: "rate_limit_login_window", Default: "15m", Desc: "Time window for counting failed attempts"},
	{Name: "rate_limit_login_lockout", Default: "15m", Desc: "Lockout duration after exceeding limit"},

	{Name: "auth_rate_limit_requests", Default: 60, Desc: "Requests per client IP per window on auth routes (0 disables)"},
	{Name: "auth_rate_limit_window", Default: "1m", Desc: "Window for auth_rate_limit_requests"},

	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for uploaded images"},
	{Name: "storage_local_url", Default: "/files", Desc: "URL prefix of local storage"},

	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "uploads/", Desc: "S3 key prefix"},
	{Name: "storage_cf_url", Default: "", Desc: "CloudFront distribution URL"},
	{Name: "storage_cf_keypair_id", Default: "", Desc: "CloudFront key pair ID"},
	{Name: "storage_cf_key_path", Default: "", Desc: "Path to CloudFront private key file"},

	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host (blank logs emails instead)"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@stayhome.local", Desc: "From email address"},
	{Name: "mail_from_name", Default: "StayHome", Desc: "From display name, also used as the app name in emails"},

	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_retention", Default: "2160h", Desc: "How long audit events are kept (0 keeps them forever)"},

	{Name: "ledger_enabled", Default: true, Desc: "Record failed API requests in the request ledger"},
	{Name: "ledger_retention", Default: "720h", Desc: "How long request ledger entries are kept (0 keeps them forever)"},
	{Name: "api_stats_enabled", Default: true, Desc: "Count requests per API area in hourly buckets"},
	{Name: "api_stats_retention", Default: "2160h", Desc: "How long API stats buckets are kept (0 keeps them forever)"},
	{Name: "mail_queue_workers", Default: 2, Desc: "Workers delivering queued notification emails"},
	{Name: "mail_queue_retry_delay", Default: "30s", Desc: "Base delay before a failed email is retried"},
	{Name: "job_retention", Default: "168h", Desc: "How long finished background jobs are kept"},

	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	{Name: "seed_admin_email", Default: "", Desc: "Email of the admin account to create on startup"},
	{Name: "seed_admin_password", Default: "", Desc: "Password of the seeded admin account"},
	{Name: "seed_admin_name", Default: "Admin", Desc: "Name of the seeded admin account"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// Precedence is flags > env > files > defaults; .env files are honored.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, v, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         v.String("mongo_uri"),
		StudentMongoURI:  v.String("student_mongo_uri"),
		OwnerMongoURI:    v.String("owner_mongo_uri"),
		CommonMongoURI:   v.String("common_mongo_uri"),
		StudentDB:        v.String("student_db"),
		OwnerDB:          v.String("owner_db"),
		CommonDB:         v.String("common_db"),
		MongoMaxPoolSize: uint64(v.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(v.Int("mongo_min_pool_size")),

		JWTSecret:       v.String("jwt_secret"),
		JWTExpiry:       v.Duration("jwt_expiry", time.Hour),
		JWTGoogleExpiry: v.Duration("jwt_google_expiry", 24*time.Hour),

		SessionKey:    v.String("session_key"),
		SessionName:   v.String("session_name"),
		SessionDomain: v.String("session_domain"),
		SessionMaxAge: v.Duration("session_max_age", 15*time.Minute),

		FrontendURL: v.String("frontend_url"),
		BaseURL:     v.String("base_url"),

		OTPExpiry:            v.Duration("otp_expiry", 10*time.Minute),
		EmailChangeOTPExpiry: v.Duration("email_change_otp_expiry", 5*time.Minute),
		ResetTokenExpiry:     v.Duration("reset_token_expiry", time.Hour),

		RateLimitEnabled:       v.Bool("rate_limit_enabled"),
		RateLimitLoginAttempts: v.Int("rate_limit_login_attempts"),
		RateLimitLoginWindow:   v.Duration("rate_limit_login_window", 15*time.Minute),
		RateLimitLoginLockout:  v.Duration("rate_limit_login_lockout", 15*time.Minute),

		AuthRateLimitRequests: v.Int("auth_rate_limit_requests"),
		AuthRateLimitWindow:   v.Duration("auth_rate_limit_window", time.Minute),

		StorageType:      v.String("storage_type"),
		StorageLocalPath: v.String("storage_local_path"),
		StorageLocalURL:  v.String("storage_local_url"),

		StorageS3Region:    v.String("storage_s3_region"),
		StorageS3Bucket:    v.String("storage_s3_bucket"),
		StorageS3Prefix:    v.String("storage_s3_prefix"),
		StorageCFURL:       v.String("storage_cf_url"),
		StorageCFKeyPairID: v.String("storage_cf_keypair_id"),
		StorageCFKeyPath:   v.String("storage_cf_key_path"),

		MailSMTPHost: v.String("mail_smtp_host"),
		MailSMTPPort: v.Int("mail_smtp_port"),
		MailSMTPUser: v.String("mail_smtp_user"),
		MailSMTPPass: v.String("mail_smtp_pass"),
		MailFrom:     v.String("mail_from"),
		MailFromName: v.String("mail_from_name"),

		AuditLogAuth:   v.String("audit_log_auth"),
		AuditLogAdmin:  v.String("audit_log_admin"),
		AuditRetention: v.Duration("audit_retention", 90*24*time.Hour),

		LedgerEnabled:       v.Bool("ledger_enabled"),
		LedgerRetention:     v.Duration("ledger_retention", 30*24*time.Hour),
		APIStatsEnabled:     v.Bool("api_stats_enabled"),
		APIStatsRetention:   v.Duration("api_stats_retention", 90*24*time.Hour),
		MailQueueWorkers:    v.Int("mail_queue_workers"),
		MailQueueRetryDelay: v.Duration("mail_queue_retry_delay", 30*time.Second),
		JobRetention:        v.Duration("job_retention", 7*24*time.Hour),

		GoogleClientID:     v.String("google_client_id"),
		GoogleClientSecret: v.String("google_client_secret"),

		SeedAdminEmail:    v.String("seed_admin_email"),
		SeedAdminPassword: v.String("seed_admin_password"),
		SeedAdminName:     v.String("seed_admin_name"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Every effective Mongo URI must parse, the three database names must be
// distinct, audit modes must be known, and production refuses the default
// or a short JWT secret.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	student, owner, common := appCfg.mongoURIs()
	for name, uri := range map[string]string{"student": student, "owner": owner, "common": common} {
		if err := wafflemongo.ValidateURI(uri); err != nil {
			logger.Error("invalid MongoDB URI", zap.String("database", name), zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI for %s database: %w", name, err)
		}
	}

	if appCfg.StudentDB == "" || appCfg.OwnerDB == "" || appCfg.CommonDB == "" {
		return errors.New("student_db, owner_db and common_db must be set")
	}
	targets := [][2]string{{student, appCfg.StudentDB}, {owner, appCfg.OwnerDB}, {common, appCfg.CommonDB}}
	for i := range targets {
		for j := i + 1; j < len(targets); j++ {
			if targets[i] == targets[j] {
				return errors.New("student_db, owner_db and common_db must name different databases")
			}
		}
	}

	for _, mode := range []string{appCfg.AuditLogAuth, appCfg.AuditLogAdmin} {
		if !auditlog.ValidMode(mode) {
			return fmt.Errorf("unknown audit log mode %q (want all, db, log or off)", mode)
		}
	}

	if appCfg.MailQueueWorkers < 0 {
		return errors.New("mail_queue_workers must not be negative")
	}

	if appCfg.SeedAdminEmail != "" && appCfg.SeedAdminPassword == "" {
		return errors.New("seed_admin_password is required when seed_admin_email is set")
	}

	if coreCfg.Env == "prod" {
		if appCfg.JWTSecret == devJWTSecret || len(appCfg.JWTSecret) < minJWTSecret {
			logger.Error("weak JWT secret in production")
			return fmt.Errorf("jwt_secret must be at least %d characters and not the default in production", minJWTSecret)
		}
	}

	return nil
}
