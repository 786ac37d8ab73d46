// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for StayHome.
//
// Values come from environment variables (STAYHOME_*), configuration files,
// or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers
// the framework-level settings: ports, TLS, logging, security headers and
// request limits.
//
// The struct is passed to every lifecycle hook.
type AppConfig struct {
	// MongoDB. Each logical database may live on its own cluster; a blank
	// per-database URI falls back to MongoURI.
	MongoURI         string
	StudentMongoURI  string
	OwnerMongoURI    string
	CommonMongoURI   string
	StudentDB        string
	OwnerDB          string
	CommonDB         string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Access tokens
	JWTSecret       string
	JWTExpiry       time.Duration // password sign-ins
	JWTGoogleExpiry time.Duration // Google sign-ins

	// Pending registration cookie
	SessionKey    string
	SessionName   string
	SessionDomain string
	SessionMaxAge time.Duration

	// FrontendURL is the browser app origin. It is the only CORS origin
	// allowed and the target of OAuth redirects and email links.
	FrontendURL string
	// BaseURL is this API's public URL (password reset links, OAuth callback).
	BaseURL string

	// Emailed code lifetimes
	OTPExpiry            time.Duration
	EmailChangeOTPExpiry time.Duration
	ResetTokenExpiry     time.Duration

	// Login lockout after repeated failures
	RateLimitEnabled       bool
	RateLimitLoginAttempts int
	RateLimitLoginWindow   time.Duration
	RateLimitLoginLockout  time.Duration

	// Per-IP request limit on the auth routers (0 disables)
	AuthRateLimitRequests int
	AuthRateLimitWindow   time.Duration

	// File storage
	StorageType      string // "local" or "s3"
	StorageLocalPath string
	StorageLocalURL  string

	// S3/CloudFront (only used if StorageType is "s3")
	StorageS3Region    string
	StorageS3Bucket    string
	StorageS3Prefix    string
	StorageCFURL       string
	StorageCFKeyPairID string
	StorageCFKeyPath   string

	// Email/SMTP. A blank host logs emails instead of sending them.
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// Audit logging: "all" (MongoDB + zap), "db", "log" or "off"
	AuditLogAuth   string
	AuditLogAdmin  string
	AuditRetention time.Duration // 0 keeps events forever

	// Request ledger and per-area API stats
	LedgerEnabled     bool
	LedgerRetention   time.Duration
	APIStatsEnabled   bool
	APIStatsRetention time.Duration

	// Outbox for notification emails
	MailQueueWorkers    int
	MailQueueRetryDelay time.Duration
	JobRetention        time.Duration

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string

	// Admin seeding
	SeedAdminEmail    string
	SeedAdminPassword string
	SeedAdminName     string
}

// mongoURIs returns the effective URI for the student, owner and common
// databases in that order.
func (c AppConfig) mongoURIs() (student, owner, common string) {
	pick := func(uri string) string {
		if uri == "" {
			return c.MongoURI
		}
		return uri
	}
	return pick(c.StudentMongoURI), pick(c.OwnerMongoURI), pick(c.CommonMongoURI)
}
