// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	accountauthfeature "github.com/dalemusser/stayhome/internal/app/features/accountauth"
	adminfeature "github.com/dalemusser/stayhome/internal/app/features/admin"
	apistatsfeature "github.com/dalemusser/stayhome/internal/app/features/apistats"
	auditlogfeature "github.com/dalemusser/stayhome/internal/app/features/auditlog"
	authgooglefeature "github.com/dalemusser/stayhome/internal/app/features/authgoogle"
	errorsfeature "github.com/dalemusser/stayhome/internal/app/features/errors"
	healthfeature "github.com/dalemusser/stayhome/internal/app/features/health"
	hostelsfeature "github.com/dalemusser/stayhome/internal/app/features/hostels"
	jobsfeature "github.com/dalemusser/stayhome/internal/app/features/jobs"
	ledgerfeature "github.com/dalemusser/stayhome/internal/app/features/ledger"
	rbacfeature "github.com/dalemusser/stayhome/internal/app/features/rbac"
	statusfeature "github.com/dalemusser/stayhome/internal/app/features/status"
	studentsfeature "github.com/dalemusser/stayhome/internal/app/features/students"
	useradminfeature "github.com/dalemusser/stayhome/internal/app/features/useradmin"
	apistatsstore "github.com/dalemusser/stayhome/internal/app/store/apistats"
	"github.com/dalemusser/stayhome/internal/app/store/audit"
	jobstore "github.com/dalemusser/stayhome/internal/app/store/jobs"
	ledgerstore "github.com/dalemusser/stayhome/internal/app/store/ledger"
	"github.com/dalemusser/stayhome/internal/app/store/ratelimit"
	"github.com/dalemusser/stayhome/internal/app/system/apicors"
	"github.com/dalemusser/stayhome/internal/app/system/apistats"
	"github.com/dalemusser/stayhome/internal/app/system/auditlog"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/auth/storeresolver"
	"github.com/dalemusser/stayhome/internal/app/system/authz"
	"github.com/dalemusser/stayhome/internal/app/system/ledger"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/stayhome/internal/app/system/mailqueue"
	"github.com/dalemusser/stayhome/internal/app/system/uploads"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Request recorders write in the background; Shutdown waits for them.
var (
	requestLedger *ledger.Recorder
	apiStats      *apistats.Recorder
)

// BuildHandler constructs the root HTTP handler for StayHome.
//
// Layout:
//
//	/health, /readyz, /livez          probes
//	/api/auth/student[/google]        student sign-up, sign-in, password flows
//	/api/auth/owner[/google]          owner sign-up, sign-in, password flows
//	/api/students                     student self-service
//	/api/hostels                      public listings and owner management
//	/api/admin                        staff moderation, users, roles, RBAC, audit,
//	                                  jobs, request ledger, API stats, status
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	dbs := deps.DBs
	secure := coreCfg.Env == "prod"
	appName := appCfg.MailFromName

	tokens, err := auth.NewTokenService(appCfg.JWTSecret, appCfg.JWTExpiry, appCfg.JWTGoogleExpiry)
	if err != nil {
		logger.Error("token service init failed", zap.Error(err))
		return nil, err
	}
	guard := auth.NewGuard(tokens, storeresolver.New(dbs), logger)

	pending, err := auth.NewRegistrationSessions(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("registration session init failed", zap.Error(err))
		return nil, err
	}

	auditLogger := auditlog.New(audit.New(dbs.Common), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})

	var limiter *ratelimit.Store
	if appCfg.RateLimitEnabled {
		limiter = ratelimit.New(dbs.Common, appCfg.RateLimitLoginAttempts, appCfg.RateLimitLoginWindow, appCfg.RateLimitLoginLockout)
	}

	// Notifications go through the outbox; OTP and reset emails stay
	// synchronous so the caller sees a delivery failure.
	queued := mailqueue.New(jobstore.New(dbs.Common), logger)

	images := uploads.New(deps.FileStorage, logger)
	checker := authz.NewChecker(dbs.Common, logger)
	notify := mailer.Notifier{
		Sender:   queued,
		AppName:  appName,
		LoginURL: appCfg.FrontendURL + "/login",
		Log:      logger,
	}
	errorsHandler := errorsfeature.NewHandler()

	statsStore := apistatsstore.New(dbs.Common, time.Hour)
	apiStats, requestLedger = nil, nil
	if appCfg.APIStatsEnabled {
		apiStats = apistats.NewRecorder(statsStore, logger)
	}

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware
	// ─────────────────────────────────────────────────────────────────────────────
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if appCfg.LedgerEnabled {
		requestLedger = ledger.NewRecorder(ledgerstore.New(dbs.Common), ledger.Config{
			Tokens:       tokens,
			ExcludePaths: []string{"/health", "/readyz", "/livez"},
		}, logger)
		r.Use(requestLedger.Middleware)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	// Credentialed CORS for the frontend origin only. Must run before any
	// route so preflights are answered.
	r.Use(apicors.MiddlewareWithOrigins(appCfg.FrontendURL))
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// ─────────────────────────────────────────────────────────────────────────────
	// Probes
	// ─────────────────────────────────────────────────────────────────────────────
	healthHandler := healthfeature.NewHandler(dbs, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// ─────────────────────────────────────────────────────────────────────────────
	// Account auth, one router per kind
	// ─────────────────────────────────────────────────────────────────────────────
	googleEnabled := appCfg.GoogleClientID != "" && appCfg.GoogleClientSecret != ""
	var profiles *authgooglefeature.ProfileClient
	if googleEnabled {
		profiles = authgooglefeature.NewProfileClient("", logger)
	}

	for _, kind := range []models.Kind{models.KindStudent, models.KindOwner} {
		authHandler := accountauthfeature.NewHandler(dbs, accountauthfeature.Options{
			Kind:              kind,
			AppName:           appName,
			BaseURL:           appCfg.BaseURL,
			FrontendURL:       appCfg.FrontendURL,
			OTPExpiry:         appCfg.OTPExpiry,
			EmailChangeExpiry: appCfg.EmailChangeOTPExpiry,
			ResetTokenExpiry:  appCfg.ResetTokenExpiry,
			RequestLimit:      appCfg.AuthRateLimitRequests,
			RequestWindow:     appCfg.AuthRateLimitWindow,
			DevMode:           coreCfg.Env == "dev",
		}, pending, tokens, guard, limiter, deps.Mailer, auditLogger, logger)
		authRouter := accountauthfeature.Routes(authHandler)

		if googleEnabled {
			googleHandler := authgooglefeature.NewHandler(dbs, authgooglefeature.Options{
				Kind:         kind,
				ClientID:     appCfg.GoogleClientID,
				ClientSecret: appCfg.GoogleClientSecret,
				BaseURL:      appCfg.BaseURL,
				FrontendURL:  appCfg.FrontendURL,
			}, tokens, profiles, auditLogger, logger)
			authRouter.Mount("/google", authgooglefeature.Routes(googleHandler))
			logger.Info("Google sign-in enabled", zap.String("kind", string(kind)))
		}

		area := apistatsstore.AreaStudentAuth
		if kind == models.KindOwner {
			area = apistatsstore.AreaOwnerAuth
		}
		r.Mount("/api/auth/"+string(kind), apiStats.Track(area)(authRouter))
	}

	// ─────────────────────────────────────────────────────────────────────────────
	// Students and hostels
	// ─────────────────────────────────────────────────────────────────────────────
	studentsHandler := studentsfeature.NewHandler(dbs, images, guard, queued, appName, logger)
	r.Mount("/api/students", apiStats.Track(apistatsstore.AreaStudents)(studentsfeature.Routes(studentsHandler)))

	hostelsHandler := hostelsfeature.NewHandler(dbs, images, guard, queued, appName, logger)
	r.Mount("/api/hostels", apiStats.Track(apistatsstore.AreaHostels)(hostelsfeature.Routes(hostelsHandler)))

	// ─────────────────────────────────────────────────────────────────────────────
	// Admin console API. Staff only; each route then checks its module
	// permission (audit, jobs, ledger and stats are admin only).
	// ─────────────────────────────────────────────────────────────────────────────
	r.Route("/api/admin", func(ar chi.Router) {
		ar.Use(apiStats.Track(apistatsstore.AreaAdmin))
		ar.Use(guard.Middleware)
		ar.Use(guard.RequireKind())
		ar.Use(authz.RequireStaff)

		adminfeature.NewHandler(dbs, images, checker, auditLogger, notify, logger).MountRoutes(ar)
		rbacfeature.NewHandler(dbs.Common, checker, auditLogger, logger).MountRoutes(ar)
		useradminfeature.NewHandler(dbs, images, checker, auditLogger, notify, logger).MountRoutes(ar)
		auditlogfeature.NewHandler(dbs, logger).MountRoutes(ar)
		jobsfeature.NewHandler(dbs.Common, auditLogger, logger).MountRoutes(ar)
		ledgerfeature.NewHandler(dbs.Common, logger).MountRoutes(ar)
		apistatsfeature.NewHandler(statsStore, logger).MountRoutes(ar)
		statusfeature.NewHandler(dbs, statusConfig(coreCfg, appCfg), logger).MountRoutes(ar)
	})

	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	return r, nil
}
