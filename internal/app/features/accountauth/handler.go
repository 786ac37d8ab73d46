// internal/app/features/accountauth/handler.go
package accountauth

import (
	"net/http"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/stayhome/internal/app/features/errors"
	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	otpstore "github.com/dalemusser/stayhome/internal/app/store/otp"
	"github.com/dalemusser/stayhome/internal/app/store/passwordreset"
	"github.com/dalemusser/stayhome/internal/app/store/ratelimit"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	"github.com/dalemusser/stayhome/internal/app/system/auditlog"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

// Default lifetimes for emailed codes.
const (
	DefaultOTPExpiry         = 10 * time.Minute
	DefaultEmailChangeExpiry = 5 * time.Minute
	DefaultResetTokenExpiry  = time.Hour
)

// Options configures a Handler. Zero durations fall back to the defaults.
type Options struct {
	Kind        models.Kind
	AppName     string
	BaseURL     string // used to build password reset links
	FrontendURL string // linked from notification emails

	OTPExpiry         time.Duration
	EmailChangeExpiry time.Duration
	ResetTokenExpiry  time.Duration

	// RequestLimit caps requests per client IP per RequestWindow across the
	// router. Zero disables it.
	RequestLimit  int
	RequestWindow time.Duration

	// DevMode returns the reset token in the /reset-password response.
	DevMode bool
}

// Handler serves the account auth routes for one account kind.
type Handler struct {
	opts Options

	accounts *accountstore.Store
	roles    *rolestore.Store
	otps     *otpstore.Store
	resets   *passwordreset.Store
	limiter  *ratelimit.Store // nil disables login lockout

	pending *auth.RegistrationSessions
	tokens  *auth.TokenService
	guard   *auth.Guard

	mail   mailer.Sender
	audit  *auditlog.Logger
	errLog *errorsfeature.ErrorLogger
	logger *zap.Logger
}

// NewHandler creates a Handler for opts.Kind.
func NewHandler(
	dbs dbset.Set,
	opts Options,
	pending *auth.RegistrationSessions,
	tokens *auth.TokenService,
	guard *auth.Guard,
	limiter *ratelimit.Store,
	mail mailer.Sender,
	audit *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	if opts.OTPExpiry <= 0 {
		opts.OTPExpiry = DefaultOTPExpiry
	}
	if opts.EmailChangeExpiry <= 0 {
		opts.EmailChangeExpiry = DefaultEmailChangeExpiry
	}
	if opts.ResetTokenExpiry <= 0 {
		opts.ResetTokenExpiry = DefaultResetTokenExpiry
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	opts.FrontendURL = strings.TrimRight(opts.FrontendURL, "/")

	return &Handler{
		opts:     opts,
		accounts: accountstore.New(dbs.Accounts(opts.Kind), opts.Kind),
		roles:    rolestore.New(dbs.Common),
		otps:     otpstore.New(dbs.Common),
		resets:   passwordreset.New(dbs.Common, opts.ResetTokenExpiry),
		limiter:  limiter,
		pending:  pending,
		tokens:   tokens,
		guard:    guard,
		mail:     mail,
		audit:    audit,
		errLog:   errorsfeature.NewErrorLogger(logger),
		logger:   logger,
	}
}

// Routes returns a chi.Router with the auth routes for the handler's kind.
// The caller may mount further sub-routers (Google sign-in) on it.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	if h.opts.RequestLimit > 0 {
		r.Use(httprate.LimitByIP(h.opts.RequestLimit, h.opts.RequestWindow))
	}

	r.Post("/register", h.register)
	r.Post("/verify-registration-otp", h.verifyRegistration)
	r.Post("/login", h.login)
	r.Post("/forgot-password", h.forgotPassword)
	r.Post("/reset-own-password", h.resetOwnPassword)
	r.Post("/reset-password", h.requestResetLink)
	r.Get("/reset/{token}", h.verifyResetToken)
	r.Post("/reset-password/{token}", h.resetWithToken)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Middleware)
		r.Use(h.guard.RequireKind(h.opts.Kind))
		r.Post("/logout", h.logout)
		r.Post("/send-email-otp", h.sendEmailOTP)
		r.Post("/verify-email-otp", h.verifyEmailOTP)
	})

	return r
}

// notFound answers 404 with the kind's label ("Student not found").
func (h *Handler) notFound(w http.ResponseWriter) {
	jsonutil.NotFound(w, h.opts.Kind.Label()+" not found")
}
