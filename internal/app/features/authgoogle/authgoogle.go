// internal/app/features/authgoogle/authgoogle.go
package authgoogle

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"

	errorsfeature "github.com/dalemusser/stayhome/internal/app/features/errors"
	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/audit"
	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	"github.com/dalemusser/stayhome/internal/app/store/oauthstate"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	"github.com/dalemusser/stayhome/internal/app/system/auditlog"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Redirect error codes appended to FRONTEND_URL/login?error=.
const (
	errInvalidState = "invalid_state"
	errAuthFailed   = "auth_failed"
	errNoUser       = "no_user"
	errInvalidRole  = "invalid_role"
	errLoginFailed  = "login_failed"
)

// Options configures a Handler.
type Options struct {
	Kind         models.Kind
	ClientID     string
	ClientSecret string
	BaseURL      string // callback is BaseURL/api/auth/{kind}/google/callback
	FrontendURL  string

	// Endpoint overrides google.Endpoint. Used by tests.
	Endpoint oauth2.Endpoint
}

// Handler provides Google sign-in for one account kind.
type Handler struct {
	opts     Options
	oauth    *oauth2.Config
	profiles ProfileFetcher

	accounts *accountstore.Store
	roles    *rolestore.Store
	states   *oauthstate.Store
	tokens   *auth.TokenService

	audit  *auditlog.Logger
	errLog *errorsfeature.ErrorLogger
	logger *zap.Logger
}

// NewHandler creates a Google sign-in Handler.
func NewHandler(
	dbs dbset.Set,
	opts Options,
	tokens *auth.TokenService,
	profiles ProfileFetcher,
	audit *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	endpoint := opts.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	opts.FrontendURL = strings.TrimRight(opts.FrontendURL, "/")

	return &Handler{
		opts: opts,
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.BaseURL + "/api/auth/" + string(opts.Kind) + "/google/callback",
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		profiles: profiles,
		accounts: accountstore.New(dbs.Accounts(opts.Kind), opts.Kind),
		roles:    rolestore.New(dbs.Common),
		states:   oauthstate.New(dbs.Common),
		tokens:   tokens,
		audit:    audit,
		errLog:   errorsfeature.NewErrorLogger(logger),
		logger:   logger,
	}
}

// Routes returns a chi.Router with the Google sign-in routes. It is meant to
// be mounted at /google under the kind's auth router.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.startAuth)
	r.Get("/callback", h.handleCallback)
	return r
}

func (h *Handler) failRedirect(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.opts.FrontendURL+"/login?error="+url.QueryEscape(code), http.StatusSeeOther)
}

// startAuth stores a single-use state and sends the browser to Google.
func (h *Handler) startAuth(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		h.errLog.Log(r, "failed to generate oauth state", err)
		h.failRedirect(w, r, errAuthFailed)
		return
	}
	if err := h.states.Create(r.Context(), state, h.opts.Kind); err != nil {
		h.errLog.Log(r, "failed to store oauth state", err)
		h.failRedirect(w, r, errAuthFailed)
		return
	}
	target := h.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// handleCallback finishes sign-in and hands the token to the frontend.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errMsg := q.Get("error"); errMsg != "" {
		h.logger.Warn("oauth error from google", zap.String("error", errMsg))
		h.failRedirect(w, r, errMsg)
		return
	}

	kind, err := h.states.Consume(r.Context(), q.Get("state"))
	if err != nil || kind != h.opts.Kind {
		if err != nil && !errors.Is(err, oauthstate.ErrInvalidState) {
			h.errLog.Log(r, "oauth state lookup failed", err)
		}
		h.failRedirect(w, r, errInvalidState)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.failRedirect(w, r, errAuthFailed)
		return
	}
	tok, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.errLog.Log(r, "failed to exchange oauth code", err)
		h.failRedirect(w, r, errAuthFailed)
		return
	}
	profile, err := h.profiles.Fetch(r.Context(), tok.AccessToken)
	if err != nil {
		h.errLog.Log(r, "failed to fetch google profile", err)
		h.failRedirect(w, r, errAuthFailed)
		return
	}
	if profile.Email == "" {
		h.failRedirect(w, r, errNoUser)
		return
	}

	acct, err := h.findOrCreate(r, profile)
	if err != nil {
		h.errLog.Log(r, "google sign-in account lookup failed", err, zap.String("google_id", profile.ID))
		h.failRedirect(w, r, errLoginFailed)
		return
	}

	roleName := ""
	if role, err := h.roles.GetByID(r.Context(), acct.Role); err == nil {
		roleName = role.Name
	}
	if !auth.RoleAllowed(h.opts.Kind, roleName) {
		h.audit.LoginFailed(r, h.opts.Kind, acct.ID, acct.Email, audit.EventLoginFailedRole, "invalid role "+roleName)
		h.failRedirect(w, r, errInvalidRole)
		return
	}

	token, err := h.tokens.IssueGoogle(auth.Principal{ID: acct.ID, Email: acct.Email, Role: roleName, Kind: h.opts.Kind})
	if err != nil {
		h.errLog.Log(r, "failed to sign token", err)
		h.failRedirect(w, r, errLoginFailed)
		return
	}
	if _, err := h.accounts.TouchLogin(r.Context(), acct.ID); err != nil {
		h.errLog.Log(r, "failed to record last login", err)
	}
	h.audit.Auth(r, h.opts.Kind, acct.ID, audit.EventGoogleLogin, "", map[string]string{"email": acct.Email})

	v := url.Values{}
	v.Set("token", token)
	v.Set("role", roleName)
	v.Set("profileId", acct.ID.Hex())
	v.Set("email", acct.Email)
	v.Set("name", acct.Name)
	http.Redirect(w, r, h.opts.FrontendURL+"/oauth-success?"+v.Encode(), http.StatusSeeOther)
}

// findOrCreate resolves the Google profile to an account: by Google id,
// then by email (linking it), else a new account with the kind's role.
// Accounts missing a role are given the kind's role.
func (h *Handler) findOrCreate(r *http.Request, p *Profile) (*models.AccountSummary, error) {
	ctx := r.Context()
	systemRole, err := h.roles.GetByName(ctx, h.opts.Kind.SystemRole())
	if err != nil {
		return nil, err
	}

	acct, err := h.accounts.GetByGoogleID(ctx, p.ID)
	if errors.Is(err, accountstore.ErrNotFound) {
		acct, err = h.accounts.GetByEmail(ctx, p.Email)
		if err == nil {
			if err := h.accounts.LinkGoogle(ctx, acct.ID, p.ID); err != nil {
				return nil, err
			}
		}
	}
	if errors.Is(err, accountstore.ErrNotFound) {
		id, err := h.accounts.Create(ctx, models.Account{
			Email:        p.Email,
			Role:         systemRole.ID,
			IsApproved:   true,
			GoogleID:     p.ID,
			AuthProvider: models.ProviderGoogle,
		}, bson.M{"name": htmlsanitize.Text(p.Name)})
		if err != nil {
			return nil, err
		}
		return h.accounts.GetByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	if acct.Role.IsZero() {
		if err := h.accounts.SetRole(ctx, acct.ID, systemRole.ID); err != nil {
			return nil, err
		}
		acct.Role = systemRole.ID
	}
	return acct, nil
}

// generateState generates a random state token.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
