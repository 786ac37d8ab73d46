package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// Session error classification for logging and monitoring.
type sessionErrorType int

const (
	sessionErrUnknown   sessionErrorType = iota
	sessionErrExpired                    // timestamp expired - normal
	sessionErrTampered                   // MAC invalid - potential attack
	sessionErrCorrupted                  // decode/decrypt failed - corruption or key rotation
	sessionErrBackend                    // store/backend failure
)

var (
	ErrRegistrationEmailMismatch = errors.New("email does not match the pending registration")
	ErrInvalidOTP                = errors.New("invalid otp")
	ErrOTPExpired                = errors.New("otp has expired")
)

// PendingRegistration is what a visitor has submitted to /register but not
// yet confirmed with the emailed code.
type PendingRegistration struct {
	Kind         models.Kind       `json:"kind"`
	Email        string            `json:"email"`
	PasswordHash string            `json:"passwordHash"`
	Profile      map[string]string `json:"profile,omitempty"`
	OTP          string            `json:"otp"`
	ExpiresAt    time.Time         `json:"expiresAt"`
}

// Check validates a confirmation attempt. The email comparison is exact
// after normalization by the caller.
func (p *PendingRegistration) Check(email, otp string, now time.Time) error {
	if p.Email != email {
		return ErrRegistrationEmailMismatch
	}
	if subtle.ConstantTimeCompare([]byte(p.OTP), []byte(strings.TrimSpace(otp))) != 1 {
		return ErrInvalidOTP
	}
	if now.After(p.ExpiresAt) {
		return ErrOTPExpired
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| RegistrationSessions                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// RegistrationSessions keeps pending registrations in a signed and
// encrypted cookie until the visitor confirms the emailed code.
type RegistrationSessions struct {
	store  *sessions.CookieStore
	logger *zap.Logger
	name   string
}

// SessionConfigError is returned when session configuration is invalid.
type SessionConfigError struct {
	Message string
}

func (e *SessionConfigError) Error() string {
	return e.Message
}

// NewRegistrationSessions creates the cookie store.
//
// Parameters:
//   - sessionKey: signing key for cookies (must be ≥32 chars in production)
//   - name: session cookie name (defaults to "stayhome-registration" if empty)
//   - domain: cookie domain (empty means current host)
//   - maxAge: cookie lifetime
//   - secure: if true, cookies are Secure + SameSite=None so the SPA origin can send them
//   - logger: zap logger for session error logging
//
// Returns an error if sessionKey is empty or too weak for production mode.
func NewRegistrationSessions(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*RegistrationSessions, error) {
	if sessionKey == "" {
		return nil, &SessionConfigError{Message: "session key is empty; provide ≥32 random chars"}
	}

	isWeak := len(sessionKey) < 32 || isDefaultKey(sessionKey)
	if secure {
		if isWeak {
			return nil, &SessionConfigError{
				Message: "session key is too weak for production; provide ≥32 random chars (not the default dev key)",
			}
		}
	} else if isWeak {
		logger.Warn("session key is weak; 32+ random chars required in production",
			zap.Int("length", len(sessionKey)),
			zap.Bool("is_default", isDefaultKey(sessionKey)))
	}

	if name == "" {
		name = "stayhome-registration"
	}

	// AES-256 block key derived from the signing key.
	block := sha256.Sum256([]byte(sessionKey))
	store := sessions.NewCookieStore([]byte(sessionKey), block[:])
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}

	logger.Info("registration sessions initialized",
		zap.Bool("secure", secure),
		zap.String("name", name),
		zap.String("domain", domain))

	return &RegistrationSessions{store: store, logger: logger, name: name}, nil
}

// SessionName returns the configured cookie name.
func (rs *RegistrationSessions) SessionName() string {
	return rs.name
}

func pendingKey(kind models.Kind) string {
	return "pending_" + string(kind)
}

func (rs *RegistrationSessions) session(r *http.Request) *sessions.Session {
	sess, err := rs.store.Get(r, rs.name)
	if err != nil {
		errType, errCategory := classifySessionError(err)
		switch errType {
		case sessionErrExpired:
			rs.logger.Debug("registration session expired, starting fresh",
				zap.String("category", errCategory),
				zap.String("path", r.URL.Path))
		case sessionErrTampered:
			rs.logger.Warn("registration session MAC validation failed (possible tampering)",
				zap.String("category", errCategory),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()))
		case sessionErrCorrupted:
			rs.logger.Info("registration session decode failed, starting fresh",
				zap.String("category", errCategory),
				zap.String("path", r.URL.Path))
		default:
			rs.logger.Warn("registration session error, starting fresh",
				zap.Error(err),
				zap.String("category", errCategory),
				zap.String("path", r.URL.Path))
		}
	}
	return sess
}

// Save stores p in the visitor's cookie, replacing any earlier pending
// registration of the same kind.
func (rs *RegistrationSessions) Save(w http.ResponseWriter, r *http.Request, p PendingRegistration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	sess := rs.session(r)
	sess.Values[pendingKey(p.Kind)] = string(data)
	return sess.Save(r, w)
}

// Load returns the pending registration of the given kind.
func (rs *RegistrationSessions) Load(r *http.Request, kind models.Kind) (*PendingRegistration, bool) {
	sess := rs.session(r)
	raw, ok := sess.Values[pendingKey(kind)].(string)
	if !ok || raw == "" {
		return nil, false
	}
	var p PendingRegistration
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		rs.logger.Info("pending registration unreadable", zap.Error(err))
		return nil, false
	}
	if p.Kind != kind {
		return nil, false
	}
	return &p, true
}

// Clear removes the pending registration of the given kind.
func (rs *RegistrationSessions) Clear(w http.ResponseWriter, r *http.Request, kind models.Kind) {
	sess := rs.session(r)
	delete(sess.Values, pendingKey(kind))
	if len(sess.Values) == 0 {
		sess.Options.MaxAge = -1
	}
	if err := sess.Save(r, w); err != nil {
		rs.logger.Warn("clear registration session failed", zap.Error(err))
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// isDefaultKey checks if the session key appears to be a default/placeholder value.
func isDefaultKey(key string) bool {
	lower := strings.ToLower(key)
	patterns := []string{
		"dev-only",
		"change-me",
		"placeholder",
		"default",
		"example",
		"insecure",
		"test-key",
		"secret123",
		"password",
	}
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// classifySessionError categorizes a session/cookie error for appropriate logging.
func classifySessionError(err error) (sessionErrorType, string) {
	if err == nil {
		return sessionErrUnknown, "none"
	}

	errStr := strings.ToLower(err.Error())

	if scErr, ok := err.(securecookie.Error); ok {
		if !scErr.IsDecode() {
			return sessionErrBackend, "backend"
		}

		switch {
		case strings.Contains(errStr, "expired timestamp"):
			return sessionErrExpired, "expired"
		case strings.Contains(errStr, "mac") || strings.Contains(errStr, "hash"):
			return sessionErrTampered, "mac_invalid"
		case strings.Contains(errStr, "decrypt"):
			return sessionErrCorrupted, "decrypt_failed"
		case strings.Contains(errStr, "base64") || strings.Contains(errStr, "decode"):
			return sessionErrCorrupted, "decode_failed"
		default:
			return sessionErrCorrupted, "decode_other"
		}
	}

	return sessionErrBackend, "unknown"
}
