package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.uber.org/zap"
)

const testSessionKey = "xK8nP2mQ9rT5vW7yB3cF6hJ0lN4sU1wZ"

func TestNewRegistrationSessions(t *testing.T) {
	tests := []struct {
		name       string
		sessionKey string
		secure     bool
		wantErr    bool
	}{
		{"valid key dev mode", testSessionKey, false, false},
		{"valid key prod mode", testSessionKey, true, false},
		{"empty key", "", false, true},
		{"weak key dev mode", "short", false, false},
		{"weak key prod mode", "short", true, true},
		{"default key prod mode", "dev-only-session-key-not-for-production", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := NewRegistrationSessions(tt.sessionKey, "", "", time.Hour, tt.secure, zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewRegistrationSessions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var cfgErr *SessionConfigError
				if !errors.As(err, &cfgErr) {
					t.Errorf("error type = %T, want *SessionConfigError", err)
				}
				return
			}
			if rs.SessionName() != "stayhome-registration" {
				t.Errorf("SessionName() = %q", rs.SessionName())
			}
		})
	}
}

func TestRegistrationSessions_RoundTrip(t *testing.T) {
	rs, err := NewRegistrationSessions(testSessionKey, "reg", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRegistrationSessions() error = %v", err)
	}

	pending := PendingRegistration{
		Kind:         models.KindOwner,
		Email:        "olivia@example.com",
		PasswordHash: "$2a$10$hash",
		Profile:      map[string]string{"name": "Olivia"},
		OTP:          "123456",
		ExpiresAt:    time.Now().Add(10 * time.Minute).UTC(),
	}

	rec := httptest.NewRecorder()
	if err := rs.Save(rec, httptest.NewRequest(http.MethodPost, "/register", nil), pending); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("Save() did not set a cookie")
	}

	req := httptest.NewRequest(http.MethodPost, "/verify-registration-otp", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	got, ok := rs.Load(req, models.KindOwner)
	if !ok {
		t.Fatal("Load() found nothing")
	}
	if got.Email != pending.Email || got.OTP != pending.OTP || got.Profile["name"] != "Olivia" {
		t.Errorf("Load() = %+v", got)
	}
	if _, ok := rs.Load(req, models.KindStudent); ok {
		t.Error("Load(student) should not see an owner registration")
	}

	rec = httptest.NewRecorder()
	rs.Clear(rec, req, models.KindOwner)
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	if _, ok := rs.Load(req, models.KindOwner); ok {
		t.Error("Load() after Clear() should find nothing")
	}
}

func TestRegistrationSessions_TamperedCookie(t *testing.T) {
	rs, err := NewRegistrationSessions(testSessionKey, "reg", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRegistrationSessions() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: "reg", Value: "forged"})
	if _, ok := rs.Load(req, models.KindStudent); ok {
		t.Error("Load() accepted a forged cookie")
	}
}

func TestPendingRegistration_Check(t *testing.T) {
	now := time.Now()
	p := PendingRegistration{Email: "a@b.c", OTP: "654321", ExpiresAt: now.Add(time.Minute)}

	tests := []struct {
		name  string
		email string
		otp   string
		at    time.Time
		want  error
	}{
		{"ok", "a@b.c", "654321", now, nil},
		{"ok with spaces", "a@b.c", " 654321 ", now, nil},
		{"other email", "x@b.c", "654321", now, ErrRegistrationEmailMismatch},
		{"wrong code", "a@b.c", "111111", now, ErrInvalidOTP},
		{"expired", "a@b.c", "654321", now.Add(2 * time.Minute), ErrOTPExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.Check(tt.email, tt.otp, tt.at); !errors.Is(err, tt.want) {
				t.Errorf("Check() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIsDefaultKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"dev-only-key", true},
		{"change-me-please", true},
		{"placeholder-key", true},
		{"default-session-key", true},
		{"example-key-here", true},
		{"insecure-dev-key", true},
		{"test-key-123", true},
		{"secret123", true},
		{"password123", true},
		{testSessionKey, false},
		{"secure-random-key-that-is-long-enough", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := isDefaultKey(tt.key); got != tt.want {
				t.Errorf("isDefaultKey(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestClassifySessionError_Types(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		wantType sessionErrorType
	}{
		{"expired", "expired timestamp", sessionErrExpired},
		{"mac invalid", "mac validation failed", sessionErrTampered},
		{"hash invalid", "hash mismatch", sessionErrTampered},
		{"decrypt failed", "decrypt error", sessionErrCorrupted},
		{"base64 error", "base64 decode failed", sessionErrCorrupted},
		{"decode error", "decode failed", sessionErrCorrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mockSecureCookieError{msg: tt.errMsg, isDecode: true}
			if errType, _ := classifySessionError(err); errType != tt.wantType {
				t.Errorf("classifySessionError() type = %v, want %v", errType, tt.wantType)
			}
		})
	}

	if errType, _ := classifySessionError(nil); errType != sessionErrUnknown {
		t.Errorf("classifySessionError(nil) type = %v, want %v", errType, sessionErrUnknown)
	}
	errType, category := classifySessionError(mockSecureCookieError{msg: "backend error"})
	if errType != sessionErrBackend || category != "backend" {
		t.Errorf("classifySessionError(non-decode) = %v, %q", errType, category)
	}
}

// mockSecureCookieError implements securecookie.Error for testing
type mockSecureCookieError struct {
	msg      string
	isDecode bool
}

func (e mockSecureCookieError) Error() string    { return e.msg }
func (e mockSecureCookieError) IsDecode() bool   { return e.isDecode }
func (e mockSecureCookieError) IsUsage() bool    { return false }
func (e mockSecureCookieError) IsInternal() bool { return false }
func (e mockSecureCookieError) Cause() error     { return nil }
