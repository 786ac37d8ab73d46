package accountauth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/system/authutil"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
)

func passwordMatches(t *testing.T, f *fixture, kind models.Kind, email, password string) bool {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	acct, err := accountstore.New(f.dbs.Accounts(kind), kind).GetByEmail(ctx, email)
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	return authutil.CheckPassword(password, acct.PasswordHash)
}

func TestForgotPassword_OTPFlow(t *testing.T) {
	f := newFixture(t, models.KindStudent)
	f.createAccount(t, models.KindStudent, "s@example.com", "Str0ng!Pass", models.RoleStudent)

	rec := f.do(testutil.JSONRequest(http.MethodPost, "/forgot-password", map[string]string{"email": "nobody@example.com"}))
	rec.AssertStatus(t, http.StatusNotFound)
	rec.AssertContains(t, "Student not found")

	rec = f.do(testutil.JSONRequest(http.MethodPost, "/forgot-password", map[string]string{"email": "s@example.com"}))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "OTP sent to your email")
	code := f.lastCode(t)

	// A weak password is rejected without using up the code.
	rec = f.do(testutil.JSONRequest(http.MethodPost, "/reset-own-password", map[string]string{
		"email": "s@example.com", "otp": code, "newPassword": "password",
	}))
	rec.AssertStatus(t, http.StatusBadRequest)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	rec = f.do(testutil.JSONRequest(http.MethodPost, "/reset-own-password", map[string]string{
		"email": "s@example.com", "otp": wrong, "newPassword": "N3w!Secret",
	}))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "Invalid OTP")

	sent := f.mail.Count()
	rec = f.do(testutil.JSONRequest(http.MethodPost, "/reset-own-password", map[string]string{
		"email": "s@example.com", "otp": code, "newPassword": "N3w!Secret",
	}))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Password changed successfully")

	if !passwordMatches(t, f, models.KindStudent, "s@example.com", "N3w!Secret") {
		t.Error("password was not changed")
	}
	if f.mail.Count() != sent+1 {
		t.Errorf("expected a password changed notice, sent %d", f.mail.Count()-sent)
	}

	// Codes are single use.
	rec = f.do(testutil.JSONRequest(http.MethodPost, "/reset-own-password", map[string]string{
		"email": "s@example.com", "otp": code, "newPassword": "An0ther!Pass",
	}))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestResetLink_Flow(t *testing.T) {
	f := newFixture(t, models.KindOwner)
	f.createAccount(t, models.KindOwner, "o@example.com", "Str0ng!Pass", models.RoleHostelOwner)

	rec := f.do(testutil.JSONRequest(http.MethodPost, "/reset-password", map[string]string{"email": "o@example.com"}))
	rec.AssertStatus(t, http.StatusOK)
	var resp struct {
		Message string `json:"message"`
		Token   string `json:"token"`
	}
	rec.Decode(t, &resp)
	if resp.Token == "" {
		t.Fatal("dev mode response has no token")
	}
	if !strings.Contains(f.mail.Last().TextBody, "http://api.example.com/reset?token="+resp.Token) {
		t.Errorf("reset email does not contain link: %q", f.mail.Last().TextBody)
	}

	rec = f.do(testutil.NewRequest(http.MethodGet, "/reset/not-a-token"))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, invalidResetToken)

	rec = f.do(testutil.NewRequest(http.MethodGet, "/reset/"+resp.Token))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Token is valid")

	rec = f.do(testutil.JSONRequest(http.MethodPost, "/reset-password/"+resp.Token, map[string]string{"password": "123"}))
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = f.do(testutil.JSONRequest(http.MethodPost, "/reset-password/"+resp.Token, map[string]string{"password": "N3w!Secret"}))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Password has been updated")
	if !passwordMatches(t, f, models.KindOwner, "o@example.com", "N3w!Secret") {
		t.Error("password was not changed")
	}

	rec = f.do(testutil.JSONRequest(http.MethodPost, "/reset-password/"+resp.Token, map[string]string{"password": "An0ther!Pass"}))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestResetLink_MalformedBody(t *testing.T) {
	f := newFixture(t, models.KindOwner)
	f.createAccount(t, models.KindOwner, "o@example.com", "Str0ng!Pass", models.RoleHostelOwner)

	rec := f.do(testutil.JSONRequest(http.MethodPost, "/reset-password", map[string]string{"email": "o@example.com"}))
	rec.AssertStatus(t, http.StatusOK)
	var resp struct {
		Token string `json:"token"`
	}
	rec.Decode(t, &resp)

	req := httptest.NewRequest(http.MethodPost, "/reset-password/"+resp.Token, strings.NewReader(`{"password": `))
	req.Header.Set("Content-Type", "application/json")
	rec = f.do(req)
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "Invalid request body")

	// The token survives a rejected body.
	f.do(testutil.NewRequest(http.MethodGet, "/reset/"+resp.Token)).AssertStatus(t, http.StatusOK)
}

func TestResetLink_WrongKind(t *testing.T) {
	owners := newFixture(t, models.KindOwner)
	owners.createAccount(t, models.KindOwner, "o@example.com", "Str0ng!Pass", models.RoleHostelOwner)

	rec := owners.do(testutil.JSONRequest(http.MethodPost, "/reset-password", map[string]string{"email": "o@example.com"}))
	rec.AssertStatus(t, http.StatusOK)
	var resp struct {
		Token string `json:"token"`
	}
	rec.Decode(t, &resp)

	// Same databases, student routes.
	students := NewHandler(owners.dbs, Options{Kind: models.KindStudent}, owners.h.pending, owners.tokens, owners.h.guard, nil, owners.mail, nil, owners.h.logger)
	rec = testutil.NewRecorder()
	Routes(students).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/reset/"+resp.Token))
	rec.AssertStatus(t, http.StatusBadRequest)
}
