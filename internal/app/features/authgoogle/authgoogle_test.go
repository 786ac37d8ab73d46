package authgoogle

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	"github.com/dalemusser/stayhome/internal/app/store/oauthstate"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/seeding"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// fakeGoogle serves the token and userinfo endpoints.
func fakeGoogle(t *testing.T, profile Profile) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	dbs    dbset.Set
	h      *Handler
	tokens *auth.TokenService
}

func newFixture(t *testing.T, kind models.Kind, profile Profile) *fixture {
	t.Helper()
	dbs := testutil.SetupTestDBs(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := seeding.SeedAll(ctx, dbs, seeding.Admin{}, zap.NewNop()); err != nil {
		t.Fatalf("SeedAll() error = %v", err)
	}
	tokens, err := auth.NewTokenService("test-secret-test-secret-test-secret", 0, 0)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}

	srv := fakeGoogle(t, profile)
	h := NewHandler(dbs, Options{
		Kind:         kind,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		BaseURL:      "http://api.example.com",
		FrontendURL:  "http://app.example.com/",
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/auth",
			TokenURL: srv.URL + "/token",
		},
	}, tokens, NewProfileClient(srv.URL+"/userinfo", zap.NewNop()), nil, zap.NewNop())
	return &fixture{dbs: dbs, h: h, tokens: tokens}
}

func (f *fixture) callback(t *testing.T, kind models.Kind) *testutil.ResponseRecorder {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := oauthstate.New(f.dbs.Common).Create(ctx, "state-1", kind); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	rec := testutil.NewRecorder()
	Routes(f.h).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/callback?state=state-1&code=abc"))
	return rec
}

func successParams(t *testing.T, rec *testutil.ResponseRecorder) url.Values {
	t.Helper()
	rec.AssertRedirect(t, "http://app.example.com/oauth-success?")
	u, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	return u.Query()
}

func TestStartAuth_RedirectsWithStoredState(t *testing.T) {
	f := newFixture(t, models.KindOwner, Profile{})

	rec := testutil.NewRecorder()
	Routes(f.h).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/"))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}
	u, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "client-id" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("redirect_uri") != "http://api.example.com/api/auth/owner/google/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	kind, err := oauthstate.New(f.dbs.Common).Consume(ctx, q.Get("state"))
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if kind != models.KindOwner {
		t.Errorf("state kind = %q, want owner", kind)
	}
}

func TestCallback_Failures(t *testing.T) {
	f := newFixture(t, models.KindStudent, Profile{ID: "g1", Email: "g@example.com"})

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"provider error", "/callback?error=access_denied", "error=access_denied"},
		{"unknown state", "/callback?state=nope&code=abc", "error=invalid_state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			Routes(f.h).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, tt.target))
			rec.AssertRedirect(t, "http://app.example.com/login?")
			if !strings.Contains(rec.Header().Get("Location"), tt.want) {
				t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), tt.want)
			}
		})
	}

	t.Run("state for other kind", func(t *testing.T) {
		rec := f.callback(t, models.KindOwner)
		rec.AssertRedirect(t, "http://app.example.com/login?error=invalid_state")
	})
}

func TestCallback_CreatesAccount(t *testing.T) {
	f := newFixture(t, models.KindStudent, Profile{ID: "g-new", Email: "New@Example.com", Name: "New Student"})

	q := successParams(t, f.callback(t, models.KindStudent))
	if q.Get("role") != models.RoleStudent || q.Get("email") != "new@example.com" || q.Get("name") != "New Student" {
		t.Errorf("redirect params = %v", q)
	}
	claims, err := f.tokens.Parse(q.Get("token"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.AccountID != q.Get("profileId") {
		t.Errorf("token id = %q, profileId = %q", claims.AccountID, q.Get("profileId"))
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	acct, err := accountstore.New(f.dbs.Student, models.KindStudent).GetByGoogleID(ctx, "g-new")
	if err != nil {
		t.Fatalf("GetByGoogleID() error = %v", err)
	}
	if acct.AuthProvider != models.ProviderGoogle || !acct.IsApproved {
		t.Errorf("account = %+v", acct.Account)
	}
}

func TestCallback_LinksExistingEmail(t *testing.T) {
	f := newFixture(t, models.KindOwner, Profile{ID: "g-owner", Email: "o@example.com"})
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owners := accountstore.New(f.dbs.Owner, models.KindOwner)
	id, err := owners.Create(ctx, models.Account{Email: "o@example.com"}, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	q := successParams(t, f.callback(t, models.KindOwner))
	if q.Get("profileId") != id.Hex() {
		t.Errorf("profileId = %q, want %q", q.Get("profileId"), id.Hex())
	}
	if q.Get("role") != models.RoleHostelOwner {
		t.Errorf("role = %q, want hostelOwner", q.Get("role"))
	}

	acct, err := owners.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if acct.GoogleID != "g-owner" || acct.Role.IsZero() {
		t.Errorf("account not linked: %+v", acct.Account)
	}
}

func TestProfileClient_ErrorStatus(t *testing.T) {
	srv := fakeGoogle(t, Profile{ID: "x"})
	c := NewProfileClient(srv.URL+"/userinfo", zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := c.Fetch(ctx, "wrong-token"); err == nil {
		t.Error("Fetch() with bad token should fail")
	}
	p, err := c.Fetch(ctx, "access-123")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if p.ID != "x" {
		t.Errorf("Fetch() id = %q", p.ID)
	}
}
