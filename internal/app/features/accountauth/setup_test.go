package accountauth

import (
	"net/http"
	"regexp"
	"testing"
	"time"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	"github.com/dalemusser/stayhome/internal/app/store/ratelimit"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/auth/storeresolver"
	"github.com/dalemusser/stayhome/internal/app/system/authutil"
	"github.com/dalemusser/stayhome/internal/app/system/seeding"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testSessionKey = "0123456789abcdef0123456789abcdef-test"

type fixture struct {
	dbs     dbset.Set
	h       *Handler
	router  chi.Router
	tokens  *auth.TokenService
	mail    *testutil.MailRecorder
	limiter *ratelimit.Store
}

func newFixture(t *testing.T, kind models.Kind) *fixture {
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
	pending, err := auth.NewRegistrationSessions(testSessionKey, "", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRegistrationSessions() error = %v", err)
	}
	guard := auth.NewGuard(tokens, storeresolver.New(dbs), zap.NewNop())
	limiter := ratelimit.New(dbs.Common, 3, 15*time.Minute, 15*time.Minute)
	mail := &testutil.MailRecorder{}

	h := NewHandler(dbs, Options{
		Kind:        kind,
		AppName:     "StayHome",
		BaseURL:     "http://api.example.com/",
		FrontendURL: "http://app.example.com",
		DevMode:     true,
	}, pending, tokens, guard, limiter, mail, nil, zap.NewNop())

	return &fixture{dbs: dbs, h: h, router: Routes(h), tokens: tokens, mail: mail, limiter: limiter}
}

// do serves req through the router, forwarding cookies from prior responses.
func (f *fixture) do(req *http.Request, cookies ...*http.Cookie) *testutil.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// createAccount inserts an account of kind with the named role and password.
func (f *fixture) createAccount(t *testing.T, kind models.Kind, email, password, roleName string) primitive.ObjectID {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	role, err := rolestore.New(f.dbs.Common).GetByName(ctx, roleName)
	if err != nil {
		t.Fatalf("GetByName(%s) error = %v", roleName, err)
	}
	hash, err := authutil.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	id, err := accountstore.New(f.dbs.Accounts(kind), kind).Create(ctx, models.Account{
		Email:        email,
		PasswordHash: hash,
		Role:         role.ID,
		IsApproved:   true,
	}, bson.M{"name": "Test User"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return id
}

func (f *fixture) bearer(t *testing.T, id primitive.ObjectID, kind models.Kind, role, email string) string {
	t.Helper()
	tok, err := f.tokens.Issue(auth.Principal{ID: id, Email: email, Role: role, Kind: kind})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return "Bearer " + tok
}

var codeRe = regexp.MustCompile(`\b\d{6}\b`)

// lastCode extracts the six-digit code from the most recent email.
func (f *fixture) lastCode(t *testing.T) string {
	t.Helper()
	code := codeRe.FindString(f.mail.Last().TextBody)
	if code == "" {
		t.Fatalf("no code in email %q", f.mail.Last().TextBody)
	}
	return code
}
