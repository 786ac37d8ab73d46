package useradmin

import (
	"net/http"
	"testing"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/system/authz"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"github.com/dalemusser/stayhome/internal/testutil/fixtures"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fixture struct {
	*fixtures.Env
	router http.Handler
	admin  primitive.ObjectID
	bearer string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := fixtures.New(t)
	notify := mailer.Notifier{Sender: env.Mail, AppName: "StayHome", LoginURL: "http://frontend.test/login"}
	h := NewHandler(env.DBs, env.Images, authz.NewChecker(env.DBs.Common, zap.NewNop()), nil, notify, zap.NewNop())

	r := chi.NewRouter()
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(env.Guard.Middleware, authz.RequireStaff)
		h.MountRoutes(r)
	})
	admin := env.Admin(t, "admin@test.com")
	return &fixture{
		Env:    env,
		router: r,
		admin:  admin,
		bearer: env.Bearer(t, admin, models.KindStudent, models.RoleAdmin),
	}
}

func (f *fixture) do(req *http.Request) *testutil.ResponseRecorder {
	return fixtures.Do(f.router, req, f.bearer)
}

// account loads id from the database of kind, or nil when it is not there.
func (f *fixture) account(t *testing.T, kind models.Kind, id primitive.ObjectID) *models.AccountSummary {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	a, err := accountstore.New(f.DBs.Accounts(kind), kind).GetByID(ctx, id)
	if err == accountstore.ErrNotFound {
		return nil
	}
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	return a
}
