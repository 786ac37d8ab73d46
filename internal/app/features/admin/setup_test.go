package admin

import (
	"net/http"
	"testing"

	"github.com/dalemusser/stayhome/internal/app/store/audit"
	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	ownerstore "github.com/dalemusser/stayhome/internal/app/store/owners"
	permissionstore "github.com/dalemusser/stayhome/internal/app/store/permissions"
	rolepermissionstore "github.com/dalemusser/stayhome/internal/app/store/rolepermissions"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	studentstore "github.com/dalemusser/stayhome/internal/app/store/students"
	"github.com/dalemusser/stayhome/internal/app/system/auditlog"
	"github.com/dalemusser/stayhome/internal/app/system/authz"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"github.com/dalemusser/stayhome/internal/testutil/fixtures"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fixture struct {
	*fixtures.Env
	router http.Handler
	admin  primitive.ObjectID
	bearer string
	audits *audit.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := fixtures.New(t)
	audits := audit.New(env.DBs.Common)
	logger := auditlog.New(audits, zap.NewNop(), auditlog.Config{Admin: auditlog.ModeDB})
	h := NewHandler(env.DBs, env.Images, authz.NewChecker(env.DBs.Common, zap.NewNop()), logger,
		mailer.Notifier{Sender: env.Mail, AppName: "StayHome", LoginURL: "http://frontend.test/login"}, zap.NewNop())

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
		audits: audits,
	}
}

func (f *fixture) do(req *http.Request) *testutil.ResponseRecorder {
	return fixtures.Do(f.router, req, f.bearer)
}

// staff creates a custom role holding a full permission on module only
// and returns a bearer for an account with that role.
func (f *fixture) staff(t *testing.T, role, module string) string {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	created, err := rolestore.New(f.DBs.Common).Create(ctx, role, "")
	if err != nil {
		t.Fatalf("Create role error = %v", err)
	}
	perm, err := permissionstore.New(f.DBs.Common).GrantModule(ctx, module, module, "G1", created.ID)
	if err != nil {
		t.Fatalf("GrantModule() error = %v", err)
	}
	rp := rolepermissionstore.New(f.DBs.Common)
	if err := rp.EnsureEmpty(ctx, created.ID); err != nil {
		t.Fatalf("EnsureEmpty() error = %v", err)
	}
	if _, err := rp.AddPermissions(ctx, created.ID, []primitive.ObjectID{perm.ID}); err != nil {
		t.Fatalf("AddPermissions() error = %v", err)
	}
	id := f.Account(t, models.KindStudent, role+"@test.com", role, bson.M{"name": role})
	return f.Bearer(t, id, models.KindStudent, role)
}

// auditCount returns how many admin events of eventType were stored.
func (f *fixture) auditCount(t *testing.T, eventType string) int64 {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := f.audits.Count(ctx, audit.QueryFilter{Category: audit.CategoryAdmin, EventType: eventType})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	return n
}

func (f *fixture) hostelStore() *hostelstore.Store { return hostelstore.New(f.DBs.Common) }
func (f *fixture) ownerStore() *ownerstore.Store { return ownerstore.New(f.DBs.Owner) }
func (f *fixture) studentStore() *studentstore.Store { return studentstore.New(f.DBs.Student) }
