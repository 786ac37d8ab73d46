package hostels

import (
	"net/http"
	"testing"

	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	ownerstore "github.com/dalemusser/stayhome/internal/app/store/owners"
	studentstore "github.com/dalemusser/stayhome/internal/app/store/students"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil/fixtures"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fixture struct {
	*fixtures.Env
	router http.Handler
	owner  primitive.ObjectID
	bearer string
}

// newFixture builds a hostels router and one signed-in owner.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := fixtures.New(t)
	h := NewHandler(env.DBs, env.Images, env.Guard, env.Mail, "StayHome", zap.NewNop())
	r := chi.NewRouter()
	r.Mount("/api/hostels", Routes(h))
	owner := env.Owner(t, "owner@test.com")
	return &fixture{
		Env:    env,
		router: r,
		owner:  owner,
		bearer: env.Bearer(t, owner, models.KindOwner, models.RoleHostelOwner),
	}
}

// otherOwner creates a second owner and returns their bearer header.
func (f *fixture) otherOwner(t *testing.T) (primitive.ObjectID, string) {
	t.Helper()
	id := f.Owner(t, "rival@test.com")
	return id, f.Bearer(t, id, models.KindOwner, models.RoleHostelOwner)
}

// ownerAdmin creates an admin account in the owner database.
func (f *fixture) ownerAdmin(t *testing.T) string {
	t.Helper()
	id := f.Account(t, models.KindOwner, "admin@test.com", models.RoleAdmin, bson.M{"name": "Admin"})
	return f.Bearer(t, id, models.KindOwner, models.RoleAdmin)
}

func (f *fixture) hostelStore() *hostelstore.Store { return hostelstore.New(f.DBs.Common) }
func (f *fixture) ownerStore() *ownerstore.Store { return ownerstore.New(f.DBs.Owner) }
func (f *fixture) studentStore() *studentstore.Store { return studentstore.New(f.DBs.Student) }
