// Package fixtures builds seeded databases, accounts and hostels for
// feature handler tests. It sits apart from testutil because it imports
// the stores, whose own tests import testutil.
package fixtures

import (
	"net/http"
	"testing"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	ownerstore "github.com/dalemusser/stayhome/internal/app/store/owners"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/auth/storeresolver"
	"github.com/dalemusser/stayhome/internal/app/system/authutil"
	"github.com/dalemusser/stayhome/internal/app/system/seeding"
	"github.com/dalemusser/stayhome/internal/app/system/uploads"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Password is the password of every account created by Env.Account.
const Password = "Str0ng!Pass"

// Env is a seeded test environment.
type Env struct {
	DBs    dbset.Set
	Tokens *auth.TokenService
	Guard  *auth.Guard
	Mail   *testutil.MailRecorder
	Blobs  *testutil.MemBlobs
	Images *uploads.Images
}

// New creates throwaway databases with the system roles seeded.
func New(t *testing.T) *Env {
	t.Helper()
	dbs := testutil.SetupTestDBs(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := seeding.SeedAll(ctx, dbs, seeding.Admin{}, zap.NewNop()); err != nil {
		t.Fatalf("SeedAll() error = %v", err)
	}
	tokens, err := auth.NewTokenService("fixture-secret-fixture-secret-fixture", 0, 0)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	blobs := testutil.NewMemBlobs()
	return &Env{
		DBs:    dbs,
		Tokens: tokens,
		Guard:  auth.NewGuard(tokens, storeresolver.New(dbs), zap.NewNop()),
		Mail:   &testutil.MailRecorder{},
		Blobs:  blobs,
		Images: uploads.New(blobs, zap.NewNop()),
	}
}

// RoleID returns the id of the named role.
func (e *Env) RoleID(t *testing.T, name string) primitive.ObjectID {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	role, err := rolestore.New(e.DBs.Common).GetByName(ctx, name)
	if err != nil {
		t.Fatalf("GetByName(%s) error = %v", name, err)
	}
	return role.ID
}

// Account creates an approved account of kind holding roleName.
func (e *Env) Account(t *testing.T, kind models.Kind, email, roleName string, profile bson.M) primitive.ObjectID {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	hash, err := authutil.HashPassword(Password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	id, err := accountstore.New(e.DBs.Accounts(kind), kind).Create(ctx, models.Account{
		Email:        email,
		PasswordHash: hash,
		Role:         e.RoleID(t, roleName),
		IsApproved:   true,
	}, profile)
	if err != nil {
		t.Fatalf("Create(%s) error = %v", email, err)
	}
	return id
}

// Student creates a student with a complete profile.
func (e *Env) Student(t *testing.T, email string) primitive.ObjectID {
	t.Helper()
	return e.Account(t, models.KindStudent, email, models.RoleStudent, bson.M{
		"name": "Student " + email, "number": "9000000000", "gender": models.GenderFemale, "city": "Pune",
	})
}

// Owner creates a hostel owner.
func (e *Env) Owner(t *testing.T, email string) primitive.ObjectID {
	t.Helper()
	return e.Account(t, models.KindOwner, email, models.RoleHostelOwner, bson.M{"name": "Owner " + email, "number": "9111111111"})
}

// Admin creates an admin in the student database.
func (e *Env) Admin(t *testing.T, email string) primitive.ObjectID {
	t.Helper()
	return e.Account(t, models.KindStudent, email, models.RoleAdmin, bson.M{"name": "Admin"})
}

// Hostel creates a hostel for owner and links it to the owner.
func (e *Env) Hostel(t *testing.T, owner primitive.ObjectID, name string) models.Hostel {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	h, err := hostelstore.New(e.DBs.Common).Create(ctx, models.Hostel{
		Name:       name,
		Owner:      owner,
		Number:     "020-5555",
		Address:    "1 Hostel Road",
		HostelType: models.HostelGirls,
		Beds:       20,
	})
	if err != nil {
		t.Fatalf("Create hostel error = %v", err)
	}
	if err := ownerstore.New(e.DBs.Owner).AddHostel(ctx, owner, h.ID); err != nil {
		t.Fatalf("AddHostel() error = %v", err)
	}
	return h
}

// Bearer returns an Authorization header value for the account.
func (e *Env) Bearer(t *testing.T, id primitive.ObjectID, kind models.Kind, role string) string {
	t.Helper()
	tok, err := e.Tokens.Issue(auth.Principal{ID: id, Email: id.Hex() + "@test.com", Role: role, Kind: kind})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return "Bearer " + tok
}

// Do serves req through h with the given Authorization header (if any).
func Do(h http.Handler, req *http.Request, bearer string) *testutil.ResponseRecorder {
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	rec := testutil.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
