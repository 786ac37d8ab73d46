package accountstore

import (
	"errors"
	"testing"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateAndLookup(t *testing.T) {
	dbs := testutil.SetupTestDBs(t)
	store := New(dbs.Student, models.KindStudent)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	roleID := primitive.NewObjectID()
	id, err := store.Create(ctx, models.Account{
		Email:        "  Asha@Example.com ",
		PasswordHash: "hash",
		Role:         roleID,
		IsApproved:   true,
	}, bson.M{"name": "Asha", "city": "Pune"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	a, err := store.GetByEmail(ctx, "asha@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if a.ID != id || a.Name != "Asha" || a.Role != roleID || a.AuthProvider != models.ProviderLocal {
		t.Errorf("GetByEmail() = %+v", a)
	}

	// Student defaults are initialized.
	raw, err := store.GetRaw(ctx, id)
	if err != nil {
		t.Fatalf("GetRaw() error = %v", err)
	}
	if _, ok := raw["wishlist"]; !ok {
		t.Error("student document should carry an empty wishlist")
	}

	if _, err := store.Create(ctx, models.Account{Email: "asha@example.com", Role: roleID}, nil); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("duplicate Create() error = %v, want ErrDuplicateEmail", err)
	}

	exists, err := store.EmailExists(ctx, "ASHA@example.com")
	if err != nil || !exists {
		t.Errorf("EmailExists() = %v, %v", exists, err)
	}
}

func TestStore_Mutations(t *testing.T) {
	dbs := testutil.SetupTestDBs(t)
	store := New(dbs.Owner, models.KindOwner)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	roleID := primitive.NewObjectID()
	id, err := store.Create(ctx, models.Account{Email: "o@example.com", Role: roleID}, bson.M{"name": "Ravi"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	other, _ := store.Create(ctx, models.Account{Email: "taken@example.com", Role: roleID}, nil)

	if err := store.SetEmail(ctx, id, "taken@example.com"); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("SetEmail(taken) error = %v, want ErrDuplicateEmail", err)
	}
	if err := store.SetEmail(ctx, id, "new@example.com"); err != nil {
		t.Fatalf("SetEmail() error = %v", err)
	}
	if _, err := store.TouchLogin(ctx, id); err != nil {
		t.Fatalf("TouchLogin() error = %v", err)
	}
	if err := store.LinkGoogle(ctx, id, "g-123"); err != nil {
		t.Fatalf("LinkGoogle() error = %v", err)
	}

	a, err := store.GetByGoogleID(ctx, "g-123")
	if err != nil {
		t.Fatalf("GetByGoogleID() error = %v", err)
	}
	if a.Email != "new@example.com" || a.LastLogin == nil {
		t.Errorf("account after mutations = %+v", a)
	}

	n, err := store.CountByRole(ctx, roleID)
	if err != nil || n != 2 {
		t.Errorf("CountByRole() = %d, %v; want 2", n, err)
	}

	if err := store.Delete(ctx, other); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, other); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrNotFound", err)
	}
}
