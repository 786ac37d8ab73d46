package groupstore

import (
	"errors"
	"testing"

	"github.com/dalemusser/stayhome/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateNamesSequentially(t *testing.T) {
	db := testutil.SetupTestDBs(t).Common
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	role := primitive.NewObjectID()
	g1, err := store.Create(ctx, "Hostels", "Hostels", []primitive.ObjectID{role})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	g2, _ := store.Create(ctx, "Student", "Student", nil)
	if g1.Name != "G1" || g2.Name != "G2" {
		t.Errorf("names = %q, %q; want G1, G2", g1.Name, g2.Name)
	}

	name := "Inspectors"
	upd, err := store.Update(ctx, g1.ID, GroupUpdate{Name: &name})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if upd.Name != name || len(upd.Roles) != 1 {
		t.Errorf("Update() = %+v", upd)
	}

	if err := store.PullRole(ctx, role); err != nil {
		t.Fatalf("PullRole() error = %v", err)
	}
	got, _ := store.GetByID(ctx, g1.ID)
	if len(got.Roles) != 0 {
		t.Errorf("roles after PullRole = %v", got.Roles)
	}

	del, err := store.Delete(ctx, g2.ID)
	if err != nil || del.Name != "G2" {
		t.Fatalf("Delete() = %+v, %v", del, err)
	}
	if _, err := store.Delete(ctx, g2.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
