package permissionstore

import (
	"errors"
	"testing"

	"github.com/dalemusser/stayhome/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_GrantModuleUpserts(t *testing.T) {
	db := testutil.SetupTestDBs(t).Common
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	role := primitive.NewObjectID()
	p1, err := store.GrantModule(ctx, "Hostels", "Hostels", "G1", role)
	if err != nil {
		t.Fatalf("GrantModule() error = %v", err)
	}
	if !p1.Read || !p1.Write || !p1.Edit || !p1.Delete {
		t.Errorf("GrantModule() flags = %+v, want all true", p1)
	}

	p2, err := store.GrantModule(ctx, "Hostels", "Hostels", "G3", role)
	if err != nil {
		t.Fatalf("second GrantModule() error = %v", err)
	}
	if p1.ID != p2.ID || p2.Name != "G3" {
		t.Errorf("GrantModule() should upsert the same row, got %+v", p2)
	}

	upd, err := store.UpdateFlags(ctx, p1.ID, role, map[string]bool{"delete": false})
	if err != nil {
		t.Fatalf("UpdateFlags() error = %v", err)
	}
	if upd.Delete || !upd.Read {
		t.Errorf("UpdateFlags() = %+v", upd)
	}

	if _, err := store.UpdateFlags(ctx, p1.ID, primitive.NewObjectID(), map[string]bool{"read": false}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateFlags(other role) error = %v, want ErrNotFound", err)
	}

	found, err := store.FindForModule(ctx, []primitive.ObjectID{p1.ID}, "Hostels")
	if err != nil || found.ID != p1.ID {
		t.Errorf("FindForModule() = %+v, %v", found, err)
	}
	if _, err := store.FindForModule(ctx, []primitive.ObjectID{p1.ID}, "Owners"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindForModule(other module) error = %v, want ErrNotFound", err)
	}

	n, err := store.DeleteByRole(ctx, role)
	if err != nil || n != 1 {
		t.Errorf("DeleteByRole() = %d, %v", n, err)
	}
}
