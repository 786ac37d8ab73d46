package ownerstore

import (
	"testing"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_ApproveAndHostels(t *testing.T) {
	dbs := testutil.SetupTestDBs(t)
	accounts := accountstore.New(dbs.Owner, models.KindOwner)
	store := New(dbs.Owner)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id, err := accounts.Create(ctx, models.Account{Email: "o@example.com", Role: primitive.NewObjectID()}, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	pending, err := store.ListPending(ctx)
	if err != nil || len(pending) != 1 {
		t.Fatalf("ListPending() = %d, %v; want 1", len(pending), err)
	}
	if err := store.Approve(ctx, id); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	pending, _ = store.ListPending(ctx)
	if len(pending) != 0 {
		t.Errorf("ListPending() after approve = %d, want 0", len(pending))
	}

	h := primitive.NewObjectID()
	if err := store.AddHostel(ctx, id, h); err != nil {
		t.Fatalf("AddHostel() error = %v", err)
	}
	_ = store.AddHostel(ctx, id, h)
	o, _ := store.GetByID(ctx, id)
	if len(o.Hostels) != 1 || !o.Owns(h) {
		t.Errorf("hostels = %v, want [%s]", o.Hostels, h.Hex())
	}

	if err := store.RemoveHostel(ctx, id, h); err != nil {
		t.Fatalf("RemoveHostel() error = %v", err)
	}
	o, _ = store.GetByID(ctx, id)
	if o.Owns(h) {
		t.Error("hostel should be removed")
	}
}
