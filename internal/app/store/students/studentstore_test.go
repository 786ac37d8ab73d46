package studentstore

import (
	"errors"
	"testing"
	"time"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Wishlist(t *testing.T) {
	dbs := testutil.SetupTestDBs(t)
	accounts := accountstore.New(dbs.Student, models.KindStudent)
	store := New(dbs.Student)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id, err := accounts.Create(ctx, models.Account{Email: "s@example.com", Role: primitive.NewObjectID()}, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	hostels := make([]primitive.ObjectID, models.MaxWishlist+1)
	for i := range hostels {
		hostels[i] = primitive.NewObjectID()
	}
	for i := 0; i < models.MaxWishlist; i++ {
		if err := store.AddToWishlist(ctx, id, hostels[i]); err != nil {
			t.Fatalf("AddToWishlist(%d) error = %v", i, err)
		}
	}
	if err := store.AddToWishlist(ctx, id, hostels[0]); !errors.Is(err, ErrAlreadyInWishlist) {
		t.Errorf("duplicate AddToWishlist() error = %v, want ErrAlreadyInWishlist", err)
	}
	if err := store.AddToWishlist(ctx, id, hostels[models.MaxWishlist]); !errors.Is(err, ErrWishlistFull) {
		t.Errorf("AddToWishlist() past cap error = %v, want ErrWishlistFull", err)
	}

	if err := store.RemoveFromWishlist(ctx, id, hostels[0]); err != nil {
		t.Fatalf("RemoveFromWishlist() error = %v", err)
	}
	st, _ := store.GetByID(ctx, id)
	if len(st.Wishlist) != models.MaxWishlist-1 || st.InWishlist(hostels[0]) {
		t.Errorf("wishlist after remove = %v", st.Wishlist)
	}

	wl, err := store.ListByWishlistHostel(ctx, hostels[1])
	if err != nil || len(wl) != 1 {
		t.Errorf("ListByWishlistHostel() = %d, %v; want 1", len(wl), err)
	}
}

func TestStore_VisitsAndAdmission(t *testing.T) {
	dbs := testutil.SetupTestDBs(t)
	accounts := accountstore.New(dbs.Student, models.KindStudent)
	store := New(dbs.Student)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id, _ := accounts.Create(ctx, models.Account{Email: "v@example.com", Role: primitive.NewObjectID()}, bson.M{"name": "Vik"})
	hostelID := primitive.NewObjectID()

	visit := models.StudentVisit{Hostel: hostelID, VisitDate: time.Now(), VisitTime: "10:00", Status: models.VisitPending}
	if err := store.UpsertVisit(ctx, id, visit); err != nil {
		t.Fatalf("UpsertVisit() error = %v", err)
	}
	visit.VisitTime = "11:00"
	if err := store.UpsertVisit(ctx, id, visit); err != nil {
		t.Fatalf("second UpsertVisit() error = %v", err)
	}
	if err := store.SetVisitStatus(ctx, id, hostelID, models.VisitAccepted); err != nil {
		t.Fatalf("SetVisitStatus() error = %v", err)
	}

	st, _ := store.GetByID(ctx, id)
	v, ok := st.Visit(hostelID)
	if len(st.HostelVisits) != 1 || !ok || v.Status != models.VisitAccepted || v.VisitTime != "11:00" {
		t.Errorf("visits = %+v", st.HostelVisits)
	}

	if err := store.Admit(ctx, id, hostelID); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	n, _ := store.CountAdmittedTo(ctx, hostelID)
	if n != 1 {
		t.Errorf("CountAdmittedTo() = %d, want 1", n)
	}

	if err := store.AddToWishlist(ctx, id, hostelID); err != nil {
		t.Fatalf("AddToWishlist() error = %v", err)
	}
	touched, err := store.PullHostelEverywhere(ctx, hostelID)
	if err != nil || touched != 1 {
		t.Errorf("PullHostelEverywhere() = %d, %v", touched, err)
	}
	st, _ = store.GetByID(ctx, id)
	if len(st.Wishlist) != 0 || len(st.HostelVisits) != 0 {
		t.Errorf("after pull: wishlist=%v visits=%v", st.Wishlist, st.HostelVisits)
	}

	if err := store.SetVisitStatus(ctx, primitive.NewObjectID(), hostelID, models.VisitAccepted); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetVisitStatus(missing) error = %v, want ErrNotFound", err)
	}
}
