package rolestore

import (
	"errors"
	"testing"

	"github.com/dalemusser/stayhome/internal/testutil"
)

func TestStore_CreateCaseInsensitive(t *testing.T) {
	db := testutil.SetupTestDBs(t).Common
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	r, err := store.Create(ctx, "Warden", "hostel staff")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.Create(ctx, "warden", ""); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Create(dup) error = %v, want ErrDuplicate", err)
	}

	got, err := store.GetByName(ctx, "WARDEN")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if got.ID != r.ID || got.Name != "Warden" {
		t.Errorf("GetByName() = %+v", got)
	}
}

func TestStore_Ensure(t *testing.T) {
	db := testutil.SetupTestDBs(t).Common
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	first, created, err := store.Ensure(ctx, "student", "Student user")
	if err != nil || !created {
		t.Fatalf("Ensure() = %v, %v; want created", created, err)
	}
	second, created, err := store.Ensure(ctx, "student", "Student user")
	if err != nil || created {
		t.Fatalf("second Ensure() = %v, %v; want existing", created, err)
	}
	if first.ID != second.ID {
		t.Error("Ensure() should return the same role")
	}
}
