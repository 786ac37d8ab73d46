package oauthstate

import (
	"errors"
	"testing"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
)

func TestStore_CreateConsume(t *testing.T) {
	db := testutil.SetupTestDBs(t).Common
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Create(ctx, "state-abc", models.KindOwner); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	kind, err := store.Consume(ctx, "state-abc")
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if kind != models.KindOwner {
		t.Errorf("Consume() kind = %q, want %q", kind, models.KindOwner)
	}

	// Single use
	if _, err := store.Consume(ctx, "state-abc"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Consume() error = %v, want ErrInvalidState", err)
	}
}

func TestStore_ConsumeUnknown(t *testing.T) {
	db := testutil.SetupTestDBs(t).Common
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Consume(ctx, "nope"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Consume() error = %v, want ErrInvalidState", err)
	}
}
