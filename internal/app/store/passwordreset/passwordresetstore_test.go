package passwordreset

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateVerifyConsume(t *testing.T) {
	db := testutil.SetupTestDBs(t).Common
	store := New(db, time.Hour)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id := primitive.NewObjectID()
	r, err := store.Create(ctx, models.KindStudent, id, "s@example.com")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(r.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(r.Token))
	}

	got, err := store.VerifyToken(ctx, r.Token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if got.AccountID != id || got.Kind != models.KindStudent {
		t.Errorf("VerifyToken() = %+v", got)
	}

	if err := store.Consume(ctx, got.ID); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if err := store.Consume(ctx, got.ID); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("second Consume() error = %v, want ErrInvalidToken", err)
	}
	if _, err := store.VerifyToken(ctx, r.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyToken() after consume error = %v, want ErrInvalidToken", err)
	}
}

func TestStore_CreateInvalidatesPrevious(t *testing.T) {
	db := testutil.SetupTestDBs(t).Common
	store := New(db, time.Hour)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id := primitive.NewObjectID()
	first, _ := store.Create(ctx, models.KindOwner, id, "o@example.com")
	second, err := store.Create(ctx, models.KindOwner, id, "o@example.com")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := store.VerifyToken(ctx, first.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("first token should be invalidated, err = %v", err)
	}
	if _, err := store.VerifyToken(ctx, second.Token); err != nil {
		t.Errorf("second token should be valid, err = %v", err)
	}
}

func TestStore_Expired(t *testing.T) {
	db := testutil.SetupTestDBs(t).Common
	store := New(db, -time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	r, _ := store.Create(ctx, models.KindStudent, primitive.NewObjectID(), "x@example.com")
	if _, err := store.VerifyToken(ctx, r.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyToken() expired error = %v, want ErrInvalidToken", err)
	}
}
