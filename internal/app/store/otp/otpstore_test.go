package otpstore

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode() error = %v", err)
		}
		if len(code) != CodeLength {
			t.Fatalf("len(code) = %d, want %d", len(code), CodeLength)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("code %q contains non-digit", code)
			}
		}
	}
}

func TestStore_IssueCheck(t *testing.T) {
	db := testutil.SetupTestDBs(t).Common
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id := primitive.NewObjectID()
	c, err := store.Issue(ctx, IssueInput{
		Purpose:   PurposeEmailChange,
		Kind:      models.KindStudent,
		AccountID: id,
		Email:     "old@example.com",
		NewEmail:  "New@Example.com",
		TTL:       5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	wrong := "000000"
	if c.Code == wrong {
		wrong = "111111"
	}
	if _, err := store.Check(ctx, PurposeEmailChange, models.KindStudent, id, wrong); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("Check(wrong) error = %v, want ErrInvalidCode", err)
	}

	// A different purpose does not see the code.
	if _, err := store.Check(ctx, PurposePasswordReset, models.KindStudent, id, c.Code); !errors.Is(err, ErrNoPending) {
		t.Errorf("Check(other purpose) error = %v, want ErrNoPending", err)
	}

	got, err := store.Check(ctx, PurposeEmailChange, models.KindStudent, id, c.Code)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if got.NewEmail != "new@example.com" {
		t.Errorf("NewEmail = %q, want normalized", got.NewEmail)
	}

	if _, err := store.Check(ctx, PurposeEmailChange, models.KindStudent, id, c.Code); !errors.Is(err, ErrNoPending) {
		t.Errorf("reuse error = %v, want ErrNoPending", err)
	}
}

func TestStore_CheckExpired(t *testing.T) {
	db := testutil.SetupTestDBs(t).Common
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id := primitive.NewObjectID()
	c, _ := store.Issue(ctx, IssueInput{
		Purpose:   PurposePasswordReset,
		Kind:      models.KindOwner,
		AccountID: id,
		Email:     "o@example.com",
		TTL:       -time.Second,
	})
	if _, err := store.Check(ctx, PurposePasswordReset, models.KindOwner, id, c.Code); !errors.Is(err, ErrExpiredCode) {
		t.Errorf("Check() error = %v, want ErrExpiredCode", err)
	}
}

func TestStore_IssueReplacesEarlier(t *testing.T) {
	db := testutil.SetupTestDBs(t).Common
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id := primitive.NewObjectID()
	in := IssueInput{Purpose: PurposePasswordReset, Kind: models.KindStudent, AccountID: id, Email: "s@example.com", TTL: time.Minute}
	first, _ := store.Issue(ctx, in)
	second, _ := store.Issue(ctx, in)

	if first.Code != second.Code {
		if _, err := store.Check(ctx, PurposePasswordReset, models.KindStudent, id, first.Code); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("first code error = %v, want ErrInvalidCode", err)
		}
	}
	if _, err := store.Check(ctx, PurposePasswordReset, models.KindStudent, id, second.Code); err != nil {
		t.Errorf("second code error = %v", err)
	}
}
