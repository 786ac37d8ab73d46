package viewdata

import (
	"testing"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"github.com/dalemusser/stayhome/internal/testutil/fixtures"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSummarizeOwner(t *testing.T) {
	if SummarizeOwner(nil) != nil {
		t.Error("SummarizeOwner(nil) should be nil")
	}
	o := &models.Owner{Name: "Ravi"}
	o.Email = "ravi@test.com"
	got := SummarizeOwner(o)
	if got.Name != "Ravi" || got.Number != "N/A" || got.Email != "ravi@test.com" {
		t.Errorf("SummarizeOwner() = %+v", got)
	}
}

func TestLoader_Summaries(t *testing.T) {
	env := fixtures.New(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := env.Owner(t, "o@test.com")
	a := env.Hostel(t, owner, "Alpha")
	b := env.Hostel(t, owner, "Beta")
	gone := primitive.NewObjectID()

	l := NewLoader(env.DBs, env.Images)
	got, err := l.Summaries(ctx, []primitive.ObjectID{b.ID, gone, a.ID}, false)
	if err != nil {
		t.Fatalf("Summaries() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != b.ID || got[1].ID != a.ID {
		t.Fatalf("Summaries() = %+v, want Beta then Alpha", got)
	}
	if o := got[0].Owner; o == nil || o.Name != "Owner o@test.com" || o.Email != "" || o.Hostels != nil {
		t.Errorf("owner = %+v, want name only", o)
	}

	withEmail, err := l.Summaries(ctx, []primitive.ObjectID{a.ID}, true)
	if err != nil {
		t.Fatalf("Summaries() error = %v", err)
	}
	if withEmail[0].Owner.Email != "o@test.com" {
		t.Errorf("email = %q, want owner email", withEmail[0].Owner.Email)
	}
}

func TestLoader_WithOwners(t *testing.T) {
	env := fixtures.New(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := env.Owner(t, "o@test.com")
	h := env.Hostel(t, owner, "Alpha")
	orphan := models.Hostel{ID: primitive.NewObjectID(), Name: "Orphan", Owner: primitive.NewObjectID()}

	got, err := NewLoader(env.DBs, nil).WithOwners(ctx, []models.Hostel{h, orphan})
	if err != nil {
		t.Fatalf("WithOwners() error = %v", err)
	}
	if d := got[0].OwnerDetails; d == nil || d.ID != owner || len(d.Hostels) != 1 {
		t.Errorf("ownerDetails = %+v, want owner with one hostel", d)
	}
	if got[1].OwnerDetails != nil {
		t.Errorf("orphan ownerDetails = %+v, want nil", got[1].OwnerDetails)
	}
}

func TestLoader_Complaint(t *testing.T) {
	env := fixtures.New(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	img, err := env.Images.SaveBytes(ctx, "complaints", "leak.png", testutil.PNG)
	if err != nil {
		t.Fatalf("SaveBytes() error = %v", err)
	}
	c := models.Complaint{ID: primitive.NewObjectID(), Description: "Leak", Images: []models.Image{img}}

	v := NewLoader(env.DBs, env.Images).Complaint(ctx, c)
	if len(v.Images) != 1 || v.Images[0].ContentType != "image/png" || v.Images[0].Data == "" {
		t.Errorf("Complaint().Images = %+v, want one encoded png", v.Images)
	}

	bare := NewLoader(env.DBs, nil).Complaint(ctx, c)
	if bare.Images == nil || len(bare.Images) != 0 {
		t.Errorf("Complaint() without images helper = %+v, want empty list", bare.Images)
	}
}
