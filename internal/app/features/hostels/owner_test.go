package hostels

import (
	"net/http"
	"testing"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/system/authutil"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"github.com/dalemusser/stayhome/internal/testutil/fixtures"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGetOwner(t *testing.T) {
	f := newFixture(t)
	f.Hostel(t, f.owner, "Sunrise")

	rec := fixtures.Do(f.router, testutil.NewRequest(http.MethodGet, "/api/hostels/owners/"+primitive.NewObjectID().Hex()), f.bearer)
	rec.AssertStatus(t, http.StatusNotFound)

	rec = fixtures.Do(f.router, testutil.NewRequest(http.MethodGet, "/api/hostels/owners/"+f.owner.Hex()), f.bearer)
	rec.AssertStatus(t, http.StatusOK)
	var got struct {
		Owner struct {
			ProfileID primitive.ObjectID `json:"profileId"`
			Email     string             `json:"email"`
			Hostels   []struct {
				Name string `json:"name"`
			} `json:"hostels"`
		} `json:"owner"`
	}
	rec.Decode(t, &got)
	if got.Owner.ProfileID != f.owner || got.Owner.Email != "owner@test.com" {
		t.Errorf("owner = %+v", got.Owner)
	}
	if len(got.Owner.Hostels) != 1 || got.Owner.Hostels[0].Name != "Sunrise" {
		t.Errorf("hostels = %+v", got.Owner.Hostels)
	}
}

func TestUpdateOwner(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	url := "/api/hostels/owner/" + f.owner.Hex()
	rivalID, rival := f.otherOwner(t)

	t.Run("other owner", func(t *testing.T) {
		rec := fixtures.Do(f.router, testutil.JSONRequest(http.MethodPut, url, map[string]string{"name": "X"}), rival)
		rec.AssertStatus(t, http.StatusForbidden)
	})

	t.Run("bad gender", func(t *testing.T) {
		rec := fixtures.Do(f.router, testutil.JSONRequest(http.MethodPut, url, map[string]string{"gender": "robot"}), f.bearer)
		rec.AssertStatus(t, http.StatusBadRequest)
	})

	t.Run("weak password", func(t *testing.T) {
		rec := fixtures.Do(f.router, testutil.JSONRequest(http.MethodPut, url, map[string]string{"password": "abc"}), f.bearer)
		rec.AssertStatus(t, http.StatusBadRequest)
	})

	t.Run("profile, password and id proof", func(t *testing.T) {
		req := testutil.MultipartRequest(http.MethodPut, url,
			map[string]string{"name": "Ravi", "address": "2 Main St", "password": "N3w!Secret", "role": models.RoleAdmin},
			testutil.FilePart{Field: "idProof", Filename: "id.png", Data: testutil.PNG})
		rec := fixtures.Do(f.router, req, f.bearer)
		rec.AssertStatus(t, http.StatusOK)
		rec.AssertContains(t, "Profile updated successfully")

		o, err := f.ownerStore().GetByID(ctx, f.owner)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if o.Name != "Ravi" || o.Address != "2 Main St" {
			t.Errorf("profile = %q, %q", o.Name, o.Address)
		}
		if o.IDProof.IsZero() {
			t.Error("id proof not saved")
		}
		if o.Role == f.RoleID(t, models.RoleAdmin) {
			t.Error("role changed through profile update")
		}
		raw, err := accountstore.New(f.DBs.Owner, models.KindOwner).GetRaw(ctx, f.owner)
		if err != nil {
			t.Fatalf("GetRaw() error = %v", err)
		}
		hash, _ := raw["password"].(string)
		if !authutil.CheckPassword("N3w!Secret", hash) {
			t.Error("password not updated")
		}
	})

	t.Run("replacing id proof deletes the old one", func(t *testing.T) {
		req := testutil.MultipartRequest(http.MethodPut, url, nil,
			testutil.FilePart{Field: "idProof", Filename: "id2.png", Data: testutil.PNG})
		rec := fixtures.Do(f.router, req, f.bearer)
		rec.AssertStatus(t, http.StatusOK)
		if f.Blobs.Len() != 1 {
			t.Errorf("blobs = %d, want 1", f.Blobs.Len())
		}
	})

	t.Run("admin updates any owner", func(t *testing.T) {
		rec := fixtures.Do(f.router, testutil.JSONRequest(http.MethodPut, "/api/hostels/owner/"+rivalID.Hex(),
			map[string]string{"number": "9000000000"}), f.ownerAdmin(t))
		rec.AssertStatus(t, http.StatusOK)
		o, err := f.ownerStore().GetByID(ctx, rivalID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if o.Number != "9000000000" {
			t.Errorf("number = %q", o.Number)
		}
	})
}
