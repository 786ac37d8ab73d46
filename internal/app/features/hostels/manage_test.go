package hostels

import (
	"fmt"
	"net/http"
	"testing"

	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	ownerstore "github.com/dalemusser/stayhome/internal/app/store/owners"
	studentstore "github.com/dalemusser/stayhome/internal/app/store/students"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"github.com/dalemusser/stayhome/internal/testutil/fixtures"
)

func hostelForm() map[string]string {
	return map[string]string{
		"name":            "Sunrise",
		"number":          "020-1234",
		"address":         "12 College Road",
		"hostelType":      "girls",
		"beds":            "40",
		"studentsPerRoom": "2",
		"food":            "true",
		"foodType":        "both",
		"mealOptions":     `["breakfast","all"]`,
		"rentStructure":   `[{"studentsPerRoom":"2","rentPerStudent":"5500"}]`,
		"wifi":            "true",
		"kitchenType":     "inHouse",
	}
}

func TestAddHostel(t *testing.T) {
	f := newFixture(t)

	t.Run("requires owner", func(t *testing.T) {
		st := f.Student(t, "s@test.com")
		rec := fixtures.Do(f.router, testutil.MultipartRequest(http.MethodPost, "/api/hostels/add-hostel", hostelForm()),
			f.Bearer(t, st, models.KindStudent, models.RoleStudent))
		rec.AssertStatus(t, http.StatusUnauthorized)
	})

	t.Run("validation", func(t *testing.T) {
		form := hostelForm()
		delete(form, "address")
		rec := fixtures.Do(f.router, testutil.MultipartRequest(http.MethodPost, "/api/hostels/add-hostel", form), f.bearer)
		rec.AssertStatus(t, http.StatusBadRequest)
		rec.AssertContains(t, "Address is required")
	})

	rec := fixtures.Do(f.router, testutil.MultipartRequest(http.MethodPost, "/api/hostels/add-hostel", hostelForm(),
		testutil.FilePart{Field: "images", Filename: "front.png", Data: testutil.PNG},
		testutil.FilePart{Field: "images", Filename: "room.png", Data: testutil.PNG},
	), f.bearer)
	rec.AssertStatus(t, http.StatusCreated)
	var got struct {
		Hostel models.Hostel `json:"hostel"`
	}
	rec.Decode(t, &got)
	h := got.Hostel
	if h.Owner != f.owner || h.Verified || h.Beds != 40 || !h.Wifi || h.PaymentStatus != models.PaymentPending {
		t.Errorf("hostel = %+v", h)
	}
	if len(h.MealOptions) != 1 || h.MealOptions[0] != models.MealAll {
		t.Errorf("mealOptions = %v, want [all]", h.MealOptions)
	}
	if len(h.RentStructure) != 1 || h.RentStructure[0].RentPerStudent != 5500 {
		t.Errorf("rentStructure = %+v", h.RentStructure)
	}
	if len(h.Images) != 2 || f.Blobs.Len() != 2 {
		t.Errorf("images = %d, blobs = %d, want 2", len(h.Images), f.Blobs.Len())
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	o, err := ownerstore.New(f.DBs.Owner).GetByID(ctx, f.owner)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !o.Owns(h.ID) {
		t.Errorf("owner hostels = %v, missing %s", o.Hostels, h.ID.Hex())
	}
}

func TestAddHostel_TooManyImages(t *testing.T) {
	f := newFixture(t)
	var files []testutil.FilePart
	for i := 0; i <= models.MaxHostelImages; i++ {
		files = append(files, testutil.FilePart{Field: "images", Filename: fmt.Sprintf("%d.png", i), Data: testutil.PNG})
	}
	rec := fixtures.Do(f.router, testutil.MultipartRequest(http.MethodPost, "/api/hostels/add-hostel", hostelForm(), files...), f.bearer)
	rec.AssertStatus(t, http.StatusBadRequest)
	if f.Blobs.Len() != 0 {
		t.Errorf("blobs = %d, want 0", f.Blobs.Len())
	}
}

func TestUpdateHostel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := hostelstore.New(f.DBs.Common)

	rec := fixtures.Do(f.router, testutil.MultipartRequest(http.MethodPost, "/api/hostels/add-hostel", hostelForm(),
		testutil.FilePart{Field: "images", Filename: "a.png", Data: testutil.PNG},
		testutil.FilePart{Field: "images", Filename: "b.png", Data: testutil.PNG},
	), f.bearer)
	rec.AssertStatus(t, http.StatusCreated)
	var created struct {
		Hostel models.Hostel `json:"hostel"`
	}
	rec.Decode(t, &created)
	id := created.Hostel.ID.Hex()
	keepKey := created.Hostel.Images[1].Key

	t.Run("not owner", func(t *testing.T) {
		_, rival := f.otherOwner(t)
		rec := fixtures.Do(f.router, testutil.MultipartRequest(http.MethodPut, "/api/hostels/update-hostel",
			map[string]string{"hostelId": id, "beds": "1"}), rival)
		rec.AssertStatus(t, http.StatusForbidden)
	})

	t.Run("bad rent", func(t *testing.T) {
		rec := fixtures.Do(f.router, testutil.MultipartRequest(http.MethodPut, "/api/hostels/update-hostel",
			map[string]string{"hostelId": id, "rentStructure": `{"studentsPerRoom":2}`}), f.bearer)
		rec.AssertStatus(t, http.StatusBadRequest)
		rec.AssertContains(t, "Invalid rent structure format")
	})

	t.Run("bad existing images", func(t *testing.T) {
		rec := fixtures.Do(f.router, testutil.MultipartRequest(http.MethodPut, "/api/hostels/update-hostel",
			map[string]string{"hostelId": id, "existingImages": "not json"}), f.bearer)
		rec.AssertStatus(t, http.StatusBadRequest)
	})

	rec = fixtures.Do(f.router, testutil.MultipartRequest(http.MethodPut, "/api/hostels/update-hostel",
		map[string]string{
			"hostelId":       id,
			"beds":           "44",
			"food":           "false",
			"existingImages": `["` + keepKey + `"]`,
		},
		testutil.FilePart{Field: "images", Filename: "c.png", Data: testutil.PNG},
	), f.bearer)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Hostel updated successfully")

	got, err := store.GetByID(ctx, created.Hostel.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Beds != 44 || got.Food || len(got.MealOptions) != 0 || got.FoodType != "" {
		t.Errorf("hostel = %+v", got)
	}
	if got.Name != "Sunrise" || got.HostelType != "girls" {
		t.Errorf("unsubmitted fields changed: name %q type %q", got.Name, got.HostelType)
	}
	if len(got.Images) != 2 || got.Images[0].Key != keepKey {
		t.Errorf("images = %+v, want kept image then new upload", got.Images)
	}
	if f.Blobs.Len() != 2 {
		t.Errorf("blobs = %d, want 2 (dropped image deleted)", f.Blobs.Len())
	}
}

func TestDeleteHostel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	hostel := f.Hostel(t, f.owner, "Sunrise")
	students := studentstore.New(f.DBs.Student)

	admitted := f.Student(t, "admitted@test.com")
	if err := students.Admit(ctx, admitted, hostel.ID); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	fan := f.Student(t, "fan@test.com")
	if err := students.AddToWishlist(ctx, fan, hostel.ID); err != nil {
		t.Fatalf("AddToWishlist() error = %v", err)
	}

	_, rival := f.otherOwner(t)
	rec := fixtures.Do(f.router, testutil.NewRequest(http.MethodDelete, "/api/hostels/delete/"+hostel.ID.Hex()), rival)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = fixtures.Do(f.router, testutil.NewRequest(http.MethodDelete, "/api/hostels/delete/"+hostel.ID.Hex()), f.bearer)
	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertContains(t, "students are admitted")

	if err := students.Delete(ctx, admitted); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	rec = fixtures.Do(f.router, testutil.NewRequest(http.MethodDelete, "/api/hostels/delete/"+hostel.ID.Hex()), f.bearer)
	rec.AssertStatus(t, http.StatusOK)
	var got struct {
		RemovedFrom struct {
			Owner    bool  `json:"owner"`
			Students int64 `json:"students"`
		} `json:"removedFrom"`
	}
	rec.Decode(t, &got)
	if !got.RemovedFrom.Owner || got.RemovedFrom.Students != 1 {
		t.Errorf("removedFrom = %+v", got.RemovedFrom)
	}

	st, err := students.GetByID(ctx, fan)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(st.Wishlist) != 0 {
		t.Errorf("wishlist still holds deleted hostel: %v", st.Wishlist)
	}
	rec = fixtures.Do(f.router, testutil.NewRequest(http.MethodGet, "/api/hostels/"+hostel.ID.Hex()), "")
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestOwnerHostels(t *testing.T) {
	f := newFixture(t)
	f.Hostel(t, f.owner, "One")
	f.Hostel(t, f.owner, "Two")
	rival, _ := f.otherOwner(t)

	rec := fixtures.Do(f.router, testutil.NewRequest(http.MethodGet, "/api/hostels/"+f.owner.Hex()+"/hostels"), f.bearer)
	rec.AssertStatus(t, http.StatusOK)
	var got struct {
		Hostels []models.Hostel `json:"hostels"`
	}
	rec.Decode(t, &got)
	if len(got.Hostels) != 2 {
		t.Errorf("hostels = %d, want 2", len(got.Hostels))
	}

	rec = fixtures.Do(f.router, testutil.NewRequest(http.MethodGet, "/api/hostels/"+rival.Hex()+"/hostels"), f.bearer)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = fixtures.Do(f.router, testutil.NewRequest(http.MethodGet, "/api/hostels/"+f.owner.Hex()+"/hostels"), f.ownerAdmin(t))
	rec.AssertStatus(t, http.StatusOK)
}
