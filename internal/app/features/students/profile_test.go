package students

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

func TestGetPassportPhoto_None(t *testing.T) {
	f := newFixture(t)
	id := f.Student(t, "s@test.com")

	for _, target := range []string{id.Hex(), primitive.NewObjectID().Hex(), "bogus"} {
		rec := fixtures.Do(f.router, testutil.NewRequest(http.MethodGet, "/api/students/getphoto/"+target), "")
		rec.AssertStatus(t, http.StatusNotFound)
		rec.AssertContains(t, "No photo found")
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	id := f.Student(t, "s@test.com")
	bearer := f.Bearer(t, id, models.KindStudent, models.RoleStudent)
	target := "/api/students/update-profile/" + id.Hex()

	t.Run("bad gender", func(t *testing.T) {
		rec := fixtures.Do(f.router, testutil.JSONRequest(http.MethodPut, target, map[string]string{"gender": "robot"}), bearer)
		rec.AssertStatus(t, http.StatusBadRequest)
		rec.AssertContains(t, "Gender must be one of")
	})

	t.Run("weak password", func(t *testing.T) {
		rec := fixtures.Do(f.router, testutil.JSONRequest(http.MethodPut, target, map[string]string{"password": "short"}), bearer)
		rec.AssertStatus(t, http.StatusBadRequest)
	})

	t.Run("other student", func(t *testing.T) {
		other := f.Student(t, "other@test.com")
		rec := fixtures.Do(f.router, testutil.JSONRequest(http.MethodPut, "/api/students/update-profile/"+other.Hex(),
			map[string]string{"city": "Goa"}), bearer)
		rec.AssertStatus(t, http.StatusForbidden)
	})

	rec := fixtures.Do(f.router, testutil.MultipartRequest(http.MethodPut, target,
		map[string]string{
			"name":     "Asha <script>x</script>",
			"city":     "Nashik",
			"password": "N3w!Passw0rd",
			"role":     "admin",
		},
		testutil.FilePart{Field: "passportPhoto", Filename: "me.png", Data: testutil.PNG},
	), bearer)
	rec.AssertStatus(t, http.StatusOK)
	var got struct {
		Message string `json:"message"`
		Student struct {
			Name string `json:"name"`
			City string `json:"city"`
			Role string `json:"role"`
		} `json:"student"`
	}
	rec.Decode(t, &got)
	if got.Student.Name != "Asha" || got.Student.City != "Nashik" {
		t.Errorf("student = %+v, want sanitized name and new city", got.Student)
	}
	if got.Student.Role != f.RoleID(t, models.RoleStudent).Hex() {
		t.Errorf("role changed through profile update: %q", got.Student.Role)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	acct, err := accountstore.New(f.DBs.Student, models.KindStudent).GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !authutil.CheckPassword("N3w!Passw0rd", acct.PasswordHash) {
		t.Error("password was not updated")
	}

	rec = fixtures.Do(f.router, testutil.NewRequest(http.MethodGet, "/api/students/getphoto/"+id.Hex()), "")
	rec.AssertStatus(t, http.StatusOK)
	var img models.EncodedImage
	rec.Decode(t, &img)
	if img.ContentType != "image/png" || img.Data == "" {
		t.Errorf("photo = %+v, want encoded png", img)
	}

	// A second photo replaces the first blob.
	rec = fixtures.Do(f.router, testutil.MultipartRequest(http.MethodPut, target, nil,
		testutil.FilePart{Field: "passportPhoto", Filename: "me2.png", Data: testutil.PNG},
	), bearer)
	rec.AssertStatus(t, http.StatusOK)
	if f.Blobs.Len() != 1 {
		t.Errorf("stored blobs = %d, want 1", f.Blobs.Len())
	}
}

func TestUploadReceipt(t *testing.T) {
	f := newFixture(t)
	id := f.Student(t, "s@test.com")
	bearer := f.Bearer(t, id, models.KindStudent, models.RoleStudent)

	rec := fixtures.Do(f.router, testutil.MultipartRequest(http.MethodPost, "/api/students/upload-receipt", nil), bearer)
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "No file uploaded")

	rec = fixtures.Do(f.router, testutil.MultipartRequest(http.MethodPost, "/api/students/upload-receipt", nil,
		testutil.FilePart{Field: "admissionReceipt", Filename: "notes.txt", Data: []byte("plain text")}), bearer)
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = fixtures.Do(f.router, testutil.MultipartRequest(http.MethodPost, "/api/students/upload-receipt", nil,
		testutil.FilePart{Field: "admissionReceipt", Filename: "receipt.png", Data: testutil.PNG}), bearer)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Admission receipt uploaded successfully")
}
