package cascade

import (
	"errors"
	"testing"
	"time"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	ownerstore "github.com/dalemusser/stayhome/internal/app/store/owners"
	studentstore "github.com/dalemusser/stayhome/internal/app/store/students"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"github.com/dalemusser/stayhome/internal/testutil/fixtures"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func saveImage(t *testing.T, env *fixtures.Env, prefix string) models.Image {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	img, err := env.Images.SaveBytes(ctx, prefix, "photo.png", testutil.PNG)
	if err != nil {
		t.Fatalf("SaveBytes() error = %v", err)
	}
	return img
}

func TestRemover_Hostel(t *testing.T) {
	env := fixtures.New(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := env.Owner(t, "o@test.com")
	h := env.Hostel(t, owner, "Lakeside")
	hostels := hostelstore.New(env.DBs.Common)
	students := studentstore.New(env.DBs.Student)

	photo := saveImage(t, env, "hostels")
	if err := hostels.Update(ctx, h.ID, map[string]any{"images": []models.Image{photo}}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	complaintImg := saveImage(t, env, "complaints")
	visitor := env.Student(t, "v@test.com")
	if _, err := hostels.AddComplaint(ctx, h.ID, models.Complaint{
		Student:     visitor,
		Description: "Leaky tap",
		Images:      []models.Image{complaintImg},
		Date:        time.Now(),
		Status:      "pending",
	}); err != nil {
		t.Fatalf("AddComplaint() error = %v", err)
	}
	if err := students.AddToWishlist(ctx, visitor, h.ID); err != nil {
		t.Fatalf("AddToWishlist() error = %v", err)
	}
	if err := students.UpsertVisit(ctx, visitor, models.StudentVisit{Hostel: h.ID, VisitDate: time.Now(), VisitTime: "10:00", Status: "pending"}); err != nil {
		t.Fatalf("UpsertVisit() error = %v", err)
	}

	rm := New(env.DBs, env.Images, zap.NewNop())

	// Refused while a student is admitted.
	admitted := env.Student(t, "a@test.com")
	if err := students.Admit(ctx, admitted, h.ID); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if _, err := rm.Hostel(ctx, &h); !errors.Is(err, ErrStudentsAdmitted) {
		t.Fatalf("Hostel() error = %v, want ErrStudentsAdmitted", err)
	}
	if err := students.Delete(ctx, admitted); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	current, err := hostels.GetByID(ctx, h.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	got, err := rm.Hostel(ctx, current)
	if err != nil {
		t.Fatalf("Hostel() error = %v", err)
	}
	if !got.Owner || got.Students != 1 || got.Images != 2 {
		t.Errorf("Hostel() = %+v, want owner updated, 1 student, 2 images", got)
	}

	if _, err := hostels.GetByID(ctx, h.ID); !errors.Is(err, hostelstore.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
	o, err := ownerstore.New(env.DBs.Owner).GetByID(ctx, owner)
	if err != nil {
		t.Fatalf("owner GetByID() error = %v", err)
	}
	if len(o.Hostels) != 0 {
		t.Errorf("owner hostels = %v, want empty", o.Hostels)
	}
	st, err := students.GetByID(ctx, visitor)
	if err != nil {
		t.Fatalf("student GetByID() error = %v", err)
	}
	if len(st.Wishlist) != 0 || len(st.HostelVisits) != 0 {
		t.Errorf("student still references hostel: wishlist=%v visits=%v", st.Wishlist, st.HostelVisits)
	}
	if n := env.Blobs.Len(); n != 0 {
		t.Errorf("blobs = %d, want all hostel images deleted", n)
	}
}

func TestRemover_Hostel_MissingOwner(t *testing.T) {
	env := fixtures.New(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	h, err := hostelstore.New(env.DBs.Common).Create(ctx, models.Hostel{
		Name:       "Orphan",
		Owner:      primitive.NewObjectID(),
		Number:     "020-5555",
		Address:    "2 Hostel Road",
		HostelType: models.HostelGirls,
		Beds:       4,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, err := New(env.DBs, env.Images, zap.NewNop()).Hostel(ctx, &h)
	if err != nil {
		t.Fatalf("Hostel() error = %v", err)
	}
	if got.Owner {
		t.Error("Owner = true for a hostel whose owner is gone")
	}
}

func TestRemover_Student(t *testing.T) {
	env := fixtures.New(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := env.Owner(t, "o@test.com")
	h := env.Hostel(t, owner, "Lakeside")
	hostels := hostelstore.New(env.DBs.Common)
	students := studentstore.New(env.DBs.Student)

	id := env.Student(t, "s@test.com")
	other := env.Student(t, "other@test.com")
	if err := students.SetPassportPhoto(ctx, id, saveImage(t, env, "passport")); err != nil {
		t.Fatalf("SetPassportPhoto() error = %v", err)
	}
	if err := students.SetAdmissionReceipt(ctx, id, saveImage(t, env, "receipts")); err != nil {
		t.Fatalf("SetAdmissionReceipt() error = %v", err)
	}
	for _, sid := range []primitive.ObjectID{id, other} {
		if _, err := hostels.AddComplaint(ctx, h.ID, models.Complaint{
			Student:     sid,
			Description: "Noise",
			Images:      []models.Image{saveImage(t, env, "complaints")},
			Date:        time.Now(),
			Status:      "pending",
		}); err != nil {
			t.Fatalf("AddComplaint() error = %v", err)
		}
	}
	if _, err := hostels.AddFeedback(ctx, h.ID, models.Feedback{Student: id, Rating: 4, Comment: "Good"}); err != nil {
		t.Fatalf("AddFeedback() error = %v", err)
	}
	if err := hostels.UpsertPendingVisit(ctx, h.ID, models.PendingVisit{Student: id, VisitDate: time.Now(), VisitTime: "11:00", Status: "pending"}); err != nil {
		t.Fatalf("UpsertPendingVisit() error = %v", err)
	}

	st, err := students.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	rm := New(env.DBs, env.Images, zap.NewNop())

	imgs, err := rm.StudentImages(ctx, st)
	if err != nil {
		t.Fatalf("StudentImages() error = %v", err)
	}
	if len(imgs) != 3 {
		t.Errorf("StudentImages() = %d, want complaint photo, passport and receipt", len(imgs))
	}

	got, err := rm.Student(ctx, st)
	if err != nil {
		t.Fatalf("Student() error = %v", err)
	}
	if got.Hostels != 1 || got.Images != 3 {
		t.Errorf("Student() = %+v, want 1 hostel, 3 images", got)
	}

	if _, err := accountstore.New(env.DBs.Student, models.KindStudent).GetByID(ctx, id); !errors.Is(err, accountstore.ErrNotFound) {
		t.Errorf("account GetByID() error = %v, want ErrNotFound", err)
	}
	after, err := hostels.GetByID(ctx, h.ID)
	if err != nil {
		t.Fatalf("hostel GetByID() error = %v", err)
	}
	if len(after.Complaints) != 1 || after.Complaints[0].Student != other {
		t.Errorf("complaints = %+v, want only the other student's", after.Complaints)
	}
	if len(after.Feedback) != 0 || len(after.PendingVisits) != 0 {
		t.Errorf("feedback=%d visits=%d, want both cleared", len(after.Feedback), len(after.PendingVisits))
	}
	if n := env.Blobs.Len(); n != 1 {
		t.Errorf("blobs = %d, want only the other student's complaint photo", n)
	}
}
