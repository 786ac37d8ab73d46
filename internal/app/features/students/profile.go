// internal/app/features/students/profile.go
package students

import (
	"errors"
	"net/http"
	"time"

	studentstore "github.com/dalemusser/stayhome/internal/app/store/students"
	"github.com/dalemusser/stayhome/internal/app/system/authutil"
	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/uploads"
	"github.com/dalemusser/stayhome/internal/app/system/viewdata"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type visitView struct {
	Hostel    *viewdata.HostelSummary `json:"hostel"`
	VisitDate time.Time               `json:"visitDate"`
	VisitTime string                  `json:"visitTime"`
	Status    string                  `json:"status"`
}

type feedbackView struct {
	models.Feedback
	HostelID   primitive.ObjectID `json:"hostelId"`
	HostelName string             `json:"hostelName"`
}

type studentView struct {
	*models.Student
	Wishlist       []viewdata.HostelSummary `json:"wishlist"`
	HostelVisits   []visitView              `json:"hostelVisits"`
	AdmittedHostel *viewdata.HostelSummary  `json:"admittedHostel,omitempty"`
	Complaints     []viewdata.ComplaintView `json:"complaints"`
	Feedback       []feedbackView           `json:"feedback"`
}

// getStudent returns a profile with wishlist, visits and admitted hostel
// resolved, plus every complaint and rating the student left.
func (h *Handler) getStudent(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "studentId"))
	if err != nil {
		jsonutil.BadRequest(w, "Invalid student id")
		return
	}
	st := h.load(w, r, id)
	if st == nil {
		return
	}
	ctx := r.Context()

	ids := append([]primitive.ObjectID{}, st.Wishlist...)
	for _, v := range st.HostelVisits {
		ids = append(ids, v.Hostel)
	}
	if st.AdmittedHostel != nil {
		ids = append(ids, *st.AdmittedHostel)
	}
	cards, err := h.views.Summaries(ctx, ids, true)
	if err != nil {
		h.errLog.Fail(w, r, "failed to load student hostels", err)
		return
	}
	byID := make(map[primitive.ObjectID]*viewdata.HostelSummary, len(cards))
	for i := range cards {
		byID[cards[i].ID] = &cards[i]
	}

	view := studentView{
		Student:      st,
		Wishlist:     []viewdata.HostelSummary{},
		HostelVisits: []visitView{},
		Complaints:   []viewdata.ComplaintView{},
		Feedback:     []feedbackView{},
	}
	for _, hid := range st.Wishlist {
		if c := byID[hid]; c != nil {
			view.Wishlist = append(view.Wishlist, *c)
		}
	}
	for _, v := range st.HostelVisits {
		view.HostelVisits = append(view.HostelVisits, visitView{
			Hostel:    byID[v.Hostel],
			VisitDate: v.VisitDate,
			VisitTime: v.VisitTime,
			Status:    v.Status,
		})
	}
	if st.AdmittedHostel != nil {
		view.AdmittedHostel = byID[*st.AdmittedHostel]
	}

	hostels, err := h.hostels.ListWithStudentActivity(ctx, st.ID)
	if err != nil {
		h.errLog.Fail(w, r, "failed to load student activity", err)
		return
	}
	for _, hostel := range hostels {
		for _, c := range hostel.Complaints {
			if c.Student != st.ID {
				continue
			}
			cv := h.views.Complaint(ctx, c)
			cv.HostelID = hostel.ID
			cv.HostelName = hostel.Name
			view.Complaints = append(view.Complaints, cv)
		}
		for _, f := range hostel.Feedback {
			if f.Student == st.ID {
				view.Feedback = append(view.Feedback, feedbackView{Feedback: f, HostelID: hostel.ID, HostelName: hostel.Name})
			}
		}
	}

	jsonutil.OK(w, view)
}

// getPassportPhoto returns the passport photo as base64.
func (h *Handler) getPassportPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.NotFound(w, "No photo found")
		return
	}
	st, err := h.students.GetByID(r.Context(), id)
	if err != nil && !errors.Is(err, studentstore.ErrNotFound) {
		h.errLog.Fail(w, r, "student lookup failed", err)
		return
	}
	if st == nil || st.PassportPhoto.IsZero() {
		jsonutil.NotFound(w, "No photo found")
		return
	}
	img, err := h.images.Encode(r.Context(), *st.PassportPhoto)
	if err != nil {
		h.logger.Warn("passport photo unavailable", zap.String("student_id", id.Hex()), zap.Error(err))
		jsonutil.NotFound(w, "No photo found")
		return
	}
	jsonutil.OK(w, img)
}

// updateProfile changes whitelisted profile fields, and optionally the
// password and passport photo.
func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	id, ok := h.subject(w, r, chi.URLParam(r, "profileId"))
	if !ok {
		return
	}
	st := h.load(w, r, id)
	if st == nil {
		return
	}

	fields := f.Profile(models.KindStudent.ProfileFields())
	if g, ok := fields["gender"].(string); ok && g != "" && !models.IsValidGender(g) {
		jsonutil.BadRequest(w, "Gender must be one of male, female or other")
		return
	}
	var hash string
	if pw := f["password"]; pw != "" {
		if hash, err = authutil.ValidateAndHash(pw); err != nil {
			jsonutil.BadRequest(w, err.Error())
			return
		}
	}

	var photo *models.Image
	if fh := formutil.File(r, "passportPhoto"); fh != nil {
		img, err := h.images.Save(r.Context(), "passport-photos", fh)
		if err != nil {
			if msg := uploads.UploadError(err); msg != "" {
				jsonutil.BadRequest(w, msg)
				return
			}
			h.errLog.Fail(w, r, "failed to store passport photo", err)
			return
		}
		photo = &img
	}

	if err := h.students.Update(r.Context(), id, fields); err != nil {
		if photo != nil {
			h.images.Delete(r.Context(), *photo)
		}
		h.errLog.Fail(w, r, "failed to update student profile", err)
		return
	}
	if photo != nil {
		if err := h.students.SetPassportPhoto(r.Context(), id, *photo); err != nil {
			h.images.Delete(r.Context(), *photo)
			h.errLog.Fail(w, r, "failed to save passport photo", err)
			return
		}
		if !st.PassportPhoto.IsZero() {
			h.images.Delete(r.Context(), *st.PassportPhoto)
		}
	}
	if hash != "" {
		if err := h.accounts.SetPassword(r.Context(), id, hash); err != nil {
			h.errLog.Fail(w, r, "failed to update password", err)
			return
		}
	}

	updated := h.load(w, r, id)
	if updated == nil {
		return
	}
	jsonutil.OK(w, map[string]any{
		"message": "Profile updated successfully",
		"student": updated,
	})
}

// uploadReceipt stores the admission receipt image.
func (h *Handler) uploadReceipt(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	fh := formutil.File(r, "admissionReceipt")
	if fh == nil {
		jsonutil.BadRequest(w, "No file uploaded")
		return
	}
	id, ok := h.subject(w, r, f.Get("studentId"))
	if !ok {
		return
	}
	st := h.load(w, r, id)
	if st == nil {
		return
	}

	img, err := h.images.Save(r.Context(), "admission-receipts", fh)
	if err != nil {
		if msg := uploads.UploadError(err); msg != "" {
			jsonutil.BadRequest(w, msg)
			return
		}
		h.errLog.Fail(w, r, "failed to store admission receipt", err)
		return
	}
	if err := h.students.SetAdmissionReceipt(r.Context(), id, img); err != nil {
		h.images.Delete(r.Context(), img)
		h.errLog.Fail(w, r, "failed to save admission receipt", err)
		return
	}
	if !st.AdmissionReceipt.IsZero() {
		h.images.Delete(r.Context(), *st.AdmissionReceipt)
	}
	jsonutil.Message(w, http.StatusOK, "Admission receipt uploaded successfully")
}
