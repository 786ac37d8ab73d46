// internal/app/features/students/admission.go
package students

import (
	"errors"
	"net/http"

	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/uploads"
	"github.com/dalemusser/stayhome/internal/app/system/viewdata"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// takeAdmission records the hostel a student joins. The profile must be
// complete and the wishlist approved first.
func (h *Handler) takeAdmission(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
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

	switch {
	case !st.ProfileComplete():
		jsonutil.BadRequest(w, "Please complete your profile before taking admission")
		return
	case !st.WishlistApproved:
		jsonutil.BadRequest(w, "Wishlist must be approved before taking admission")
		return
	case st.AdmittedHostel != nil:
		jsonutil.BadRequest(w, "You have already been admitted to a hostel")
		return
	}

	hostel := h.loadHostel(w, r, f.Get("hostelId"))
	if hostel == nil {
		return
	}
	if err := h.students.Admit(r.Context(), id, hostel.ID); err != nil {
		h.errLog.Fail(w, r, "failed to record admission", err)
		return
	}
	jsonutil.Message(w, http.StatusOK, "Admission taken successfully")
}

// submitFeedback adds a 1..5 rating to a hostel.
func (h *Handler) submitFeedback(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	rating, err := f.Int("rating")
	if err != nil || rating < 1 || rating > 5 {
		jsonutil.BadRequest(w, "Rating must be between 1 and 5")
		return
	}
	id, ok := h.subject(w, r, f.Get("studentId"))
	if !ok {
		return
	}
	if h.load(w, r, id) == nil {
		return
	}
	hostel := h.loadHostel(w, r, f.Get("hostelId"))
	if hostel == nil {
		return
	}

	fb, err := h.hostels.AddFeedback(r.Context(), hostel.ID, models.Feedback{
		Student: id,
		Rating:  rating,
		Comment: htmlsanitize.Text(f["comment"]),
	})
	if err != nil {
		h.errLog.Fail(w, r, "failed to save feedback", err)
		return
	}
	jsonutil.OK(w, map[string]any{
		"message":  "Feedback submitted successfully",
		"feedback": fb,
	})
}

// submitComplaint files a complaint against the student's admitted hostel.
func (h *Handler) submitComplaint(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
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
	if st.AdmittedHostel == nil {
		jsonutil.BadRequest(w, "You must be admitted to a hostel to submit a complaint")
		return
	}

	hostelID := f.Get("hostelId")
	if hostelID == "" {
		hostelID = st.AdmittedHostel.Hex()
	}
	hostel := h.loadHostel(w, r, hostelID)
	if hostel == nil {
		return
	}
	if hostel.ID != *st.AdmittedHostel {
		jsonutil.BadRequest(w, "You can only submit complaints for the hostel you are admitted to")
		return
	}

	ctype := f.Get("complaintType")
	if !models.IsValidComplaintType(ctype) {
		jsonutil.BadRequest(w, "Invalid complaint type")
		return
	}
	desc := htmlsanitize.Text(f["description"])
	if desc == "" {
		jsonutil.BadRequest(w, "Description is required")
		return
	}

	imgs, err := h.images.SaveAll(r.Context(), "complaint-images", formutil.Files(r, "images"), models.MaxComplaintImages)
	if err != nil {
		if msg := uploads.UploadError(err); msg != "" {
			jsonutil.BadRequest(w, msg)
			return
		}
		h.errLog.Fail(w, r, "failed to store complaint images", err)
		return
	}

	c, err := h.hostels.AddComplaint(r.Context(), hostel.ID, models.Complaint{
		Student:       id,
		Description:   desc,
		IsAnonymous:   f.Bool("isAnonymous"),
		Images:        imgs,
		Status:        models.ComplaintOpen,
		ComplaintType: ctype,
	})
	if err != nil {
		h.images.DeleteAll(r.Context(), imgs)
		h.errLog.Fail(w, r, "failed to save complaint", err)
		return
	}
	jsonutil.Created(w, map[string]any{
		"message":   "Complaint submitted successfully",
		"complaint": c,
	})
}

// listComplaints returns the student's complaints at their admitted hostel.
func (h *Handler) listComplaints(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "studentId"))
	if err != nil {
		jsonutil.BadRequest(w, "Invalid student id")
		return
	}
	st := h.load(w, r, id)
	if st == nil {
		return
	}
	if st.AdmittedHostel == nil {
		jsonutil.NotFound(w, "Student is not admitted to any hostel")
		return
	}
	hostel, err := h.hostels.GetByID(r.Context(), *st.AdmittedHostel)
	if errors.Is(err, hostelstore.ErrNotFound) {
		jsonutil.NotFound(w, "Hostel not found")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "hostel lookup failed", err)
		return
	}

	out := []viewdata.ComplaintView{}
	for _, c := range hostel.Complaints {
		if c.Student == id {
			out = append(out, h.views.Complaint(r.Context(), c))
		}
	}
	jsonutil.OK(w, out)
}
