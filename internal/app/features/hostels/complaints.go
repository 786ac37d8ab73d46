// internal/app/features/hostels/complaints.go
package hostels

import (
	"errors"
	"net/http"

	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/viewdata"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ComplaintStats counts a hostel's complaints by status.
type ComplaintStats struct {
	Total    int `json:"total"`
	Open     int `json:"open"`
	Noticed  int `json:"noticed"`
	Resolved int `json:"resolved"`
}

// CountComplaints tallies complaints by status.
func CountComplaints(cs []models.Complaint) ComplaintStats {
	s := ComplaintStats{Total: len(cs)}
	for _, c := range cs {
		switch c.Status {
		case models.ComplaintOpen:
			s.Open++
		case models.ComplaintNoticed:
			s.Noticed++
		case models.ComplaintResolved:
			s.Resolved++
		}
	}
	return s
}

// listComplaints returns a hostel's complaints with student names (hidden
// for anonymous ones) and inline images.
func (h *Handler) listComplaints(w http.ResponseWriter, r *http.Request) {
	hostel := h.ownedHostel(w, r, chi.URLParam(r, "id"))
	if hostel == nil {
		return
	}
	ctx := r.Context()

	ids := make([]primitive.ObjectID, 0, len(hostel.Complaints))
	for _, c := range hostel.Complaints {
		if !c.IsAnonymous {
			ids = append(ids, c.Student)
		}
	}
	list, err := h.students.ListByIDs(ctx, ids)
	if err != nil {
		h.errLog.Fail(w, r, "failed to load complaint authors", err)
		return
	}
	names := make(map[primitive.ObjectID]string, len(list))
	for _, st := range list {
		names[st.ID] = st.Name
	}

	out := make([]viewdata.ComplaintView, 0, len(hostel.Complaints))
	for _, c := range hostel.Complaints {
		v := h.views.Complaint(ctx, c)
		switch {
		case c.IsAnonymous:
			v.StudentName = "Anonymous"
		case names[c.Student] != "":
			v.StudentName = names[c.Student]
		default:
			v.StudentName = "Unknown"
		}
		out = append(out, v)
	}
	jsonutil.OK(w, map[string]any{
		"complaints": out,
		"stats":      CountComplaints(hostel.Complaints),
	})
}

// ownedComplaint finds a complaint on a hostel the caller manages. Unknown
// complaints and complaints on other owners' hostels both answer 404.
func (h *Handler) ownedComplaint(w http.ResponseWriter, r *http.Request) (*models.Hostel, models.Complaint, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.NotFound(w, "Complaint not found")
		return nil, models.Complaint{}, false
	}
	hostel, err := h.hostels.GetByComplaintID(r.Context(), id)
	if errors.Is(err, hostelstore.ErrComplaintNotFound) {
		jsonutil.NotFound(w, "Complaint not found")
		return nil, models.Complaint{}, false
	}
	if err != nil {
		h.errLog.Fail(w, r, "complaint lookup failed", err)
		return nil, models.Complaint{}, false
	}
	p, _ := auth.PrincipalFrom(r)
	if !owns(p, hostel) {
		jsonutil.NotFound(w, "Complaint not found or you're not authorized")
		return nil, models.Complaint{}, false
	}
	c, _ := hostel.Complaint(id)
	return hostel, c, true
}

// setComplaintStatus moves a complaint to open, noticed or resolved.
func (h *Handler) setComplaintStatus(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	status := f.Get("status")
	if !models.IsValidComplaintStatus(status) {
		jsonutil.BadRequest(w, "Invalid status")
		return
	}
	_, c, ok := h.ownedComplaint(w, r)
	if !ok {
		return
	}
	if err := h.hostels.SetComplaintStatus(r.Context(), c.ID, status); err != nil {
		if errors.Is(err, hostelstore.ErrComplaintNotFound) {
			jsonutil.NotFound(w, "Complaint not found")
			return
		}
		h.errLog.Fail(w, r, "failed to update complaint status", err)
		return
	}
	jsonutil.Message(w, http.StatusOK, "Complaint status updated to "+status)
}

// deleteComplaint removes a resolved complaint and its images.
func (h *Handler) deleteComplaint(w http.ResponseWriter, r *http.Request) {
	hostel, c, ok := h.ownedComplaint(w, r)
	if !ok {
		return
	}
	if c.Status != models.ComplaintResolved {
		jsonutil.BadRequest(w, "Complaint must be resolved before deletion")
		return
	}
	if err := h.hostels.DeleteComplaint(r.Context(), hostel.ID, c.ID); err != nil {
		if errors.Is(err, hostelstore.ErrComplaintNotFound) {
			jsonutil.NotFound(w, "Complaint not found")
			return
		}
		h.errLog.Fail(w, r, "failed to delete complaint", err)
		return
	}
	h.images.DeleteAll(r.Context(), c.Images)
	jsonutil.Message(w, http.StatusOK, "Complaint deleted successfully")
}
