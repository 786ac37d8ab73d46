package admin

import (
	"errors"
	"net/http"

	"github.com/dalemusser/stayhome/internal/app/store/audit"
	studentstore "github.com/dalemusser/stayhome/internal/app/store/students"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type admittedHostel struct {
	ID          primitive.ObjectID `json:"_id"`
	Name        string             `json:"name"`
	Address     string             `json:"address"`
	HostelType  string             `json:"hostelType"`
	OwnerName   string             `json:"ownerName,omitempty"`
	OwnerNumber string             `json:"ownerNumber,omitempty"`
}

type hostelComplaint struct {
	models.Complaint
	HostelID   primitive.ObjectID `json:"hostelId"`
	HostelName string             `json:"hostelName"`
}

type hostelFeedback struct {
	models.Feedback
	HostelID   primitive.ObjectID `json:"hostelId"`
	HostelName string             `json:"hostelName"`
}

// adminStudent is a student record with everything they did across
// hostels gathered in one place.
type adminStudent struct {
	models.Student
	AdmittedHostel *admittedHostel   `json:"admittedHostel"`
	Complaints     []hostelComplaint `json:"complaints"`
	Feedback       []hostelFeedback  `json:"feedback"`
}

// listStudents returns every student with their admitted hostel and the
// complaints and ratings they left. Hostels are read once and indexed.
func (h *Handler) listStudents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	students, err := h.students.List(ctx)
	if err != nil {
		h.errLog.Fail(w, r, "failed to list students", err)
		return
	}
	hostels, err := h.hostels.List(ctx)
	if err != nil {
		h.errLog.Fail(w, r, "failed to list hostels", err)
		return
	}
	owners, err := h.views.Owners(ctx, ownerIDsOf(hostels))
	if err != nil {
		h.errLog.Fail(w, r, "failed to load hostel owners", err)
		return
	}

	byID := make(map[primitive.ObjectID]*admittedHostel, len(hostels))
	complaints := map[primitive.ObjectID][]hostelComplaint{}
	feedback := map[primitive.ObjectID][]hostelFeedback{}
	for _, hs := range hostels {
		ah := &admittedHostel{ID: hs.ID, Name: hs.Name, Address: hs.Address, HostelType: hs.HostelType}
		if o := owners[hs.Owner]; o != nil {
			ah.OwnerName, ah.OwnerNumber = o.Name, o.Number
		}
		byID[hs.ID] = ah
		for _, c := range hs.Complaints {
			complaints[c.Student] = append(complaints[c.Student], hostelComplaint{c, hs.ID, hs.Name})
		}
		for _, fb := range hs.Feedback {
			feedback[fb.Student] = append(feedback[fb.Student], hostelFeedback{fb, hs.ID, hs.Name})
		}
	}

	out := make([]adminStudent, 0, len(students))
	for _, st := range students {
		v := adminStudent{
			Student:    st,
			Complaints: complaints[st.ID],
			Feedback:   feedback[st.ID],
		}
		if st.AdmittedHostel != nil {
			v.AdmittedHostel = byID[*st.AdmittedHostel]
		}
		if v.Complaints == nil {
			v.Complaints = []hostelComplaint{}
		}
		if v.Feedback == nil {
			v.Feedback = []hostelFeedback{}
		}
		out = append(out, v)
	}
	jsonutil.OK(w, out)
}

func ownerIDsOf(hostels []models.Hostel) []primitive.ObjectID {
	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	for _, hs := range hostels {
		if !seen[hs.Owner] {
			seen[hs.Owner] = true
			ids = append(ids, hs.Owner)
		}
	}
	return ids
}

// studentFlags are the state flags an admin may correct by hand.
var studentFlags = []string{"wishlistSubmitted", "wishlistApproved", "cashbackApplied", "isApproved"}

func (h *Handler) updateStudent(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	st := h.loadStudent(w, r, f.Get("studentId"))
	if st == nil {
		return
	}
	fields := f.Profile(models.KindStudent.ProfileFields())
	if g, ok := fields["gender"].(string); ok && g != "" && !models.IsValidGender(g) {
		jsonutil.BadRequest(w, "Gender must be one of male, female or other")
		return
	}
	for _, k := range studentFlags {
		if f.Has(k) {
			fields[k] = f.Bool(k)
		}
	}
	h.saveStudent(w, r, st.ID, fields)
}

// saveStudent applies fields and answers with the updated record.
func (h *Handler) saveStudent(w http.ResponseWriter, r *http.Request, id primitive.ObjectID, fields bson.M) {
	if err := h.students.Update(r.Context(), id, fields); err != nil {
		if errors.Is(err, studentstore.ErrNotFound) {
			jsonutil.NotFound(w, "Student not found")
			return
		}
		h.errLog.Fail(w, r, "failed to update student", err)
		return
	}
	updated := h.loadStudent(w, r, id.Hex())
	if updated == nil {
		return
	}
	jsonutil.OK(w, updated)
}

func (h *Handler) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	studentID, ok := parseID(f.Get("studentId"))
	if !ok {
		jsonutil.BadRequest(w, "Invalid student id")
		return
	}
	hostelID, ok := parseID(f.Get("hostelId"))
	if !ok {
		jsonutil.BadRequest(w, "Invalid hostel id")
		return
	}
	if err := h.students.RemoveFromWishlist(r.Context(), studentID, hostelID); err != nil {
		if errors.Is(err, studentstore.ErrNotFound) {
			jsonutil.NotFound(w, "Student not found")
			return
		}
		h.errLog.Fail(w, r, "failed to remove hostel from wishlist", err)
		return
	}
	updated := h.loadStudent(w, r, studentID.Hex())
	if updated == nil {
		return
	}
	jsonutil.OK(w, updated)
}

func (h *Handler) approveWishlist(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	st := h.loadStudent(w, r, f.Get("studentId"))
	if st == nil {
		return
	}
	if !st.WishlistSubmitted {
		jsonutil.BadRequest(w, "Wishlist not submitted")
		return
	}
	if err := h.students.SetWishlistFlags(r.Context(), st.ID, true, true); err != nil {
		h.errLog.Fail(w, r, "failed to approve wishlist", err)
		return
	}
	st.WishlistApproved = true

	p, _ := auth.PrincipalFrom(r)
	h.audit.Admin(r, p.ID, st.ID, audit.EventWishlistApproved, nil)
	jsonutil.OK(w, map[string]any{
		"message": "Wishlist approved successfully",
		"student": st,
	})
}

func (h *Handler) deleteStudent(w http.ResponseWriter, r *http.Request) {
	st := h.loadStudent(w, r, chi.URLParam(r, "studentId"))
	if st == nil {
		return
	}
	res, err := h.remover.Student(r.Context(), st)
	if err != nil {
		h.errLog.Fail(w, r, "failed to remove student", err, zap.String("student_id", st.ID.Hex()))
		return
	}

	p, _ := auth.PrincipalFrom(r)
	h.audit.Admin(r, p.ID, st.ID, audit.EventStudentRemoved, map[string]string{"email": st.Email})
	jsonutil.OK(w, map[string]any{
		"message":     "Student deleted successfully",
		"removedFrom": res,
	})
}
