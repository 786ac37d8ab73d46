// internal/app/features/hostels/roster.go
package hostels

import (
	"context"
	"net/http"

	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/txn"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// rosterStudent is the student profile an owner sees. Wishlists and
// uploads of other hostels stay private.
type rosterStudent struct {
	ID                primitive.ObjectID   `json:"_id"`
	Name              string               `json:"name"`
	Email             string               `json:"email"`
	Number            string               `json:"number"`
	Gender            string               `json:"gender,omitempty"`
	City              string               `json:"city,omitempty"`
	Address           string               `json:"address,omitempty"`
	ParentName        string               `json:"parentname,omitempty"`
	ParentNumber      string               `json:"parentnumber,omitempty"`
	Class             string               `json:"class,omitempty"`
	Year              string               `json:"year,omitempty"`
	School            string               `json:"school,omitempty"`
	College           string               `json:"college,omitempty"`
	WishlistSubmitted bool                 `json:"wishlistSubmitted"`
	WishlistApproved  bool                 `json:"wishlistApproved"`
	AdmittedHostel    *primitive.ObjectID  `json:"admittedHostel,omitempty"`
	CashbackApplied   bool                 `json:"cashbackApplied"`
	Receipt           *models.EncodedImage `json:"binaryAdmitReceipt,omitempty"`
}

func toRoster(st models.Student) rosterStudent {
	return rosterStudent{
		ID:                st.ID,
		Name:              st.Name,
		Email:             st.Email,
		Number:            st.Number,
		Gender:            st.Gender,
		City:              st.City,
		Address:           st.Address,
		ParentName:        st.ParentName,
		ParentNumber:      st.ParentNumber,
		Class:             st.Class,
		Year:              st.Year,
		School:            st.School,
		College:           st.College,
		WishlistSubmitted: st.WishlistSubmitted,
		WishlistApproved:  st.WishlistApproved,
		AdmittedHostel:    st.AdmittedHostel,
		CashbackApplied:   st.CashbackApplied,
	}
}

// wishlistStudents lists the students who shortlisted a hostel.
func (h *Handler) wishlistStudents(w http.ResponseWriter, r *http.Request) {
	hostel := h.ownedHostel(w, r, chi.URLParam(r, "id"))
	if hostel == nil {
		return
	}
	list, err := h.students.ListByWishlistHostel(r.Context(), hostel.ID)
	if err != nil {
		h.errLog.Fail(w, r, "failed to list wishlist students", err)
		return
	}
	out := make([]rosterStudent, 0, len(list))
	for _, st := range list {
		out = append(out, toRoster(st))
	}
	jsonutil.OK(w, out)
}

// admittedStudents lists a hostel's admitted students with their
// admission receipts.
func (h *Handler) admittedStudents(w http.ResponseWriter, r *http.Request) {
	hostel := h.loadHostel(w, r, chi.URLParam(r, "id"))
	if hostel == nil {
		return
	}
	p, _ := auth.PrincipalFrom(r)
	if !owns(p, hostel) {
		jsonutil.NotFound(w, "Hostel not found or you're not authorized to access this data")
		return
	}
	list, err := h.students.ListAdmittedTo(r.Context(), hostel.ID)
	if err != nil {
		h.errLog.Fail(w, r, "failed to list admitted students", err)
		return
	}

	out := make([]rosterStudent, 0, len(list))
	for _, st := range list {
		v := toRoster(st)
		if !st.AdmissionReceipt.IsZero() {
			img, err := h.images.Encode(r.Context(), *st.AdmissionReceipt)
			if err != nil {
				h.logger.Warn("admission receipt unavailable",
					zap.String("student_id", st.ID.Hex()), zap.Error(err))
			} else {
				v.Receipt = &img
			}
		}
		out = append(out, v)
	}

	resp := map[string]any{
		"_id":                   hostel.ID,
		"name":                  hostel.Name,
		"admittedStudents":      out,
		"totalAdmittedStudents": len(out),
	}
	if len(out) == 0 {
		resp["message"] = "No admitted students found for this hostel."
	}
	jsonutil.OK(w, resp)
}

// applyCashback marks an admitted student's cashback as claimed and the
// hostel's admission fee as paid.
func (h *Handler) applyCashback(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	hostel := h.loadHostel(w, r, f.Get("hostelId"))
	if hostel == nil {
		return
	}
	p, _ := auth.PrincipalFrom(r)
	if !owns(p, hostel) {
		jsonutil.Forbidden(w, "Not authorized to apply cashback for this hostel")
		return
	}
	st := h.loadStudent(w, r, f.Get("studentId"))
	if st == nil {
		return
	}
	if st.AdmittedHostel == nil || *st.AdmittedHostel != hostel.ID {
		jsonutil.BadRequest(w, "Student is not admitted to this hostel")
		return
	}
	if st.CashbackApplied {
		jsonutil.BadRequest(w, "Cashback already applied")
		return
	}

	err = txn.RunMulti(r.Context(), h.dbs, h.logger, func(ctx context.Context) error {
		if err := h.students.SetCashbackApplied(ctx, st.ID); err != nil {
			return err
		}
		return h.hostels.MarkPaid(ctx, hostel.ID)
	})
	if err != nil {
		h.errLog.Fail(w, r, "failed to apply cashback", err)
		return
	}
	jsonutil.Message(w, http.StatusOK, "Cashback applied successfully")
}
