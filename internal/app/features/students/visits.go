// internal/app/features/students/visits.go
package students

import (
	"context"
	"errors"
	"net/http"
	"time"

	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/stayhome/internal/app/system/txn"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.uber.org/zap"
)

// visitDateLayouts are the accepted visitDate formats.
var visitDateLayouts = []string{time.RFC3339, "2006-01-02"}

// ParseVisitDate parses a visit date sent as RFC 3339 or YYYY-MM-DD.
func ParseVisitDate(s string) (time.Time, error) {
	for _, layout := range visitDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("Invalid visit date")
}

// notifyOwner emails the owner of hostel. A missing owner is logged only.
func (h *Handler) notifyOwner(ctx context.Context, hostel *models.Hostel, build func(to string, d mailer.VisitEmailData) mailer.Email, d mailer.VisitEmailData) {
	owner, err := h.owners.GetByID(ctx, hostel.Owner)
	if err != nil {
		h.logger.Warn("cannot notify hostel owner",
			zap.String("hostel_id", hostel.ID.Hex()),
			zap.Error(err))
		return
	}
	d.AppName = h.appName
	d.OwnerName = owner.Name
	d.HostelName = hostel.Name
	mailer.Notify(h.mail, h.logger, build(owner.Email, d))
}

// requestVisit creates or replaces the student's visit request on both
// sides and tells the owner.
func (h *Handler) requestVisit(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if f.Get("visitDate") == "" || f.Get("visitTime") == "" {
		jsonutil.BadRequest(w, "Visit date and time are required")
		return
	}
	date, err := ParseVisitDate(f.Get("visitDate"))
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
	hostel := h.loadHostel(w, r, f.Get("hostelId"))
	if hostel == nil {
		return
	}

	visitTime := f.Get("visitTime")
	err = txn.RunMulti(r.Context(), h.dbs, h.logger, func(ctx context.Context) error {
		if err := h.students.UpsertVisit(ctx, id, models.StudentVisit{
			Hostel:    hostel.ID,
			VisitDate: date,
			VisitTime: visitTime,
			Status:    models.VisitPending,
		}); err != nil {
			return err
		}
		return h.hostels.UpsertPendingVisit(ctx, hostel.ID, models.PendingVisit{
			Student:   id,
			VisitDate: date,
			VisitTime: visitTime,
			Status:    models.VisitPending,
		})
	})
	if err != nil {
		h.errLog.Fail(w, r, "failed to record visit request", err)
		return
	}

	h.notifyOwner(r.Context(), hostel, mailer.VisitRequestedEmail, mailer.VisitEmailData{
		StudentName: st.Name,
		VisitDate:   date.Format("2006-01-02"),
		VisitTime:   visitTime,
	})
	jsonutil.Message(w, http.StatusOK, "Visit request sent successfully and owner notified")
}

// markNotInterested withdraws the student from a hostel: the visit and
// wishlist entry go, and the owner sees the visit as not_interested. When
// no visits remain the wishlist goes back to draft.
func (h *Handler) markNotInterested(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if f.Get("hostelId") == "" {
		jsonutil.BadRequest(w, "Hostel ID is required")
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
	hostel := h.loadHostel(w, r, f.Get("hostelId"))
	if hostel == nil {
		return
	}

	remaining := 0
	for _, v := range st.HostelVisits {
		if v.Hostel != hostel.ID {
			remaining++
		}
	}

	err = txn.RunMulti(r.Context(), h.dbs, h.logger, func(ctx context.Context) error {
		err := h.hostels.SetPendingVisitStatus(ctx, hostel.ID, id, models.VisitNotInterested)
		if err != nil && !errors.Is(err, hostelstore.ErrVisitNotFound) {
			return err
		}
		if err := h.students.RemoveVisit(ctx, id, hostel.ID); err != nil {
			return err
		}
		if err := h.students.RemoveFromWishlist(ctx, id, hostel.ID); err != nil {
			return err
		}
		if remaining == 0 {
			return h.students.SetWishlistFlags(ctx, id, false, false)
		}
		return nil
	})
	if err != nil {
		h.errLog.Fail(w, r, "failed to mark hostel not interested", err)
		return
	}

	h.notifyOwner(r.Context(), hostel, mailer.NotInterestedEmail, mailer.VisitEmailData{StudentName: st.Name})
	jsonutil.Message(w, http.StatusOK, "Marked as not interested, removed from wishlist, and owner notified")
}
