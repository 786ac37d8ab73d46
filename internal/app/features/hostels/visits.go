// internal/app/features/hostels/visits.go
package hostels

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
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// visitStudent is the visitor profile shown with a visit request.
type visitStudent struct {
	ID      primitive.ObjectID `json:"_id"`
	Name    string             `json:"name"`
	Email   string             `json:"email"`
	Number  string             `json:"number"`
	Class   string             `json:"class,omitempty"`
	Year    string             `json:"year,omitempty"`
	School  string             `json:"school,omitempty"`
	College string             `json:"college,omitempty"`
	City    string             `json:"city,omitempty"`
	Address string             `json:"address,omitempty"`
}

type visitView struct {
	ID                    primitive.ObjectID `json:"_id"`
	Student               *visitStudent      `json:"student"`
	VisitDate             time.Time          `json:"visitDate"`
	VisitTime             string             `json:"visitTime"`
	Status                string             `json:"status"`
	HostelName            string             `json:"hostelName"`
	HostelAddress         string             `json:"hostelAddress"`
	HostelType            string             `json:"hostelType"`
	HostelBeds            int                `json:"hostelBeds"`
	HostelStudentsPerRoom int                `json:"hostelStudentsPerRoom"`
	HostelFood            bool               `json:"hostelFood"`
}

// listedVisitStatus reports whether an owner's visit list shows status.
func listedVisitStatus(status string) bool {
	switch status {
	case models.VisitPending, models.VisitAccepted, models.VisitNotInterested:
		return true
	}
	return false
}

// pendingVisits lists open visit requests with the visitor's profile.
func (h *Handler) pendingVisits(w http.ResponseWriter, r *http.Request) {
	hostel := h.ownedHostel(w, r, chi.URLParam(r, "id"))
	if hostel == nil {
		return
	}
	var visits []models.PendingVisit
	ids := []primitive.ObjectID{}
	for _, v := range hostel.PendingVisits {
		if v.Status == "" {
			v.Status = models.VisitPending
		}
		if listedVisitStatus(v.Status) {
			visits = append(visits, v)
			ids = append(ids, v.Student)
		}
	}
	list, err := h.students.ListByIDs(r.Context(), ids)
	if err != nil {
		h.errLog.Fail(w, r, "failed to load visitors", err)
		return
	}
	byID := make(map[primitive.ObjectID]*visitStudent, len(list))
	for _, st := range list {
		byID[st.ID] = &visitStudent{
			ID: st.ID, Name: st.Name, Email: st.Email, Number: st.Number,
			Class: st.Class, Year: st.Year, School: st.School, College: st.College,
			City: st.City, Address: st.Address,
		}
	}

	out := make([]visitView, 0, len(visits))
	for _, v := range visits {
		out = append(out, visitView{
			ID:                    v.ID,
			Student:               byID[v.Student],
			VisitDate:             v.VisitDate,
			VisitTime:             v.VisitTime,
			Status:                v.Status,
			HostelName:            hostel.Name,
			HostelAddress:         hostel.Address,
			HostelType:            hostel.HostelType,
			HostelBeds:            hostel.Beds,
			HostelStudentsPerRoom: hostel.StudentsPerRoom,
			HostelFood:            hostel.Food,
		})
	}
	jsonutil.OK(w, out)
}

// notifyStudent emails a visit outcome to st.
func (h *Handler) notifyStudent(ctx context.Context, st *models.Student, hostel *models.Hostel, visit models.StudentVisit,
	build func(to string, d mailer.VisitEmailData) mailer.Email) {
	d := mailer.VisitEmailData{
		AppName:     h.appName,
		StudentName: st.Name,
		HostelName:  hostel.Name,
		VisitDate:   visit.VisitDate.Format("2006-01-02"),
		VisitTime:   visit.VisitTime,
	}
	if o, err := h.owners.GetByID(ctx, hostel.Owner); err == nil {
		d.OwnerName = o.Name
	}
	mailer.Notify(h.mail, h.logger, build(st.Email, d))
}

// respondVisit accepts or rejects a pending visit request. A rejected
// request leaves the owner's list; an accepted one stays until completed.
func (h *Handler) respondVisit(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	response := f.Get("response")
	var status string
	switch response {
	case "accept":
		status = models.VisitAccepted
	case "reject":
		status = models.VisitRejected
	default:
		jsonutil.BadRequest(w, "Response must be accept or reject")
		return
	}
	hostel := h.ownedHostel(w, r, f.Get("hostelId"))
	if hostel == nil {
		return
	}
	st := h.loadStudent(w, r, f.Get("studentId"))
	if st == nil {
		return
	}
	if pv, ok := hostel.PendingVisitFor(st.ID); !ok || (pv.Status != models.VisitPending && pv.Status != "") {
		jsonutil.NotFound(w, "Visit request not found")
		return
	}
	visit, ok := st.Visit(hostel.ID)
	if !ok || visit.Status != models.VisitPending {
		jsonutil.NotFound(w, "Corresponding student visit not found")
		return
	}

	err = txn.RunMulti(r.Context(), h.dbs, h.logger, func(ctx context.Context) error {
		if err := h.students.SetVisitStatus(ctx, st.ID, hostel.ID, status); err != nil {
			return err
		}
		if status == models.VisitRejected {
			return h.hostels.RemovePendingVisit(ctx, hostel.ID, st.ID)
		}
		return h.hostels.SetPendingVisitStatus(ctx, hostel.ID, st.ID, status)
	})
	if err != nil {
		h.errLog.Fail(w, r, "failed to record visit response", err)
		return
	}

	build := mailer.VisitAcceptedEmail
	if status == models.VisitRejected {
		build = mailer.VisitRejectedEmail
	}
	h.notifyStudent(r.Context(), st, hostel, visit, build)
	jsonutil.Message(w, http.StatusOK, "Visit request "+status)
}

// completeVisit marks an accepted visit as done and invites feedback.
func (h *Handler) completeVisit(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	hostel := h.ownedHostel(w, r, f.Get("hostelId"))
	if hostel == nil {
		return
	}
	st := h.loadStudent(w, r, f.Get("studentId"))
	if st == nil {
		return
	}
	visit, ok := st.Visit(hostel.ID)
	if !ok || visit.Status != models.VisitAccepted {
		jsonutil.NotFound(w, "Accepted visit not found")
		return
	}

	err = txn.RunMulti(r.Context(), h.dbs, h.logger, func(ctx context.Context) error {
		if err := h.students.SetVisitStatus(ctx, st.ID, hostel.ID, models.VisitCompleted); err != nil {
			return err
		}
		err := h.hostels.SetPendingVisitStatus(ctx, hostel.ID, st.ID, models.VisitCompleted)
		if errors.Is(err, hostelstore.ErrVisitNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		h.errLog.Fail(w, r, "failed to complete visit", err)
		return
	}
	h.notifyStudent(r.Context(), st, hostel, visit, mailer.VisitCompletedEmail)
	jsonutil.Message(w, http.StatusOK, "Visit marked as completed")
}
