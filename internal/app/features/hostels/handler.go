// internal/app/features/hostels/handler.go
package hostels

import (
	"errors"
	"net/http"

	errorsfeature "github.com/dalemusser/stayhome/internal/app/features/errors"
	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	ownerstore "github.com/dalemusser/stayhome/internal/app/store/owners"
	studentstore "github.com/dalemusser/stayhome/internal/app/store/students"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/cascade"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/stayhome/internal/app/system/uploads"
	"github.com/dalemusser/stayhome/internal/app/system/viewdata"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves /api/hostels.
type Handler struct {
	dbs      dbset.Set
	hostels  *hostelstore.Store
	owners   *ownerstore.Store
	accounts *accountstore.Store
	students *studentstore.Store
	views    *viewdata.Loader
	remover  *cascade.Remover
	images   *uploads.Images
	guard    *auth.Guard
	mail     mailer.Sender
	appName  string
	errLog   *errorsfeature.ErrorLogger
	logger   *zap.Logger
}

// NewHandler creates a hostels Handler.
func NewHandler(dbs dbset.Set, images *uploads.Images, guard *auth.Guard, mail mailer.Sender, appName string, logger *zap.Logger) *Handler {
	return &Handler{
		dbs:      dbs,
		hostels:  hostelstore.New(dbs.Common),
		owners:   ownerstore.New(dbs.Owner),
		accounts: accountstore.New(dbs.Owner, models.KindOwner),
		students: studentstore.New(dbs.Student),
		views:    viewdata.NewLoader(dbs, images),
		remover:  cascade.New(dbs, images, logger),
		images:   images,
		guard:    guard,
		mail:     mail,
		appName:  appName,
		errLog:   errorsfeature.NewErrorLogger(logger),
		logger:   logger,
	}
}

// Routes returns a chi.Router with the hostel routes mounted.
//
// Every single-segment parameter is named {id} so the /{id}/... routes
// share one tree node.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/all", h.listAll)
	r.Get("/{id}", h.getHostel)
	r.Get("/gethostalphotos/{id}", h.getPhotos)
	r.Get("/getidproof/{id}", h.getIDProof)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Middleware)
		r.Use(h.guard.RequireKind(models.KindOwner))

		r.Post("/add-hostel", h.addHostel)
		r.Put("/update-hostel", h.updateHostel)
		r.Delete("/delete/{id}", h.deleteHostel)

		r.Get("/owners/{id}", h.getOwner)
		r.Put("/owner/{id}", h.updateOwner)

		r.Get("/{id}/hostels", h.ownerHostels)
		r.Get("/{id}/wishlist-students", h.wishlistStudents)
		r.Get("/{id}/admitted-students", h.admittedStudents)
		r.Post("/apply-cashback", h.applyCashback)

		r.Get("/{id}/complaints", h.listComplaints)
		r.Patch("/complaints/{id}/status", h.setComplaintStatus)
		r.Delete("/complaints/{id}", h.deleteComplaint)

		r.Get("/{id}/pending-visits", h.pendingVisits)
		r.Post("/respond-visit", h.respondVisit)
		r.Post("/complete-visit", h.completeVisit)
	})
	return r
}

// owns reports whether p may manage hostel: its owner, or an admin.
func owns(p *auth.Principal, hostel *models.Hostel) bool {
	if p == nil {
		return false
	}
	return p.IsAdmin() || (p.Kind == models.KindOwner && p.Is(hostel.Owner))
}

// loadHostel fetches a hostel by hex id, answering 400/404/500 itself.
func (h *Handler) loadHostel(w http.ResponseWriter, r *http.Request, raw string) *models.Hostel {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		jsonutil.BadRequest(w, "Invalid hostel id")
		return nil
	}
	hostel, err := h.hostels.GetByID(r.Context(), id)
	if errors.Is(err, hostelstore.ErrNotFound) {
		jsonutil.NotFound(w, "Hostel not found")
		return nil
	}
	if err != nil {
		h.errLog.Fail(w, r, "hostel lookup failed", err, zap.String("hostel_id", raw))
		return nil
	}
	return hostel
}

// ownedHostel loads a hostel the caller must manage; others get 403.
func (h *Handler) ownedHostel(w http.ResponseWriter, r *http.Request, raw string) *models.Hostel {
	hostel := h.loadHostel(w, r, raw)
	if hostel == nil {
		return nil
	}
	p, _ := auth.PrincipalFrom(r)
	if !owns(p, hostel) {
		jsonutil.Forbidden(w, "You are not authorized to manage this hostel")
		return nil
	}
	return hostel
}

// loadStudent fetches a student by hex id, answering 400/404/500 itself.
func (h *Handler) loadStudent(w http.ResponseWriter, r *http.Request, raw string) *models.Student {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		jsonutil.BadRequest(w, "Invalid student id")
		return nil
	}
	st, err := h.students.GetByID(r.Context(), id)
	if errors.Is(err, studentstore.ErrNotFound) {
		jsonutil.NotFound(w, "Student not found")
		return nil
	}
	if err != nil {
		h.errLog.Fail(w, r, "student lookup failed", err, zap.String("student_id", raw))
		return nil
	}
	return st
}
