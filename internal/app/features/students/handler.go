// internal/app/features/students/handler.go
package students

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
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/stayhome/internal/app/system/uploads"
	"github.com/dalemusser/stayhome/internal/app/system/viewdata"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves /api/students.
type Handler struct {
	dbs      dbset.Set
	students *studentstore.Store
	accounts *accountstore.Store
	hostels  *hostelstore.Store
	owners   *ownerstore.Store
	views    *viewdata.Loader
	images   *uploads.Images
	guard    *auth.Guard
	mail     mailer.Sender
	appName  string
	errLog   *errorsfeature.ErrorLogger
	logger   *zap.Logger
}

// NewHandler creates a students Handler.
func NewHandler(dbs dbset.Set, images *uploads.Images, guard *auth.Guard, mail mailer.Sender, appName string, logger *zap.Logger) *Handler {
	return &Handler{
		dbs:      dbs,
		students: studentstore.New(dbs.Student),
		accounts: accountstore.New(dbs.Student, models.KindStudent),
		hostels:  hostelstore.New(dbs.Common),
		owners:   ownerstore.New(dbs.Owner),
		views:    viewdata.NewLoader(dbs, images),
		images:   images,
		guard:    guard,
		mail:     mail,
		appName:  appName,
		errLog:   errorsfeature.NewErrorLogger(logger),
		logger:   logger,
	}
}

// Routes returns a chi.Router with the student routes mounted.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/getphoto/{id}", h.getPassportPhoto)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Middleware)
		r.Use(h.guard.RequireKind())

		r.Get("/{studentId}", h.getStudent)
		r.Get("/complaints/{studentId}", h.listComplaints)
		r.Put("/update-profile/{profileId}", h.updateProfile)
		r.Post("/upload-receipt", h.uploadReceipt)
		r.Post("/take-admission", h.takeAdmission)
		r.Post("/submit-feedback", h.submitFeedback)
		r.Post("/complaints", h.submitComplaint)

		r.Get("/wishlist/{studentId}", h.getWishlist)
		r.Post("/wishlist/add", h.addToWishlist)
		r.Post("/wishlist/remove", h.removeFromWishlist)
		r.Post("/wishlist/submit", h.submitWishlist)

		r.Post("/request-visit", h.requestVisit)
		r.Post("/not-interested", h.markNotInterested)
	})
	return r
}

// subject resolves the student a request acts on. raw is the studentId
// from the body or path; when empty the caller is the subject. Students
// may only act on themselves; admins may act on anyone.
func (h *Handler) subject(w http.ResponseWriter, r *http.Request, raw string) (primitive.ObjectID, bool) {
	p, _ := auth.PrincipalFrom(r)
	if raw == "" {
		if p.Kind != models.KindStudent {
			jsonutil.BadRequest(w, "studentId is required")
			return primitive.NilObjectID, false
		}
		return p.ID, true
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		jsonutil.BadRequest(w, "Invalid student id")
		return primitive.NilObjectID, false
	}
	if !(p.Kind == models.KindStudent && p.Is(id)) && !p.IsAdmin() {
		jsonutil.Forbidden(w, "You can only act on your own student account")
		return primitive.NilObjectID, false
	}
	return id, true
}

// load fetches the subject student, answering 404/500 itself on failure.
func (h *Handler) load(w http.ResponseWriter, r *http.Request, id primitive.ObjectID) *models.Student {
	st, err := h.students.GetByID(r.Context(), id)
	if errors.Is(err, studentstore.ErrNotFound) {
		jsonutil.NotFound(w, "Student not found")
		return nil
	}
	if err != nil {
		h.errLog.Fail(w, r, "student lookup failed", err, zap.String("student_id", id.Hex()))
		return nil
	}
	return st
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
