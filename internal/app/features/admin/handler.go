// Package admin serves the moderation endpoints under /api/admin: hostel
// verification and removal, student and owner records, owner approval
// and spreadsheet exports.
package admin

import (
	"errors"
	"net/http"

	errorsfeature "github.com/dalemusser/stayhome/internal/app/features/errors"
	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	ownerstore "github.com/dalemusser/stayhome/internal/app/store/owners"
	studentstore "github.com/dalemusser/stayhome/internal/app/store/students"
	"github.com/dalemusser/stayhome/internal/app/system/auditlog"
	"github.com/dalemusser/stayhome/internal/app/system/authz"
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

// Handler serves the moderation routes.
type Handler struct {
	dbs      dbset.Set
	hostels  *hostelstore.Store
	students *studentstore.Store
	owners   *ownerstore.Store
	views    *viewdata.Loader
	remover  *cascade.Remover
	checker  *authz.Checker
	audit    *auditlog.Logger
	notify   mailer.Notifier
	errLog   *errorsfeature.ErrorLogger
	logger   *zap.Logger
}

// NewHandler creates an admin Handler.
func NewHandler(dbs dbset.Set, images *uploads.Images, checker *authz.Checker, audit *auditlog.Logger, notify mailer.Notifier, logger *zap.Logger) *Handler {
	return &Handler{
		dbs:      dbs,
		hostels:  hostelstore.New(dbs.Common),
		students: studentstore.New(dbs.Student),
		owners:   ownerstore.New(dbs.Owner),
		views:    viewdata.NewLoader(dbs, images),
		remover:  cascade.New(dbs, images, logger),
		checker:  checker,
		audit:    audit,
		notify:   notify,
		errLog:   errorsfeature.NewErrorLogger(logger),
		logger:   logger,
	}
}

// MountRoutes registers the moderation routes on r. The caller applies
// auth.Guard and authz.RequireStaff first; each route then checks the
// caller's module permission.
func (h *Handler) MountRoutes(r chi.Router) {
	can := h.checker.Require

	r.With(can(models.ModuleHostels, models.ActionRead)).Get("/hostels", h.listHostels)
	r.With(can(models.ModuleHostels, models.ActionRead)).Get("/hostels/{hostelId}", h.getHostel)
	r.With(can(models.ModuleHostels, models.ActionEdit)).Put("/hostels", h.updateHostel)
	r.With(can(models.ModuleVerify, models.ActionEdit)).Post("/hostels/verify", h.verifyHostel)
	r.With(can(models.ModuleHostels, models.ActionDelete)).Delete("/hostels/{hostelId}", h.deleteHostel)

	r.With(can(models.ModuleStudent, models.ActionRead)).Get("/students", h.listStudents)
	r.With(can(models.ModuleStudent, models.ActionEdit)).Put("/students", h.updateStudent)
	r.With(can(models.ModuleStudent, models.ActionEdit)).Post("/students/wishlist/remove", h.removeFromWishlist)
	r.With(can(models.ModuleStudent, models.ActionEdit)).Post("/students/wishlist/approve", h.approveWishlist)
	r.With(can(models.ModuleStudent, models.ActionDelete)).Delete("/students/{studentId}", h.deleteStudent)

	r.With(can(models.ModuleOwners, models.ActionRead)).Get("/owners", h.listOwners)
	r.With(can(models.ModuleOwners, models.ActionRead)).Get("/owners/pending", h.pendingOwners)
	r.With(can(models.ModuleOwners, models.ActionEdit)).Put("/owners", h.updateOwner)
	r.With(can(models.ModuleOwners, models.ActionEdit)).Post("/owners/{ownerId}/approve", h.approveOwner)

	r.With(can(models.ModuleStudent, models.ActionRead)).Get("/export/students.xlsx", h.exportStudents)
	r.With(can(models.ModuleHostels, models.ActionRead)).Get("/export/hostels.xlsx", h.exportHostels)
}

func parseID(raw string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(raw)
	return id, err == nil
}

func (h *Handler) loadHostel(w http.ResponseWriter, r *http.Request, raw string) *models.Hostel {
	id, ok := parseID(raw)
	if !ok {
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

func (h *Handler) loadStudent(w http.ResponseWriter, r *http.Request, raw string) *models.Student {
	id, ok := parseID(raw)
	if !ok {
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

func (h *Handler) loadOwner(w http.ResponseWriter, r *http.Request, raw string) *models.Owner {
	id, ok := parseID(raw)
	if !ok {
		jsonutil.BadRequest(w, "Invalid owner id")
		return nil
	}
	o, err := h.owners.GetByID(r.Context(), id)
	if errors.Is(err, ownerstore.ErrNotFound) {
		jsonutil.NotFound(w, "Owner not found")
		return nil
	}
	if err != nil {
		h.errLog.Fail(w, r, "owner lookup failed", err, zap.String("owner_id", raw))
		return nil
	}
	return o
}
