// Package useradmin serves account and role administration under
// /api/admin: listing and creating users, changing their role (which can
// move an account between the student and owner databases), resetting
// passwords, and creating or deleting custom roles.
package useradmin

import (
	"errors"
	"net/http"

	errorsfeature "github.com/dalemusser/stayhome/internal/app/features/errors"
	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	groupstore "github.com/dalemusser/stayhome/internal/app/store/groups"
	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	ownerstore "github.com/dalemusser/stayhome/internal/app/store/owners"
	permissionstore "github.com/dalemusser/stayhome/internal/app/store/permissions"
	rolepermissionstore "github.com/dalemusser/stayhome/internal/app/store/rolepermissions"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	studentstore "github.com/dalemusser/stayhome/internal/app/store/students"
	"github.com/dalemusser/stayhome/internal/app/system/auditlog"
	"github.com/dalemusser/stayhome/internal/app/system/authz"
	"github.com/dalemusser/stayhome/internal/app/system/cascade"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/stayhome/internal/app/system/uploads"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the user and role administration routes.
type Handler struct {
	dbs      dbset.Set
	students *studentstore.Store
	owners   *ownerstore.Store
	hostels  *hostelstore.Store
	roles    *rolestore.Store
	perms    *permissionstore.Store
	rolePerm *rolepermissionstore.Store
	groups   *groupstore.Store
	images   *uploads.Images
	remover  *cascade.Remover
	checker  *authz.Checker
	audit    *auditlog.Logger
	notify   mailer.Notifier
	errLog   *errorsfeature.ErrorLogger
	logger   *zap.Logger
}

// NewHandler creates a useradmin Handler.
func NewHandler(dbs dbset.Set, images *uploads.Images, checker *authz.Checker, audit *auditlog.Logger, notify mailer.Notifier, logger *zap.Logger) *Handler {
	return &Handler{
		dbs:      dbs,
		students: studentstore.New(dbs.Student),
		owners:   ownerstore.New(dbs.Owner),
		hostels:  hostelstore.New(dbs.Common),
		roles:    rolestore.New(dbs.Common),
		perms:    permissionstore.New(dbs.Common),
		rolePerm: rolepermissionstore.New(dbs.Common),
		groups:   groupstore.New(dbs.Common),
		images:   images,
		remover:  cascade.New(dbs, images, logger),
		checker:  checker,
		audit:    audit,
		notify:   notify,
		errLog:   errorsfeature.NewErrorLogger(logger),
		logger:   logger,
	}
}

// MountRoutes registers the routes on r. The caller applies the bearer
// guard and authz.RequireStaff.
func (h *Handler) MountRoutes(r chi.Router) {
	can := h.checker.Require

	r.With(can(models.ModuleUsers, models.ActionRead)).Get("/users", h.listUsers)
	r.With(can(models.ModuleUsers, models.ActionWrite)).Post("/users", h.createUser)
	r.With(can(models.ModuleUsers, models.ActionEdit)).Post("/users/change-password", h.changePassword)
	r.With(can(models.ModuleUsers, models.ActionEdit)).Put("/users/{id}/role", h.updateUserRole)
	r.With(can(models.ModuleUsers, models.ActionDelete)).Delete("/users/{id}", h.deleteUser)

	r.With(can(models.ModuleRoles, models.ActionRead)).Get("/getroles", h.listRoles)
	r.With(can(models.ModuleRoles, models.ActionWrite)).Post("/roles", h.createRole)
	r.With(can(models.ModuleRoles, models.ActionDelete)).Delete("/roles/{roleName}", h.deleteRole)
}

// kindFor returns the database that holds accounts with role. Hostel
// owners live in the owner database; students and every staff role live
// in the student database.
func kindFor(role string) models.Kind {
	if models.KindForRole(role) == models.KindOwner {
		return models.KindOwner
	}
	return models.KindStudent
}

func (h *Handler) accounts(kind models.Kind) *accountstore.Store {
	return accountstore.New(h.dbs.Accounts(kind), kind)
}

// found is an account located by id in one of the two user databases.
type found struct {
	kind    models.Kind
	account *models.AccountSummary
}

// findAccount looks id up in the student database, then the owner
// database. It writes 404 when neither holds it.
func (h *Handler) findAccount(w http.ResponseWriter, r *http.Request, raw string) *found {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		jsonutil.BadRequest(w, "Invalid user id")
		return nil
	}
	for _, kind := range []models.Kind{models.KindStudent, models.KindOwner} {
		acct, err := h.accounts(kind).GetByID(r.Context(), id)
		if err == nil {
			return &found{kind: kind, account: acct}
		}
		if !errors.Is(err, accountstore.ErrNotFound) {
			h.errLog.Fail(w, r, "account lookup failed", err, zap.String("user_id", raw))
			return nil
		}
	}
	jsonutil.NotFound(w, "User not found in any database")
	return nil
}

// roleNames maps role ids to names.
func (h *Handler) roleNames(r *http.Request) (map[primitive.ObjectID]models.Role, []models.Role, error) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[primitive.ObjectID]models.Role, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}
	return byID, roles, nil
}
