// Package rbac serves the permission-group and role-permission endpoints
// that decide what custom staff roles may do in each admin module.
package rbac

import (
	"errors"
	"net/http"
	"strings"

	errorsfeature "github.com/dalemusser/stayhome/internal/app/features/errors"
	groupstore "github.com/dalemusser/stayhome/internal/app/store/groups"
	permissionstore "github.com/dalemusser/stayhome/internal/app/store/permissions"
	rolepermissionstore "github.com/dalemusser/stayhome/internal/app/store/rolepermissions"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	"github.com/dalemusser/stayhome/internal/app/system/auditlog"
	"github.com/dalemusser/stayhome/internal/app/system/authz"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	groups   *groupstore.Store
	roles    *rolestore.Store
	perms    *permissionstore.Store
	rolePerm *rolepermissionstore.Store
	checker  *authz.Checker
	audit    *auditlog.Logger
	errLog   *errorsfeature.ErrorLogger
	logger   *zap.Logger
}

func NewHandler(common *mongo.Database, checker *authz.Checker, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		groups:   groupstore.New(common),
		roles:    rolestore.New(common),
		perms:    permissionstore.New(common),
		rolePerm: rolepermissionstore.New(common),
		checker:  checker,
		audit:    audit,
		errLog:   errorsfeature.NewErrorLogger(logger),
		logger:   logger,
	}
}

// MountRoutes registers the RBAC routes on r. The caller applies the
// bearer guard and authz.RequireStaff.
func (h *Handler) MountRoutes(r chi.Router) {
	can := h.checker.Require

	r.With(can(models.ModuleGroups, models.ActionRead)).Get("/groups", h.listGroups)
	r.With(can(models.ModuleGroups, models.ActionWrite)).Post("/groups", h.createGroup)
	r.With(can(models.ModuleGroups, models.ActionEdit)).Put("/groups", h.updateGroup)
	r.With(can(models.ModuleGroups, models.ActionDelete)).Delete("/groups/{id}", h.deleteGroup)

	r.With(can(models.ModulePermissions, models.ActionWrite)).Post("/assign-group-to-role", h.assignGroups)
	r.With(can(models.ModulePermissions, models.ActionDelete)).Delete("/remove-permission-from-role", h.removePermission)
	r.With(can(models.ModulePermissions, models.ActionEdit)).Patch("/update-role-permissions", h.updatePermission)
	r.With(can(models.ModulePermissions, models.ActionRead)).Get("/roles/{roleName}/permissions", h.rolePermissions)
}

// parseIDs converts hex ids, dropping malformed ones. Callers compare the
// result length to detect invalid input.
func parseIDs(raw []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(raw))
	seen := map[primitive.ObjectID]bool{}
	for _, s := range raw {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// loadRole resolves a role by name, writing 404 when it does not exist.
func (h *Handler) loadRole(w http.ResponseWriter, r *http.Request, name string) *models.Role {
	role, err := h.roles.GetByName(r.Context(), models.CanonicalRoleName(name))
	if errors.Is(err, rolestore.ErrNotFound) {
		jsonutil.NotFound(w, "Role not found")
		return nil
	}
	if err != nil {
		h.errLog.Fail(w, r, "role lookup failed", err, zap.String("role", name))
		return nil
	}
	return role
}
