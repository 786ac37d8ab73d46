package rbac

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/dalemusser/stayhome/internal/app/store/audit"
	permissionstore "github.com/dalemusser/stayhome/internal/app/store/permissions"
	rolepermissionstore "github.com/dalemusser/stayhome/internal/app/store/rolepermissions"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var allowedFields = []string{models.ActionRead, models.ActionWrite, models.ActionEdit, models.ActionDelete}

// roleName returns the role named in a request body. Both "roleName" and
// the shorter "role" are accepted.
func roleName(roleName, role string) string {
	if s := strings.TrimSpace(roleName); s != "" {
		return s
	}
	return strings.TrimSpace(role)
}

type assignRequest struct {
	RoleName string   `json:"roleName"`
	Role     string   `json:"role"`
	GroupIDs []string `json:"groupIds"`
}

// assignGroups grants role full access to the module of each group and
// records the permissions on the role.
func (h *Handler) assignGroups(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	_ = jsonutil.Decode(r, &req)
	name := roleName(req.RoleName, req.Role)
	if name == "" || req.GroupIDs == nil {
		jsonutil.BadRequest(w, "Invalid request. Required: roleName (string), groupIds (array)")
		return
	}
	if strings.EqualFold(name, models.RoleAdmin) {
		jsonutil.BadRequest(w, "Cannot assign groups to admin role")
		return
	}
	role := h.loadRole(w, r, name)
	if role == nil {
		return
	}

	groups, err := h.groups.ListByIDs(r.Context(), parseIDs(req.GroupIDs))
	if err != nil {
		h.errLog.Fail(w, r, "failed to load groups", err)
		return
	}
	if len(groups) != len(req.GroupIDs) {
		jsonutil.JSON(w, http.StatusBadRequest, map[string]any{
			"message":  "One or more group IDs are invalid",
			"expected": len(req.GroupIDs),
			"found":    len(groups),
		})
		return
	}

	perms := make([]models.Permission, 0, len(groups))
	ids := make([]primitive.ObjectID, 0, len(groups))
	assigned := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		p, err := h.perms.GrantModule(r.Context(), g.ModuleID, g.ModuleName, g.Name, role.ID)
		if err != nil {
			h.errLog.Fail(w, r, "failed to grant module permission", err)
			return
		}
		perms = append(perms, p)
		ids = append(ids, p.ID)
		assigned = append(assigned, map[string]any{"id": g.ID, "name": g.Name})
	}
	if _, err := h.rolePerm.AddPermissions(r.Context(), role.ID, ids); err != nil {
		h.errLog.Fail(w, r, "failed to update role permissions", err)
		return
	}

	h.auditPermissions(r, role, "assigned", len(perms))
	jsonutil.OK(w, map[string]any{
		"message":        "Groups assigned to role successfully",
		"role":           role.Name,
		"assignedGroups": assigned,
		"permissions":    perms,
	})
}

type removeRequest struct {
	RoleName     string `json:"roleName"`
	Role         string `json:"role"`
	PermissionID string `json:"permissionId"`
}

func (h *Handler) removePermission(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	_ = jsonutil.Decode(r, &req)
	name := roleName(req.RoleName, req.Role)
	if name == "" || req.PermissionID == "" {
		jsonutil.BadRequest(w, "Invalid request. Required: roleName (string), permissionId (string)")
		return
	}
	permID, err := primitive.ObjectIDFromHex(req.PermissionID)
	if err != nil {
		jsonutil.BadRequest(w, "Invalid permission id")
		return
	}
	role := h.loadRole(w, r, name)
	if role == nil {
		return
	}

	ctx := r.Context()
	if _, err := h.rolePerm.GetByRole(ctx, role.ID); errors.Is(err, rolepermissionstore.ErrNotFound) {
		jsonutil.NotFound(w, "Role permissions not found")
		return
	} else if err != nil {
		h.errLog.Fail(w, r, "failed to load role permissions", err)
		return
	}
	perm, err := h.perms.GetByID(ctx, permID)
	if errors.Is(err, permissionstore.ErrNotFound) {
		jsonutil.NotFound(w, "Permission not found")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to load permission", err)
		return
	}

	if err := h.perms.Delete(ctx, permID); err != nil && !errors.Is(err, permissionstore.ErrNotFound) {
		h.errLog.Fail(w, r, "failed to delete permission", err)
		return
	}
	if err := h.rolePerm.RemovePermission(ctx, role.ID, permID); err != nil {
		h.errLog.Fail(w, r, "failed to update role permissions", err)
		return
	}
	rp, err := h.rolePerm.GetByRole(ctx, role.ID)
	if err != nil {
		h.errLog.Fail(w, r, "failed to reload role permissions", err)
		return
	}
	remaining, err := h.perms.ListByIDs(ctx, rp.Permissions)
	if err != nil {
		h.errLog.Fail(w, r, "failed to load permissions", err)
		return
	}

	h.auditPermissions(r, role, "removed", 1)
	jsonutil.OK(w, map[string]any{
		"message":                "Permission removed successfully",
		"role":                   role.Name,
		"removedPermission":      perm,
		"updatedRolePermissions": remaining,
	})
}

type updateRequest struct {
	RoleName     string          `json:"roleName"`
	Role         string          `json:"role"`
	PermissionID string          `json:"permissionId"`
	Updates      map[string]bool `json:"updates"`
	Update       map[string]bool `json:"update"`
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.BadRequest(w, "Invalid request. Required: roleName, permissionId, and updates object")
		return
	}
	name := roleName(req.RoleName, req.Role)
	updates := req.Updates
	if updates == nil {
		updates = req.Update
	}
	if name == "" || req.PermissionID == "" || updates == nil {
		jsonutil.BadRequest(w, "Invalid request. Required: roleName, permissionId, and updates object")
		return
	}
	if strings.EqualFold(name, models.RoleAdmin) {
		jsonutil.BadRequest(w, "Cannot update permissions for admin role")
		return
	}
	role := h.loadRole(w, r, name)
	if role == nil {
		return
	}
	for k := range updates {
		if !models.IsValidAction(k) {
			jsonutil.JSON(w, http.StatusBadRequest, map[string]any{
				"message":       "Invalid update fields",
				"allowedFields": allowedFields,
			})
			return
		}
	}
	permID, err := primitive.ObjectIDFromHex(req.PermissionID)
	if err != nil {
		jsonutil.NotFound(w, "Permission not found")
		return
	}

	perm, err := h.perms.UpdateFlags(r.Context(), permID, role.ID, updates)
	if errors.Is(err, permissionstore.ErrNotFound) {
		jsonutil.NotFound(w, "Permission not found")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to update permission", err)
		return
	}

	h.auditPermissions(r, role, "updated", 1)
	jsonutil.OK(w, map[string]any{
		"message":           "Permission updated successfully",
		"role":              role.Name,
		"updatedPermission": perm,
	})
}

type permissionActions struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

type permissionEntry struct {
	ID       primitive.ObjectID `json:"id"`
	Name     string             `json:"name"`
	ModuleID string             `json:"moduleId"`
	Actions  permissionActions  `json:"actions"`
}

type moduleGroup struct {
	Permissions []permissionEntry `json:"permissions"`
	Count       int               `json:"count"`
}

type moduleCount struct {
	Module          string `json:"module"`
	PermissionCount int    `json:"permissionCount"`
}

// rolePermissions lists a role's permissions grouped by module name.
func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "roleName")
	role, err := h.roles.GetByName(r.Context(), models.CanonicalRoleName(name))
	if err != nil {
		if errors.Is(err, rolestore.ErrNotFound) {
			jsonutil.JSON(w, http.StatusNotFound, map[string]any{
				"message":       "Role not found",
				"requestedRole": name,
			})
			return
		}
		h.errLog.Fail(w, r, "role lookup failed", err)
		return
	}

	rp, err := h.rolePerm.GetByRole(r.Context(), role.ID)
	if errors.Is(err, rolepermissionstore.ErrNotFound) {
		jsonutil.OK(w, map[string]any{
			"role":        role.Name,
			"permissions": map[string]moduleGroup{},
			"message":     "No permissions found for this role",
		})
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to load role permissions", err)
		return
	}
	perms, err := h.perms.ListByIDs(r.Context(), rp.Permissions)
	if err != nil {
		h.errLog.Fail(w, r, "failed to load permissions", err)
		return
	}

	grouped := map[string]moduleGroup{}
	for _, p := range perms {
		g := grouped[p.ModuleName]
		g.Permissions = append(g.Permissions, permissionEntry{
			ID:       p.ID,
			Name:     p.Name,
			ModuleID: p.ModuleID,
			Actions:  permissionActions{Read: p.Read, Write: p.Write, Edit: p.Edit, Delete: p.Delete},
		})
		g.Count++
		grouped[p.ModuleName] = g
	}
	breakdown := make([]moduleCount, 0, len(grouped))
	for module, g := range grouped {
		breakdown = append(breakdown, moduleCount{Module: module, PermissionCount: g.Count})
	}
	sort.Slice(breakdown, func(i, j int) bool { return breakdown[i].Module < breakdown[j].Module })

	jsonutil.OK(w, map[string]any{
		"role":        role.Name,
		"roleId":      role.ID,
		"permissions": grouped,
		"summary": map[string]any{
			"totalModules":     len(grouped),
			"totalPermissions": len(perms),
			"moduleBreakdown":  breakdown,
		},
	})
}

func (h *Handler) auditPermissions(r *http.Request, role *models.Role, action string, n int) {
	p, _ := auth.PrincipalFrom(r)
	h.audit.Admin(r, p.ID, primitive.NilObjectID, audit.EventPermissionsChanged, map[string]string{
		"action": action,
		"role":   role.Name,
		"count":  strconv.Itoa(n),
	})
}
