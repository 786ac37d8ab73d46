package useradmin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/stayhome/internal/app/store/audit"
	rolepermissionstore "github.com/dalemusser/stayhome/internal/app/store/rolepermissions"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/txn"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type usersCount struct {
	Students int64 `json:"students"`
	Owners   int64 `json:"owners"`
	Total    int64 `json:"total"`
}

// usage counts the accounts holding roleID in both user databases.
func (h *Handler) usage(ctx context.Context, roleID primitive.ObjectID) (usersCount, error) {
	var c usersCount
	var err error
	if c.Students, err = h.accounts(models.KindStudent).CountByRole(ctx, roleID); err != nil {
		return c, err
	}
	if c.Owners, err = h.accounts(models.KindOwner).CountByRole(ctx, roleID); err != nil {
		return c, err
	}
	c.Total = c.Students + c.Owners
	return c, nil
}

type roleDetail struct {
	ID           primitive.ObjectID `json:"_id"`
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	Users        usersCount         `json:"users"`
	Permissions  int                `json:"permissions"`
	IsSystemRole bool               `json:"isSystemRole"`
	CanDelete    bool               `json:"canDelete"`
}

// listRoles returns every role with its user and permission counts.
func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roles, err := h.roles.List(ctx)
	if err != nil {
		h.errLog.Fail(w, r, "failed to list roles", err)
		return
	}

	out := make([]roleDetail, 0, len(roles))
	system := 0
	for _, role := range roles {
		users, err := h.usage(ctx, role.ID)
		if err != nil {
			h.errLog.Fail(w, r, "failed to count role users", err)
			return
		}
		perms := 0
		rp, err := h.rolePerm.GetByRole(ctx, role.ID)
		switch {
		case err == nil:
			perms = len(rp.Permissions)
		case !errors.Is(err, rolepermissionstore.ErrNotFound):
			h.errLog.Fail(w, r, "failed to load role permissions", err)
			return
		}
		isSystem := models.IsSystemRole(role.Name)
		if isSystem {
			system++
		}
		out = append(out, roleDetail{
			ID:           role.ID,
			Name:         role.Name,
			Description:  role.Description,
			CreatedAt:    role.CreatedAt,
			Users:        users,
			Permissions:  perms,
			IsSystemRole: isSystem,
			CanDelete:    !isSystem && users.Total == 0,
		})
	}

	jsonutil.OK(w, map[string]any{
		"roles": out,
		"summary": map[string]int{
			"totalRoles":  len(out),
			"systemRoles": system,
			"customRoles": len(out) - system,
		},
	})
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// createRole adds a custom role with an empty permission set. Names are
// stored lowercased and must be unique ignoring case.
func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	_ = jsonutil.Decode(r, &req)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		jsonutil.BadRequest(w, "Role name is required")
		return
	}
	ctx := r.Context()
	existing, err := h.roles.GetByName(ctx, models.CanonicalRoleName(name))
	if err == nil {
		jsonutil.JSON(w, http.StatusBadRequest, map[string]any{
			"message":      "Role already exists",
			"existingRole": existing.Name,
		})
		return
	}
	if !errors.Is(err, rolestore.ErrNotFound) {
		h.errLog.Fail(w, r, "role lookup failed", err)
		return
	}

	var role models.Role
	err = txn.Run(ctx, h.dbs.Common, h.logger, func(ctx context.Context) error {
		var err error
		if role, err = h.roles.Create(ctx, strings.ToLower(name), strings.TrimSpace(req.Description)); err != nil {
			return err
		}
		return h.rolePerm.EnsureEmpty(ctx, role.ID)
	})
	if errors.Is(err, rolestore.ErrDuplicate) {
		jsonutil.BadRequest(w, "Role already exists")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to create role", err)
		return
	}

	p, _ := auth.PrincipalFrom(r)
	h.audit.Admin(r, p.ID, primitive.NilObjectID, audit.EventRoleCreated, map[string]string{"role": role.Name})
	jsonutil.Created(w, map[string]any{
		"message":     "Role added successfully",
		"role":        role,
		"permissions": map[string]string{"message": "Initial empty permissions created"},
	})
}

// deleteRole removes an unused custom role along with its permissions and
// its membership in groups.
func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "roleName")
	ctx := r.Context()
	role, err := h.roles.GetByName(ctx, models.CanonicalRoleName(name))
	if errors.Is(err, rolestore.ErrNotFound) {
		jsonutil.NotFound(w, "Role not found")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "role lookup failed", err)
		return
	}
	if models.IsSystemRole(role.Name) {
		jsonutil.JSON(w, http.StatusForbidden, map[string]any{
			"message": "Cannot delete essential system role",
			"role":    role.Name,
		})
		return
	}
	users, err := h.usage(ctx, role.ID)
	if err != nil {
		h.errLog.Fail(w, r, "failed to count role users", err)
		return
	}
	if users.Total > 0 {
		jsonutil.JSON(w, http.StatusBadRequest, map[string]any{
			"message":    "Cannot delete role that is assigned to users",
			"usersCount": users,
		})
		return
	}

	err = txn.Run(ctx, h.dbs.Common, h.logger, func(ctx context.Context) error {
		if _, err := h.perms.DeleteByRole(ctx, role.ID); err != nil {
			return err
		}
		if err := h.rolePerm.DeleteByRole(ctx, role.ID); err != nil {
			return err
		}
		if err := h.groups.PullRole(ctx, role.ID); err != nil {
			return err
		}
		return h.roles.Delete(ctx, role.ID)
	})
	if err != nil {
		h.errLog.Fail(w, r, "failed to delete role", err)
		return
	}

	p, _ := auth.PrincipalFrom(r)
	h.audit.Admin(r, p.ID, primitive.NilObjectID, audit.EventRoleDeleted, map[string]string{"role": role.Name})
	jsonutil.OK(w, map[string]any{
		"message": "Role and associated data deleted successfully",
		"deletedRole": map[string]any{
			"name": role.Name,
			"id":   role.ID,
		},
	})
}
