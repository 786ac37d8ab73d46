package rbac

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/stayhome/internal/app/store/audit"
	groupstore "github.com/dalemusser/stayhome/internal/app/store/groups"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// groupView is a group with role names in place of role ids.
type groupView struct {
	ID           primitive.ObjectID `json:"_id"`
	ModuleID     string             `json:"moduleId"`
	ModuleName   string             `json:"moduleName"`
	Name         string             `json:"name"`
	DateModified time.Time          `json:"dateModified"`
	Roles        []string           `json:"roles"`
}

type groupRequest struct {
	ID         string   `json:"id"`
	ModuleID   string   `json:"moduleId"`
	ModuleName string   `json:"moduleName"`
	RoleIDs    []string `json:"roleIds"`
}

// views resolves role names for groups with a single role query.
func (h *Handler) views(r *http.Request, groups []models.Group) ([]groupView, error) {
	var ids []primitive.ObjectID
	for _, g := range groups {
		ids = append(ids, g.Roles...)
	}
	roles, err := h.roles.ListByIDs(r.Context(), ids)
	if err != nil {
		return nil, err
	}
	names := make(map[primitive.ObjectID]string, len(roles))
	for _, role := range roles {
		names[role.ID] = role.Name
	}

	out := make([]groupView, 0, len(groups))
	for _, g := range groups {
		v := groupView{
			ID:           g.ID,
			ModuleID:     g.ModuleID,
			ModuleName:   g.ModuleName,
			Name:         g.Name,
			DateModified: g.DateModified,
			Roles:        []string{},
		}
		for _, id := range g.Roles {
			if n, ok := names[id]; ok {
				v.Roles = append(v.Roles, n)
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.List(r.Context())
	if err != nil {
		h.errLog.Fail(w, r, "failed to list groups", err)
		return
	}
	out, err := h.views(r, groups)
	if err != nil {
		h.errLog.Fail(w, r, "failed to load group roles", err)
		return
	}
	jsonutil.OK(w, out)
}

// validRoles checks that every requested role id exists. On failure it
// writes 400 with the expected and found counts.
func (h *Handler) validRoles(w http.ResponseWriter, r *http.Request, raw []string) ([]primitive.ObjectID, bool) {
	ids := parseIDs(raw)
	roles, err := h.roles.ListByIDs(r.Context(), ids)
	if err != nil {
		h.errLog.Fail(w, r, "failed to load roles", err)
		return nil, false
	}
	if len(roles) != len(raw) {
		jsonutil.JSON(w, http.StatusBadRequest, map[string]any{
			"message":  "One or more invalid roles",
			"expected": len(raw),
			"found":    len(roles),
		})
		return nil, false
	}
	out := make([]primitive.ObjectID, 0, len(roles))
	for _, role := range roles {
		out = append(out, role.ID)
	}
	return out, true
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	_ = jsonutil.Decode(r, &req)
	req.ModuleID = strings.TrimSpace(req.ModuleID)
	req.ModuleName = strings.TrimSpace(req.ModuleName)
	if req.ModuleID == "" || req.ModuleName == "" || req.RoleIDs == nil {
		jsonutil.BadRequest(w, "Invalid request body. Required: moduleId, moduleName, roleIds (array)")
		return
	}
	roleIDs, ok := h.validRoles(w, r, req.RoleIDs)
	if !ok {
		return
	}

	g, err := h.groups.Create(r.Context(), req.ModuleID, req.ModuleName, roleIDs)
	if err != nil {
		h.errLog.Fail(w, r, "failed to create group", err)
		return
	}
	h.auditGroup(r, "created", &g)

	views, err := h.views(r, []models.Group{g})
	if err != nil {
		h.errLog.Fail(w, r, "failed to load group roles", err)
		return
	}
	jsonutil.Created(w, map[string]any{
		"message": "Group added successfully",
		"group":   views[0],
	})
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	_ = jsonutil.Decode(r, &req)
	req.ModuleID = strings.TrimSpace(req.ModuleID)
	req.ModuleName = strings.TrimSpace(req.ModuleName)
	id, err := primitive.ObjectIDFromHex(req.ID)
	if err != nil || req.ModuleID == "" || req.ModuleName == "" || req.RoleIDs == nil {
		jsonutil.BadRequest(w, "Invalid request body. Required: id, moduleId, moduleName, roleIds (array)")
		return
	}
	roleIDs, ok := h.validRoles(w, r, req.RoleIDs)
	if !ok {
		return
	}

	g, err := h.groups.Update(r.Context(), id, groupstore.GroupUpdate{
		ModuleID:   &req.ModuleID,
		ModuleName: &req.ModuleName,
		Roles:      roleIDs,
	})
	if errors.Is(err, groupstore.ErrNotFound) {
		jsonutil.NotFound(w, "Group not found")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to update group", err)
		return
	}
	h.auditGroup(r, "updated", g)

	views, err := h.views(r, []models.Group{*g})
	if err != nil {
		h.errLog.Fail(w, r, "failed to load group roles", err)
		return
	}
	jsonutil.OK(w, map[string]any{
		"message": "Group updated successfully",
		"group":   views[0],
	})
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "Invalid group id")
		return
	}
	g, err := h.groups.Delete(r.Context(), id)
	if errors.Is(err, groupstore.ErrNotFound) {
		jsonutil.NotFound(w, "Group not found")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to delete group", err)
		return
	}
	h.auditGroup(r, "deleted", g)

	jsonutil.OK(w, map[string]any{
		"message": "Group deleted successfully",
		"deleted": map[string]any{
			"id":         g.ID,
			"name":       g.Name,
			"moduleName": g.ModuleName,
		},
	})
}

func (h *Handler) auditGroup(r *http.Request, action string, g *models.Group) {
	p, _ := auth.PrincipalFrom(r)
	h.audit.Admin(r, p.ID, primitive.NilObjectID, audit.EventGroupChanged, map[string]string{
		"action":   action,
		"group_id": g.ID.Hex(),
		"name":     g.Name,
		"module":   g.ModuleID,
	})
}
