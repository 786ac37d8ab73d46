package admin

import (
	"errors"
	"net/http"

	"github.com/dalemusser/stayhome/internal/app/store/audit"
	ownerstore "github.com/dalemusser/stayhome/internal/app/store/owners"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// adminOwner is an owner with their hostel documents in place of ids.
type adminOwner struct {
	models.Owner
	Hostels []models.Hostel `json:"hostels"`
}

func (h *Handler) listOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := h.owners.List(r.Context())
	if err != nil {
		h.errLog.Fail(w, r, "failed to list owners", err)
		return
	}
	h.writeOwners(w, r, owners)
}

func (h *Handler) pendingOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := h.owners.ListPending(r.Context())
	if err != nil {
		h.errLog.Fail(w, r, "failed to list pending owners", err)
		return
	}
	h.writeOwners(w, r, owners)
}

// writeOwners expands each owner's hostels with a single hostel query.
func (h *Handler) writeOwners(w http.ResponseWriter, r *http.Request, owners []models.Owner) {
	var ids []primitive.ObjectID
	for _, o := range owners {
		ids = append(ids, o.Hostels...)
	}
	hostels, err := h.hostels.ListByIDs(r.Context(), ids)
	if err != nil {
		h.errLog.Fail(w, r, "failed to load owner hostels", err)
		return
	}
	byOwner := map[primitive.ObjectID][]models.Hostel{}
	for _, hs := range hostels {
		byOwner[hs.Owner] = append(byOwner[hs.Owner], hs)
	}

	out := make([]adminOwner, 0, len(owners))
	for _, o := range owners {
		list := byOwner[o.ID]
		if list == nil {
			list = []models.Hostel{}
		}
		out = append(out, adminOwner{Owner: o, Hostels: list})
	}
	jsonutil.OK(w, out)
}

func (h *Handler) updateOwner(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	o := h.loadOwner(w, r, f.Get("ownerId"))
	if o == nil {
		return
	}
	fields := f.Profile(models.KindOwner.ProfileFields())
	if g, ok := fields["gender"].(string); ok && g != "" && !models.IsValidGender(g) {
		jsonutil.BadRequest(w, "Gender must be one of male, female or other")
		return
	}
	if f.Has("isApproved") {
		fields["isApproved"] = f.Bool("isApproved")
	}
	if err := h.owners.Update(r.Context(), o.ID, fields); err != nil {
		if errors.Is(err, ownerstore.ErrNotFound) {
			jsonutil.NotFound(w, "Owner not found")
			return
		}
		h.errLog.Fail(w, r, "failed to update owner", err)
		return
	}
	updated := h.loadOwner(w, r, o.ID.Hex())
	if updated == nil {
		return
	}
	jsonutil.OK(w, updated)
}

func (h *Handler) approveOwner(w http.ResponseWriter, r *http.Request) {
	o := h.loadOwner(w, r, chi.URLParam(r, "ownerId"))
	if o == nil {
		return
	}
	if o.IsApproved {
		jsonutil.BadRequest(w, "Owner is already approved")
		return
	}
	if err := h.owners.Approve(r.Context(), o.ID); err != nil {
		h.errLog.Fail(w, r, "failed to approve owner", err)
		return
	}
	o.IsApproved = true

	p, _ := auth.PrincipalFrom(r)
	h.audit.Admin(r, p.ID, o.ID, audit.EventOwnerApproved, map[string]string{"email": o.Email})
	h.notify.Notify(mailer.OwnerApprovedEmail(o.Email, mailer.OwnerApprovedEmailData{
		AppName:  h.notify.AppName,
		UserName: o.Name,
		LoginURL: h.notify.LoginURL,
	}))
	jsonutil.OK(w, map[string]any{
		"message": "Owner approved successfully",
		"owner":   o,
	})
}
