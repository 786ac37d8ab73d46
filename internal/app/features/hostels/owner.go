// internal/app/features/hostels/owner.go
package hostels

import (
	"errors"
	"net/http"

	ownerstore "github.com/dalemusser/stayhome/internal/app/store/owners"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/authutil"
	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/uploads"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func (h *Handler) loadOwner(w http.ResponseWriter, r *http.Request, id primitive.ObjectID) *models.Owner {
	o, err := h.owners.GetByID(r.Context(), id)
	if errors.Is(err, ownerstore.ErrNotFound) {
		jsonutil.NotFound(w, "Owner not found")
		return nil
	}
	if err != nil {
		h.errLog.Fail(w, r, "owner lookup failed", err, zap.String("owner_id", id.Hex()))
		return nil
	}
	return o
}

// getOwner returns an owner profile with their hostels.
func (h *Handler) getOwner(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.NotFound(w, "Owner not found")
		return
	}
	o := h.loadOwner(w, r, id)
	if o == nil {
		return
	}
	v, err := h.ownerView(r, o)
	if err != nil {
		h.errLog.Fail(w, r, "failed to load owner hostels", err)
		return
	}
	jsonutil.OK(w, map[string]any{"owner": v})
}

// updateOwner changes whitelisted profile fields, and optionally the
// password and id proof. Only the owner or an admin may do this.
func (h *Handler) updateOwner(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "Invalid owner id")
		return
	}
	p, _ := auth.PrincipalFrom(r)
	if !p.Is(id) && !p.IsAdmin() {
		jsonutil.Forbidden(w, "You can only update your own profile")
		return
	}
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	o := h.loadOwner(w, r, id)
	if o == nil {
		return
	}

	fields := f.Profile(models.KindOwner.ProfileFields())
	if g, ok := fields["gender"].(string); ok && g != "" && !models.IsValidGender(g) {
		jsonutil.BadRequest(w, "Gender must be one of male, female or other")
		return
	}
	var hash string
	if pw := f["password"]; pw != "" {
		if hash, err = authutil.ValidateAndHash(pw); err != nil {
			jsonutil.BadRequest(w, err.Error())
			return
		}
	}

	var proof *models.Image
	if fh := formutil.File(r, "idProof"); fh != nil {
		img, err := h.images.Save(r.Context(), "id-proofs", fh)
		if err != nil {
			if msg := uploads.UploadError(err); msg != "" {
				jsonutil.BadRequest(w, msg)
				return
			}
			h.errLog.Fail(w, r, "failed to store id proof", err)
			return
		}
		proof = &img
	}

	if err := h.owners.Update(r.Context(), id, fields); err != nil {
		if proof != nil {
			h.images.Delete(r.Context(), *proof)
		}
		h.errLog.Fail(w, r, "failed to update owner profile", err)
		return
	}
	if proof != nil {
		if err := h.owners.SetIDProof(r.Context(), id, *proof); err != nil {
			h.images.Delete(r.Context(), *proof)
			h.errLog.Fail(w, r, "failed to save id proof", err)
			return
		}
		if !o.IDProof.IsZero() {
			h.images.Delete(r.Context(), *o.IDProof)
		}
	}
	if hash != "" {
		if err := h.accounts.SetPassword(r.Context(), id, hash); err != nil {
			h.errLog.Fail(w, r, "failed to update password", err)
			return
		}
	}

	updated := h.loadOwner(w, r, id)
	if updated == nil {
		return
	}
	jsonutil.OK(w, map[string]any{
		"message": "Profile updated successfully",
		"owner":   updated,
	})
}
