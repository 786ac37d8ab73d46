// internal/app/features/hostels/manage.go
package hostels

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/cascade"
	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/txn"
	"github.com/dalemusser/stayhome/internal/app/system/uploads"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// badFields answers a HostelFields failure.
func badFields(w http.ResponseWriter, err error, fields map[string]string) {
	if fields != nil {
		jsonutil.ValidationError(w, err.Error(), fields)
		return
	}
	jsonutil.BadRequest(w, err.Error())
}

// saveImages stores uploaded images, answering 400/500 itself on failure.
func (h *Handler) saveImages(w http.ResponseWriter, r *http.Request, max int) ([]models.Image, bool) {
	imgs, err := h.images.SaveAll(r.Context(), "hostel-images", formutil.Files(r, "images"), max)
	if err != nil {
		if msg := uploads.UploadError(err); msg != "" {
			jsonutil.BadRequest(w, msg)
			return nil, false
		}
		h.errLog.Fail(w, r, "failed to store hostel images", err)
		return nil, false
	}
	return imgs, true
}

// addHostel creates an unverified hostel owned by the caller.
func (h *Handler) addHostel(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	fields, bad, err := HostelFields(f, false)
	if err != nil {
		badFields(w, err, bad)
		return
	}

	var hostel models.Hostel
	raw, err := bson.Marshal(fields)
	if err == nil {
		err = bson.Unmarshal(raw, &hostel)
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to build hostel", err)
		return
	}

	imgs, ok := h.saveImages(w, r, models.MaxHostelImages)
	if !ok {
		return
	}
	p, _ := auth.PrincipalFrom(r)
	hostel.Owner = p.ID
	hostel.Images = imgs
	hostel.Verified = false

	var created models.Hostel
	err = txn.RunMulti(r.Context(), h.dbs, h.logger, func(ctx context.Context) error {
		var err error
		if created, err = h.hostels.Create(ctx, hostel); err != nil {
			return err
		}
		return h.owners.AddHostel(ctx, p.ID, created.ID)
	})
	if err != nil {
		h.images.DeleteAll(r.Context(), imgs)
		h.errLog.Fail(w, r, "failed to create hostel", err)
		return
	}

	h.logger.Info("hostel added",
		zap.String("hostel_id", created.ID.Hex()),
		zap.String("owner_id", p.ID.Hex()))
	jsonutil.Created(w, map[string]any{
		"message": "Hostel added successfully",
		"hostel":  created,
	})
}

// splitImages keeps the images whose keys are listed and returns the rest
// as dropped.
func splitImages(current []models.Image, keepKeys []string) (keep, dropped []models.Image) {
	want := make(map[string]bool, len(keepKeys))
	for _, k := range keepKeys {
		want[k] = true
	}
	keep = []models.Image{}
	for _, img := range current {
		if want[img.Key] {
			keep = append(keep, img)
		} else {
			dropped = append(dropped, img)
		}
	}
	return keep, dropped
}

// updateHostel changes submitted fields of a hostel the caller owns.
// existingImages lists the image keys to keep; new uploads are appended.
func (h *Handler) updateHostel(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if f.Get("hostelId") == "" {
		jsonutil.BadRequest(w, "Hostel ID is required")
		return
	}
	hostel := h.ownedHostel(w, r, f.Get("hostelId"))
	if hostel == nil {
		return
	}
	fields, bad, err := HostelFields(f, true)
	if err != nil {
		badFields(w, err, bad)
		return
	}

	keep, dropped := hostel.Images, []models.Image(nil)
	if f.Has("existingImages") {
		var keys []string
		if raw := f.Get("existingImages"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &keys); err != nil {
				jsonutil.BadRequest(w, "Invalid existing images data")
				return
			}
		}
		keep, dropped = splitImages(hostel.Images, keys)
	}
	room := models.MaxHostelImages - len(keep)
	if room < 0 {
		room = 0
	}
	added, ok := h.saveImages(w, r, room)
	if !ok {
		return
	}
	if f.Has("existingImages") || len(added) > 0 {
		fields["images"] = append(keep, added...)
	}

	if err := h.hostels.Update(r.Context(), hostel.ID, fields); err != nil {
		h.images.DeleteAll(r.Context(), added)
		h.errLog.Fail(w, r, "failed to update hostel", err)
		return
	}
	h.images.DeleteAll(r.Context(), dropped)

	updated, err := h.hostels.GetByID(r.Context(), hostel.ID)
	if err != nil {
		h.errLog.Fail(w, r, "failed to reload hostel", err)
		return
	}
	jsonutil.OK(w, map[string]any{
		"message": "Hostel updated successfully",
		"hostel":  updated,
	})
}

// deleteHostel removes a hostel the caller owns.
func (h *Handler) deleteHostel(w http.ResponseWriter, r *http.Request) {
	hostel := h.ownedHostel(w, r, chi.URLParam(r, "id"))
	if hostel == nil {
		return
	}
	removed, err := h.remover.Hostel(r.Context(), hostel)
	if errors.Is(err, cascade.ErrStudentsAdmitted) {
		jsonutil.Forbidden(w, err.Error())
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to remove hostel", err, zap.String("hostel_id", hostel.ID.Hex()))
		return
	}
	jsonutil.OK(w, map[string]any{
		"message":     "Hostel removed successfully",
		"removedFrom": removed,
	})
}

// ownerHostels lists an owner's hostels. Owners see only their own.
func (h *Handler) ownerHostels(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "Invalid owner id")
		return
	}
	p, _ := auth.PrincipalFrom(r)
	if !p.Is(id) && !p.IsAdmin() {
		jsonutil.Forbidden(w, "You can only view your own hostels")
		return
	}
	list, err := h.hostels.ListByOwner(r.Context(), id)
	if err != nil {
		h.errLog.Fail(w, r, "failed to list owner hostels", err)
		return
	}
	jsonutil.OK(w, map[string]any{"hostels": list})
}
