// internal/app/features/hostels/public.go
package hostels

import (
	"errors"
	"net/http"

	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	ownerstore "github.com/dalemusser/stayhome/internal/app/store/owners"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// hostelBrief is the short listing shown in an owner's hostel list.
type hostelBrief struct {
	ID         primitive.ObjectID `json:"_id"`
	Name       string             `json:"name"`
	Address    string             `json:"address"`
	HostelType string             `json:"hostelType"`
	Beds       int                `json:"beds"`
}

// ownerView is an owner profile with their hostels listed.
type ownerView struct {
	ID      primitive.ObjectID `json:"profileId"`
	Name    string             `json:"name"`
	Email   string             `json:"email"`
	Number  string             `json:"number"`
	Address string             `json:"address"`
	Gender  string             `json:"gender,omitempty"`
	Hostels []hostelBrief      `json:"hostels"`
}

func (h *Handler) ownerView(r *http.Request, o *models.Owner) (*ownerView, error) {
	list, err := h.hostels.ListByOwner(r.Context(), o.ID)
	if err != nil {
		return nil, err
	}
	v := &ownerView{
		ID:      o.ID,
		Name:    o.Name,
		Email:   o.Email,
		Number:  o.Number,
		Address: o.Address,
		Gender:  o.Gender,
		Hostels: make([]hostelBrief, 0, len(list)),
	}
	for _, hs := range list {
		v.Hostels = append(v.Hostels, hostelBrief{hs.ID, hs.Name, hs.Address, hs.HostelType, hs.Beds})
	}
	return v, nil
}

// listAll returns every hostel with its owner's contact block.
func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.hostels.List(r.Context())
	if err != nil {
		h.errLog.Fail(w, r, "failed to list hostels", err)
		return
	}
	if len(list) == 0 {
		jsonutil.NotFound(w, "No hostels found")
		return
	}
	out, err := h.views.WithOwners(r.Context(), list)
	if err != nil {
		h.errLog.Fail(w, r, "failed to load hostel owners", err)
		return
	}
	jsonutil.OK(w, out)
}

// getHostel returns a hostel and its owner with the owner's other hostels.
func (h *Handler) getHostel(w http.ResponseWriter, r *http.Request) {
	hostel := h.loadHostel(w, r, chi.URLParam(r, "id"))
	if hostel == nil {
		return
	}
	resp := map[string]any{"hostel": hostel, "owner": nil}
	owner, err := h.owners.GetByID(r.Context(), hostel.Owner)
	switch {
	case err == nil:
		v, err := h.ownerView(r, owner)
		if err != nil {
			h.errLog.Fail(w, r, "failed to load owner hostels", err)
			return
		}
		resp["owner"] = v
	case errors.Is(err, ownerstore.ErrNotFound):
		h.logger.Warn("hostel owner missing",
			zap.String("hostel_id", hostel.ID.Hex()),
			zap.String("owner_id", hostel.Owner.Hex()))
	default:
		h.errLog.Fail(w, r, "owner lookup failed", err)
		return
	}
	jsonutil.OK(w, resp)
}

// getPhotos returns a hostel's images as base64.
func (h *Handler) getPhotos(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.NotFound(w, "No photos found")
		return
	}
	hostel, err := h.hostels.GetByID(r.Context(), id)
	if err != nil && !errors.Is(err, hostelstore.ErrNotFound) {
		h.errLog.Fail(w, r, "hostel lookup failed", err)
		return
	}
	if hostel == nil || len(hostel.Images) == 0 {
		jsonutil.NotFound(w, "No photos found")
		return
	}
	jsonutil.OK(w, h.images.EncodeAll(r.Context(), hostel.Images))
}

// getIDProof returns an owner's id proof as base64.
func (h *Handler) getIDProof(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.NotFound(w, "No photo found")
		return
	}
	owner, err := h.owners.GetByID(r.Context(), id)
	if err != nil && !errors.Is(err, ownerstore.ErrNotFound) {
		h.errLog.Fail(w, r, "owner lookup failed", err)
		return
	}
	if owner == nil || owner.IDProof.IsZero() {
		jsonutil.NotFound(w, "No photo found")
		return
	}
	img, err := h.images.Encode(r.Context(), *owner.IDProof)
	if err != nil {
		h.logger.Warn("id proof unavailable", zap.String("owner_id", id.Hex()), zap.Error(err))
		jsonutil.NotFound(w, "No photo found")
		return
	}
	jsonutil.OK(w, img)
}
