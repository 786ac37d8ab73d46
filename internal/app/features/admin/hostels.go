package admin

import (
	"errors"
	"net/http"

	hostelsfeature "github.com/dalemusser/stayhome/internal/app/features/hostels"
	"github.com/dalemusser/stayhome/internal/app/store/audit"
	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/cascade"
	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/viewdata"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// adminHostel is a hostel with its owner expanded in place of the id.
type adminHostel struct {
	models.Hostel
	Owner *viewdata.OwnerSummary `json:"owner"`
}

func (h *Handler) listHostels(w http.ResponseWriter, r *http.Request) {
	list, err := h.hostels.List(r.Context())
	if err != nil {
		h.errLog.Fail(w, r, "failed to list hostels", err)
		return
	}
	joined, err := h.views.WithOwners(r.Context(), list)
	if err != nil {
		h.errLog.Fail(w, r, "failed to load hostel owners", err)
		return
	}
	out := make([]adminHostel, 0, len(joined))
	for _, j := range joined {
		out = append(out, adminHostel{Hostel: j.Hostel, Owner: j.OwnerDetails})
	}
	jsonutil.OK(w, out)
}

// withOwner expands hostel's owner. ok is false when the owner is gone.
func (h *Handler) withOwner(r *http.Request, hostel *models.Hostel) (adminHostel, bool, error) {
	owners, err := h.views.Owners(r.Context(), []primitive.ObjectID{hostel.Owner})
	if err != nil {
		return adminHostel{}, false, err
	}
	o := owners[hostel.Owner]
	return adminHostel{Hostel: *hostel, Owner: o}, o != nil, nil
}

func (h *Handler) getHostel(w http.ResponseWriter, r *http.Request) {
	hostel := h.loadHostel(w, r, chi.URLParam(r, "hostelId"))
	if hostel == nil {
		return
	}
	v, ok, err := h.withOwner(r, hostel)
	if err != nil {
		h.errLog.Fail(w, r, "owner lookup failed", err)
		return
	}
	if !ok {
		jsonutil.JSON(w, http.StatusNotFound, map[string]any{
			"message": "Hostel owner not found",
			"hostel":  hostel,
		})
		return
	}
	jsonutil.OK(w, v)
}

// updateHostel edits listing fields. Besides the fields owners may edit,
// admins may set verified and paymentStatus.
func (h *Handler) updateHostel(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	raw := f.Get("id")
	if raw == "" {
		raw = f.Get("hostelId")
	}
	if raw == "" {
		jsonutil.BadRequest(w, "Hostel ID is required")
		return
	}
	hostel := h.loadHostel(w, r, raw)
	if hostel == nil {
		return
	}

	fields, bad, err := hostelsfeature.HostelFields(f, true)
	if err != nil {
		if bad != nil {
			jsonutil.ValidationError(w, err.Error(), bad)
			return
		}
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if f.Has("verified") {
		fields["verified"] = f.Bool("verified")
	}
	if f.Has("paymentStatus") {
		switch ps := f.Get("paymentStatus"); ps {
		case models.PaymentPending, models.PaymentPaid:
			fields["paymentStatus"] = ps
		default:
			jsonutil.BadRequest(w, "Payment status must be pending or paid")
			return
		}
	}
	if err := h.hostels.Update(r.Context(), hostel.ID, fields); err != nil {
		h.errLog.Fail(w, r, "failed to update hostel", err)
		return
	}
	updated := h.loadHostel(w, r, hostel.ID.Hex())
	if updated == nil {
		return
	}
	jsonutil.OK(w, updated)
}

func (h *Handler) verifyHostel(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	hostel := h.loadHostel(w, r, f.Get("hostelId"))
	if hostel == nil {
		return
	}
	if err := h.hostels.Verify(r.Context(), hostel.ID); err != nil {
		h.errLog.Fail(w, r, "failed to verify hostel", err)
		return
	}
	hostel.Verified = true

	p, _ := auth.PrincipalFrom(r)
	h.audit.Admin(r, p.ID, hostel.Owner, audit.EventHostelVerified, map[string]string{
		"hostel_id": hostel.ID.Hex(),
		"name":      hostel.Name,
	})

	v, _, err := h.withOwner(r, hostel)
	if err != nil {
		h.errLog.Fail(w, r, "owner lookup failed", err)
		return
	}
	jsonutil.OK(w, v)
}

func (h *Handler) deleteHostel(w http.ResponseWriter, r *http.Request) {
	hostel := h.loadHostel(w, r, chi.URLParam(r, "hostelId"))
	if hostel == nil {
		return
	}
	res, err := h.remover.Hostel(r.Context(), hostel)
	if errors.Is(err, cascade.ErrStudentsAdmitted) {
		n, cerr := h.students.CountAdmittedTo(r.Context(), hostel.ID)
		if cerr != nil {
			h.logger.Warn("count admitted students failed", zap.Error(cerr))
		}
		jsonutil.JSON(w, http.StatusForbidden, map[string]any{
			"message":               err.Error(),
			"admittedStudentsCount": n,
		})
		return
	}
	if err != nil {
		if errors.Is(err, hostelstore.ErrNotFound) {
			jsonutil.NotFound(w, "Hostel not found")
			return
		}
		h.errLog.Fail(w, r, "failed to remove hostel", err, zap.String("hostel_id", hostel.ID.Hex()))
		return
	}

	p, _ := auth.PrincipalFrom(r)
	h.audit.Admin(r, p.ID, hostel.Owner, audit.EventHostelRemoved, map[string]string{
		"hostel_id": hostel.ID.Hex(),
		"name":      hostel.Name,
	})
	jsonutil.OK(w, map[string]any{
		"message":     "Hostel removed successfully",
		"removedFrom": res,
	})
}
