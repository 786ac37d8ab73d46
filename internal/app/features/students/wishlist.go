// internal/app/features/students/wishlist.go
package students

import (
	"errors"
	"fmt"
	"net/http"

	studentstore "github.com/dalemusser/stayhome/internal/app/store/students"
	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (h *Handler) getWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := h.subject(w, r, chi.URLParam(r, "studentId"))
	if !ok {
		return
	}
	st := h.load(w, r, id)
	if st == nil {
		return
	}
	cards, err := h.views.Summaries(r.Context(), st.Wishlist, false)
	if err != nil {
		h.errLog.Fail(w, r, "failed to load wishlist hostels", err)
		return
	}
	jsonutil.OK(w, map[string]any{
		"wishlist":          cards,
		"wishlistSubmitted": st.WishlistSubmitted,
		"wishlistApproved":  st.WishlistApproved,
	})
}

// wishlistAfter reloads the wishlist for responses.
func (h *Handler) wishlistAfter(w http.ResponseWriter, r *http.Request, id primitive.ObjectID, msg string) {
	st := h.load(w, r, id)
	if st == nil {
		return
	}
	wl := st.Wishlist
	if wl == nil {
		wl = []primitive.ObjectID{}
	}
	jsonutil.OK(w, map[string]any{"message": msg, "wishlist": wl})
}

func (h *Handler) addToWishlist(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	id, ok := h.subject(w, r, f.Get("studentId"))
	if !ok {
		return
	}
	if h.load(w, r, id) == nil {
		return
	}
	hostel := h.loadHostel(w, r, f.Get("hostelId"))
	if hostel == nil {
		return
	}

	err = h.students.AddToWishlist(r.Context(), id, hostel.ID)
	switch {
	case errors.Is(err, studentstore.ErrWishlistFull):
		jsonutil.BadRequest(w, fmt.Sprintf("Wishlist can't exceed %d hostels", models.MaxWishlist))
		return
	case errors.Is(err, studentstore.ErrAlreadyInWishlist):
		jsonutil.BadRequest(w, "Hostel already in wishlist")
		return
	case errors.Is(err, studentstore.ErrNotFound):
		jsonutil.NotFound(w, "Student not found")
		return
	case err != nil:
		h.errLog.Fail(w, r, "failed to add to wishlist", err)
		return
	}
	h.wishlistAfter(w, r, id, "Hostel added to wishlist")
}

func (h *Handler) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	id, ok := h.subject(w, r, f.Get("studentId"))
	if !ok {
		return
	}
	hostelID, err := f.ObjectID("hostelId")
	if err != nil {
		jsonutil.BadRequest(w, "Invalid hostel id")
		return
	}
	if err := h.students.RemoveFromWishlist(r.Context(), id, hostelID); err != nil {
		if errors.Is(err, studentstore.ErrNotFound) {
			jsonutil.NotFound(w, "Student not found")
			return
		}
		h.errLog.Fail(w, r, "failed to remove from wishlist", err)
		return
	}
	h.wishlistAfter(w, r, id, "Hostel removed from wishlist")
}

// submitWishlist sends the wishlist for admin approval.
func (h *Handler) submitWishlist(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	id, ok := h.subject(w, r, f.Get("studentId"))
	if !ok {
		return
	}
	st := h.load(w, r, id)
	if st == nil {
		return
	}
	if len(st.Wishlist) == 0 {
		jsonutil.BadRequest(w, "Wishlist is empty")
		return
	}
	if st.WishlistSubmitted {
		jsonutil.BadRequest(w, "Wishlist is already submitted")
		return
	}
	if err := h.students.SetWishlistFlags(r.Context(), id, true, false); err != nil {
		h.errLog.Fail(w, r, "failed to submit wishlist", err)
		return
	}
	jsonutil.Message(w, http.StatusOK, "Wishlist submitted for review")
}

