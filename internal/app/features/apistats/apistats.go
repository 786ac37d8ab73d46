package apistats

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/stayhome/internal/app/features/errors"
	"github.com/dalemusser/stayhome/internal/app/store/apistats"
	"github.com/dalemusser/stayhome/internal/app/system/authz"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultHours = 24
	maxHours     = 24 * 31
)

// Handler serves API request statistics.
type Handler struct {
	store  *apistats.Store
	errLog *errorsfeature.ErrorLogger
}

// NewHandler creates a Handler reading from store.
func NewHandler(store *apistats.Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, errLog: errorsfeature.NewErrorLogger(logger)}
}

// MountRoutes registers GET /stats on r. Admins only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(authz.RequireAdmin).Get("/stats", h.show)
}

type statsResponse struct {
	Hours      int                `json:"hours"`
	BucketSize string             `json:"bucketSize"`
	Since      time.Time          `json:"since"`
	Areas      []apistats.Area    `json:"areas"`
	Summary    []apistats.Summary `json:"summary"`
	Buckets    []apistats.Bucket  `json:"buckets"`
}

func validArea(a string) bool {
	for _, v := range apistats.Areas {
		if string(v) == a {
			return true
		}
	}
	return false
}

// show returns per-area totals and, when area is given, that area's
// buckets.
//
// Query parameters: hours (1-744, default 24) and area.
func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hours := defaultHours
	if raw := q.Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHours {
			jsonutil.BadRequest(w, "hours must be between 1 and 744")
			return
		}
		hours = n
	}
	area := strings.TrimSpace(q.Get("area"))
	if area != "" && !validArea(area) {
		jsonutil.BadRequest(w, "Unknown area")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	summary, err := h.store.Summarize(ctx, since)
	if err != nil {
		h.errLog.Fail(w, r, "failed to summarize API stats", err)
		return
	}
	buckets := []apistats.Bucket{}
	if area != "" {
		buckets, err = h.store.Range(ctx, apistats.Area(area), since)
		if err != nil {
			h.errLog.Fail(w, r, "failed to load API stats", err)
			return
		}
	}

	jsonutil.OK(w, statsResponse{
		Hours:      hours,
		BucketSize: h.store.BucketSize().String(),
		Since:      since,
		Areas:      apistats.Areas,
		Summary:    summary,
		Buckets:    buckets,
	})
}
