// internal/app/features/ledger/ledger.go
package ledgerfeature

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/stayhome/internal/app/features/errors"
	ledgerstore "github.com/dalemusser/stayhome/internal/app/store/ledger"
	"github.com/dalemusser/stayhome/internal/app/system/authz"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	pageSize     = 50
	defaultHours = 24
	maxHours     = 24 * 90
)

// Handler serves the failed request ledger.
type Handler struct {
	store  *ledgerstore.Store
	errLog *errorsfeature.ErrorLogger
	logger *zap.Logger
}

// NewHandler creates a ledger Handler over the common database.
func NewHandler(common *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		store:  ledgerstore.New(common),
		errLog: errorsfeature.NewErrorLogger(logger),
		logger: logger,
	}
}

// MountRoutes registers the ledger routes on r. Admins only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authz.RequireAdmin)
		r.Get("/ledger", h.list)
		r.Get("/ledger/summary", h.summary)
		r.Get("/ledger/{entryId}", h.show)
	})
}

type listResponse struct {
	Entries    []ledgerstore.Entry `json:"entries"`
	Page       int                 `json:"page"`
	TotalPages int                 `json:"totalPages"`
	Total      int64               `json:"total"`
	Classes    []string            `json:"classes"`
}

func validClass(c string) bool {
	for _, v := range ledgerstore.Classes {
		if v == c {
			return true
		}
	}
	return false
}

// list returns entries newest first.
//
// Query parameters: class, method, path (prefix), actor, request_id,
// start_date and end_date (YYYY-MM-DD, UTC) and page.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	class := strings.TrimSpace(q.Get("class"))
	if class != "" && !validClass(class) {
		jsonutil.BadRequest(w, "Unknown error class")
		return
	}
	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	filter := ledgerstore.ListFilter{
		ErrorClass: class,
		Method:     strings.ToUpper(strings.TrimSpace(q.Get("method"))),
		PathPrefix: strings.TrimSpace(q.Get("path")),
		ActorID:    strings.TrimSpace(q.Get("actor")),
		RequestID:  strings.TrimSpace(q.Get("request_id")),
		Limit:      pageSize,
		Offset:     int64((page - 1) * pageSize),
	}
	if s := strings.TrimSpace(q.Get("start_date")); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			jsonutil.BadRequest(w, "start_date must be YYYY-MM-DD")
			return
		}
		filter.Since = &t
	}
	if s := strings.TrimSpace(q.Get("end_date")); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			jsonutil.BadRequest(w, "end_date must be YYYY-MM-DD")
			return
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.Until = &end
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	entries, err := h.store.List(ctx, filter)
	if err != nil {
		h.errLog.Fail(w, r, "failed to list ledger entries", err)
		return
	}
	total, err := h.store.Count(ctx, filter)
	if err != nil {
		h.logger.Warn("failed to count ledger entries", zap.Error(err))
		total = int64(len(entries))
	}
	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	jsonutil.OK(w, listResponse{
		Entries:    entries,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		Classes:    ledgerstore.Classes,
	})
}

// summary counts entries by error class over the last `hours` hours.
func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	hours := defaultHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHours {
			jsonutil.BadRequest(w, "hours must be between 1 and 2160")
			return
		}
		hours = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	counts, err := h.store.CountByClass(ctx, since)
	if err != nil {
		h.errLog.Fail(w, r, "failed to summarize ledger", err)
		return
	}
	var total int64
	for _, c := range counts {
		total += c.Count
	}
	jsonutil.OK(w, map[string]any{
		"hours":   hours,
		"since":   since.UTC(),
		"total":   total,
		"classes": counts,
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "entryId"))
	if err != nil {
		jsonutil.BadRequest(w, "Invalid entry id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	e, err := h.store.GetByID(ctx, id)
	if errors.Is(err, ledgerstore.ErrNotFound) {
		jsonutil.NotFound(w, "Ledger entry not found")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to load ledger entry", err)
		return
	}
	jsonutil.OK(w, e)
}
