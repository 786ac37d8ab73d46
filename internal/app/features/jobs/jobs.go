// internal/app/features/jobs/jobs.go
package jobs

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	errorsfeature "github.com/dalemusser/stayhome/internal/app/features/errors"
	"github.com/dalemusser/stayhome/internal/app/store/audit"
	jobstore "github.com/dalemusser/stayhome/internal/app/store/jobs"
	"github.com/dalemusser/stayhome/internal/app/system/auditlog"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/authz"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const pageSize = 50

// Handler serves the background job console.
type Handler struct {
	jobs   *jobstore.Store
	audit  *auditlog.Logger
	errLog *errorsfeature.ErrorLogger
	logger *zap.Logger
}

// NewHandler creates a jobs Handler over the common database.
func NewHandler(common *mongo.Database, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		jobs:   jobstore.New(common),
		audit:  audit,
		errLog: errorsfeature.NewErrorLogger(logger),
		logger: logger,
	}
}

// MountRoutes registers the job routes on r. Admins only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(authz.RequireAdmin)
		r.Get("/jobs", h.list)
		r.Get("/jobs/stats", h.stats)
		r.Get("/jobs/{jobId}", h.show)
		r.Post("/jobs/{jobId}/retry", h.retry)
		r.Post("/jobs/{jobId}/cancel", h.cancel)
	})
}

type listResponse struct {
	Jobs       []jobstore.Job `json:"jobs"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
	Total      int64          `json:"total"`
	Statuses   []string       `json:"statuses"`
}

func validStatus(s string) bool {
	for _, v := range jobstore.Statuses {
		if v == s {
			return true
		}
	}
	return false
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := strings.TrimSpace(q.Get("status"))
	if status != "" && !validStatus(status) {
		jsonutil.BadRequest(w, "Unknown job status")
		return
	}
	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	filter := jobstore.ListFilter{
		Queue:  strings.TrimSpace(q.Get("queue")),
		Status: status,
		Limit:  pageSize,
		Offset: int64((page - 1) * pageSize),
	}
	jobs, err := h.jobs.List(r.Context(), filter)
	if err != nil {
		h.errLog.Fail(w, r, "failed to list jobs", err)
		return
	}
	total, err := h.jobs.Count(r.Context(), filter)
	if err != nil {
		h.logger.Warn("failed to count jobs", zap.Error(err))
		total = int64(len(jobs))
	}
	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	jsonutil.OK(w, listResponse{
		Jobs:       jobs,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		Statuses:   jobstore.Statuses,
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobs.Stats(r.Context())
	if err != nil {
		h.errLog.Fail(w, r, "failed to load job stats", err)
		return
	}
	jsonutil.OK(w, map[string]any{"queues": stats})
}

func (h *Handler) jobID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "jobId"))
	if err != nil {
		jsonutil.BadRequest(w, "Invalid job id")
		return id, false
	}
	return id, true
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.GetByID(r.Context(), id)
	if errors.Is(err, jobstore.ErrNotFound) {
		jsonutil.NotFound(w, "Job not found")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to load job", err)
		return
	}
	jsonutil.OK(w, job)
}

func (h *Handler) retry(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "retry", h.jobs.Retry, "Only failed or cancelled jobs can be retried", "Job queued for retry")
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", h.jobs.Cancel, "Only pending jobs can be cancelled", "Job cancelled")
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string,
	apply func(context.Context, primitive.ObjectID) error, conflictMsg, okMsg string) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}
	if _, err := h.jobs.GetByID(r.Context(), id); errors.Is(err, jobstore.ErrNotFound) {
		jsonutil.NotFound(w, "Job not found")
		return
	} else if err != nil {
		h.errLog.Fail(w, r, "failed to load job", err)
		return
	}
	if err := apply(r.Context(), id); errors.Is(err, jobstore.ErrNotFound) {
		jsonutil.Error(w, http.StatusConflict, conflictMsg)
		return
	} else if err != nil {
		h.errLog.Fail(w, r, "failed to "+action+" job", err)
		return
	}
	actor := primitive.NilObjectID
	if p, ok := auth.PrincipalFrom(r); ok {
		actor = p.ID
	}
	h.audit.Admin(r, actor, primitive.NilObjectID, audit.EventJobChanged, map[string]string{
		"job_id": id.Hex(),
		"action": action,
	})
	jsonutil.Message(w, http.StatusOK, okMsg)
}
