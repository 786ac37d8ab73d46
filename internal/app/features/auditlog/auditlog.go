// internal/app/features/auditlog/auditlog.go
package auditlog

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/stayhome/internal/app/features/errors"
	"github.com/dalemusser/stayhome/internal/app/store/audit"
	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	ownerstore "github.com/dalemusser/stayhome/internal/app/store/owners"
	studentstore "github.com/dalemusser/stayhome/internal/app/store/students"
	"github.com/dalemusser/stayhome/internal/app/system/authz"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const pageSize = 50

// Handler provides audit log handlers.
type Handler struct {
	auditStore *audit.Store
	students   *studentstore.Store
	owners     *ownerstore.Store
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
}

// NewHandler creates a new audit log Handler.
func NewHandler(dbs dbset.Set, logger *zap.Logger) *Handler {
	return &Handler{
		auditStore: audit.New(dbs.Common),
		students:   studentstore.New(dbs.Student),
		owners:     ownerstore.New(dbs.Owner),
		errLog:     errorsfeature.NewErrorLogger(logger),
		logger:     logger,
	}
}

// listItem is a single audit event with account names resolved.
type listItem struct {
	audit.Event
	ActorName string `json:"actorName,omitempty"`
	UserName  string `json:"userName,omitempty"`
}

type listResponse struct {
	Events     []listItem `json:"events"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalPages int        `json:"totalPages"`
	Total      int64      `json:"total"`
	Categories []string   `json:"categories"`
	EventTypes []string   `json:"eventTypes"`
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventRegistrationStarted,
		audit.EventRegistrationCompleted,
		audit.EventLoginSuccess,
		audit.EventLoginFailedNotFound,
		audit.EventLoginFailedPassword,
		audit.EventLoginFailedRole,
		audit.EventLoginLockedOut,
		audit.EventLogout,
		audit.EventPasswordResetSent,
		audit.EventPasswordChanged,
		audit.EventEmailChanged,
		audit.EventOTPFailed,
		audit.EventGoogleLogin,
	}

	adminEvents := []string{
		audit.EventUserCreated,
		audit.EventUserRoleChanged,
		audit.EventUserDeleted,
		audit.EventUserPasswordReset,
		audit.EventOwnerApproved,
		audit.EventWishlistApproved,
		audit.EventHostelVerified,
		audit.EventHostelRemoved,
		audit.EventStudentRemoved,
		audit.EventRoleCreated,
		audit.EventRoleDeleted,
		audit.EventGroupChanged,
		audit.EventPermissionsChanged,
		audit.EventJobChanged,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryAdmin:
		return adminEvents
	case "":
		all := make([]string, 0, len(authEvents)+len(adminEvents))
		all = append(all, authEvents...)
		all = append(all, adminEvents...)
		return all
	default:
		return nil
	}
}

// MountRoutes registers the audit log route on r. Only admins may read it.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(authz.RequireAdmin).Get("/audit", h.list)
}

// list returns audit events, newest first, with filtering and pagination.
//
// Query parameters: category, event_type, start_date and end_date
// (YYYY-MM-DD, interpreted in tz or server local time) and page.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	eventType := strings.TrimSpace(q.Get("event_type"))
	startDate := strings.TrimSpace(q.Get("start_date"))
	endDate := strings.TrimSpace(q.Get("end_date"))

	if category != "" && category != audit.CategoryAuth && category != audit.CategoryAdmin {
		jsonutil.BadRequest(w, "Category must be auth or admin")
		return
	}

	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	loc := time.Local
	if tz := strings.TrimSpace(q.Get("tz")); tz != "" {
		if parsed, err := time.LoadLocation(tz); err == nil {
			loc = parsed
		}
	}

	filter := audit.QueryFilter{
		Category:  category,
		EventType: eventType,
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}
	if startDate != "" {
		t, err := time.ParseInLocation("2006-01-02", startDate, loc)
		if err != nil {
			jsonutil.BadRequest(w, "start_date must be YYYY-MM-DD")
			return
		}
		filter.Since = &t
	}
	if endDate != "" {
		t, err := time.ParseInLocation("2006-01-02", endDate, loc)
		if err != nil {
			jsonutil.BadRequest(w, "end_date must be YYYY-MM-DD")
			return
		}
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.Until = &endOfDay
	}

	events, err := h.auditStore.Query(r.Context(), filter)
	if err != nil {
		h.errLog.Fail(w, r, "failed to query audit events", err)
		return
	}
	total, err := h.auditStore.Count(r.Context(), filter)
	if err != nil {
		h.logger.Warn("failed to count audit events", zap.Error(err))
		total = int64(len(events))
	}

	names := h.resolveNames(r, events)
	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{Event: e}
		if e.ActorID != nil {
			item.ActorName = names[*e.ActorID]
		}
		if e.UserID != nil {
			item.UserName = names[*e.UserID]
		}
		items = append(items, item)
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	jsonutil.OK(w, listResponse{
		Events:     items,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Total:      total,
		Categories: []string{audit.CategoryAuth, audit.CategoryAdmin},
		EventTypes: eventTypesForCategory(category),
	})
}

// resolveNames maps every account referenced by events to a display name.
// Accounts that no longer exist are left out.
func (h *Handler) resolveNames(r *http.Request, events []audit.Event) map[primitive.ObjectID]string {
	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	add := func(id *primitive.ObjectID) {
		if id == nil {
			return
		}
		if _, ok := seen[*id]; !ok {
			seen[*id] = struct{}{}
			ids = append(ids, *id)
		}
	}
	for _, e := range events {
		add(e.ActorID)
		add(e.UserID)
	}

	names := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return names
	}
	students, err := h.students.ListByIDs(r.Context(), ids)
	if err != nil {
		h.logger.Warn("failed to fetch student names for audit log", zap.Error(err))
	}
	for _, s := range students {
		names[s.ID] = displayName(s.Name, s.Email)
	}
	owners, err := h.owners.ListByIDs(r.Context(), ids)
	if err != nil {
		h.logger.Warn("failed to fetch owner names for audit log", zap.Error(err))
	}
	for _, o := range owners {
		names[o.ID] = displayName(o.Name, o.Email)
	}
	return names
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
