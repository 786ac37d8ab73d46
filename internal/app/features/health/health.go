// internal/app/features/health/health.go
package health

import (
	"context"
	"net/http"

	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler provides health check endpoints.
type Handler struct {
	dbs    dbset.Set
	logger *zap.Logger
}

// NewHandler creates a new health check Handler.
func NewHandler(dbs dbset.Set, logger *zap.Logger) *Handler {
	return &Handler{dbs: dbs, logger: logger}
}

// Response represents the health check response.
type Response struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

// Routes provides /health (full check), /health/ready and /health/live.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Check)
	r.Get("/ready", h.Ready)
	r.Get("/live", h.Live)
	return r
}

// MountRootEndpoints adds the Kubernetes probe aliases /readyz and /livez.
func MountRootEndpoints(r chi.Router, h *Handler) {
	r.Get("/readyz", h.Ready)
	r.Get("/livez", h.Live)
}

// ping checks each database's client. Databases sharing a client are
// pinged once and share the result.
func (h *Handler) ping(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()

	services := make(map[string]string, 3)
	seen := make(map[any]string)
	healthy := true
	for _, db := range h.dbs.All() {
		client := db.Client()
		status, ok := seen[client]
		if !ok {
			status = "ok"
			if err := client.Ping(ctx, readpref.Primary()); err != nil {
				status = "unavailable"
				h.logger.Warn("health check: mongodb ping failed",
					zap.String("database", db.Name()), zap.Error(err))
			}
			seen[client] = status
		}
		if status != "ok" {
			healthy = false
		}
		services[db.Name()] = status
	}
	return services, healthy
}

// Check pings every database and reports each one.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	services, healthy := h.ping(r.Context())
	resp := Response{Status: "ok", Services: services}
	if !healthy {
		resp.Status = "degraded"
		jsonutil.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	jsonutil.OK(w, resp)
}

// Ready is the readiness probe.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, healthy := h.ping(r.Context()); !healthy {
		jsonutil.JSON(w, http.StatusServiceUnavailable, Response{Status: "not ready"})
		return
	}
	jsonutil.OK(w, Response{Status: "ready"})
}

// Live is the liveness probe; it never touches the databases.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	jsonutil.OK(w, Response{Status: "alive"})
}
