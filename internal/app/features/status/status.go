// internal/app/features/status/status.go
package status

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	jobstore "github.com/dalemusser/stayhome/internal/app/store/jobs"
	"github.com/dalemusser/stayhome/internal/app/system/authz"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

var startTime = time.Now()

// ConfigItem is one configuration value as shown to admins.
type ConfigItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ConfigGroup is a named set of configuration values.
type ConfigGroup struct {
	Name  string       `json:"name"`
	Items []ConfigItem `json:"items"`
}

// Handler serves the admin system status report.
type Handler struct {
	dbs    dbset.Set
	jobs   *jobstore.Store
	config []ConfigGroup
	log    *zap.Logger
}

// NewHandler creates a status Handler. config is reported as given, so
// secrets must already be masked.
func NewHandler(dbs dbset.Set, config []ConfigGroup, logger *zap.Logger) *Handler {
	return &Handler{
		dbs:    dbs,
		jobs:   jobstore.New(dbs.Common),
		config: config,
		log:    logger,
	}
}

// MountRoutes registers GET /status. Admins only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(authz.RequireAdmin).Get("/status", h.Serve)
}

type databaseStatus struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	PingMs    int64  `json:"pingMs"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

type runtimeStatus struct {
	GoVersion    string `json:"goVersion"`
	Uptime       string `json:"uptime"`
	StartedAt    string `json:"startedAt"`
	NumGoroutine int    `json:"numGoroutine"`
	MemAlloc     string `json:"memAlloc"`
}

type statusResponse struct {
	Runtime   runtimeStatus         `json:"runtime"`
	Databases []databaseStatus      `json:"databases"`
	Queues    []jobstore.QueueStats `json:"queues"`
	Config    []ConfigGroup         `json:"config"`
}

// Serve handles GET /api/admin/status.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	resp := statusResponse{
		Runtime: runtimeStatus{
			GoVersion:    runtime.Version(),
			Uptime:       formatDuration(time.Since(startTime)),
			StartedAt:    startTime.UTC().Format(time.RFC3339),
			NumGoroutine: runtime.NumGoroutine(),
			MemAlloc:     formatBytes(m.Alloc),
		},
		Databases: h.databases(r.Context()),
		Config:    h.config,
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	queues, err := h.jobs.Stats(ctx)
	if err != nil {
		// Report the rest of the page without queue numbers.
		h.log.Warn("status: job stats failed", zap.Error(err))
		queues = []jobstore.QueueStats{}
	}
	resp.Queues = queues

	jsonutil.OK(w, resp)
}

func (h *Handler) databases(ctx context.Context) []databaseStatus {
	out := make([]databaseStatus, 0, 3)
	for _, db := range h.dbs.All() {
		st := databaseStatus{Name: db.Name()}
		pctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
		start := time.Now()
		if err := db.Client().Ping(pctx, readpref.Primary()); err != nil {
			st.Error = err.Error()
			h.log.Warn("status: database ping failed",
				zap.String("database", db.Name()), zap.Error(err))
		} else {
			st.Connected = true
			st.PingMs = time.Since(start).Milliseconds()
			var info bson.M
			if err := db.Client().Database("admin").RunCommand(pctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&info); err == nil {
				st.Version, _ = info["version"].(string)
			}
		}
		cancel()
		out = append(out, st)
	}
	return out
}

// Mask hides all but the first and last two characters of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// MaskURI hides the password in a connection URI.
func MaskURI(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return Mask(uri)
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return uri
	}
	user, _, _ := strings.Cut(creds, ":")
	return scheme + "://" + user + ":****@" + host
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return plural(days, "day") + " " + plural(hours, "hour")
	}
	if hours > 0 {
		return plural(hours, "hour") + " " + plural(minutes, "min")
	}
	return plural(minutes, "min")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
