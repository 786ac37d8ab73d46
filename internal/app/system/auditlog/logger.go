// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/stayhome/internal/app/store/audit"
	"github.com/dalemusser/stayhome/internal/app/system/network"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category of events.
const (
	ModeAll = "all" // MongoDB + zap
	ModeDB  = "db"
	ModeLog = "log"
	ModeOff = "off"
)

// ValidMode reports whether m is one of the supported destinations.
func ValidMode(m string) bool {
	switch m {
	case ModeAll, ModeDB, ModeLog, ModeOff:
		return true
	}
	return false
}

// Config holds audit logging configuration.
type Config struct {
	Auth  string // registration, login, logout, password and email changes
	Admin string // moderation, user and RBAC changes
}

// Sink is where database events go. *audit.Store satisfies it.
type Sink interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger records audit events to MongoDB and/or zap.
type Logger struct {
	store  Sink
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store Sink, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.Kind != "" {
		fields = append(fields, zap.String("kind", event.Kind))
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event according to the category's mode.
// A nil Logger is a no-op so handlers under test may omit it.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var mode string
	switch event.Category {
	case audit.CategoryAuth:
		mode = l.config.Auth
	case audit.CategoryAdmin:
		mode = l.config.Admin
	}
	if mode == "" {
		mode = ModeAll
	}
	if mode == ModeOff {
		return
	}

	if mode == ModeAll || mode == ModeLog {
		l.logToZap(event)
	}
	if (mode == ModeAll || mode == ModeDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

func idPtr(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

// Auth records an authentication event for the account id (which may be
// zero when the account is unknown). A non-empty reason marks the event as
// a failure.
func (l *Logger) Auth(r *http.Request, kind models.Kind, id primitive.ObjectID, eventType, reason string, details map[string]string) {
	l.Log(r.Context(), audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        idPtr(id),
		Kind:          string(kind),
		IP:            network.ClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       reason == "",
		FailureReason: reason,
		Details:       details,
	})
}

// Admin records a successful administrative action by actor on target.
func (l *Logger) Admin(r *http.Request, actor, target primitive.ObjectID, eventType string, details map[string]string) {
	l.Log(r.Context(), audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		ActorID:   idPtr(actor),
		UserID:    idPtr(target),
		IP:        network.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   details,
	})
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(r *http.Request, kind models.Kind, id primitive.ObjectID, email string) {
	l.Auth(r, kind, id, audit.EventLoginSuccess, "", map[string]string{"email": email})
}

// LoginFailed logs a failed login of the given event type.
func (l *Logger) LoginFailed(r *http.Request, kind models.Kind, id primitive.ObjectID, email, eventType, reason string) {
	l.Auth(r, kind, id, eventType, reason, map[string]string{"email": email})
}
