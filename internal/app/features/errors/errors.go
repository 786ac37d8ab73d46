// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"go.uber.org/zap"
)

// ErrorLogger wraps the zap logger for error logging.
type ErrorLogger struct {
	logger *zap.Logger
}

// NewErrorLogger creates a new ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{logger: logger}
}

// Log logs an error with the request path and method.
func (e *ErrorLogger) Log(r *http.Request, msg string, err error, fields ...zap.Field) {
	all := append([]zap.Field{
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	}, fields...)
	e.logger.Error(msg, all...)
}

// Fail logs err and answers 500 with a generic message so internals never
// reach the client.
func (e *ErrorLogger) Fail(w http.ResponseWriter, r *http.Request, msg string, err error, fields ...zap.Field) {
	e.Log(r, msg, err, fields...)
	jsonutil.InternalError(w, "Server error")
}

// Handler answers requests the router cannot match.
type Handler struct{}

// NewHandler creates a new error Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// NotFound answers 404 for unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	jsonutil.NotFound(w, "Route not found")
}

// MethodNotAllowed answers 405 for known routes hit with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	jsonutil.Message(w, http.StatusMethodNotAllowed, "Method not allowed")
}
