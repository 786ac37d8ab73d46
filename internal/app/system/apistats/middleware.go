// Package apistats provides middleware for tracking API request statistics.
package apistats

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/stayhome/internal/app/store/apistats"
	"go.uber.org/zap"
)

// Recorder counts requests per area. It can be shared across routers.
type Recorder struct {
	store  *apistats.Store
	logger *zap.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

// NewRecorder creates a Recorder.
func NewRecorder(store *apistats.Store, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger, now: time.Now}
}

// Record stores one request in the background.
func (r *Recorder) Record(area apistats.Area, durationMs int64, isError bool) {
	at := r.now()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.Record(ctx, area, at, durationMs, isError); err != nil {
			r.logger.Error("failed to record API stats",
				zap.String("area", string(area)),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every pending write has finished.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// Track returns middleware that counts requests under area. Responses
// with status 400 or above count as errors. A nil Recorder passes
// requests through untouched.
func (r *Recorder) Track(area apistats.Area) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if r == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, req)
			r.Record(area, time.Since(start).Milliseconds(), ww.statusCode >= 400)
		})
	}
}

// responseWrapper wraps http.ResponseWriter to capture status code.
type responseWrapper struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWrapper) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher.
func (rw *responseWrapper) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
