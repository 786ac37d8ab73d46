// internal/app/system/ledger/middleware.go
package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	ledgerstore "github.com/dalemusser/stayhome/internal/app/store/ledger"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/network"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	redacted         = "[redacted]"
	captureLimit     = 64 << 10
	responseLimit    = 2 << 10
	storeTimeout     = 5 * time.Second
	defaultPreview   = 500
	defaultMinStatus = 400
)

// Config controls which requests are recorded and how much is kept.
type Config struct {
	// MinStatus is the lowest response status recorded. Defaults to 400.
	MinStatus int

	// MaxBodyPreview caps the stored request body preview. Defaults to 500.
	MaxBodyPreview int

	// ExcludePaths are path prefixes never recorded.
	ExcludePaths []string

	// Tokens names the caller from a bearer token. Nil records every
	// request as anonymous.
	Tokens *auth.TokenService
}

// Recorder writes failed API requests to the ledger.
type Recorder struct {
	store  *ledgerstore.Store
	cfg    Config
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewRecorder creates a Recorder.
func NewRecorder(store *ledgerstore.Store, cfg Config, logger *zap.Logger) *Recorder {
	if cfg.MinStatus <= 0 {
		cfg.MinStatus = defaultMinStatus
	}
	if cfg.MaxBodyPreview <= 0 {
		cfg.MaxBodyPreview = defaultPreview
	}
	return &Recorder{store: store, cfg: cfg, logger: logger}
}

// Wait blocks until every pending write has finished.
func (rec *Recorder) Wait() {
	rec.wg.Wait()
}

func (rec *Recorder) excluded(path string) bool {
	for _, p := range rec.cfg.ExcludePaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Middleware records each request whose response status is at least
// MinStatus. Entries are stored in the background.
func (rec *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		body := captureBody(r)

		ww := &responseWrapper{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		if ww.status < rec.cfg.MinStatus {
			return
		}

		requestID := chimw.GetReqID(r.Context())
		if requestID == "" {
			requestID = uuid.NewString()
		}
		entry := ledgerstore.Entry{
			RequestID:   requestID,
			Method:      r.Method,
			Path:        redactPath(r.URL.Path),
			Query:       redactQuery(r.URL.RawQuery),
			RemoteIP:    network.ClientIP(r),
			UserAgent:   r.UserAgent(),
			ContentType: r.Header.Get("Content-Type"),
			BodySize:    body.size,
			BodyHash:    body.hash,
			BodyPreview: truncate(body.preview, rec.cfg.MaxBodyPreview),
			Status:      ww.status,
			ErrorClass:  ledgerstore.ClassFor(ww.status),
			Message:     responseMessage(ww.body.Bytes()),
			DurationMs:  float64(time.Since(start).Microseconds()) / 1000,
			CreatedAt:   time.Now().UTC(),
		}
		if rec.cfg.Tokens != nil {
			if c, ok := rec.cfg.Tokens.ClaimsFrom(r); ok {
				entry.ActorKind = string(c.Kind)
				entry.ActorID = c.AccountID
				entry.ActorRole = c.Role
			}
		}

		rec.wg.Add(1)
		go func() {
			defer rec.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			if err := rec.store.Create(ctx, entry); err != nil {
				rec.logger.Error("failed to store ledger entry",
					zap.String("request_id", entry.RequestID),
					zap.String("path", entry.Path),
					zap.Error(err))
			}
		}()
	})
}

type capturedBody struct {
	size    int64
	hash    string
	preview string
}

// captureBody reads up to captureLimit bytes of a JSON or form body for
// the preview and puts them back in front of the unread remainder.
// Multipart bodies are never read.
func captureBody(r *http.Request) capturedBody {
	cb := capturedBody{size: r.ContentLength}
	if r.Body == nil || r.Body == http.NoBody {
		return cb
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/json" && mt != "application/x-www-form-urlencoded" {
		return cb
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, captureLimit+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	if err != nil || len(buf) == 0 {
		return cb
	}
	if len(buf) > captureLimit {
		// Too large to preview; the size header is all we keep.
		return cb
	}

	sum := sha256.Sum256(buf)
	cb.hash = hex.EncodeToString(sum[:8])
	cb.size = int64(len(buf))
	if mt == "application/json" {
		cb.preview = redactJSON(buf)
	} else {
		cb.preview = redactQuery(string(buf))
	}
	return cb
}

// sensitive reports whether a field name holds a secret.
func sensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range []string{"password", "otp", "token", "secret", "credential"} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return k == "code"
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			if sensitive(k) {
				t[k] = redacted
			} else {
				t[k] = redactValue(vv)
			}
		}
		return t
	case []any:
		for i := range t {
			t[i] = redactValue(t[i])
		}
		return t
	default:
		return v
	}
}

// redactJSON masks secret fields. A body that is not valid JSON is
// dropped rather than stored unmasked.
func redactJSON(b []byte) string {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return ""
	}
	out, err := json.Marshal(redactValue(v))
	if err != nil {
		return ""
	}
	return string(out)
}

func redactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	for k := range vals {
		if sensitive(k) {
			vals[k] = []string{redacted}
		}
	}
	return vals.Encode()
}

// tokenRoutes are path segments followed by a secret token segment.
var tokenRoutes = map[string]bool{"reset": true, "reset-password": true}

// redactPath masks the segment after a reset route, where password reset
// links carry their token.
func redactPath(p string) string {
	parts := strings.Split(p, "/")
	for i := 0; i < len(parts)-1; i++ {
		if tokenRoutes[parts[i]] && parts[i+1] != "" {
			parts[i+1] = redacted
			i++
		}
	}
	return strings.Join(parts, "/")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// responseMessage pulls the "message" field from a JSON error body.
func responseMessage(b []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return ""
	}
	return truncate(body.Message, 200)
}

// responseWrapper records the status and the start of the body.
type responseWrapper struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (rw *responseWrapper) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	if room := responseLimit - rw.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		rw.body.Write(b[:room])
	}
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher.
func (rw *responseWrapper) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
