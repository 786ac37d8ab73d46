package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Principal returns a caller of the given kind and role with a fresh id.
func Principal(kind models.Kind, role string) *auth.Principal {
	return &auth.Principal{
		ID:    primitive.NewObjectID(),
		Email: string(kind) + "@test.com",
		Role:  role,
		Kind:  kind,
	}
}

// AdminPrincipal returns an admin caller signed in through the student database.
func AdminPrincipal() *auth.Principal {
	return Principal(models.KindStudent, models.RoleAdmin)
}

// As returns a caller for an existing account.
func As(id primitive.ObjectID, kind models.Kind, role string) *auth.Principal {
	return &auth.Principal{ID: id, Email: string(kind) + "@test.com", Role: role, Kind: kind}
}

// WithPrincipal adds a caller to the request context for testing
// authenticated handlers without a bearer token.
func WithPrincipal(r *http.Request, p *auth.Principal) *http.Request {
	return auth.WithPrincipal(r, p)
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// JSONRequest creates a request with body encoded as JSON.
func JSONRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// FilePart is one file in a multipart request.
type FilePart struct {
	Field    string
	Filename string
	Data     []byte
}

// MultipartRequest creates a multipart/form-data request.
func MultipartRequest(method, target string, fields map[string]string, files ...FilePart) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	for _, f := range files {
		w, _ := mw.CreateFormFile(f.Field, f.Filename)
		_, _ = w.Write(f.Data)
	}
	_ = mw.Close()

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// WithURLParams sets chi route parameters on r so handlers can be called
// directly.
func WithURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// PNG is a minimal valid PNG image.
var PNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body %s)", r.Code, expected, r.Body.String())
	}
}

// AssertRedirect checks for a redirect to a location with the expected prefix.
func (r *ResponseRecorder) AssertRedirect(t interface{ Errorf(string, ...any) }, expectedPrefix string) {
	if r.Code != http.StatusSeeOther && r.Code != http.StatusFound && r.Code != http.StatusTemporaryRedirect {
		t.Errorf("expected redirect status, got %d", r.Code)
	}
	location := r.Header().Get("Location")
	if !strings.HasPrefix(location, expectedPrefix) {
		t.Errorf("redirect location: got %q, want prefix %q", location, expectedPrefix)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	body := r.Body.String()
	if !strings.Contains(body, expected) {
		t.Errorf("response body %s does not contain %q", body, expected)
	}
}

// Decode unmarshals the JSON body into v.
func (r *ResponseRecorder) Decode(t interface{ Fatalf(string, ...any) }, v any) {
	if err := json.Unmarshal(r.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %s: %v", r.Body.String(), err)
	}
}
