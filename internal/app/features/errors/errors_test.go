package errors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/stayhome/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorLogger_Fail(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	el := NewErrorLogger(zap.New(core))

	rec := testutil.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/students/take-admission", nil)
	el.Fail(rec, req, "admission failed", errors.New("connection reset"), zap.String("student", "abc"))

	rec.AssertStatus(t, http.StatusInternalServerError)
	rec.AssertContains(t, `"message":"Server error"`)
	if body := rec.Body.String(); strings.Contains(body, "connection reset") {
		t.Errorf("internal error leaked to client: %s", body)
	}

	entries := logs.FilterMessage("admission failed").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["path"] != "/api/students/take-admission" || ctx["method"] != "POST" || ctx["student"] != "abc" {
		t.Errorf("log fields = %v", ctx)
	}
}

func TestHandler(t *testing.T) {
	h := NewHandler()

	rec := testutil.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	rec.AssertStatus(t, http.StatusNotFound)
	rec.AssertContains(t, "Route not found")

	rec = testutil.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/hostels/all", nil))
	rec.AssertStatus(t, http.StatusMethodNotAllowed)
}
