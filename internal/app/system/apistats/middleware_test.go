package apistats

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/stayhome/internal/app/store/apistats"
	"github.com/dalemusser/stayhome/internal/testutil"
	"go.uber.org/zap"
)

func TestRecorder_Track(t *testing.T) {
	store := apistats.New(testutil.SetupTestDBs(t).Common, time.Hour)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := NewRecorder(store, zap.NewNop())
	h := rec.Track(apistats.AreaHostels)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/", "/", "/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	rec.Wait()

	sums, err := store.Summarize(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if len(sums) != 1 || sums[0].Area != apistats.AreaHostels || sums[0].Requests != 3 || sums[0].Errors != 1 {
		t.Errorf("Summarize() = %+v, want 3 hostel requests with 1 error", sums)
	}
}

func TestRecorder_NilPassesThrough(t *testing.T) {
	var rec *Recorder
	called := false
	h := rec.Track(apistats.AreaAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("nil Recorder did not call the next handler")
	}
}
