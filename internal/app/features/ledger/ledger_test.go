package ledgerfeature

import (
	"net/http"
	"testing"
	"time"

	ledgerstore "github.com/dalemusser/stayhome/internal/app/store/ledger"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	"github.com/dalemusser/stayhome/internal/app/system/authz"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"github.com/dalemusser/stayhome/internal/testutil/fixtures"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestLedgerRoutes(t *testing.T) {
	env := fixtures.New(t)
	r := chi.NewRouter()
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(env.Guard.Middleware, env.Guard.RequireKind(), authz.RequireStaff)
		NewHandler(env.DBs.Common, zap.NewNop()).MountRoutes(r)
	})
	bearer := env.Bearer(t, env.Admin(t, "admin@test.com"), models.KindStudent, models.RoleAdmin)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := ledgerstore.New(env.DBs.Common)
	entries := []ledgerstore.Entry{
		{RequestID: "r1", Method: "POST", Path: "/api/auth/owner/login", Status: 401},
		{RequestID: "r2", Method: "GET", Path: "/api/hostels/abc", Status: 404},
		{RequestID: "r3", Method: "PUT", Path: "/api/students/me", Status: 500, CreatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	for _, e := range entries {
		if err := store.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name  string
		query string
		want  int
		count int
	}{
		{"all", "", http.StatusOK, 3},
		{"class", "?class=not_found", http.StatusOK, 1},
		{"method is case-insensitive", "?method=post", http.StatusOK, 1},
		{"path prefix", "?path=/api/students", http.StatusOK, 1},
		{"date range", "?start_date=2024-03-01&end_date=2024-03-01", http.StatusOK, 1},
		{"bad class", "?class=teapot", http.StatusBadRequest, 0},
		{"bad date", "?end_date=03/01/2024", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := fixtures.Do(r, testutil.NewRequest(http.MethodGet, "/api/admin/ledger"+tt.query), bearer)
			rec.AssertStatus(t, tt.want)
			if tt.want != http.StatusOK {
				return
			}
			var got listResponse
			rec.Decode(t, &got)
			if len(got.Entries) != tt.count || got.Total != int64(tt.count) {
				t.Errorf("entries = %d total = %d, want %d", len(got.Entries), got.Total, tt.count)
			}
		})
	}

	rec := fixtures.Do(r, testutil.NewRequest(http.MethodGet, "/api/admin/ledger/summary?hours=1"), bearer)
	rec.AssertStatus(t, http.StatusOK)
	var summary struct {
		Total   int64                    `json:"total"`
		Classes []ledgerstore.ClassCount `json:"classes"`
	}
	rec.Decode(t, &summary)
	if summary.Total != 2 || len(summary.Classes) != 2 {
		t.Errorf("summary = %+v, want two recent entries", summary)
	}
	fixtures.Do(r, testutil.NewRequest(http.MethodGet, "/api/admin/ledger/summary?hours=0"), bearer).
		AssertStatus(t, http.StatusBadRequest)

	list, err := store.List(ctx, ledgerstore.ListFilter{RequestID: "r2"})
	if err != nil || len(list) != 1 {
		t.Fatalf("List() = %v, %v", list, err)
	}
	rec = fixtures.Do(r, testutil.NewRequest(http.MethodGet, "/api/admin/ledger/"+list[0].ID.Hex()), bearer)
	rec.AssertStatus(t, http.StatusOK)
	var one ledgerstore.Entry
	rec.Decode(t, &one)
	if one.RequestID != "r2" || one.ErrorClass != ledgerstore.ClassNotFound {
		t.Errorf("entry = %+v", one)
	}
	fixtures.Do(r, testutil.NewRequest(http.MethodGet, "/api/admin/ledger/"+primitive.NewObjectID().Hex()), bearer).
		AssertStatus(t, http.StatusNotFound)
	fixtures.Do(r, testutil.NewRequest(http.MethodGet, "/api/admin/ledger/zzz"), bearer).
		AssertStatus(t, http.StatusBadRequest)

	if _, err := rolestore.New(env.DBs.Common).Create(ctx, "moderator", ""); err != nil {
		t.Fatalf("Create role error = %v", err)
	}
	mod := env.Account(t, models.KindStudent, "mod@test.com", "moderator", nil)
	fixtures.Do(r, testutil.NewRequest(http.MethodGet, "/api/admin/ledger"), env.Bearer(t, mod, models.KindStudent, "moderator")).
		AssertStatus(t, http.StatusForbidden)
}
