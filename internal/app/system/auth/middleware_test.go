package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeResolver struct {
	roles map[primitive.ObjectID]string
	err   error
}

func (f fakeResolver) ResolveRole(_ context.Context, _ models.Kind, id primitive.ObjectID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	role, ok := f.roles[id]
	if !ok {
		return "", ErrAccountNotFound
	}
	return role, nil
}

func okHandler(seen **Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r)
		*seen = p
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuard_Middleware(t *testing.T) {
	ts := newTestTokens(t)
	g := NewGuard(ts, fakeResolver{}, zap.NewNop())
	id := primitive.NewObjectID()
	token, err := ts.Issue(Principal{ID: id, Email: "a@b.c", Role: models.RoleStudent, Kind: models.KindStudent})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"missing", "", http.StatusUnauthorized, "No authentication token, authorization denied"},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, "No authentication token, authorization denied"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "Token is not valid"},
		{"valid", "Bearer " + token, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + token, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *Principal
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			g.Middleware(okHandler(&seen)).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %q", rec.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusOK && (seen == nil || seen.ID != id || seen.Kind != models.KindStudent) {
				t.Errorf("principal = %+v", seen)
			}
		})
	}
}

func TestGuard_RequireKind(t *testing.T) {
	student := primitive.NewObjectID()
	admin := primitive.NewObjectID()
	custom := primitive.NewObjectID()
	owner := primitive.NewObjectID()
	orphan := primitive.NewObjectID()
	res := fakeResolver{roles: map[primitive.ObjectID]string{
		student: models.RoleStudent,
		admin:   models.RoleAdmin,
		custom:  "moderator",
		owner:   models.RoleHostelOwner,
		orphan:  "",
	}}
	g := NewGuard(newTestTokens(t), res, zap.NewNop())

	tests := []struct {
		name       string
		principal  *Principal
		kinds      []models.Kind
		wantStatus int
		wantRole   string
	}{
		{"no principal", nil, []models.Kind{models.KindStudent}, http.StatusUnauthorized, ""},
		{"student ok", &Principal{ID: student, Kind: models.KindStudent, Role: "stale"}, []models.Kind{models.KindStudent}, http.StatusOK, models.RoleStudent},
		{"admin ok", &Principal{ID: admin, Kind: models.KindStudent}, []models.Kind{models.KindStudent}, http.StatusOK, models.RoleAdmin},
		{"custom role ok", &Principal{ID: custom, Kind: models.KindStudent}, []models.Kind{models.KindStudent}, http.StatusOK, "moderator"},
		{"wrong kind", &Principal{ID: owner, Kind: models.KindOwner}, []models.Kind{models.KindStudent}, http.StatusUnauthorized, ""},
		{"owner role in student db", &Principal{ID: owner, Kind: models.KindStudent}, []models.Kind{models.KindStudent}, http.StatusUnauthorized, ""},
		{"any kind", &Principal{ID: owner, Kind: models.KindOwner}, nil, http.StatusOK, models.RoleHostelOwner},
		{"missing role", &Principal{ID: orphan, Kind: models.KindStudent}, nil, http.StatusUnauthorized, ""},
		{"unknown account", &Principal{ID: primitive.NewObjectID(), Kind: models.KindStudent}, nil, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *Principal
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.principal != nil {
				req = WithPrincipal(req, tt.principal)
			}
			rec := httptest.NewRecorder()
			g.RequireKind(tt.kinds...)(okHandler(&seen)).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && seen.Role != tt.wantRole {
				t.Errorf("role = %q, want %q", seen.Role, tt.wantRole)
			}
		})
	}
}

func TestGuard_RequireKind_ResolverError(t *testing.T) {
	g := NewGuard(newTestTokens(t), fakeResolver{err: errors.New("boom")}, zap.NewNop())
	req := WithPrincipal(httptest.NewRequest(http.MethodGet, "/", nil), &Principal{ID: primitive.NewObjectID(), Kind: models.KindOwner})
	rec := httptest.NewRecorder()
	var seen *Principal
	g.RequireKind(models.KindOwner)(okHandler(&seen)).ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRoleAllowed(t *testing.T) {
	tests := []struct {
		kind models.Kind
		role string
		want bool
	}{
		{models.KindStudent, models.RoleStudent, true},
		{models.KindStudent, models.RoleHostelOwner, false},
		{models.KindOwner, models.RoleHostelOwner, true},
		{models.KindOwner, models.RoleStudent, false},
		{models.KindOwner, models.RoleAdmin, true},
		{models.KindOwner, "auditor", true},
		{models.KindStudent, "", false},
	}
	for _, tt := range tests {
		if got := RoleAllowed(tt.kind, tt.role); got != tt.want {
			t.Errorf("RoleAllowed(%s, %q) = %v, want %v", tt.kind, tt.role, got, tt.want)
		}
	}
}

func TestPrincipal_Helpers(t *testing.T) {
	id := primitive.NewObjectID()
	p := &Principal{ID: id, Role: models.RoleAdmin}
	if !p.IsAdmin() || !p.Is(id) || p.Is(primitive.NewObjectID()) {
		t.Errorf("helpers wrong for %+v", p)
	}
	var nilP *Principal
	if nilP.IsAdmin() || nilP.Is(id) {
		t.Error("nil principal should be neither admin nor anyone")
	}
}

func TestTokenService_ClaimsFrom(t *testing.T) {
	ts := newTestTokens(t)
	id := primitive.NewObjectID()
	token, err := ts.Issue(Principal{ID: id, Role: models.RoleHostelOwner, Kind: models.KindOwner})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := ts.ClaimsFrom(r); ok {
		t.Error("ClaimsFrom() without header should fail")
	}
	r.Header.Set("Authorization", "Bearer garbage")
	if _, ok := ts.ClaimsFrom(r); ok {
		t.Error("ClaimsFrom() with bad token should fail")
	}
	r.Header.Set("Authorization", "Bearer "+token)
	c, ok := ts.ClaimsFrom(r)
	if !ok || c.AccountID != id.Hex() || c.Kind != models.KindOwner {
		t.Errorf("ClaimsFrom() = %+v, %v", c, ok)
	}
}
