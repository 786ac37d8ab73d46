package students

import (
	"net/http"
	"testing"

	"github.com/dalemusser/stayhome/internal/testutil/fixtures"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type fixture struct {
	*fixtures.Env
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := fixtures.New(t)
	h := NewHandler(env.DBs, env.Images, env.Guard, env.Mail, "StayHome", zap.NewNop())
	r := chi.NewRouter()
	r.Mount("/api/students", Routes(h))
	return &fixture{Env: env, router: r}
}
