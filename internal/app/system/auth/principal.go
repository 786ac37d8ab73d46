package auth

import (
	"context"
	"net/http"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Principal is the authenticated caller attached to the request context.
// Role is the role name resolved from the database, not the one in the token,
// once RequireKind has run.
type Principal struct {
	ID    primitive.ObjectID
	Email string
	Role  string
	Kind  models.Kind
}

// IsAdmin reports whether the caller holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.RoleAdmin
}

// Is reports whether the caller is the account with the given id.
func (p *Principal) Is(id primitive.ObjectID) bool {
	return p != nil && p.ID == id
}

type ctxKey string

const principalKey ctxKey = "principal"

// PrincipalFrom returns the caller and a "found?" flag from the request context.
func PrincipalFrom(r *http.Request) (*Principal, bool) {
	p, ok := r.Context().Value(principalKey).(*Principal)
	return p, ok
}

func withPrincipal(r *http.Request, p *Principal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), principalKey, p))
}

// WithPrincipal injects a Principal into the request context for testing.
func WithPrincipal(r *http.Request, p *Principal) *http.Request {
	return withPrincipal(r, p)
}
