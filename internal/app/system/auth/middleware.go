package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ErrAccountNotFound is returned by a RoleResolver when the token's account
// no longer exists.
var ErrAccountNotFound = errors.New("account not found")

// RoleResolver loads the current role name of an account.
// An account whose role document is missing resolves to "".
type RoleResolver interface {
	ResolveRole(ctx context.Context, kind models.Kind, id primitive.ObjectID) (string, error)
}

// Guard authenticates bearer tokens and enforces account kinds.
type Guard struct {
	tokens   *TokenService
	resolver RoleResolver
	logger   *zap.Logger
}

// NewGuard creates a Guard.
func NewGuard(tokens *TokenService, resolver RoleResolver, logger *zap.Logger) *Guard {
	return &Guard{tokens: tokens, resolver: resolver, logger: logger}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// Middleware rejects requests without a valid bearer token and injects the
// token's Principal into the request context.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractBearer(r)
		if raw == "" {
			jsonutil.Unauthorized(w, "No authentication token, authorization denied")
			return
		}

		claims, err := g.tokens.Parse(raw)
		if err != nil {
			g.logger.Debug("token rejected",
				zap.Error(err),
				zap.String("path", r.URL.Path))
			jsonutil.Unauthorized(w, "Token is not valid")
			return
		}

		id, _ := primitive.ObjectIDFromHex(claims.AccountID)
		next.ServeHTTP(w, withPrincipal(r, &Principal{
			ID:    id,
			Email: claims.Email,
			Role:  claims.Role,
			Kind:  claims.Kind,
		}))
	})
}

// RequireKind reloads the caller's role from the database and rejects the
// request unless the account is of one of the given kinds (any kind when
// none are given) and holds a role allowed for it. The refreshed role
// replaces the token's role in the request context.
func (g *Guard) RequireKind(kinds ...models.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r)
			if !ok {
				jsonutil.Unauthorized(w, "No authentication token, authorization denied")
				return
			}
			if len(kinds) > 0 && !containsKind(kinds, p.Kind) {
				jsonutil.Unauthorized(w, "Not authorized")
				return
			}

			role, err := g.resolver.ResolveRole(r.Context(), p.Kind, p.ID)
			if errors.Is(err, ErrAccountNotFound) {
				jsonutil.Unauthorized(w, "User not found")
				return
			}
			if err != nil {
				g.logger.Error("resolve role failed",
					zap.Error(err),
					zap.String("account_id", p.ID.Hex()),
					zap.String("kind", string(p.Kind)))
				jsonutil.InternalError(w, "Server error")
				return
			}
			if !RoleAllowed(p.Kind, role) {
				g.logger.Info("role not allowed",
					zap.String("role", role),
					zap.String("kind", string(p.Kind)),
					zap.String("path", r.URL.Path))
				jsonutil.Unauthorized(w, "Not authorized")
				return
			}

			fresh := *p
			fresh.Role = role
			next.ServeHTTP(w, withPrincipal(r, &fresh))
		})
	}
}

// RoleAllowed reports whether an account of the given kind may act with
// role: the kind's own system role, admin, or any custom role.
func RoleAllowed(kind models.Kind, role string) bool {
	switch {
	case role == "":
		return false
	case role == models.RoleAdmin, role == kind.SystemRole():
		return true
	default:
		return !models.IsSystemRole(role)
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// extractBearer returns the token from an "Authorization: Bearer <token>"
// header, or "" when the header is missing or malformed.
func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func containsKind(kinds []models.Kind, k models.Kind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}

// ClaimsFrom verifies r's bearer token without loading the account. It
// names the caller for request logging ahead of Guard.Middleware.
func (s *TokenService) ClaimsFrom(r *http.Request) (*Claims, bool) {
	raw := extractBearer(r)
	if raw == "" {
		return nil, false
	}
	claims, err := s.Parse(raw)
	if err != nil {
		return nil, false
	}
	return claims, true
}
