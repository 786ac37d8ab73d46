// internal/app/system/authz/authz.go
package authz

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	permissionstore "github.com/dalemusser/stayhome/internal/app/store/permissions"
	rolepermissionstore "github.com/dalemusser/stayhome/internal/app/store/rolepermissions"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// IsAdmin reports whether the current request's caller is an admin.
func IsAdmin(r *http.Request) bool {
	p, ok := auth.PrincipalFrom(r)
	return ok && p.IsAdmin()
}

// IsStaff reports whether the caller holds admin or a custom role.
// Students and hostel owners are not staff.
func IsStaff(r *http.Request) bool {
	p, ok := auth.PrincipalFrom(r)
	if !ok {
		return false
	}
	return p.Role == models.RoleAdmin || (p.Role != "" && !models.IsSystemRole(p.Role))
}

// RequireStaff rejects callers that are not staff with 403.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsStaff(r) {
			jsonutil.Forbidden(w, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers other than admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r) {
			jsonutil.Forbidden(w, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Module permissions                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

// Checker evaluates role permissions stored in the common database.
type Checker struct {
	roles    *rolestore.Store
	rolePerm *rolepermissionstore.Store
	perms    *permissionstore.Store
	logger   *zap.Logger
}

// NewChecker creates a Checker over the common database.
func NewChecker(common *mongo.Database, logger *zap.Logger) *Checker {
	return &Checker{
		roles:    rolestore.New(common),
		rolePerm: rolepermissionstore.New(common),
		perms:    permissionstore.New(common),
		logger:   logger,
	}
}

// Decision is the outcome of a permission check. Message is set when the
// caller is denied.
type Decision struct {
	Allowed bool
	Message string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(msg string) Decision { return Decision{Message: msg} }

// Allowed decides whether role may perform action on module.
//
// Admin is always allowed. A role without a permission document, or with an
// empty permission list, is allowed. Otherwise the role needs a permission
// for module whose action flag is set.
func (c *Checker) Allowed(ctx context.Context, role, module, action string) (Decision, error) {
	if role == models.RoleAdmin {
		return allow(), nil
	}
	if role == "" {
		return deny("Access denied. No role found."), nil
	}

	roleDoc, err := c.roles.GetByName(ctx, role)
	if errors.Is(err, rolestore.ErrNotFound) {
		return deny("Invalid role"), nil
	}
	if err != nil {
		return Decision{}, err
	}

	rp, err := c.rolePerm.GetByRole(ctx, roleDoc.ID)
	if errors.Is(err, rolepermissionstore.ErrNotFound) {
		return allow(), nil
	}
	if err != nil {
		return Decision{}, err
	}
	if len(rp.Permissions) == 0 {
		return allow(), nil
	}

	perm, err := c.perms.FindForModule(ctx, rp.Permissions, module)
	if errors.Is(err, permissionstore.ErrNotFound) {
		perm = nil
	} else if err != nil {
		return Decision{}, err
	}
	return decide(perm, module, action), nil
}

// decide applies the module permission (nil when the role has none for
// module) to action.
func decide(perm *models.Permission, module, action string) Decision {
	if perm == nil {
		return deny(fmt.Sprintf("Access denied. Your role does not have any permissions for the %s module.", module))
	}
	if !perm.Allows(action) {
		return deny(fmt.Sprintf("Access denied. Your role does not have permission to %s in the %s module.", action, module))
	}
	return allow()
}

// Require returns middleware that enforces Allowed for the caller's role.
// It expects auth.Guard to have populated the principal.
func (c *Checker) Require(module, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r)
			if !ok {
				jsonutil.Unauthorized(w, "No authentication token, authorization denied")
				return
			}
			d, err := c.Allowed(r.Context(), p.Role, module, action)
			if err != nil {
				c.logger.Error("permission check failed",
					zap.Error(err),
					zap.String("role", p.Role),
					zap.String("module", module),
					zap.String("action", action))
				jsonutil.InternalError(w, "Something went wrong")
				return
			}
			if !d.Allowed {
				c.logger.Info("permission denied",
					zap.String("role", p.Role),
					zap.String("module", module),
					zap.String("action", action),
					zap.String("path", r.URL.Path))
				jsonutil.Forbidden(w, d.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
