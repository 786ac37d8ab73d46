// internal/app/system/seeding/seeding.go
package seeding

import (
	"context"
	"errors"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	rolepermissionstore "github.com/dalemusser/stayhome/internal/app/store/rolepermissions"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	"github.com/dalemusser/stayhome/internal/app/system/authutil"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Admin describes the bootstrap administrator. An empty Email skips admin
// seeding.
type Admin struct {
	Email    string
	Password string
	Name     string
}

// SeedAll seeds default data if not already present.
func SeedAll(ctx context.Context, dbs dbset.Set, admin Admin, logger *zap.Logger) error {
	roles, err := seedRoles(ctx, dbs, logger)
	if err != nil {
		return err
	}
	if admin.Email == "" {
		return nil
	}
	return seedAdmin(ctx, dbs, admin, roles[models.RoleAdmin], logger)
}

// seedRoles makes sure every system role exists with an (empty)
// RolePermission document.
func seedRoles(ctx context.Context, dbs dbset.Set, logger *zap.Logger) (map[string]models.Role, error) {
	store := rolestore.New(dbs.Common)
	perms := rolepermissionstore.New(dbs.Common)

	out := make(map[string]models.Role)
	for _, def := range models.SystemRoles() {
		role, created, err := store.Ensure(ctx, def.Name, def.Description)
		if err != nil {
			logger.Error("failed to seed role", zap.String("role", def.Name), zap.Error(err))
			return nil, err
		}
		if err := perms.EnsureEmpty(ctx, role.ID); err != nil {
			logger.Error("failed to seed role permissions", zap.String("role", def.Name), zap.Error(err))
			return nil, err
		}
		if created {
			logger.Info("seeded system role", zap.String("role", def.Name))
		}
		out[def.Name] = role
	}
	return out, nil
}

// seedAdmin creates the administrator in both user databases so the
// account can sign in through either login route.
func seedAdmin(ctx context.Context, dbs dbset.Set, admin Admin, role models.Role, logger *zap.Logger) error {
	hash, err := authutil.ValidateAndHash(admin.Password)
	if err != nil {
		return err
	}
	name := admin.Name
	if name == "" {
		name = "Administrator"
	}

	for _, kind := range []models.Kind{models.KindStudent, models.KindOwner} {
		store := accountstore.New(dbs.Accounts(kind), kind)
		exists, err := store.EmailExists(ctx, admin.Email)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		_, err = store.Create(ctx, models.Account{
			Email:        admin.Email,
			PasswordHash: hash,
			Role:         role.ID,
			IsApproved:   true,
		}, bson.M{"name": name})
		if errors.Is(err, accountstore.ErrDuplicateEmail) {
			continue
		}
		if err != nil {
			logger.Error("failed to seed admin", zap.String("kind", string(kind)), zap.Error(err))
			return err
		}
		logger.Info("seeded admin account", zap.String("kind", string(kind)), zap.String("email", admin.Email))
	}
	return nil
}
