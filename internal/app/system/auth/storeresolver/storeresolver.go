// Package storeresolver resolves account roles for auth.Guard from the
// account and role collections.
package storeresolver

import (
	"context"
	"errors"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Resolver implements auth.RoleResolver.
type Resolver struct {
	accounts map[models.Kind]*accountstore.Store
	roles    *rolestore.Store
}

// New builds a resolver over the given databases.
func New(dbs dbset.Set) *Resolver {
	return &Resolver{
		accounts: map[models.Kind]*accountstore.Store{
			models.KindStudent: accountstore.New(dbs.Student, models.KindStudent),
			models.KindOwner:   accountstore.New(dbs.Owner, models.KindOwner),
		},
		roles: rolestore.New(dbs.Common),
	}
}

// ResolveRole implements auth.RoleResolver.
func (s *Resolver) ResolveRole(ctx context.Context, kind models.Kind, id primitive.ObjectID) (string, error) {
	store, ok := s.accounts[kind]
	if !ok {
		return "", auth.ErrAccountNotFound
	}
	acct, err := store.GetByID(ctx, id)
	if errors.Is(err, accountstore.ErrNotFound) {
		return "", auth.ErrAccountNotFound
	}
	if err != nil {
		return "", err
	}
	if acct.Role.IsZero() {
		return "", nil
	}
	role, err := s.roles.GetByID(ctx, acct.Role)
	if errors.Is(err, rolestore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return role.Name, nil
}
