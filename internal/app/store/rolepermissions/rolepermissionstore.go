// internal/app/store/rolepermissions/rolepermissionstore.go
package rolepermissionstore

import (
	"context"
	"errors"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a role has no permission list.
var ErrNotFound = errors.New("role permissions not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("rolepermissions")}
}

// GetByRole loads the permission list of roleID.
func (s *Store) GetByRole(ctx context.Context, roleID primitive.ObjectID) (*models.RolePermission, error) {
	var rp models.RolePermission
	if err := s.c.FindOne(ctx, bson.M{"role": roleID}).Decode(&rp); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rp, nil
}

// EnsureEmpty creates an empty permission list for roleID if none exists.
func (s *Store) EnsureEmpty(ctx context.Context, roleID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"role": roleID},
		bson.M{"$setOnInsert": bson.M{"permissions": bson.A{}}},
		options.Update().SetUpsert(true))
	return err
}

// AddPermissions adds ids to the role's list, creating the list if needed.
func (s *Store) AddPermissions(ctx context.Context, roleID primitive.ObjectID, ids []primitive.ObjectID) (*models.RolePermission, error) {
	var rp models.RolePermission
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"role": roleID},
		bson.M{"$addToSet": bson.M{"permissions": bson.M{"$each": ids}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&rp)
	return &rp, err
}

// RemovePermission pulls permissionID from the role's list.
func (s *Store) RemovePermission(ctx context.Context, roleID, permissionID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"role": roleID}, bson.M{"$pull": bson.M{"permissions": permissionID}})
	return err
}

// DeleteByRole removes the permission list of roleID.
func (s *Store) DeleteByRole(ctx context.Context, roleID primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"role": roleID})
	return err
}
