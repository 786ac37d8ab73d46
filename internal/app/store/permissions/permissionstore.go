// internal/app/store/permissions/permissionstore.go
package permissionstore

import (
	"context"
	"errors"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no permission matches.
var ErrNotFound = errors.New("permission not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("permissions")}
}

// GrantModule upserts the (module, role) permission with every action
// enabled and returns it.
func (s *Store) GrantModule(ctx context.Context, moduleID, moduleName, name string, roleID primitive.ObjectID) (models.Permission, error) {
	var p models.Permission
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"moduleId": moduleID, "role": roleID},
		bson.M{"$set": bson.M{
			"moduleName": moduleName,
			"name":       name,
			"read":       true,
			"write":      true,
			"edit":       true,
			"delete":     true,
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&p)
	return p, err
}

// GetByID loads a permission by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Permission, error) {
	var p models.Permission
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// FindForModule returns the permission among ids that covers moduleID.
func (s *Store) FindForModule(ctx context.Context, ids []primitive.ObjectID, moduleID string) (*models.Permission, error) {
	var p models.Permission
	err := s.c.FindOne(ctx, bson.M{"_id": bson.M{"$in": ids}, "moduleId": moduleID}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListByIDs loads the permissions with the given ids, ordered by module name.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Permission, error) {
	if len(ids) == 0 {
		return []models.Permission{}, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "moduleName", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Permission{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateFlags sets action flags on a permission belonging to roleID.
// flags keys must already be validated action names.
func (s *Store) UpdateFlags(ctx context.Context, id, roleID primitive.ObjectID, flags map[string]bool) (*models.Permission, error) {
	set := bson.M{}
	for k, v := range flags {
		set[k] = v
	}
	filter := bson.M{"_id": id, "role": roleID}
	var p models.Permission
	var err error
	if len(set) == 0 {
		err = s.c.FindOne(ctx, filter).Decode(&p)
	} else {
		err = s.c.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&p)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Delete removes a permission.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByRole removes every permission of roleID.
func (s *Store) DeleteByRole(ctx context.Context, roleID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"role": roleID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
