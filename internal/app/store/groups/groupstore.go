// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no group matches.
var ErrNotFound = errors.New("group not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

// Create inserts a group named G<n>, where n is one more than the number of
// groups that exist.
func (s *Store) Create(ctx context.Context, moduleID, moduleName string, roles []primitive.ObjectID) (models.Group, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{})
	if err != nil {
		return models.Group{}, err
	}
	g := models.Group{
		ID:           primitive.NewObjectID(),
		ModuleID:     moduleID,
		ModuleName:   moduleName,
		Name:         fmt.Sprintf("G%d", n+1),
		Roles:        roles,
		DateModified: time.Now(),
	}
	if g.Roles == nil {
		g.Roles = []primitive.ObjectID{}
	}
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// GetByID loads a group by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// List returns all groups, most recently modified first.
func (s *Store) List(ctx context.Context) ([]models.Group, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "dateModified", Value: -1}}))
}

// ListByIDs loads the groups with the given ids.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Group, error) {
	if len(ids) == 0 {
		return []models.Group{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Group, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Group{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GroupUpdate holds the editable fields of a group. Nil fields are left unchanged.
type GroupUpdate struct {
	ModuleID   *string
	ModuleName *string
	Name       *string
	Roles      []primitive.ObjectID
}

// Update applies upd and returns the updated group.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd GroupUpdate) (*models.Group, error) {
	set := bson.M{"dateModified": time.Now()}
	if upd.ModuleID != nil {
		set["moduleId"] = *upd.ModuleID
	}
	if upd.ModuleName != nil {
		set["moduleName"] = *upd.ModuleName
	}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Roles != nil {
		set["roles"] = upd.Roles
	}
	var g models.Group
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&g)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// PullRole removes roleID from every group.
func (s *Store) PullRole(ctx context.Context, roleID primitive.ObjectID) error {
	_, err := s.c.UpdateMany(ctx, bson.M{"roles": roleID}, bson.M{"$pull": bson.M{"roles": roleID}})
	return err
}

// Delete removes a group and returns what was deleted.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (*models.Group, error) {
	var g models.Group
	if err := s.c.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}
