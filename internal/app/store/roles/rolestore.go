// internal/app/store/roles/rolestore.go
package rolestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stayhome/internal/app/system/normalize"
	"github.com/dalemusser/stayhome/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no role matches.
	ErrNotFound = errors.New("role not found")
	// ErrDuplicate is returned when a role with the same name (any case) exists.
	ErrDuplicate = errors.New("role already exists")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("roles")}
}

// Create inserts a role. Names are unique ignoring case.
func (s *Store) Create(ctx context.Context, name, description string) (models.Role, error) {
	r := models.Role{
		ID:          primitive.NewObjectID(),
		Name:        normalize.Name(name),
		NameCI:      normalize.RoleKey(name),
		Description: description,
		CreatedAt:   time.Now(),
	}
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Role{}, ErrDuplicate
		}
		return models.Role{}, err
	}
	return r, nil
}

// Ensure returns the role named name, creating it when missing.
func (s *Store) Ensure(ctx context.Context, name, description string) (models.Role, bool, error) {
	r, err := s.GetByName(ctx, name)
	if err == nil {
		return *r, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.Role{}, false, err
	}
	created, err := s.Create(ctx, name, description)
	if errors.Is(err, ErrDuplicate) {
		// Lost a race with another instance.
		r, err := s.GetByName(ctx, name)
		if err != nil {
			return models.Role{}, false, err
		}
		return *r, false, nil
	}
	return created, err == nil, err
}

// GetByID loads a role by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Role, error) {
	var r models.Role
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// GetByName loads a role by name, ignoring case.
func (s *Store) GetByName(ctx context.Context, name string) (*models.Role, error) {
	var r models.Role
	if err := s.c.FindOne(ctx, bson.M{"name_ci": normalize.RoleKey(name)}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// List returns all roles sorted by name.
func (s *Store) List(ctx context.Context) ([]models.Role, error) {
	return s.find(ctx, bson.M{})
}

// ListByIDs loads the roles with the given ids.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Role, error) {
	if len(ids) == 0 {
		return []models.Role{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Role, error) {
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Role{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a role.
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
