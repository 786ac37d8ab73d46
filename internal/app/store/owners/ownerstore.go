// internal/app/store/owners/ownerstore.go
package ownerstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no owner matches.
var ErrNotFound = errors.New("owner not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("owners")}
}

// GetByID loads an owner by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Owner, error) {
	var o models.Owner
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Owner, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Owner{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every owner, newest first.
func (s *Store) List(ctx context.Context) ([]models.Owner, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// ListPending returns owners awaiting admin approval.
func (s *Store) ListPending(ctx context.Context) ([]models.Owner, error) {
	return s.find(ctx, bson.M{"isApproved": false}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// ListByIDs loads the owners with the given ids.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Owner, error) {
	if len(ids) == 0 {
		return []models.Owner{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) update(ctx context.Context, id primitive.ObjectID, upd bson.M) error {
	if set, ok := upd["$set"].(bson.M); ok {
		set["updatedAt"] = time.Now()
	} else {
		upd["$set"] = bson.M{"updatedAt": time.Now()}
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, upd)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Update sets the given fields. Callers whitelist keys.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	if len(fields) == 0 {
		return nil
	}
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	return s.update(ctx, id, bson.M{"$set": set})
}

// Approve marks an owner approved.
func (s *Store) Approve(ctx context.Context, id primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"isApproved": true}})
}

// SetIDProof stores the reference to an uploaded id proof.
func (s *Store) SetIDProof(ctx context.Context, id primitive.ObjectID, img models.Image) error {
	return s.update(ctx, id, bson.M{"$set": bson.M{"idProof": img}})
}

// AddHostel records hostelID as owned by the owner.
func (s *Store) AddHostel(ctx context.Context, id, hostelID primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{"$addToSet": bson.M{"hostels": hostelID}})
}

// RemoveHostel forgets hostelID on the owner.
func (s *Store) RemoveHostel(ctx context.Context, id, hostelID primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{"$pull": bson.M{"hostels": hostelID}})
}

// Delete removes an owner.
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
