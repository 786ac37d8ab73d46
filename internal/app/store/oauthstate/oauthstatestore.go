// internal/app/store/oauthstate/oauthstatestore.go
package oauthstate

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// TTL is how long a state token stays valid.
const TTL = 10 * time.Minute

// ErrInvalidState is returned for unknown, reused or expired states.
var ErrInvalidState = errors.New("invalid oauth state")

// State represents an OAuth state token record.
type State struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	State     string             `bson:"state"`
	Kind      models.Kind        `bson:"kind"`
	ExpiresAt time.Time          `bson:"expires_at"`
	CreatedAt time.Time          `bson:"created_at"`
}

// Store provides access to the oauth_states collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new OAuth state store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("oauth_states")}
}

// Create stores a new state token for a sign-in of the given account kind.
func (s *Store) Create(ctx context.Context, state string, kind models.Kind) error {
	now := time.Now()
	_, err := s.c.InsertOne(ctx, State{
		ID:        primitive.NewObjectID(),
		State:     state,
		Kind:      kind,
		ExpiresAt: now.Add(TTL),
		CreatedAt: now,
	})
	return err
}

// Consume validates and deletes a state token (single use), returning the
// account kind it was issued for.
func (s *Store) Consume(ctx context.Context, state string) (models.Kind, error) {
	var st State
	err := s.c.FindOneAndDelete(ctx, bson.M{
		"state":      state,
		"expires_at": bson.M{"$gt": time.Now()},
	}).Decode(&st)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrInvalidState
		}
		return "", err
	}
	return st.Kind, nil
}

// DeleteExpired removes expired states.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
