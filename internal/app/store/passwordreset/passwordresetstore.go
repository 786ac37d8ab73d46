// internal/app/store/passwordreset/passwordresetstore.go
package passwordreset

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrInvalidToken is returned for unknown, used or expired tokens.
var ErrInvalidToken = errors.New("password reset token is invalid or has expired")

// Reset represents a password reset link.
type Reset struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Kind      models.Kind        `bson:"kind"`
	AccountID primitive.ObjectID `bson:"account_id"`
	Email     string             `bson:"email"`
	Token     string             `bson:"token"`
	Used      bool               `bson:"used"`
	ExpiresAt time.Time          `bson:"expires_at"`
	CreatedAt time.Time          `bson:"created_at"`
}

// Store provides access to the password_resets collection.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
}

// New creates a new password reset store.
func New(db *mongo.Database, expiry time.Duration) *Store {
	return &Store{
		c:      db.Collection("password_resets"),
		expiry: expiry,
	}
}

// Create creates a new reset link for the account. Earlier unused links for
// the same account are invalidated.
func (s *Store) Create(ctx context.Context, kind models.Kind, accountID primitive.ObjectID, email string) (*Reset, error) {
	if _, err := s.c.UpdateMany(ctx,
		bson.M{"kind": kind, "account_id": accountID, "used": false},
		bson.M{"$set": bson.M{"used": true}},
	); err != nil {
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	r := Reset{
		ID:        primitive.NewObjectID(),
		Kind:      kind,
		AccountID: accountID,
		Email:     email,
		Token:     token,
		ExpiresAt: now.Add(s.expiry),
		CreatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		return nil, err
	}
	return &r, nil
}

// VerifyToken returns the reset for token if it is unused and unexpired.
func (s *Store) VerifyToken(ctx context.Context, token string) (*Reset, error) {
	var r Reset
	filter := bson.M{
		"token":      token,
		"used":       false,
		"expires_at": bson.M{"$gt": time.Now()},
	}
	if err := s.c.FindOne(ctx, filter).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return &r, nil
}

// Consume marks the token used. It fails with ErrInvalidToken if another
// request consumed it first.
func (s *Store) Consume(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id, "used": false}, bson.M{"$set": bson.M{"used": true}})
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return ErrInvalidToken
	}
	return nil
}

// DeleteStale removes expired and used tokens.
func (s *Store) DeleteStale(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"expires_at": bson.M{"$lt": time.Now()}},
		bson.M{"used": true},
	}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// generateToken returns 32 random bytes hex-encoded, safe for URL paths.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
