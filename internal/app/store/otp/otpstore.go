// internal/app/store/otp/otpstore.go
package otpstore

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/dalemusser/stayhome/internal/app/system/normalize"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Purpose separates codes issued for different flows so a code sent for one
// cannot be replayed against another.
type Purpose string

const (
	PurposePasswordReset Purpose = "password_reset"
	PurposeEmailChange   Purpose = "email_change"
)

// CodeLength is the number of digits in a code.
const CodeLength = 6

var (
	// ErrNoPending is returned when no unused code exists for the key.
	ErrNoPending = errors.New("no pending code")
	// ErrInvalidCode is returned when the code does not match.
	ErrInvalidCode = errors.New("invalid code")
	// ErrExpiredCode is returned when the code matched but has expired.
	ErrExpiredCode = errors.New("code has expired")
)

// Code is a one-time code sent by email.
type Code struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Purpose   Purpose            `bson:"purpose"`
	Kind      models.Kind        `bson:"kind"`
	AccountID primitive.ObjectID `bson:"account_id"`
	Email     string             `bson:"email"`               // account email the code belongs to
	NewEmail  string             `bson:"new_email,omitempty"` // target address for email changes
	Code      string             `bson:"code"`
	Used      bool               `bson:"used"`
	ExpiresAt time.Time          `bson:"expires_at"`
	CreatedAt time.Time          `bson:"created_at"`
}

// Store provides access to the email_otps collection.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("email_otps")}
}

// IssueInput describes a code to issue.
type IssueInput struct {
	Purpose   Purpose
	Kind      models.Kind
	AccountID primitive.ObjectID
	Email     string
	NewEmail  string
	TTL       time.Duration
}

// Issue creates a new code, invalidating earlier unused codes for the same
// purpose and account.
func (s *Store) Issue(ctx context.Context, in IssueInput) (*Code, error) {
	code, err := generateCode(CodeLength)
	if err != nil {
		return nil, err
	}

	_, err = s.c.UpdateMany(ctx,
		bson.M{"purpose": in.Purpose, "kind": in.Kind, "account_id": in.AccountID, "used": false},
		bson.M{"$set": bson.M{"used": true}})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	c := Code{
		ID:        primitive.NewObjectID(),
		Purpose:   in.Purpose,
		Kind:      in.Kind,
		AccountID: in.AccountID,
		Email:     normalize.Email(in.Email),
		NewEmail:  normalize.Email(in.NewEmail),
		Code:      code,
		ExpiresAt: now.Add(in.TTL),
		CreatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Check validates code against the latest unused code for the account and
// consumes it on success. A wrong code leaves the pending code in place.
func (s *Store) Check(ctx context.Context, purpose Purpose, kind models.Kind, accountID primitive.ObjectID, code string) (*Code, error) {
	var c Code
	err := s.c.FindOne(ctx,
		bson.M{"purpose": purpose, "kind": kind, "account_id": accountID, "used": false},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoPending
		}
		return nil, err
	}
	if c.Code != code {
		return nil, ErrInvalidCode
	}
	if !time.Now().Before(c.ExpiresAt) {
		return nil, ErrExpiredCode
	}

	// Conditional update so two concurrent checks cannot both succeed.
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": c.ID, "used": false}, bson.M{"$set": bson.M{"used": true}})
	if err != nil {
		return nil, err
	}
	if res.ModifiedCount == 0 {
		return nil, ErrInvalidCode
	}
	c.Used = true
	return &c, nil
}

// DeleteExpired removes expired and used codes. Returns the number removed.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"expires_at": bson.M{"$lt": time.Now()}},
		bson.M{"used": true},
	}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// GenerateCode returns a random numeric code of CodeLength digits.
func GenerateCode() (string, error) {
	return generateCode(CodeLength)
}

// generateCode generates a random numeric code of the specified length.
func generateCode(length int) (string, error) {
	const digits = "0123456789"
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = digits[b[i]%10]
	}
	return string(b), nil
}
