// internal/app/store/accounts/accountstore.go
package accountstore

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
	// ErrNotFound is returned when no account matches.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email already exists")
)

// Store provides the operations the auth layer needs on either the students
// or the owners collection. Kind-specific profile updates live in the
// student and owner stores.
type Store struct {
	c    *mongo.Collection
	kind models.Kind
}

// New returns a store for accounts of the given kind in db.
func New(db *mongo.Database, kind models.Kind) *Store {
	return &Store{c: db.Collection(kind.Collection()), kind: kind}
}

// Kind returns the account kind this store serves.
func (s *Store) Kind() models.Kind { return s.kind }

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.AccountSummary, error) {
	var a models.AccountSummary
	if err := s.c.FindOne(ctx, filter).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetByID loads an account by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.AccountSummary, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail loads an account by normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.AccountSummary, error) {
	return s.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

// GetByGoogleID loads an account linked to a Google subject id.
func (s *Store) GetByGoogleID(ctx context.Context, googleID string) (*models.AccountSummary, error) {
	if googleID == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"googleId": googleID})
}

// EmailExists reports whether an account with email exists.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"email": normalize.Email(email)}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create inserts a new account. profile carries kind-specific fields
// (name, number, ...) that the caller has already whitelisted.
func (s *Store) Create(ctx context.Context, a models.Account, profile bson.M) (primitive.ObjectID, error) {
	now := time.Now()
	doc := bson.M{}
	for k, v := range profile {
		doc[k] = v
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	doc["_id"] = a.ID
	doc["email"] = normalize.Email(a.Email)
	if a.PasswordHash != "" {
		doc["password"] = a.PasswordHash
	}
	doc["role"] = a.Role
	doc["isApproved"] = a.IsApproved
	if a.GoogleID != "" {
		doc["googleId"] = a.GoogleID
	}
	if a.AuthProvider == "" {
		a.AuthProvider = models.ProviderLocal
	}
	doc["authProvider"] = a.AuthProvider
	doc["createdAt"] = now
	doc["updatedAt"] = now

	for k, v := range Defaults(s.kind) {
		doc[k] = v
	}

	if _, err := s.c.InsertOne(ctx, doc); err != nil {
		if wafflemongo.IsDup(err) {
			return primitive.NilObjectID, ErrDuplicateEmail
		}
		return primitive.NilObjectID, err
	}
	return a.ID, nil
}

// Defaults returns the kind-specific fields a new account document starts
// with.
func Defaults(kind models.Kind) bson.M {
	switch kind {
	case models.KindStudent:
		return bson.M{
			"wishlist":          bson.A{},
			"hostelVisits":      bson.A{},
			"wishlistSubmitted": false,
			"wishlistApproved":  false,
			"cashbackApplied":   false,
		}
	case models.KindOwner:
		return bson.M{"hostels": bson.A{}}
	}
	return bson.M{}
}

func (s *Store) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updatedAt"] = time.Now()
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPassword stores a new bcrypt hash.
func (s *Store) SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	return s.set(ctx, id, bson.M{"password": hash})
}

// SetEmail changes the account email. Returns ErrDuplicateEmail when taken.
func (s *Store) SetEmail(ctx context.Context, id primitive.ObjectID, email string) error {
	return s.set(ctx, id, bson.M{"email": normalize.Email(email)})
}

// SetRole points the account at a different role.
func (s *Store) SetRole(ctx context.Context, id, roleID primitive.ObjectID) error {
	return s.set(ctx, id, bson.M{"role": roleID})
}

// TouchLogin records a successful login and returns its time.
func (s *Store) TouchLogin(ctx context.Context, id primitive.ObjectID) (time.Time, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return now, s.set(ctx, id, bson.M{"lastLogin": now})
}

// TouchLogout records a logout and returns its time.
func (s *Store) TouchLogout(ctx context.Context, id primitive.ObjectID) (time.Time, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return now, s.set(ctx, id, bson.M{"lastLogout": now})
}

// LinkGoogle attaches a Google subject id to an existing account.
func (s *Store) LinkGoogle(ctx context.Context, id primitive.ObjectID, googleID string) error {
	return s.set(ctx, id, bson.M{"googleId": googleID, "authProvider": models.ProviderGoogle})
}

// CountByRole counts accounts holding roleID.
func (s *Store) CountByRole(ctx context.Context, roleID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"role": roleID})
}

// Delete removes an account. Returns ErrNotFound when nothing was deleted.
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

// GetRaw returns the stored document unchanged. Used when an account moves
// between databases so no field is lost.
func (s *Store) GetRaw(ctx context.Context, id primitive.ObjectID) (bson.M, error) {
	var doc bson.M
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// InsertRaw inserts a document produced by GetRaw (possibly edited).
func (s *Store) InsertRaw(ctx context.Context, doc bson.M) error {
	if _, err := s.c.InsertOne(ctx, doc); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}
