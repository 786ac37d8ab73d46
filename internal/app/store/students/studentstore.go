// internal/app/store/students/studentstore.go
package studentstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no student matches.
	ErrNotFound = errors.New("student not found")
	// ErrWishlistFull is returned when the wishlist already holds MaxWishlist hostels.
	ErrWishlistFull = errors.New("wishlist is full")
	// ErrAlreadyInWishlist is returned when the hostel is already shortlisted.
	ErrAlreadyInWishlist = errors.New("hostel already in wishlist")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("students")}
}

// GetByID loads a student by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Student, error) {
	var st models.Student
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&st); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Student, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Student{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every student, newest first.
func (s *Store) List(ctx context.Context) ([]models.Student, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// ListByIDs loads the students with the given ids.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Student, error) {
	if len(ids) == 0 {
		return []models.Student{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// ListByWishlistHostel returns students that shortlisted hostelID.
func (s *Store) ListByWishlistHostel(ctx context.Context, hostelID primitive.ObjectID) ([]models.Student, error) {
	return s.find(ctx, bson.M{"wishlist": hostelID},
		options.Find().SetProjection(bson.M{"password": 0, "passportPhoto": 0, "admissionReceipt": 0}))
}

// ListAdmittedTo returns students admitted to hostelID.
func (s *Store) ListAdmittedTo(ctx context.Context, hostelID primitive.ObjectID) ([]models.Student, error) {
	return s.find(ctx, bson.M{"admittedHostel": hostelID},
		options.Find().SetProjection(bson.M{"password": 0, "passportPhoto": 0, "admissionReceipt": 0}))
}

// CountAdmittedTo counts students admitted to hostelID.
func (s *Store) CountAdmittedTo(ctx context.Context, hostelID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"admittedHostel": hostelID})
}

// CountWishlisting counts students that shortlisted hostelID.
func (s *Store) CountWishlisting(ctx context.Context, hostelID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"wishlist": hostelID})
}

func (s *Store) update(ctx context.Context, filter bson.M, upd bson.M) error {
	if set, ok := upd["$set"].(bson.M); ok {
		set["updatedAt"] = time.Now()
	} else {
		upd["$set"] = bson.M{"updatedAt": time.Now()}
	}
	res, err := s.c.UpdateOne(ctx, filter, upd)
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
	return s.update(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

// SetPassportPhoto stores the reference to an uploaded passport photo.
func (s *Store) SetPassportPhoto(ctx context.Context, id primitive.ObjectID, img models.Image) error {
	return s.update(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"passportPhoto": img}})
}

// SetAdmissionReceipt stores the reference to an uploaded admission receipt.
func (s *Store) SetAdmissionReceipt(ctx context.Context, id primitive.ObjectID, img models.Image) error {
	return s.update(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"admissionReceipt": img}})
}

// AddToWishlist appends hostelID to the wishlist. The filter enforces the
// size cap and uniqueness atomically; on no match the cause is resolved
// with a follow-up read.
func (s *Store) AddToWishlist(ctx context.Context, id, hostelID primitive.ObjectID) error {
	lastSlot := "wishlist." + strconv.Itoa(models.MaxWishlist-1)
	filter := bson.M{
		"_id":      id,
		"wishlist": bson.M{"$ne": hostelID},
		lastSlot:   bson.M{"$exists": false},
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{"wishlist": hostelID},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	st, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if st.InWishlist(hostelID) {
		return ErrAlreadyInWishlist
	}
	return ErrWishlistFull
}

// RemoveFromWishlist pulls hostelID from the wishlist.
func (s *Store) RemoveFromWishlist(ctx context.Context, id, hostelID primitive.ObjectID) error {
	return s.update(ctx, bson.M{"_id": id}, bson.M{"$pull": bson.M{"wishlist": hostelID}})
}

// SetWishlistFlags sets the submitted and approved flags.
func (s *Store) SetWishlistFlags(ctx context.Context, id primitive.ObjectID, submitted, approved bool) error {
	return s.update(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"wishlistSubmitted": submitted,
		"wishlistApproved":  approved,
	}})
}

// Admit records the hostel the student was admitted to.
func (s *Store) Admit(ctx context.Context, id, hostelID primitive.ObjectID) error {
	return s.update(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"admittedHostel": hostelID}})
}

// SetCashbackApplied marks the student's cashback as claimed.
func (s *Store) SetCashbackApplied(ctx context.Context, id primitive.ObjectID) error {
	return s.update(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"cashbackApplied": true}})
}

// UpsertVisit replaces the student's visit entry for the hostel.
func (s *Store) UpsertVisit(ctx context.Context, id primitive.ObjectID, v models.StudentVisit) error {
	if err := s.update(ctx, bson.M{"_id": id}, bson.M{"$pull": bson.M{"hostelVisits": bson.M{"hostel": v.Hostel}}}); err != nil {
		return err
	}
	return s.update(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{"hostelVisits": v}})
}

// SetVisitStatus changes the status of the student's visit to hostelID.
func (s *Store) SetVisitStatus(ctx context.Context, id, hostelID primitive.ObjectID, status string) error {
	return s.update(ctx,
		bson.M{"_id": id, "hostelVisits.hostel": hostelID},
		bson.M{"$set": bson.M{"hostelVisits.$.status": status}})
}

// RemoveVisit drops the student's visit to hostelID.
func (s *Store) RemoveVisit(ctx context.Context, id, hostelID primitive.ObjectID) error {
	return s.update(ctx, bson.M{"_id": id}, bson.M{"$pull": bson.M{"hostelVisits": bson.M{"hostel": hostelID}}})
}

// PullHostelEverywhere removes hostelID from every wishlist and visit list.
// Returns the number of students touched.
func (s *Store) PullHostelEverywhere(ctx context.Context, hostelID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"$or": bson.A{bson.M{"wishlist": hostelID}, bson.M{"hostelVisits.hostel": hostelID}}},
		bson.M{
			"$pull": bson.M{"wishlist": hostelID, "hostelVisits": bson.M{"hostel": hostelID}},
			"$set":  bson.M{"updatedAt": time.Now()},
		})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes a student.
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

