// internal/app/store/hostels/hostelstore.go
package hostelstore

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

var (
	// ErrNotFound is returned when no hostel matches.
	ErrNotFound = errors.New("hostel not found")
	// ErrComplaintNotFound is returned when no complaint matches.
	ErrComplaintNotFound = errors.New("complaint not found")
	// ErrVisitNotFound is returned when the hostel has no matching visit request.
	ErrVisitNotFound = errors.New("visit request not found")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("hostels")}
}

// Create inserts a hostel. Embedded lists are initialized so they encode as
// arrays rather than null.
func (s *Store) Create(ctx context.Context, h models.Hostel) (models.Hostel, error) {
	now := time.Now()
	h.ID = primitive.NewObjectID()
	if h.RegisterDate.IsZero() {
		h.RegisterDate = now
	}
	if h.PaymentStatus == "" {
		h.PaymentStatus = models.PaymentPending
	}
	if h.Images == nil {
		h.Images = []models.Image{}
	}
	if h.RentStructure == nil {
		h.RentStructure = []models.RentTier{}
	}
	h.PendingVisits = []models.PendingVisit{}
	h.Feedback = []models.Feedback{}
	h.Complaints = []models.Complaint{}
	h.CreatedAt = now
	h.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, h); err != nil {
		return models.Hostel{}, err
	}
	return h, nil
}

// GetByID loads a hostel by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Hostel, error) {
	var h models.Hostel
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&h); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &h, nil
}

// GetByComplaintID loads the hostel that holds complaint id.
func (s *Store) GetByComplaintID(ctx context.Context, id primitive.ObjectID) (*models.Hostel, error) {
	var h models.Hostel
	if err := s.c.FindOne(ctx, bson.M{"complaints._id": id}).Decode(&h); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrComplaintNotFound
		}
		return nil, err
	}
	return &h, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Hostel, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Hostel{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns all hostels ordered by name.
func (s *Store) List(ctx context.Context) ([]models.Hostel, error) {
	return s.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
}

// ListByOwner returns the hostels of ownerID.
func (s *Store) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Hostel, error) {
	return s.find(ctx, bson.M{"owner": ownerID}, options.Find().SetSort(bson.D{{Key: "registerDate", Value: -1}}))
}

// ListByIDs loads the hostels with the given ids.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Hostel, error) {
	if len(ids) == 0 {
		return []models.Hostel{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// ListWithStudentActivity returns hostels holding complaints or feedback by studentID.
func (s *Store) ListWithStudentActivity(ctx context.Context, studentID primitive.ObjectID) ([]models.Hostel, error) {
	return s.find(ctx, bson.M{"$or": bson.A{
		bson.M{"complaints.student": studentID},
		bson.M{"feedback.student": studentID},
	}})
}

func (s *Store) update(ctx context.Context, filter, upd bson.M, notFound error) error {
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
		return notFound
	}
	return nil
}

// Update sets the given fields. Callers whitelist keys.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	return s.update(ctx, bson.M{"_id": id}, bson.M{"$set": set}, ErrNotFound)
}

// Verify marks a hostel as verified by an admin.
func (s *Store) Verify(ctx context.Context, id primitive.ObjectID) error {
	return s.update(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"verified": true}}, ErrNotFound)
}

// MarkPaid records that the owner paid for an admission cashback.
func (s *Store) MarkPaid(ctx context.Context, id primitive.ObjectID) error {
	return s.update(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"paymentStatus": models.PaymentPaid}}, ErrNotFound)
}

// AddFeedback appends a rating.
func (s *Store) AddFeedback(ctx context.Context, id primitive.ObjectID, f models.Feedback) (models.Feedback, error) {
	f.ID = primitive.NewObjectID()
	if f.Date.IsZero() {
		f.Date = time.Now()
	}
	err := s.update(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{"feedback": f}}, ErrNotFound)
	return f, err
}

// AddComplaint appends a complaint.
func (s *Store) AddComplaint(ctx context.Context, id primitive.ObjectID, c models.Complaint) (models.Complaint, error) {
	c.ID = primitive.NewObjectID()
	if c.Date.IsZero() {
		c.Date = time.Now()
	}
	if c.Status == "" {
		c.Status = models.ComplaintOpen
	}
	if c.Images == nil {
		c.Images = []models.Image{}
	}
	err := s.update(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{"complaints": c}}, ErrNotFound)
	return c, err
}

// SetComplaintStatus changes a complaint's status.
func (s *Store) SetComplaintStatus(ctx context.Context, complaintID primitive.ObjectID, status string) error {
	return s.update(ctx,
		bson.M{"complaints._id": complaintID},
		bson.M{"$set": bson.M{"complaints.$.status": status}},
		ErrComplaintNotFound)
}

// DeleteComplaint removes a complaint from its hostel.
func (s *Store) DeleteComplaint(ctx context.Context, hostelID, complaintID primitive.ObjectID) error {
	return s.update(ctx,
		bson.M{"_id": hostelID, "complaints._id": complaintID},
		bson.M{"$pull": bson.M{"complaints": bson.M{"_id": complaintID}}},
		ErrComplaintNotFound)
}

// UpsertPendingVisit replaces the hostel's visit entry for v.Student.
func (s *Store) UpsertPendingVisit(ctx context.Context, id primitive.ObjectID, v models.PendingVisit) error {
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	if err := s.update(ctx, bson.M{"_id": id},
		bson.M{"$pull": bson.M{"pendingVisits": bson.M{"student": v.Student}}}, ErrNotFound); err != nil {
		return err
	}
	return s.update(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{"pendingVisits": v}}, ErrNotFound)
}

// SetPendingVisitStatus changes the status of studentID's visit request.
func (s *Store) SetPendingVisitStatus(ctx context.Context, id, studentID primitive.ObjectID, status string) error {
	return s.update(ctx,
		bson.M{"_id": id, "pendingVisits.student": studentID},
		bson.M{"$set": bson.M{"pendingVisits.$.status": status}},
		ErrVisitNotFound)
}

// RemovePendingVisit drops studentID's visit request.
func (s *Store) RemovePendingVisit(ctx context.Context, id, studentID primitive.ObjectID) error {
	return s.update(ctx, bson.M{"_id": id},
		bson.M{"$pull": bson.M{"pendingVisits": bson.M{"student": studentID}}}, ErrNotFound)
}

// PullStudentActivity removes every complaint, rating and visit request by
// studentID across all hostels.
func (s *Store) PullStudentActivity(ctx context.Context, studentID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"$or": bson.A{
			bson.M{"complaints.student": studentID},
			bson.M{"feedback.student": studentID},
			bson.M{"pendingVisits.student": studentID},
		}},
		bson.M{
			"$pull": bson.M{
				"complaints":    bson.M{"student": studentID},
				"feedback":      bson.M{"student": studentID},
				"pendingVisits": bson.M{"student": studentID},
			},
			"$set": bson.M{"updatedAt": time.Now()},
		})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes a hostel.
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
