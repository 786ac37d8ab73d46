// internal/app/store/ledger/ledgerstore.go
package ledgerstore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Error classes, derived from the response status.
const (
	ClassValidation = "validation"
	ClassAuth       = "auth"
	ClassForbidden  = "forbidden"
	ClassNotFound   = "not_found"
	ClassConflict   = "conflict"
	ClassRateLimit  = "rate_limited"
	ClassClient     = "client_error"
	ClassInternal   = "internal"
)

// Classes lists every error class.
var Classes = []string{
	ClassValidation, ClassAuth, ClassForbidden, ClassNotFound,
	ClassConflict, ClassRateLimit, ClassClient, ClassInternal,
}

// ClassFor maps an HTTP status to its error class. Statuses below 400
// have no class.
func ClassFor(status int) string {
	switch {
	case status < 400:
		return ""
	case status == 400 || status == 422:
		return ClassValidation
	case status == 401:
		return ClassAuth
	case status == 403:
		return ClassForbidden
	case status == 404:
		return ClassNotFound
	case status == 409:
		return ClassConflict
	case status == 429:
		return ClassRateLimit
	case status >= 500:
		return ClassInternal
	default:
		return ClassClient
	}
}

// Entry is one failed API request.
type Entry struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	RequestID string             `bson:"request_id" json:"requestId"`

	Method    string `bson:"method" json:"method"`
	Path      string `bson:"path" json:"path"`
	Query     string `bson:"query,omitempty" json:"query,omitempty"`
	RemoteIP  string `bson:"remote_ip" json:"remoteIp"`
	UserAgent string `bson:"user_agent,omitempty" json:"userAgent,omitempty"`

	// Actor comes from the bearer token, if one was presented and valid.
	ActorKind string `bson:"actor_kind,omitempty" json:"actorKind,omitempty"`
	ActorID   string `bson:"actor_id,omitempty" json:"actorId,omitempty"`
	ActorRole string `bson:"actor_role,omitempty" json:"actorRole,omitempty"`

	ContentType string `bson:"content_type,omitempty" json:"contentType,omitempty"`
	BodySize    int64  `bson:"body_size" json:"bodySize"`
	BodyHash    string `bson:"body_hash,omitempty" json:"bodyHash,omitempty"`
	// BodyPreview has secrets masked and is truncated.
	BodyPreview string `bson:"body_preview,omitempty" json:"bodyPreview,omitempty"`

	Status     int     `bson:"status" json:"status"`
	ErrorClass string  `bson:"error_class" json:"errorClass"`
	Message    string  `bson:"message,omitempty" json:"message,omitempty"`
	DurationMs float64 `bson:"duration_ms" json:"durationMs"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// ErrNotFound is returned when no entry matches.
var ErrNotFound = errors.New("ledger entry not found")

// Store persists ledger entries in the common database.
type Store struct {
	c *mongo.Collection
}

// New creates a ledger store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("request_ledger")}
}

// Create inserts e, filling in the id and timestamp when unset.
func (s *Store) Create(ctx context.Context, e Entry) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.ErrorClass == "" {
		e.ErrorClass = ClassFor(e.Status)
	}
	_, err := s.c.InsertOne(ctx, e)
	return err
}

// GetByID loads one entry.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*Entry, error) {
	var e Entry
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListFilter narrows List and Count. Empty fields match everything.
type ListFilter struct {
	ErrorClass string
	Method     string
	PathPrefix string
	ActorID    string
	RequestID  string
	Since      *time.Time
	Until      *time.Time
	Limit      int64
	Offset     int64
}

func (f ListFilter) query() bson.M {
	q := bson.M{}
	if f.ErrorClass != "" {
		q["error_class"] = f.ErrorClass
	}
	if f.Method != "" {
		q["method"] = f.Method
	}
	if f.PathPrefix != "" {
		q["path"] = bson.M{"$regex": "^" + regexp.QuoteMeta(f.PathPrefix)}
	}
	if f.ActorID != "" {
		q["actor_id"] = f.ActorID
	}
	if f.RequestID != "" {
		q["request_id"] = f.RequestID
	}
	if f.Since != nil || f.Until != nil {
		rng := bson.M{}
		if f.Since != nil {
			rng["$gte"] = *f.Since
		}
		if f.Until != nil {
			rng["$lte"] = *f.Until
		}
		q["created_at"] = rng
	}
	return q
}

// List returns matching entries newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	if f.Offset > 0 {
		opts.SetSkip(f.Offset)
	}
	cur, err := s.c.Find(ctx, f.query(), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []Entry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns how many entries match f.
func (s *Store) Count(ctx context.Context, f ListFilter) (int64, error) {
	return s.c.CountDocuments(ctx, f.query())
}

// ClassCount is the number of entries with one error class.
type ClassCount struct {
	ErrorClass string  `bson:"_id" json:"errorClass"`
	Count      int64   `bson:"count" json:"count"`
	AvgMs      float64 `bson:"avg_ms" json:"avgMs"`
}

// CountByClass groups entries created since the given time by error
// class, most frequent first.
func (s *Store) CountByClass(ctx context.Context, since time.Time) ([]ClassCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"created_at": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$error_class",
			"count":  bson.M{"$sum": 1},
			"avg_ms": bson.M{"$avg": "$duration_ms"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []ClassCount{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOlderThan removes entries created before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
