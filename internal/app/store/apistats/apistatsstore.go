// Package apistats stores per-area API request counters in fixed time
// buckets.
package apistats

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection for API statistics.
const CollectionName = "api_stats"

// Area identifies a group of API routes.
type Area string

const (
	AreaStudentAuth Area = "auth_student"
	AreaOwnerAuth   Area = "auth_owner"
	AreaStudents    Area = "students"
	AreaHostels     Area = "hostels"
	AreaAdmin       Area = "admin"
)

// Areas lists every tracked area.
var Areas = []Area{AreaStudentAuth, AreaOwnerAuth, AreaStudents, AreaHostels, AreaAdmin}

// Bucket holds the counters for one area over one interval.
type Bucket struct {
	Area      Area      `bson:"area" json:"area"`
	Start     time.Time `bson:"start" json:"start"`
	Requests  int64     `bson:"requests" json:"requests"`
	Errors    int64     `bson:"errors" json:"errors"`
	TotalMs   int64     `bson:"total_ms" json:"totalMs"`
	MinMs     int64     `bson:"min_ms" json:"minMs"`
	MaxMs     int64     `bson:"max_ms" json:"maxMs"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// AvgMs returns the mean response time.
func (b Bucket) AvgMs() float64 {
	if b.Requests == 0 {
		return 0
	}
	return float64(b.TotalMs) / float64(b.Requests)
}

// Store provides API statistics persistence.
type Store struct {
	c      *mongo.Collection
	bucket time.Duration
}

// New creates a store that counts in buckets of the given size. A zero
// size means one hour.
func New(db *mongo.Database, bucket time.Duration) *Store {
	if bucket <= 0 {
		bucket = time.Hour
	}
	return &Store{c: db.Collection(CollectionName), bucket: bucket}
}

// BucketSize returns the interval each bucket covers.
func (s *Store) BucketSize() time.Duration {
	return s.bucket
}

// Record adds one request to the bucket containing at.
func (s *Store) Record(ctx context.Context, area Area, at time.Time, durationMs int64, isError bool) error {
	start := at.UTC().Truncate(s.bucket)
	inc := bson.M{"requests": 1, "total_ms": durationMs}
	if isError {
		inc["errors"] = 1
	}
	// $min and $max also set the field on insert.
	update := bson.M{
		"$inc": inc,
		"$min": bson.M{"min_ms": durationMs},
		"$max": bson.M{"max_ms": durationMs},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	_, err := s.c.UpdateOne(ctx,
		bson.M{"area": area, "start": start},
		update,
		options.Update().SetUpsert(true))
	return err
}

// Range returns buckets starting at or after since, oldest first. An
// empty area returns every area.
func (s *Store) Range(ctx context.Context, area Area, since time.Time) ([]Bucket, error) {
	filter := bson.M{"start": bson.M{"$gte": since.UTC().Truncate(s.bucket)}}
	if area != "" {
		filter["area"] = area
	}
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}, {Key: "area", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []Bucket{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary totals one area over a range of buckets.
type Summary struct {
	Area      Area    `bson:"_id" json:"area"`
	Requests  int64   `bson:"requests" json:"requests"`
	Errors    int64   `bson:"errors" json:"errors"`
	TotalMs   int64   `bson:"total_ms" json:"-"`
	MinMs     int64   `bson:"min_ms" json:"minMs"`
	MaxMs     int64   `bson:"max_ms" json:"maxMs"`
	AvgMs     float64 `bson:"-" json:"avgMs"`
	ErrorRate float64 `bson:"-" json:"errorRate"`
}

// Summarize totals every area since the given time, ordered by area.
func (s *Store) Summarize(ctx context.Context, since time.Time) ([]Summary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"start": bson.M{"$gte": since.UTC().Truncate(s.bucket)}}}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$area",
			"requests": bson.M{"$sum": "$requests"},
			"errors":   bson.M{"$sum": "$errors"},
			"total_ms": bson.M{"$sum": "$total_ms"},
			"min_ms":   bson.M{"$min": "$min_ms"},
			"max_ms":   bson.M{"$max": "$max_ms"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []Summary{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Requests > 0 {
			out[i].AvgMs = float64(out[i].TotalMs) / float64(out[i].Requests)
			out[i].ErrorRate = float64(out[i].Errors) / float64(out[i].Requests) * 100
		}
	}
	return out, nil
}

// DeleteOlderThan removes buckets that start before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"start": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
