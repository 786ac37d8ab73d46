// internal/app/store/jobs/jobstore.go
package jobstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Job status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Statuses lists every job status, in display order.
var Statuses = []string{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}

const defaultMaxAttempts = 5

// Job is one unit of deferred work, such as a notification email.
type Job struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	Queue       string             `bson:"queue" json:"queue"`
	Type        string             `bson:"type" json:"type"`
	Payload     map[string]string  `bson:"payload" json:"payload"`
	Status      string             `bson:"status" json:"status"`
	Attempts    int                `bson:"attempts" json:"attempts"`
	MaxAttempts int                `bson:"max_attempts" json:"maxAttempts"`
	LastError   string             `bson:"last_error,omitempty" json:"lastError,omitempty"`
	WorkerID    string             `bson:"worker_id,omitempty" json:"workerId,omitempty"`
	RunAt       time.Time          `bson:"run_at" json:"runAt"`
	StartedAt   *time.Time         `bson:"started_at,omitempty" json:"startedAt,omitempty"`
	FinishedAt  *time.Time         `bson:"finished_at,omitempty" json:"finishedAt,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

// ErrNotFound is returned when no job matches, or when a state change is
// asked of a job that is not in a state that allows it.
var ErrNotFound = errors.New("job not found")

// Store persists jobs in the common database.
type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

// New creates a job store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("jobs"), now: time.Now}
}

// EnqueueInput describes a job to create.
type EnqueueInput struct {
	Queue       string
	Type        string
	Payload     map[string]string
	MaxAttempts int           // defaults to 5
	Delay       time.Duration // zero runs as soon as a worker is free
}

// Enqueue stores a pending job.
func (s *Store) Enqueue(ctx context.Context, in EnqueueInput) (Job, error) {
	now := s.now().UTC()
	maxAttempts := in.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	job := Job{
		ID:          primitive.NewObjectID(),
		Queue:       in.Queue,
		Type:        in.Type,
		Payload:     in.Payload,
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
		RunAt:       now.Add(in.Delay),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.c.InsertOne(ctx, job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// ClaimNext atomically moves the oldest due pending job on queue to
// running and returns it. It returns nil, nil when nothing is due.
func (s *Store) ClaimNext(ctx context.Context, queue, workerID string) (*Job, error) {
	now := s.now().UTC()
	filter := bson.M{
		"queue":  queue,
		"status": StatusPending,
		"run_at": bson.M{"$lte": now},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     StatusRunning,
			"worker_id":  workerID,
			"started_at": now,
			"updated_at": now,
		},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "run_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetReturnDocument(options.After)

	var job Job
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// Complete marks a running job done.
func (s *Store) Complete(ctx context.Context, id primitive.ObjectID) error {
	now := s.now().UTC()
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"status": StatusCompleted, "finished_at": now, "updated_at": now},
		"$unset": bson.M{"last_error": "", "worker_id": ""},
	})
	return err
}

// Fail records a failed attempt. The job goes back to pending after
// retryDelay while it has attempts left, and to failed once it has none.
// It reports whether the job will be retried.
func (s *Store) Fail(ctx context.Context, job *Job, errMsg string, retryDelay time.Duration) (bool, error) {
	now := s.now().UTC()
	set := bson.M{"last_error": errMsg, "updated_at": now}
	retry := job.Attempts < job.MaxAttempts
	if retry {
		set["status"] = StatusPending
		set["run_at"] = now.Add(retryDelay)
	} else {
		set["status"] = StatusFailed
		set["finished_at"] = now
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": job.ID}, bson.M{
		"$set":   set,
		"$unset": bson.M{"worker_id": "", "started_at": ""},
	})
	return retry, err
}

// Retry puts a failed or cancelled job back on its queue with a fresh
// set of attempts.
func (s *Store) Retry(ctx context.Context, id primitive.ObjectID) error {
	now := s.now().UTC()
	res, err := s.c.UpdateOne(ctx, bson.M{
		"_id":    id,
		"status": bson.M{"$in": []string{StatusFailed, StatusCancelled}},
	}, bson.M{
		"$set":   bson.M{"status": StatusPending, "attempts": 0, "run_at": now, "updated_at": now},
		"$unset": bson.M{"finished_at": "", "last_error": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Cancel stops a pending job from running.
func (s *Store) Cancel(ctx context.Context, id primitive.ObjectID) error {
	now := s.now().UTC()
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id, "status": StatusPending}, bson.M{
		"$set": bson.M{"status": StatusCancelled, "finished_at": now, "updated_at": now},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID loads one job.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*Job, error) {
	var job Job
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	Queue  string
	Status string
	Limit  int64
	Offset int64
}

func (f ListFilter) query() bson.M {
	q := bson.M{}
	if f.Queue != "" {
		q["queue"] = f.Queue
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	return q
}

// List returns jobs newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Job, error) {
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

	jobs := []Job{}
	if err := cur.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Count returns how many jobs match f. Limit and Offset are ignored.
func (s *Store) Count(ctx context.Context, f ListFilter) (int64, error) {
	return s.c.CountDocuments(ctx, f.query())
}

// QueueStats counts a queue's jobs by status.
type QueueStats struct {
	Queue    string           `json:"queue"`
	ByStatus map[string]int64 `json:"byStatus"`
	Total    int64            `json:"total"`
}

// Stats returns per-queue status counts, ordered by queue name.
func (s *Store) Stats(ctx context.Context) ([]QueueStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"queue": "$queue", "status": "$status"},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.queue", Value: 1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID struct {
			Queue  string `bson:"queue"`
			Status string `bson:"status"`
		} `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	out := []QueueStats{}
	for _, row := range rows {
		if len(out) == 0 || out[len(out)-1].Queue != row.ID.Queue {
			out = append(out, QueueStats{Queue: row.ID.Queue, ByStatus: map[string]int64{}})
		}
		qs := &out[len(out)-1]
		qs.ByStatus[row.ID.Status] += row.Count
		qs.Total += row.Count
	}
	return out, nil
}

// RequeueStale returns running jobs whose worker has held them longer
// than threshold to pending, for workers that died mid-job.
func (s *Store) RequeueStale(ctx context.Context, threshold time.Duration) (int64, error) {
	now := s.now().UTC()
	res, err := s.c.UpdateMany(ctx, bson.M{
		"status":     StatusRunning,
		"started_at": bson.M{"$lt": now.Add(-threshold)},
	}, bson.M{
		"$set":   bson.M{"status": StatusPending, "run_at": now, "last_error": "worker timed out", "updated_at": now},
		"$unset": bson.M{"worker_id": "", "started_at": ""},
	})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// DeleteFinishedBefore removes completed and cancelled jobs that finished
// before cutoff. Failed jobs are kept for inspection.
func (s *Store) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{
		"status":      bson.M{"$in": []string{StatusCompleted, StatusCancelled}},
		"finished_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
