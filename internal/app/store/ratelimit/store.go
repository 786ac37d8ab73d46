// internal/app/store/ratelimit/store.go
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Attempt tracks failed login attempts for one login key ("student:a@b.c").
type Attempt struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	LoginID      string             `bson:"login_id"`
	AttemptCount int                `bson:"attempt_count"` // failures in the current window
	WindowStart  time.Time          `bson:"window_start"`
	LockedUntil  *time.Time         `bson:"locked_until"`
	LastAttempt  time.Time          `bson:"last_attempt"` // TTL cleanup
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// Status is the outcome of a rate limit check.
type Status struct {
	Allowed     bool
	Remaining   int        // attempts left before lockout; -1 while locked
	LockedUntil *time.Time // set while locked
}

// Store manages failed-login tracking and lockouts.
type Store struct {
	c               *mongo.Collection
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
	now             func() time.Time
}

// New creates a new rate limit Store.
func New(db *mongo.Database, maxAttempts int, window, lockout time.Duration) *Store {
	return &Store{
		c:               db.Collection("rate_limits"),
		maxAttempts:     maxAttempts,
		windowDuration:  window,
		lockoutDuration: lockout,
		now:             time.Now,
	}
}

// Key builds the login key for an account kind and email.
func Key(kind, email string) string {
	return kind + ":" + strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) load(ctx context.Context, key string) (*Attempt, error) {
	var a Attempt
	err := s.c.FindOne(ctx, bson.M{"login_id": key}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Check reports whether key may attempt a login. Storage errors fail open.
func (s *Store) Check(ctx context.Context, key string) Status {
	a, err := s.load(ctx, key)
	if err != nil || a == nil {
		return Status{Allowed: true, Remaining: s.maxAttempts}
	}
	now := s.now()
	if a.LockedUntil != nil && now.Before(*a.LockedUntil) {
		return Status{Allowed: false, Remaining: -1, LockedUntil: a.LockedUntil}
	}
	if now.After(a.WindowStart.Add(s.windowDuration)) {
		return Status{Allowed: true, Remaining: s.maxAttempts}
	}
	remaining := s.maxAttempts - a.AttemptCount
	if remaining <= 0 {
		return Status{Allowed: false, Remaining: 0}
	}
	return Status{Allowed: true, Remaining: remaining}
}

// RecordFailure counts a failed attempt and returns the resulting status.
// The attempt that reaches the limit starts a lockout.
func (s *Store) RecordFailure(ctx context.Context, key string) Status {
	now := s.now()
	a, err := s.load(ctx, key)
	if err != nil {
		return Status{Allowed: true, Remaining: s.maxAttempts}
	}
	if a == nil {
		a = &Attempt{ID: primitive.NewObjectID(), LoginID: key, WindowStart: now, CreatedAt: now}
	}

	if now.After(a.WindowStart.Add(s.windowDuration)) {
		a.AttemptCount = 0
		a.WindowStart = now
		a.LockedUntil = nil
	}
	a.AttemptCount++
	a.LastAttempt = now
	a.UpdatedAt = now

	st := Status{Allowed: true, Remaining: s.maxAttempts - a.AttemptCount}
	if a.AttemptCount >= s.maxAttempts {
		until := now.Add(s.lockoutDuration)
		a.LockedUntil = &until
		st = Status{Allowed: false, Remaining: -1, LockedUntil: &until}
	}

	_, _ = s.c.ReplaceOne(ctx, bson.M{"login_id": key}, a, options.Replace().SetUpsert(true))
	return st
}

// Clear removes the record for key after a successful login.
func (s *Store) Clear(ctx context.Context, key string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"login_id": key})
	return err
}

// DeleteStale removes records whose window and lockout have both passed.
func (s *Store) DeleteStale(ctx context.Context) (int64, error) {
	now := s.now()
	res, err := s.c.DeleteMany(ctx, bson.M{
		"window_start": bson.M{"$lt": now.Add(-s.windowDuration)},
		"$or": bson.A{
			bson.M{"locked_until": nil},
			bson.M{"locked_until": bson.M{"$lt": now}},
		},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
