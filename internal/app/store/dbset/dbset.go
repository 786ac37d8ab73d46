// Package dbset groups the three logical databases the service works with.
package dbset

import (
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

// Set holds the student, owner and common databases.
// Student accounts live in Student, owner accounts in Owner, and
// everything shared (hostels, RBAC, auth tokens, audit) in Common.
type Set struct {
	Student *mongo.Database
	Owner   *mongo.Database
	Common  *mongo.Database
}

// Accounts returns the database holding accounts of the given kind.
func (s Set) Accounts(kind models.Kind) *mongo.Database {
	if kind == models.KindOwner {
		return s.Owner
	}
	return s.Student
}

// All returns every database in a fixed order (student, owner, common).
func (s Set) All() []*mongo.Database {
	return []*mongo.Database{s.Student, s.Owner, s.Common}
}

// SameClient reports whether every database is served by one client, which
// is required for a single transaction to span them.
func (s Set) SameClient() bool {
	c := s.Common.Client()
	return s.Student.Client() == c && s.Owner.Client() == c
}
