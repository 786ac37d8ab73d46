// internal/domain/models/account.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind identifies which user database an account lives in.
type Kind string

const (
	KindStudent Kind = "student"
	KindOwner   Kind = "owner"
)

// Valid reports whether k is a known account kind.
func (k Kind) Valid() bool {
	return k == KindStudent || k == KindOwner
}

// SystemRole returns the role name new accounts of this kind are created with.
func (k Kind) SystemRole() string {
	if k == KindOwner {
		return RoleHostelOwner
	}
	return RoleStudent
}

// Collection returns the collection name holding accounts of this kind.
func (k Kind) Collection() string {
	if k == KindOwner {
		return "owners"
	}
	return "students"
}

// Label is the capitalized noun used in user-facing messages ("Student not found").
func (k Kind) Label() string {
	if k == KindOwner {
		return "Owner"
	}
	return "Student"
}

// Auth providers
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// Account holds the fields shared by students and owners. It is stored
// inline in both documents.
type Account struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password,omitempty" json:"-"` // bcrypt hash (never in JSON)
	Role         primitive.ObjectID `bson:"role,omitempty" json:"role"`
	IsApproved   bool               `bson:"isApproved" json:"isApproved"`
	GoogleID     string             `bson:"googleId,omitempty" json:"googleId,omitempty"`
	AuthProvider string             `bson:"authProvider,omitempty" json:"authProvider,omitempty"` // local, google
	LastLogin    *time.Time         `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	LastLogout   *time.Time         `bson:"lastLogout,omitempty" json:"lastLogout,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// AccountSummary is the minimal projection of an account that the auth
// layer needs, regardless of kind.
type AccountSummary struct {
	Account `bson:",inline"`
	Name    string               `bson:"name,omitempty" json:"name,omitempty"`
	Hostels []primitive.ObjectID `bson:"hostels,omitempty" json:"hostels,omitempty"`
}

// ProfileFields lists the free-text profile fields a user of this kind may
// set at registration or profile update. Everything else in a request body
// is ignored.
func (k Kind) ProfileFields() []string {
	if k == KindOwner {
		return []string{"name", "number", "address", "gender"}
	}
	return []string{
		"name", "number", "parentname", "parentnumber", "class", "year",
		"school", "college", "gender", "city", "address",
	}
}
