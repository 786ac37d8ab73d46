// internal/domain/models/student.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxWishlist is the number of hostels a student may shortlist.
const MaxWishlist = 5

// Gender values
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// Visit statuses shared by student visits and hostel pending visits.
const (
	VisitPending       = "pending"
	VisitAccepted      = "accepted"
	VisitRejected      = "rejected"
	VisitCompleted     = "completed"
	VisitNotInterested = "not_interested"
)

// Student is a student account stored in the student database.
type Student struct {
	Account `bson:",inline"`

	Name         string `bson:"name,omitempty" json:"name,omitempty"`
	Number       string `bson:"number,omitempty" json:"number,omitempty"`
	ParentName   string `bson:"parentname,omitempty" json:"parentname,omitempty"`
	ParentNumber string `bson:"parentnumber,omitempty" json:"parentnumber,omitempty"`
	Class        string `bson:"class,omitempty" json:"class,omitempty"`
	Year         string `bson:"year,omitempty" json:"year,omitempty"`
	School       string `bson:"school,omitempty" json:"school,omitempty"`
	College      string `bson:"college,omitempty" json:"college,omitempty"`
	Gender       string `bson:"gender,omitempty" json:"gender,omitempty"`
	City         string `bson:"city,omitempty" json:"city,omitempty"`
	Address      string `bson:"address,omitempty" json:"address,omitempty"`

	PassportPhoto    *Image `bson:"passportPhoto,omitempty" json:"passportPhoto,omitempty"`
	AdmissionReceipt *Image `bson:"admissionReceipt,omitempty" json:"admissionReceipt,omitempty"`

	Wishlist          []primitive.ObjectID `bson:"wishlist" json:"wishlist"`
	WishlistSubmitted bool                 `bson:"wishlistSubmitted" json:"wishlistSubmitted"`
	WishlistApproved  bool                 `bson:"wishlistApproved" json:"wishlistApproved"`
	AdmittedHostel    *primitive.ObjectID  `bson:"admittedHostel,omitempty" json:"admittedHostel,omitempty"`
	CashbackApplied   bool                 `bson:"cashbackApplied" json:"cashbackApplied"`

	HostelVisits []StudentVisit `bson:"hostelVisits" json:"hostelVisits"`
}

// StudentVisit is a visit request as seen from the student side.
type StudentVisit struct {
	Hostel    primitive.ObjectID `bson:"hostel" json:"hostel"`
	VisitDate time.Time          `bson:"visitDate" json:"visitDate"`
	VisitTime string             `bson:"visitTime" json:"visitTime"`
	Status    string             `bson:"status" json:"status"`
}

// ProfileComplete reports whether the student filled in every field
// required before taking admission.
func (s *Student) ProfileComplete() bool {
	return s.Name != "" && s.Number != "" && s.Email != "" && s.Gender != "" && s.City != ""
}

// InWishlist reports whether hostelID is on the student's wishlist.
func (s *Student) InWishlist(hostelID primitive.ObjectID) bool {
	for _, id := range s.Wishlist {
		if id == hostelID {
			return true
		}
	}
	return false
}

// Visit returns the student's visit to hostelID, if any.
func (s *Student) Visit(hostelID primitive.ObjectID) (StudentVisit, bool) {
	for _, v := range s.HostelVisits {
		if v.Hostel == hostelID {
			return v, true
		}
	}
	return StudentVisit{}, false
}

// Genders lists the accepted gender values.
func Genders() []string { return []string{GenderMale, GenderFemale, GenderOther} }

// IsValidGender checks a gender value.
func IsValidGender(g string) bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}
