// internal/domain/models/hostel.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Hostel types
const (
	HostelBoys  = "boys"
	HostelGirls = "girls"
)

// Food types
const (
	FoodVeg    = "veg"
	FoodNonVeg = "nonveg"
	FoodBoth   = "both"
)

// Meal options. MealAll stands alone; the others may be combined.
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealAll       = "all"
)

// Kitchen types
const (
	KitchenInHouse      = "inHouse"
	KitchenOutsourced   = "Outsourced"
	KitchenNotAvailable = "Not available"
)

// Payment statuses
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// Complaint statuses
const (
	ComplaintOpen     = "open"
	ComplaintNoticed  = "noticed"
	ComplaintResolved = "resolved"
)

// MaxComplaintImages and MaxHostelImages cap multipart uploads.
const (
	MaxComplaintImages = 5
	MaxHostelImages    = 10
)

// ComplaintTypes lists the accepted complaint categories.
var ComplaintTypes = []string{"Rooms", "Washroom", "Wi-Fi", "Cleanliness", "Food"}

// Hostel is a listing owned by an Owner. Hostels live in the common database.
type Hostel struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name            string             `bson:"name" json:"name"`
	Owner           primitive.ObjectID `bson:"owner" json:"owner"`
	RegisterDate    time.Time          `bson:"registerDate" json:"registerDate"`
	Number          string             `bson:"number" json:"number"`
	Address         string             `bson:"address" json:"address"`
	HostelType      string             `bson:"hostelType" json:"hostelType"`
	Beds            int                `bson:"beds" json:"beds"`
	StudentsPerRoom int                `bson:"studentsPerRoom" json:"studentsPerRoom"`

	Food        bool     `bson:"food" json:"food"`
	FoodType    string   `bson:"foodType,omitempty" json:"foodType,omitempty"`
	MealOptions []string `bson:"mealOptions,omitempty" json:"mealOptions,omitempty"`

	Images      []Image `bson:"images" json:"images"`
	Wifi        bool    `bson:"wifi" json:"wifi"`
	AC          bool    `bson:"ac" json:"ac"`
	Mess        bool    `bson:"mess" json:"mess"`
	Solar       bool    `bson:"solar" json:"solar"`
	StudyRoom   bool    `bson:"studyRoom" json:"studyRoom"`
	Tuition     bool    `bson:"tuition" json:"tuition"`
	KitchenType string  `bson:"kitchenType,omitempty" json:"kitchenType,omitempty"`

	Verified      bool   `bson:"verified" json:"verified"`
	PaymentStatus string `bson:"paymentStatus" json:"paymentStatus"`

	PendingVisits []PendingVisit `bson:"pendingVisits" json:"pendingVisits"`
	RentStructure []RentTier     `bson:"rentStructure" json:"rentStructure"`
	Feedback      []Feedback     `bson:"feedback" json:"feedback"`
	Complaints    []Complaint    `bson:"complaints" json:"complaints"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// PendingVisit is a visit request as seen from the hostel side.
type PendingVisit struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	Student   primitive.ObjectID `bson:"student" json:"student"`
	VisitDate time.Time          `bson:"visitDate" json:"visitDate"`
	VisitTime string             `bson:"visitTime" json:"visitTime"`
	Status    string             `bson:"status" json:"status"`
}

// RentTier is the per-student rent for one room occupancy.
type RentTier struct {
	StudentsPerRoom int     `bson:"studentsPerRoom" json:"studentsPerRoom"`
	RentPerStudent  float64 `bson:"rentPerStudent" json:"rentPerStudent"`
}

// Feedback is a student's rating of a hostel.
type Feedback struct {
	ID      primitive.ObjectID `bson:"_id" json:"_id"`
	Student primitive.ObjectID `bson:"student" json:"student"`
	Rating  int                `bson:"rating" json:"rating"`
	Comment string             `bson:"comment,omitempty" json:"comment,omitempty"`
	Date    time.Time          `bson:"date" json:"date"`
}

// Complaint is raised by an admitted student against their hostel.
type Complaint struct {
	ID            primitive.ObjectID `bson:"_id" json:"_id"`
	Student       primitive.ObjectID `bson:"student" json:"student"`
	Description   string             `bson:"description" json:"description"`
	IsAnonymous   bool               `bson:"isAnonymous" json:"isAnonymous"`
	Images        []Image            `bson:"images" json:"images"`
	Date          time.Time          `bson:"date" json:"date"`
	Status        string             `bson:"status" json:"status"`
	ComplaintType string             `bson:"complaintType" json:"complaintType"`
}

// PendingVisitFor returns the hostel's visit entry for studentID.
func (h *Hostel) PendingVisitFor(studentID primitive.ObjectID) (PendingVisit, bool) {
	for _, v := range h.PendingVisits {
		if v.Student == studentID {
			return v, true
		}
	}
	return PendingVisit{}, false
}

// Complaint returns the complaint with the given id.
func (h *Hostel) Complaint(id primitive.ObjectID) (Complaint, bool) {
	for _, c := range h.Complaints {
		if c.ID == id {
			return c, true
		}
	}
	return Complaint{}, false
}

// HostelTypes, FoodTypes and ComplaintStatuses list accepted values for messages.
func HostelTypes() []string       { return []string{HostelBoys, HostelGirls} }
func FoodTypes() []string         { return []string{FoodVeg, FoodNonVeg, FoodBoth} }
func ComplaintStatuses() []string { return []string{ComplaintOpen, ComplaintNoticed, ComplaintResolved} }

func IsValidHostelType(t string) bool {
	return t == HostelBoys || t == HostelGirls
}

func IsValidFoodType(t string) bool {
	return t == FoodVeg || t == FoodNonVeg || t == FoodBoth
}

func IsValidKitchenType(t string) bool {
	return t == KitchenInHouse || t == KitchenOutsourced || t == KitchenNotAvailable
}

func IsValidComplaintType(t string) bool {
	for _, c := range ComplaintTypes {
		if c == t {
			return true
		}
	}
	return false
}

func IsValidComplaintStatus(s string) bool {
	return s == ComplaintOpen || s == ComplaintNoticed || s == ComplaintResolved
}
