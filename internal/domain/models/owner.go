package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Owner is a hostel owner account stored in the owner database.
type Owner struct {
	Account `bson:",inline"`

	Name    string               `bson:"name,omitempty" json:"name,omitempty"`
	Number  string               `bson:"number,omitempty" json:"number,omitempty"`
	Address string               `bson:"address,omitempty" json:"address,omitempty"`
	Gender  string               `bson:"gender,omitempty" json:"gender,omitempty"`
	IDProof *Image               `bson:"idProof,omitempty" json:"idProof,omitempty"`
	Hostels []primitive.ObjectID `bson:"hostels" json:"hostels"`
}

// Owns reports whether hostelID is one of the owner's hostels.
func (o *Owner) Owns(hostelID primitive.ObjectID) bool {
	for _, id := range o.Hostels {
		if id == hostelID {
			return true
		}
	}
	return false
}
