// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"context"

	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	ownerstore "github.com/dalemusser/stayhome/internal/app/store/owners"
	"github.com/dalemusser/stayhome/internal/app/system/uploads"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OwnerSummary is the owner contact block attached to hostel listings.
type OwnerSummary struct {
	ID      primitive.ObjectID   `json:"_id"`
	Email   string               `json:"email,omitempty"`
	Name    string               `json:"name"`
	Number  string               `json:"number"`
	Hostels []primitive.ObjectID `json:"hostels,omitempty"`
}

// SummarizeOwner builds the contact block for o. Missing name or number
// read "N/A".
func SummarizeOwner(o *models.Owner) *OwnerSummary {
	if o == nil {
		return nil
	}
	s := &OwnerSummary{ID: o.ID, Email: o.Email, Name: o.Name, Number: o.Number}
	if s.Name == "" {
		s.Name = "N/A"
	}
	if s.Number == "" {
		s.Number = "N/A"
	}
	return s
}

// HostelSummary is the short hostel card used in wishlists and visits.
type HostelSummary struct {
	ID         primitive.ObjectID `json:"_id"`
	Name       string             `json:"name"`
	Address    string             `json:"address"`
	HostelType string             `json:"hostelType"`
	Beds       int                `json:"beds"`
	Food       bool               `json:"food"`
	Verified   bool               `json:"verified"`
	Images     []models.Image     `json:"images"`
	Owner      *OwnerSummary      `json:"owner"`
}

// HostelWithOwner is a full hostel plus its owner's contact block.
type HostelWithOwner struct {
	models.Hostel
	OwnerDetails *OwnerSummary `json:"ownerDetails"`
}

// ComplaintView is a complaint with its images inlined as base64.
type ComplaintView struct {
	models.Complaint
	Images      []models.EncodedImage `json:"images"`
	StudentName string                `json:"studentName,omitempty"`
	HostelID    primitive.ObjectID    `json:"hostelId,omitempty"`
	HostelName  string                `json:"hostelName,omitempty"`
}

// Loader resolves cross-database references for responses. Hostels live
// in the common database and owners in the owner database, so joins are
// done here in batches.
type Loader struct {
	owners  *ownerstore.Store
	hostels *hostelstore.Store
	images  *uploads.Images
}

// NewLoader creates a Loader. images may be nil when no view needs them.
func NewLoader(dbs dbset.Set, images *uploads.Images) *Loader {
	return &Loader{
		owners:  ownerstore.New(dbs.Owner),
		hostels: hostelstore.New(dbs.Common),
		images:  images,
	}
}

// Owners loads owner summaries keyed by id. Unknown ids are absent.
func (l *Loader) Owners(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*OwnerSummary, error) {
	out := make(map[primitive.ObjectID]*OwnerSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	owners, err := l.owners.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range owners {
		s := SummarizeOwner(&owners[i])
		s.Hostels = owners[i].Hostels
		out[owners[i].ID] = s
	}
	return out, nil
}

func ownerIDs(hostels []models.Hostel) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(hostels))
	ids := make([]primitive.ObjectID, 0, len(hostels))
	for _, h := range hostels {
		if !h.Owner.IsZero() && !seen[h.Owner] {
			seen[h.Owner] = true
			ids = append(ids, h.Owner)
		}
	}
	return ids
}

// WithOwners attaches owner details to each hostel.
func (l *Loader) WithOwners(ctx context.Context, hostels []models.Hostel) ([]HostelWithOwner, error) {
	owners, err := l.Owners(ctx, ownerIDs(hostels))
	if err != nil {
		return nil, err
	}
	out := make([]HostelWithOwner, len(hostels))
	for i, h := range hostels {
		out[i] = HostelWithOwner{Hostel: h, OwnerDetails: owners[h.Owner]}
	}
	return out, nil
}

// Summaries loads hostel cards for ids in the given order, skipping ids
// that no longer exist. withEmail controls whether owner emails are shown.
func (l *Loader) Summaries(ctx context.Context, ids []primitive.ObjectID, withEmail bool) ([]HostelSummary, error) {
	hostels, err := l.hostels.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	owners, err := l.Owners(ctx, ownerIDs(hostels))
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.Hostel, len(hostels))
	for _, h := range hostels {
		byID[h.ID] = h
	}

	out := make([]HostelSummary, 0, len(ids))
	for _, id := range ids {
		h, ok := byID[id]
		if !ok {
			continue
		}
		var owner *OwnerSummary
		if o := owners[h.Owner]; o != nil {
			c := *o
			c.Hostels = nil
			if !withEmail {
				c.Email = ""
			}
			owner = &c
		}
		out = append(out, HostelSummary{
			ID:         h.ID,
			Name:       h.Name,
			Address:    h.Address,
			HostelType: h.HostelType,
			Beds:       h.Beds,
			Food:       h.Food,
			Verified:   h.Verified,
			Images:     h.Images,
			Owner:      owner,
		})
	}
	return out, nil
}

// Complaint inlines a complaint's images.
func (l *Loader) Complaint(ctx context.Context, c models.Complaint) ComplaintView {
	v := ComplaintView{Complaint: c, Images: []models.EncodedImage{}}
	if l.images != nil {
		v.Images = l.images.EncodeAll(ctx, c.Images)
	}
	return v
}
