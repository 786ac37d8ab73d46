// Package cascade removes hostels and students together with every
// reference other documents hold to them. Database writes run through
// txn.RunMulti; stored images are deleted only after the writes commit.
package cascade

import (
	"context"
	"errors"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	hostelstore "github.com/dalemusser/stayhome/internal/app/store/hostels"
	ownerstore "github.com/dalemusser/stayhome/internal/app/store/owners"
	studentstore "github.com/dalemusser/stayhome/internal/app/store/students"
	"github.com/dalemusser/stayhome/internal/app/system/txn"
	"github.com/dalemusser/stayhome/internal/app/system/uploads"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.uber.org/zap"
)

// ErrStudentsAdmitted is returned when a hostel still has admitted students.
var ErrStudentsAdmitted = errors.New("Hostel cannot be deleted because students are admitted.")

// HostelRemoval reports what a hostel removal touched.
type HostelRemoval struct {
	Owner    bool  `json:"owner"`
	Students int64 `json:"students"`
	Images   int   `json:"images"`
}

// StudentRemoval reports what a student removal touched.
type StudentRemoval struct {
	Hostels int64 `json:"hostels"`
	Images  int   `json:"images"`
}

// Remover runs the cascades.
type Remover struct {
	dbs      dbset.Set
	hostels  *hostelstore.Store
	students *studentstore.Store
	owners   *ownerstore.Store
	accounts *accountstore.Store
	images   *uploads.Images
	logger   *zap.Logger
}

// New creates a Remover.
func New(dbs dbset.Set, images *uploads.Images, logger *zap.Logger) *Remover {
	return &Remover{
		dbs:      dbs,
		hostels:  hostelstore.New(dbs.Common),
		students: studentstore.New(dbs.Student),
		owners:   ownerstore.New(dbs.Owner),
		accounts: accountstore.New(dbs.Student, models.KindStudent),
		images:   images,
		logger:   logger,
	}
}

// hostelImages lists every stored image a hostel document references.
func hostelImages(h *models.Hostel) []models.Image {
	out := append([]models.Image{}, h.Images...)
	for _, c := range h.Complaints {
		out = append(out, c.Images...)
	}
	return out
}

// Hostel deletes h, pulls it from its owner and from every student's
// wishlist and visit list. It refuses while students are admitted.
func (rm *Remover) Hostel(ctx context.Context, h *models.Hostel) (HostelRemoval, error) {
	var out HostelRemoval
	admitted, err := rm.students.CountAdmittedTo(ctx, h.ID)
	if err != nil {
		return out, err
	}
	if admitted > 0 {
		return out, ErrStudentsAdmitted
	}

	err = txn.RunMulti(ctx, rm.dbs, rm.logger, func(ctx context.Context) error {
		out = HostelRemoval{}
		if err := rm.hostels.Delete(ctx, h.ID); err != nil {
			return err
		}
		switch err := rm.owners.RemoveHostel(ctx, h.Owner, h.ID); {
		case err == nil:
			out.Owner = true
		case !errors.Is(err, ownerstore.ErrNotFound):
			return err
		}
		n, err := rm.students.PullHostelEverywhere(ctx, h.ID)
		if err != nil {
			return err
		}
		out.Students = n
		return nil
	})
	if err != nil {
		return HostelRemoval{}, err
	}

	imgs := hostelImages(h)
	rm.images.DeleteAll(ctx, imgs)
	out.Images = len(imgs)
	rm.logger.Info("hostel removed",
		zap.String("hostel_id", h.ID.Hex()),
		zap.Int64("students_updated", out.Students),
		zap.Int("images_deleted", out.Images))
	return out, nil
}

// StudentImages lists the stored images that belong to st: its own
// documents and the photos attached to its complaints.
func (rm *Remover) StudentImages(ctx context.Context, st *models.Student) ([]models.Image, error) {
	touched, err := rm.hostels.ListWithStudentActivity(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	var imgs []models.Image
	for _, h := range touched {
		for _, c := range h.Complaints {
			if c.Student == st.ID {
				imgs = append(imgs, c.Images...)
			}
		}
	}
	if !st.PassportPhoto.IsZero() {
		imgs = append(imgs, *st.PassportPhoto)
	}
	if !st.AdmissionReceipt.IsZero() {
		imgs = append(imgs, *st.AdmissionReceipt)
	}
	return imgs, nil
}

// Student deletes st after pulling its complaints, ratings and visit
// requests from every hostel.
func (rm *Remover) Student(ctx context.Context, st *models.Student) (StudentRemoval, error) {
	var out StudentRemoval
	imgs, err := rm.StudentImages(ctx, st)
	if err != nil {
		return out, err
	}

	err = txn.RunMulti(ctx, rm.dbs, rm.logger, func(ctx context.Context) error {
		n, err := rm.hostels.PullStudentActivity(ctx, st.ID)
		if err != nil {
			return err
		}
		out.Hostels = n
		return rm.accounts.Delete(ctx, st.ID)
	})
	if err != nil {
		return StudentRemoval{}, err
	}

	rm.images.DeleteAll(ctx, imgs)
	out.Images = len(imgs)
	rm.logger.Info("student removed",
		zap.String("student_id", st.ID.Hex()),
		zap.Int64("hostels_updated", out.Hostels),
		zap.Int("images_deleted", out.Images))
	return out, nil
}
