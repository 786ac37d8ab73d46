package admin

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/dalemusser/stayhome/internal/app/store/audit"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/dalemusser/stayhome/internal/testutil"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson"
)

func TestListOwners(t *testing.T) {
	f := newFixture(t)
	owner := f.Owner(t, "owner@test.com")
	f.Hostel(t, owner, "Lakeside")
	f.Hostel(t, owner, "Hilltop")

	rec := f.do(testutil.NewRequest(http.MethodGet, "/api/admin/owners"))
	rec.AssertStatus(t, http.StatusOK)
	var list []adminOwner
	rec.Decode(t, &list)
	if len(list) != 1 || len(list[0].Hostels) != 2 {
		t.Fatalf("owners = %+v, want one owner with two hostels", list)
	}
	if list[0].Hostels[0].Name == "" {
		t.Error("hostels should be expanded documents")
	}
}

func TestOwnerApproval(t *testing.T) {
	f := newFixture(t)
	approved := f.Owner(t, "approved@test.com")
	pending := f.Account(t, models.KindOwner, "pending@test.com", models.RoleHostelOwner, bson.M{"name": "Pending"})

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := f.ownerStore().Update(ctx, pending, bson.M{"isApproved": false}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	rec := f.do(testutil.NewRequest(http.MethodGet, "/api/admin/owners/pending"))
	rec.AssertStatus(t, http.StatusOK)
	var list []adminOwner
	rec.Decode(t, &list)
	if len(list) != 1 || list[0].ID != pending {
		t.Fatalf("pending = %+v, want only %s", list, pending.Hex())
	}

	rec = f.do(testutil.NewRequest(http.MethodPost, "/api/admin/owners/"+approved.Hex()+"/approve"))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "already approved")

	rec = f.do(testutil.NewRequest(http.MethodPost, "/api/admin/owners/"+pending.Hex()+"/approve"))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Owner approved successfully")
	if n := f.auditCount(t, audit.EventOwnerApproved); n != 1 {
		t.Errorf("owner_approved events = %d, want 1", n)
	}
	if got := f.Mail.Last(); got.To != "pending@test.com" || !strings.Contains(got.Subject, "approved") {
		t.Errorf("last email = %q %q, want approval notice", got.To, got.Subject)
	}

	rec = f.do(testutil.NewRequest(http.MethodGet, "/api/admin/owners/pending"))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "[]")
}

func TestUpdateOwner_Admin(t *testing.T) {
	f := newFixture(t)
	owner := f.Owner(t, "owner@test.com")

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"unknown owner", map[string]any{"ownerId": "5f1d7f3b2a0e4c1a9c3b2a10"}, http.StatusNotFound},
		{"bad gender", map[string]any{"ownerId": owner.Hex(), "gender": "none"}, http.StatusBadRequest},
		{"updates", map[string]any{"ownerId": owner.Hex(), "address": "2 Mill Lane", "isApproved": false}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(testutil.JSONRequest(http.MethodPut, "/api/admin/owners", tt.body))
			rec.AssertStatus(t, tt.want)
		})
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	o, err := f.ownerStore().GetByID(ctx, owner)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if o.Address != "2 Mill Lane" || o.IsApproved {
		t.Errorf("owner = %+v, want new address and unapproved", o)
	}
}

func TestExports(t *testing.T) {
	f := newFixture(t)
	owner := f.Owner(t, "owner@test.com")
	hostel := f.Hostel(t, owner, "Lakeside")
	student := f.Student(t, "s@test.com")

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := f.studentStore().Admit(ctx, student, hostel.ID); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}

	tests := []struct {
		target string
		sheet  string
		header string
		cell   string
	}{
		{"/api/admin/export/students.xlsx", "Students", "Admitted Hostel", "Lakeside"},
		{"/api/admin/export/hostels.xlsx", "Hostels", "Owner Email", "owner@test.com"},
	}
	for _, tt := range tests {
		t.Run(tt.sheet, func(t *testing.T) {
			rec := f.do(testutil.NewRequest(http.MethodGet, tt.target))
			rec.AssertStatus(t, http.StatusOK)
			if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
				t.Errorf("Content-Type = %q", ct)
			}

			wb, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
			if err != nil {
				t.Fatalf("OpenReader() error = %v", err)
			}
			defer wb.Close()
			rows, err := wb.GetRows(tt.sheet)
			if err != nil {
				t.Fatalf("GetRows() error = %v", err)
			}
			if len(rows) < 2 {
				t.Fatalf("rows = %v, want header and data", rows)
			}
			if !contains(rows[0], tt.header) {
				t.Errorf("header %v missing %q", rows[0], tt.header)
			}
			found := false
			for _, row := range rows[1:] {
				if contains(row, tt.cell) {
					found = true
				}
			}
			if !found {
				t.Errorf("no row contains %q: %v", tt.cell, rows[1:])
			}
		})
	}
}

func contains(row []string, want string) bool {
	for _, c := range row {
		if c == want {
			return true
		}
	}
	return false
}
