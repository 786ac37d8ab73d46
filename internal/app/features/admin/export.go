package admin

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// sheet is a single-worksheet table ready to be rendered as xlsx.
type sheet struct {
	name    string
	headers []string
	widths  []float64
	rows    [][]any
}

func (h *Handler) exportStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.students.List(r.Context())
	if err != nil {
		h.errLog.Fail(w, r, "failed to list students", err)
		return
	}
	hostels, err := h.hostels.List(r.Context())
	if err != nil {
		h.errLog.Fail(w, r, "failed to list hostels", err)
		return
	}
	names := make(map[string]string, len(hostels))
	for _, hs := range hostels {
		names[hs.ID.Hex()] = hs.Name
	}

	s := sheet{
		name: "Students",
		headers: []string{
			"Name", "Email", "Number", "Gender", "City", "College",
			"Parent Name", "Parent Number", "Wishlist Size", "Wishlist Approved",
			"Admitted Hostel", "Cashback Applied", "Joined",
		},
		widths: []float64{20, 28, 15, 10, 15, 24, 20, 15, 14, 18, 24, 16, 20},
	}
	for _, st := range students {
		admitted := ""
		if st.AdmittedHostel != nil {
			admitted = names[st.AdmittedHostel.Hex()]
		}
		s.rows = append(s.rows, []any{
			st.Name, st.Email, st.Number, st.Gender, st.City, st.College,
			st.ParentName, st.ParentNumber, len(st.Wishlist), yesNo(st.WishlistApproved),
			admitted, yesNo(st.CashbackApplied), formatTime(st.CreatedAt),
		})
	}
	h.writeSheet(w, r, "students.xlsx", s)
}

func (h *Handler) exportHostels(w http.ResponseWriter, r *http.Request) {
	hostels, err := h.hostels.List(r.Context())
	if err != nil {
		h.errLog.Fail(w, r, "failed to list hostels", err)
		return
	}
	owners, err := h.views.Owners(r.Context(), ownerIDsOf(hostels))
	if err != nil {
		h.errLog.Fail(w, r, "failed to load hostel owners", err)
		return
	}

	s := sheet{
		name: "Hostels",
		headers: []string{
			"Name", "Type", "Address", "Number", "Beds", "Owner", "Owner Email",
			"Verified", "Payment", "Average Rating", "Open Complaints", "Registered",
		},
		widths: []float64{24, 10, 32, 15, 8, 20, 28, 10, 10, 15, 16, 20},
	}
	for _, hs := range hostels {
		var ownerName, ownerEmail string
		if o := owners[hs.Owner]; o != nil {
			ownerName, ownerEmail = o.Name, o.Email
		}
		s.rows = append(s.rows, []any{
			hs.Name, hs.HostelType, hs.Address, hs.Number, hs.Beds, ownerName, ownerEmail,
			yesNo(hs.Verified), hs.PaymentStatus, averageRating(hs.Feedback), openComplaints(hs.Complaints),
			formatTime(hs.RegisterDate),
		})
	}
	h.writeSheet(w, r, "hostels.xlsx", s)
}

func (h *Handler) writeSheet(w http.ResponseWriter, r *http.Request, filename string, s sheet) {
	data, err := renderSheet(s)
	if err != nil {
		h.errLog.Fail(w, r, "failed to build spreadsheet", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// renderSheet writes s as an xlsx workbook with a bold frozen header row.
func renderSheet(s sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(s.name)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, header := range s.headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(s.name, cell, header); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(s.name, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("style header %s: %w", cell, err)
		}
		if i < len(s.widths) {
			col, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return nil, err
			}
			if err := f.SetColWidth(s.name, col, col, s.widths[i]); err != nil {
				return nil, fmt.Errorf("column width: %w", err)
			}
		}
	}

	for r, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	if err := f.SetPanes(s.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

func averageRating(fb []models.Feedback) float64 {
	if len(fb) == 0 {
		return 0
	}
	sum := 0
	for _, f := range fb {
		sum += f.Rating
	}
	return float64(sum) / float64(len(fb))
}

func openComplaints(cs []models.Complaint) int {
	n := 0
	for _, c := range cs {
		if c.Status != models.ComplaintResolved {
			n++
		}
	}
	return n
}
