package hostels

import (
	"reflect"
	"testing"

	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/domain/models"
)

func TestNormalizeMeals(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr bool
	}{
		{"empty", nil, []string{}, false},
		{"all collapses", []string{"lunch", "all", "dinner"}, []string{"all"}, false},
		{"dedupe and case", []string{"Lunch", "lunch", " dinner "}, []string{"lunch", "dinner"}, false},
		{"unknown", []string{"brunch"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMeals(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeMeals() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeMeals() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseMeals(t *testing.T) {
	got, err := parseMeals(`["breakfast","dinner"]`)
	if err != nil || !reflect.DeepEqual(got, []string{"breakfast", "dinner"}) {
		t.Errorf("parseMeals(json) = %v, %v", got, err)
	}
	got, err = parseMeals("breakfast,lunch")
	if err != nil || !reflect.DeepEqual(got, []string{"breakfast", "lunch"}) {
		t.Errorf("parseMeals(csv) = %v, %v", got, err)
	}
	if _, err := parseMeals(`["lunch"`); err == nil {
		t.Error("parseMeals(broken json) error = nil")
	}
}

func TestParseRentStructure(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []models.RentTier
		wantErr bool
	}{
		{"empty", "", []models.RentTier{}, false},
		{"numbers", `[{"studentsPerRoom":2,"rentPerStudent":4500.5}]`,
			[]models.RentTier{{StudentsPerRoom: 2, RentPerStudent: 4500.5}}, false},
		{"strings", `[{"studentsPerRoom":"3","rentPerStudent":"4000"}]`,
			[]models.RentTier{{StudentsPerRoom: 3, RentPerStudent: 4000}}, false},
		{"not an array", `{"studentsPerRoom":2}`, nil, true},
		{"missing rent", `[{"studentsPerRoom":2}]`, nil, true},
		{"zero room", `[{"studentsPerRoom":0,"rentPerStudent":100}]`, nil, true},
		{"garbage", `[{"studentsPerRoom":"two","rentPerStudent":100}]`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRentStructure(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRentStructure() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseRentStructure() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHostelFields_Create(t *testing.T) {
	f := formutil.Fields{
		"name":          "Sunrise <i>PG</i>",
		"address":       "1 Road",
		"hostelType":    "girls",
		"beds":          "20",
		"food":          "true",
		"foodType":      "veg",
		"mealOptions":   `["all","lunch"]`,
		"rentStructure": `[{"studentsPerRoom":2,"rentPerStudent":5000}]`,
		"wifi":          "true",
		"ac":            "false",
	}
	got, bad, err := HostelFields(f, false)
	if err != nil {
		t.Fatalf("HostelFields() error = %v (%v)", err, bad)
	}
	if got["name"] != "Sunrise PG" {
		t.Errorf("name = %v", got["name"])
	}
	if got["beds"] != 20 || got["wifi"] != true || got["ac"] != false || got["tuition"] != false {
		t.Errorf("fields = %+v", got)
	}
	if !reflect.DeepEqual(got["mealOptions"], []string{"all"}) {
		t.Errorf("mealOptions = %v", got["mealOptions"])
	}
}

func TestHostelFields_Rejects(t *testing.T) {
	base := func() formutil.Fields {
		return formutil.Fields{"name": "A", "address": "B", "hostelType": "boys"}
	}
	tests := []struct {
		name  string
		edit  func(formutil.Fields)
		field bool
	}{
		{"missing name", func(f formutil.Fields) { delete(f, "name") }, true},
		{"bad type", func(f formutil.Fields) { f["hostelType"] = "mixed" }, true},
		{"food without type", func(f formutil.Fields) { f["food"] = "true" }, false},
		{"bad meals", func(f formutil.Fields) { f["food"] = "true"; f["foodType"] = "veg"; f["mealOptions"] = "brunch" }, false},
		{"bad beds", func(f formutil.Fields) { f["beds"] = "many" }, false},
		{"bad kitchen", func(f formutil.Fields) { f["kitchenType"] = "robot" }, false},
		{"bad rent", func(f formutil.Fields) { f["rentStructure"] = "{}" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base()
			tt.edit(f)
			_, bad, err := HostelFields(f, false)
			if err == nil {
				t.Fatal("HostelFields() error = nil")
			}
			if (bad != nil) != tt.field {
				t.Errorf("field errors = %v, want present %v", bad, tt.field)
			}
		})
	}
}

func TestHostelFields_Partial(t *testing.T) {
	got, _, err := HostelFields(formutil.Fields{"beds": "12", "solar": "true"}, true)
	if err != nil {
		t.Fatalf("HostelFields() error = %v", err)
	}
	want := map[string]any{"beds": 12, "solar": true}
	if len(got) != len(want) || got["beds"] != 12 || got["solar"] != true {
		t.Errorf("HostelFields(partial) = %+v, want %+v", got, want)
	}
}

func TestCountComplaints(t *testing.T) {
	got := CountComplaints([]models.Complaint{
		{Status: models.ComplaintOpen}, {Status: models.ComplaintOpen},
		{Status: models.ComplaintNoticed}, {Status: models.ComplaintResolved},
	})
	want := ComplaintStats{Total: 4, Open: 2, Noticed: 1, Resolved: 1}
	if got != want {
		t.Errorf("CountComplaints() = %+v, want %+v", got, want)
	}
}

func TestSplitImages(t *testing.T) {
	imgs := []models.Image{{Key: "a"}, {Key: "b"}, {Key: "c"}}
	keep, dropped := splitImages(imgs, []string{"c", "a", "zzz"})
	if len(keep) != 2 || keep[0].Key != "a" || keep[1].Key != "c" {
		t.Errorf("keep = %+v", keep)
	}
	if len(dropped) != 1 || dropped[0].Key != "b" {
		t.Errorf("dropped = %+v", dropped)
	}
}
