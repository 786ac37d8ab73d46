// internal/app/features/hostels/parse.go
package hostels

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stayhome/internal/app/system/inputval"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	errRentStructure = errors.New("Invalid rent structure format")
	errMealOptions   = errors.New("Invalid meal options format")
	errFoodType      = errors.New("Food type is required when food is provided")
)

// NormalizeMeals validates meal options. "all" collapses the list to
// ["all"]; duplicates are dropped.
func NormalizeMeals(opts []string) ([]string, error) {
	out := make([]string, 0, len(opts))
	seen := map[string]bool{}
	for _, o := range opts {
		o = strings.ToLower(strings.TrimSpace(o))
		switch o {
		case "":
			continue
		case models.MealAll:
			return []string{models.MealAll}, nil
		case models.MealBreakfast, models.MealLunch, models.MealDinner:
		default:
			return nil, errMealOptions
		}
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	return out, nil
}

// parseMeals reads mealOptions sent as a JSON array, or as a single
// comma-separated string.
func parseMeals(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, nil
	}
	var list []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, errMealOptions
		}
	} else {
		list = strings.Split(raw, ",")
	}
	return NormalizeMeals(list)
}

// flexNumber accepts a JSON number or a numeric string.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 {
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = flexNumber(f)
	return nil
}

// ParseRentStructure parses a JSON array of {studentsPerRoom, rentPerStudent}.
// Both values must be positive.
func ParseRentStructure(raw string) ([]models.RentTier, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []models.RentTier{}, nil
	}
	var items []struct {
		StudentsPerRoom flexNumber `json:"studentsPerRoom"`
		RentPerStudent  flexNumber `json:"rentPerStudent"`
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, errRentStructure
	}
	out := make([]models.RentTier, 0, len(items))
	for _, it := range items {
		if it.StudentsPerRoom < 1 || it.RentPerStudent <= 0 {
			return nil, errRentStructure
		}
		out = append(out, models.RentTier{
			StudentsPerRoom: int(it.StudentsPerRoom),
			RentPerStudent:  float64(it.RentPerStudent),
		})
	}
	return out, nil
}

// hostelInput is the validated text part of an add or update request.
type hostelInput struct {
	Name        string `json:"name" validate:"required,max=200" label:"Name"`
	Number      string `json:"number" validate:"max=30" label:"Contact number"`
	Address     string `json:"address" validate:"required,max=500" label:"Address"`
	HostelType  string `json:"hostelType" validate:"required,hosteltype" label:"Hostel type"`
	FoodType    string `json:"foodType" validate:"foodtype" label:"Food type"`
	KitchenType string `json:"kitchenType" label:"Kitchen type"`
}

// boolFields are hostel amenities sent as "true"/"false".
var boolFields = []string{"wifi", "ac", "mess", "solar", "studyRoom", "tuition"}

// HostelFields turns a submitted form into hostel fields. When partial is
// true only submitted keys are returned, for updates; otherwise every
// field is set and the required ones are enforced.
func HostelFields(f formutil.Fields, partial bool) (bson.M, map[string]string, error) {
	in := hostelInput{
		Name:        htmlsanitize.Text(f.Get("name")),
		Number:      htmlsanitize.Text(f.Get("number")),
		Address:     htmlsanitize.Text(f.Get("address")),
		HostelType:  f.Get("hostelType"),
		FoodType:    f.Get("foodType"),
		KitchenType: f.Get("kitchenType"),
	}
	if !partial {
		if res := inputval.Validate(in); res.HasErrors() {
			return nil, res.Fields(), errors.New(res.First())
		}
	} else if in.HostelType != "" && !models.IsValidHostelType(in.HostelType) {
		return nil, nil, fmt.Errorf("Hostel type must be one of: %s.", strings.Join(models.HostelTypes(), ", "))
	}
	if in.KitchenType != "" && !models.IsValidKitchenType(in.KitchenType) {
		return nil, nil, errors.New("Invalid kitchen type")
	}

	out := bson.M{}
	set := func(key string, v any) {
		if !partial || f.Has(key) {
			out[key] = v
		}
	}
	set("name", in.Name)
	set("number", in.Number)
	set("address", in.Address)
	set("hostelType", in.HostelType)
	set("kitchenType", in.KitchenType)

	for _, key := range []string{"beds", "studentsPerRoom"} {
		n, err := f.Int(key)
		if err != nil || n < 0 {
			return nil, nil, fmt.Errorf("%s must be a non-negative number", key)
		}
		set(key, n)
	}
	for _, key := range boolFields {
		set(key, f.Bool(key))
	}

	if !partial || f.Has("food") || f.Has("foodType") || f.Has("mealOptions") {
		food := f.Bool("food")
		out["food"] = food
		out["foodType"] = ""
		out["mealOptions"] = []string{}
		if food {
			if in.FoodType == "" {
				return nil, nil, errFoodType
			}
			if !models.IsValidFoodType(in.FoodType) {
				return nil, nil, fmt.Errorf("Food type must be one of: %s.", strings.Join(models.FoodTypes(), ", "))
			}
			meals, err := parseMeals(f.Get("mealOptions"))
			if err != nil {
				return nil, nil, err
			}
			out["foodType"] = in.FoodType
			out["mealOptions"] = meals
		}
	}

	if !partial || f.Has("rentStructure") {
		rent, err := ParseRentStructure(f.Get("rentStructure"))
		if err != nil {
			return nil, nil, err
		}
		out["rentStructure"] = rent
	}
	return out, nil, nil
}
