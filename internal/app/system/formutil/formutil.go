// Package formutil reads flat request bodies into string fields.
//
// Clients send the same forms either as JSON objects or as url-encoded or
// multipart forms (the latter whenever images are attached). Read folds
// all three into Fields so handlers validate one shape:
//
//	f, err := formutil.Read(r)
//	if err != nil {
//		jsonutil.BadRequest(w, err.Error())
//		return
//	}
//	hostelID, err := f.ObjectID("hostelId")
//	photos := formutil.Files(r, "images")
package formutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/stayhome/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxMemory is the multipart memory budget; larger parts spill to disk.
const MaxMemory = 32 << 20

// ErrBadBody is returned when the body cannot be parsed.
var ErrBadBody = errors.New("Invalid request body")

// Fields holds the first value of each submitted field.
type Fields map[string]string

// Read parses a JSON object, url-encoded form or multipart form. Nested
// JSON values are kept as their JSON text so callers can decode them
// (rentStructure, existingImages). An empty body yields empty Fields.
func Read(r *http.Request) (Fields, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(MaxMemory); err != nil {
			return nil, ErrBadBody
		}
		return fromValues(r.PostForm), nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, ErrBadBody
		}
		return fromValues(r.PostForm), nil
	}

	var raw map[string]any
	if err := jsonutil.Decode(r, &raw); err != nil {
		if errors.Is(err, jsonutil.ErrEmptyBody) {
			return Fields{}, nil
		}
		return nil, ErrBadBody
	}
	out := make(Fields, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
		case string:
			out[k] = t
		case float64, bool:
			out[k] = fmt.Sprint(t)
		default:
			b, _ := json.Marshal(t)
			out[k] = string(b)
		}
	}
	return out, nil
}

func fromValues(vals map[string][]string) Fields {
	out := make(Fields, len(vals))
	for k, v := range vals {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Get returns the trimmed value of key.
func (f Fields) Get(key string) string {
	return strings.TrimSpace(f[key])
}

// Has reports whether key was submitted at all.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Bool reports whether key is "true" (any case).
func (f Fields) Bool(key string) bool {
	return strings.EqualFold(f.Get(key), "true")
}

// Int parses key as an integer. A missing key is zero.
func (f Fields) Int(key string) (int, error) {
	s := f.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return n, nil
}

// ObjectID parses key as a Mongo ObjectID.
func (f Fields) ObjectID(key string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(f.Get(key))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("Invalid %s", key)
	}
	return id, nil
}

// JSON decodes the JSON text held in key into v. A missing key leaves v
// untouched and returns nil.
func (f Fields) JSON(key string, v any) error {
	s := f.Get(key)
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("Invalid %s format", key)
	}
	return nil
}

// Profile returns the submitted keys among allowed, stripped of HTML.
// Keys that were not submitted are left out; submitted empty values are
// kept so a field can be cleared.
func (f Fields) Profile(allowed []string) bson.M {
	out := bson.M{}
	for _, k := range allowed {
		if f.Has(k) {
			out[k] = htmlsanitize.Text(f[k])
		}
	}
	return out
}

// Files returns the uploaded files for field. Read must have parsed a
// multipart body first.
func Files(r *http.Request, field string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	return r.MultipartForm.File[field]
}

// File returns the first uploaded file for field, or nil.
func File(r *http.Request, field string) *multipart.FileHeader {
	files := Files(r, field)
	if len(files) == 0 {
		return nil
	}
	return files[0]
}
