// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) in each of the three databases
// and tries to attach JSON-Schema validators. On servers that don't support
// collMod/validators we log and skip.
func EnsureAll(ctx context.Context, dbs dbset.Set) error {
	var problems []string

	ensure := func(db *mongo.Database, coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, db.Name()+"."+coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, db.Name()+"."+coll+": "+err.Error())
		}
	}

	ensure(dbs.Student, "students", accountSchema(studentProperties()))
	ensure(dbs.Owner, "owners", accountSchema(nil))

	ensure(dbs.Common, "hostels", hostelsSchema())
	ensure(dbs.Common, "roles", rolesSchema())
	ensure(dbs.Common, "groups", nil)
	ensure(dbs.Common, "permissions", nil)
	ensure(dbs.Common, "rolepermissions", nil)
	ensure(dbs.Common, "email_otps", nil)
	ensure(dbs.Common, "password_resets", nil)
	ensure(dbs.Common, "oauth_states", nil)
	ensure(dbs.Common, "rate_limits", nil)
	ensure(dbs.Common, "audit_logs", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func accountSchema(extra bson.M) bson.M {
	props := bson.M{
		"email":        bson.M{"bsonType": "string", "minLength": 3, "pattern": "^\\S+@\\S+$"},
		"password":     bson.M{"bsonType": "string"},
		"role":         bson.M{"bsonType": "objectId"},
		"isApproved":   bson.M{"bsonType": "bool"},
		"authProvider": bson.M{"enum": bson.A{"local", "google"}},
		"gender":       bson.M{"enum": bson.A{"male", "female", "other"}},
	}
	for k, v := range extra {
		props[k] = v
	}
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType":   "object",
			"required":   bson.A{"email", "role"},
			"properties": props,
		},
	}
}

func studentProperties() bson.M {
	return bson.M{
		"wishlist": bson.M{
			"bsonType": bson.A{"array", "null"},
			"maxItems": 5,
			"items":    bson.M{"bsonType": "objectId"},
		},
		"hostelVisits": bson.M{
			"bsonType": bson.A{"array", "null"},
			"items": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"status": bson.M{"enum": bson.A{"pending", "accepted", "rejected", "completed", "not_interested"}},
				},
			},
		},
	}
}

func hostelsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "owner", "hostelType"},
			"properties": bson.M{
				"name":          bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"owner":         bson.M{"bsonType": "objectId"},
				"hostelType":    bson.M{"enum": bson.A{"boys", "girls"}},
				"foodType":      bson.M{"enum": bson.A{"veg", "nonveg", "both"}},
				"kitchenType":   bson.M{"enum": bson.A{"inHouse", "Outsourced", "Not available"}},
				"paymentStatus": bson.M{"enum": bson.A{"pending", "paid"}},
				"beds":          bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"mealOptions": bson.M{
					"bsonType": bson.A{"array", "null"},
					"items":    bson.M{"enum": bson.A{"breakfast", "lunch", "dinner", "all"}},
				},
				"feedback": bson.M{
					"bsonType": bson.A{"array", "null"},
					"items": bson.M{
						"bsonType": "object",
						"properties": bson.M{
							"rating": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1, "maximum": 5},
						},
					},
				},
				"complaints": bson.M{
					"bsonType": bson.A{"array", "null"},
					"items": bson.M{
						"bsonType": "object",
						"properties": bson.M{
							"status":        bson.M{"enum": bson.A{"open", "noticed", "resolved"}},
							"complaintType": bson.M{"enum": bson.A{"Rooms", "Washroom", "Wi-Fi", "Cleanliness", "Food"}},
						},
					},
				},
			},
		},
	}
}

func rolesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci"},
			"properties": bson.M{
				"name":    bson.M{"bsonType": "string", "minLength": 1},
				"name_ci": bson.M{"bsonType": "string", "minLength": 1},
			},
		},
	}
}
