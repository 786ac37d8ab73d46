// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated across all three databases so every problem is
visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, dbs dbset.Set) error {
	var problems []string

	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
		db   *mongo.Database
	}{
		{"students", ensureStudents, dbs.Student},
		{"owners", ensureOwners, dbs.Owner},
		{"hostels", ensureHostels, dbs.Common},
		{"roles", ensureRoles, dbs.Common},
		{"groups", ensureGroups, dbs.Common},
		{"permissions", ensurePermissions, dbs.Common},
		{"rolepermissions", ensureRolePermissions, dbs.Common},
		{"email_otps", ensureEmailOTPs, dbs.Common},
		{"password_resets", ensurePasswordResets, dbs.Common},
		{"oauth_states", ensureOAuthStates, dbs.Common},
		{"rate_limits", ensureRateLimits, dbs.Common},
		{"audit_logs", ensureAuditLogs, dbs.Common},
		{"jobs", ensureJobs, dbs.Common},
		{"request_ledger", ensureRequestLedger, dbs.Common},
		{"api_stats", ensureAPIStats, dbs.Common},
	}
	for _, s := range steps {
		if err := s.fn(ctx, s.db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

// listIndexes returns the collection's indexes keyed by key signature.
// A listing error yields an empty map, so every desired index is created.
func listIndexes(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			if m.Options.Unique != nil {
				desiredUnique = m.Options.Unique
			}
		}
		desiredSig := keySig(m.Keys.(bson.D))

		start := time.Now()
		zap.L().Info("ensuring index",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique))

		// 1) Load existing indexes
		existing := listIndexes(ctx, coll)

		if ex, ok := existing[desiredSig]; ok {
			// Same key pattern exists already.
			if sameBoolPtr(desiredUnique, ex.Unique) {
				// Names aligned (or we don't care) → reuse
				zap.L().Info("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig),
					zap.Bool("unique", ex.Unique != nil && *ex.Unique),
					zap.String("took", time.Since(start).String()))
				continue
			}

			// Options mismatch (e.g., upgrading to unique). Drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				zap.L().Warn("drop existing index failed",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig),
					zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
			if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
				if isDuplicateKeyErr(err) && desiredUnique != nil && *desiredUnique {
					errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), desiredName))
				} else {
					errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
				}
				continue
			}
			zap.L().Info("index dropped and recreated",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Bool("unique", desiredUnique != nil && *desiredUnique),
				zap.String("took", time.Since(start).String()))
			continue
		}

		// 2) No existing index with the same keys: create it.
		if created, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isOptionsConflictErr(err) {
				zap.L().Warn("index ensure failed (options conflict)",
					zap.String("collection", coll.Name()),
					zap.String("name", desiredName),
					zap.String("keys", desiredSig),
					zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
				continue
			}

			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Bool("unique", desiredUnique != nil && *desiredUnique),
				zap.String("took", time.Since(start).String()),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			continue
		} else {
			zap.L().Info("index ensured",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("created_name", created),
				zap.String("keys", desiredSig),
				zap.Bool("unique", desiredUnique != nil && *desiredUnique),
				zap.String("took", time.Since(start).String()))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

// accountIndexes are shared by the students and owners collections.
func accountIndexes(coll string) []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_" + coll + "_email"),
		},
		// Google accounts only; local accounts have no googleId.
		{
			Keys:    bson.D{{Key: "googleId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_" + coll + "_googleid"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index().SetName("idx_" + coll + "_role"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_" + coll + "_created"),
		},
	}
}

func ensureStudents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("students")
	return ensureIndexSet(ctx, c, append(accountIndexes("students"),
		// Owners list the students that shortlisted a hostel
		mongo.IndexModel{
			Keys:    bson.D{{Key: "wishlist", Value: 1}},
			Options: options.Index().SetName("idx_students_wishlist"),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "admittedHostel", Value: 1}},
			Options: options.Index().SetName("idx_students_admitted"),
		},
	))
}

func ensureOwners(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("owners")
	return ensureIndexSet(ctx, c, append(accountIndexes("owners"),
		// Pending approvals queue
		mongo.IndexModel{
			Keys:    bson.D{{Key: "isApproved", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_owners_approved_created"),
		},
	))
}

func ensureHostels(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("hostels")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner", Value: 1}},
			Options: options.Index().SetName("idx_hostels_owner"),
		},
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_hostels_name"),
		},
		{
			Keys:    bson.D{{Key: "verified", Value: 1}},
			Options: options.Index().SetName("idx_hostels_verified"),
		},
		// Complaint status changes address a complaint by its own id
		{
			Keys:    bson.D{{Key: "complaints._id", Value: 1}},
			Options: options.Index().SetName("idx_hostels_complaint_id"),
		},
	})
}

func ensureRoles(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("roles")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_roles_nameci"),
		},
	})
}

func ensureGroups(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("groups")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "moduleId", Value: 1}},
			Options: options.Index().SetName("idx_groups_module"),
		},
	})
}

func ensurePermissions(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("permissions")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One permission row per module per role
		{
			Keys:    bson.D{{Key: "moduleId", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_permissions_module_role"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index().SetName("idx_permissions_role"),
		},
	})
}

func ensureRolePermissions(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("rolepermissions")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_rolepermissions_role"),
		},
	})
}

func ensureEmailOTPs(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("email_otps")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// TTL index for auto-cleanup of expired codes
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_otp_expires_ttl"),
		},
		{
			Keys: bson.D{
				{Key: "purpose", Value: 1},
				{Key: "kind", Value: 1},
				{Key: "email", Value: 1},
			},
			Options: options.Index().SetName("idx_otp_purpose_kind_email"),
		},
	})
}

func ensurePasswordResets(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("password_resets")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_passwordreset_token"),
		},
		{
			Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "account_id", Value: 1}},
			Options: options.Index().SetName("idx_passwordreset_account"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_passwordreset_expires_ttl"),
		},
	})
}

func ensureOAuthStates(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("oauth_states")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_oauth_state"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_oauth_expires_ttl"),
		},
	})
}

func ensureRateLimits(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("rate_limits")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "login_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_ratelimit_login_id"),
		},
		// Stale records disappear a day after the last attempt
		{
			Keys:    bson.D{{Key: "last_attempt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(86400).SetName("idx_ratelimit_ttl"),
		},
	})
}

func ensureAuditLogs(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("audit_logs")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_created"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_category_created"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_user_created"),
		},
	})
}

func ensureJobs(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("jobs")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// ClaimNext: oldest due job in a queue
		{
			Keys:    bson.D{{Key: "queue", Value: 1}, {Key: "status", Value: 1}, {Key: "run_at", Value: 1}},
			Options: options.Index().SetName("idx_jobs_queue_status_runat"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "finished_at", Value: 1}},
			Options: options.Index().SetName("idx_jobs_status_finished"),
		},
	})
}

func ensureRequestLedger(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("request_ledger")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_ledger_created"),
		},
		{
			Keys:    bson.D{{Key: "error_class", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_ledger_class_created"),
		},
		{
			Keys:    bson.D{{Key: "request_id", Value: 1}},
			Options: options.Index().SetName("idx_ledger_request"),
		},
	})
}

func ensureAPIStats(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("api_stats")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One bucket per area and start time; Record upserts on it
		{
			Keys:    bson.D{{Key: "area", Value: 1}, {Key: "start", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_apistats_area_start"),
		},
		{
			Keys:    bson.D{{Key: "start", Value: 1}},
			Options: options.Index().SetName("idx_apistats_start"),
		},
	})
}
