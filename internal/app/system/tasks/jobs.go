// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Purger deletes records that are no longer needed and reports how many
// were removed. The OTP, password reset, OAuth state and rate limit stores
// all satisfy it.
type Purger func(ctx context.Context) (int64, error)

// CleanupJob wraps a store purge as an hourly job.
func CleanupJob(name, what string, purge Purger, logger *zap.Logger) Job {
	return Job{
		Name:     name,
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			n, err := purge(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("cleaned up "+what, zap.Int64("deleted", n))
			}
			return nil
		},
	}
}

// AgeDeleter removes records created before cutoff.
type AgeDeleter func(ctx context.Context, cutoff time.Time) (int64, error)

// RetentionJob removes records older than retention once a day. A zero
// retention keeps records forever and the job is not scheduled.
func RetentionJob(name, what string, deleteOlderThan AgeDeleter, retention time.Duration, logger *zap.Logger) (Job, bool) {
	if retention <= 0 {
		return Job{}, false
	}
	return Job{
		Name:     name,
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context) error {
			n, err := deleteOlderThan(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("removed old "+what,
					zap.Int64("deleted", n),
					zap.Duration("retention", retention))
			}
			return nil
		},
	}, true
}

// AuditRetentionJob is the RetentionJob for audit events.
func AuditRetentionJob(deleteOlderThan AgeDeleter, retention time.Duration, logger *zap.Logger) (Job, bool) {
	return RetentionJob("audit-retention", "audit events", deleteOlderThan, retention, logger)
}
