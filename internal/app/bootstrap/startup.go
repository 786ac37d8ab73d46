// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	apistatsstore "github.com/dalemusser/stayhome/internal/app/store/apistats"
	"github.com/dalemusser/stayhome/internal/app/store/audit"
	jobstore "github.com/dalemusser/stayhome/internal/app/store/jobs"
	ledgerstore "github.com/dalemusser/stayhome/internal/app/store/ledger"
	"github.com/dalemusser/stayhome/internal/app/store/oauthstate"
	otpstore "github.com/dalemusser/stayhome/internal/app/store/otp"
	"github.com/dalemusser/stayhome/internal/app/store/passwordreset"
	"github.com/dalemusser/stayhome/internal/app/store/ratelimit"
	"github.com/dalemusser/stayhome/internal/app/system/jobrunner"
	"github.com/dalemusser/stayhome/internal/app/system/mailqueue"
	"github.com/dalemusser/stayhome/internal/app/system/tasks"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs once after DB connections and schema setup are complete,
// before the HTTP handler is built. It starts the background cleanup jobs
// and the email outbox workers.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	startTaskRunner(appCfg, deps, logger)
	return startJobRunner(appCfg, deps, logger)
}

// jobRunner delivers queued jobs, currently the email outbox.
var jobRunner *jobrunner.Runner

func startJobRunner(appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	jobRunner = jobrunner.New(jobstore.New(deps.DBs.Common), logger, jobrunner.Config{
		WorkersPerQueue: appCfg.MailQueueWorkers,
		RetryDelay:      appCfg.MailQueueRetryDelay,
		Retention:       appCfg.JobRetention,
	})
	mailqueue.Register(jobRunner, deps.Mailer)
	if err := jobRunner.Start(); err != nil {
		logger.Error("job runner failed to start", zap.Error(err))
		return err
	}
	return nil
}

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

// startTaskRunner registers the cleanup jobs and starts them.
func startTaskRunner(appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	common := deps.DBs.Common
	taskRunner = tasks.New(logger)

	taskRunner.Register(tasks.CleanupJob("otp-cleanup", "expired OTPs",
		otpstore.New(common).DeleteExpired, logger))
	taskRunner.Register(tasks.CleanupJob("password-reset-cleanup", "stale password resets",
		passwordreset.New(common, appCfg.ResetTokenExpiry).DeleteStale, logger))
	taskRunner.Register(tasks.CleanupJob("oauth-state-cleanup", "expired OAuth states",
		oauthstate.New(common).DeleteExpired, logger))
	taskRunner.Register(tasks.CleanupJob("rate-limit-cleanup", "stale login attempts",
		ratelimit.New(common, appCfg.RateLimitLoginAttempts, appCfg.RateLimitLoginWindow, appCfg.RateLimitLoginLockout).DeleteStale, logger))

	if job, ok := tasks.AuditRetentionJob(audit.New(common).DeleteOlderThan, appCfg.AuditRetention, logger); ok {
		taskRunner.Register(job)
	}
	if job, ok := tasks.RetentionJob("ledger-retention", "request ledger entries",
		ledgerstore.New(common).DeleteOlderThan, appCfg.LedgerRetention, logger); ok {
		taskRunner.Register(job)
	}
	if job, ok := tasks.RetentionJob("api-stats-retention", "API stats buckets",
		apistatsstore.New(common, 0).DeleteOlderThan, appCfg.APIStatsRetention, logger); ok {
		taskRunner.Register(job)
	}

	taskRunner.Start()
}
