// internal/app/system/jobrunner/runner.go
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	jobstore "github.com/dalemusser/stayhome/internal/app/store/jobs"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler processes one job payload. A returned error schedules a retry
// while the job has attempts left.
type Handler func(ctx context.Context, payload map[string]string) error

// Config tunes the runner.
type Config struct {
	WorkersPerQueue int
	PollInterval    time.Duration

	// RetryDelay is multiplied by the attempt number.
	RetryDelay time.Duration

	// JobTimeout bounds a single handler call. Running jobs older than
	// twice this are assumed orphaned and re-queued.
	JobTimeout time.Duration

	MaintenanceInterval time.Duration
	// Retention is how long completed and cancelled jobs are kept.
	Retention time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		WorkersPerQueue:     2,
		PollInterval:        2 * time.Second,
		RetryDelay:          30 * time.Second,
		JobTimeout:          time.Minute,
		MaintenanceInterval: time.Hour,
		Retention:           7 * 24 * time.Hour,
	}
}

// Runner polls queues and dispatches claimed jobs to handlers by type.
type Runner struct {
	store    *jobstore.Store
	cfg      Config
	logger   *zap.Logger
	workerID string

	mu       sync.RWMutex
	handlers map[string]Handler
	queues   []string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a runner. Zero fields in cfg take DefaultConfig values.
func New(store *jobstore.Store, logger *zap.Logger, cfg Config) *Runner {
	def := DefaultConfig()
	if cfg.WorkersPerQueue <= 0 {
		cfg.WorkersPerQueue = def.WorkersPerQueue
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.MaintenanceInterval <= 0 {
		cfg.MaintenanceInterval = def.MaintenanceInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	return &Runner{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		workerID: uuid.NewString()[:8],
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for jobType on queue.
func (r *Runner) Handle(queue, jobType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = h
	for _, q := range r.queues {
		if q == queue {
			return
		}
	}
	r.queues = append(r.queues, queue)
}

// Start launches the workers and the maintenance loop.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return errors.New("job runner already started")
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, q := range r.queues {
		for i := 0; i < r.cfg.WorkersPerQueue; i++ {
			name := fmt.Sprintf("%s-%s-%d", r.workerID, q, i)
			r.wg.Add(1)
			go r.work(ctx, q, name)
		}
	}
	r.wg.Add(1)
	go r.maintain(ctx)

	r.logger.Info("job runner started",
		zap.Strings("queues", r.queues),
		zap.Int("workers_per_queue", r.cfg.WorkersPerQueue))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs, up to ctx.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("job runner stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("job runner stop timed out")
		return ctx.Err()
	}
}

func (r *Runner) work(ctx context.Context, queue, name string) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain everything due before waiting again.
			for ctx.Err() == nil && r.RunNext(ctx, queue, name) {
			}
		}
	}
}

// RunNext claims and runs one due job from queue. It reports whether a
// job was found.
func (r *Runner) RunNext(ctx context.Context, queue, workerID string) bool {
	claimCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	job, err := r.store.ClaimNext(claimCtx, queue, workerID)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("claim job failed", zap.String("queue", queue), zap.Error(err))
		}
		return false
	}
	if job == nil {
		return false
	}

	r.mu.RLock()
	h, ok := r.handlers[job.Type]
	r.mu.RUnlock()

	var runErr error
	start := time.Now()
	if !ok {
		runErr = fmt.Errorf("no handler for job type %q", job.Type)
	} else {
		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		runErr = h(jobCtx, job.Payload)
		cancel()
	}

	// Record the outcome even when ctx is being cancelled for shutdown.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fields := []zap.Field{
		zap.String("job_id", job.ID.Hex()),
		zap.String("job_type", job.Type),
		zap.Int("attempt", job.Attempts),
		zap.Duration("duration", time.Since(start)),
	}

	if runErr != nil {
		retry, err := r.store.Fail(saveCtx, job, runErr.Error(), r.cfg.RetryDelay*time.Duration(job.Attempts))
		if err != nil {
			r.logger.Error("record job failure failed", append(fields, zap.Error(err))...)
			return true
		}
		if retry {
			r.logger.Warn("job failed, will retry", append(fields, zap.Error(runErr))...)
		} else {
			r.logger.Error("job failed permanently", append(fields, zap.Error(runErr))...)
		}
		return true
	}

	if err := r.store.Complete(saveCtx, job.ID); err != nil {
		r.logger.Error("record job completion failed", append(fields, zap.Error(err))...)
		return true
	}
	r.logger.Debug("job completed", fields...)
	return true
}

func (r *Runner) maintain(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.MaintenanceInterval)
	defer ticker.Stop()
	r.Maintain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Maintain(ctx)
		}
	}
}

// Maintain re-queues orphaned running jobs and deletes finished jobs past
// retention.
func (r *Runner) Maintain(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if n, err := r.store.RequeueStale(opCtx, 2*r.cfg.JobTimeout); err != nil {
		r.logger.Error("requeue stale jobs failed", zap.Error(err))
	} else if n > 0 {
		r.logger.Info("requeued stale jobs", zap.Int64("count", n))
	}

	cutoff := time.Now().Add(-r.cfg.Retention)
	if n, err := r.store.DeleteFinishedBefore(opCtx, cutoff); err != nil {
		r.logger.Error("delete finished jobs failed", zap.Error(err))
	} else if n > 0 {
		r.logger.Info("deleted finished jobs", zap.Int64("count", n))
	}
}
