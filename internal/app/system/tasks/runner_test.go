package tasks_test

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/stayhome/internal/app/system/tasks"
	"go.uber.org/zap"
)

func TestRunner_RunsImmediatelyAndStops(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	ran := make(chan struct{}, 1)
	runner.Register(tasks.Job{
		Name:     "purge",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	})
	runner.Start()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run on start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := runner.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestRunner_StopTimesOutOnStuckJob(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	runner.Register(tasks.Job{
		Name:     "stuck",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			close(started)
			<-release // ignores ctx
			return nil
		},
	})
	runner.Start()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := runner.Stop(ctx); err != context.DeadlineExceeded {
		t.Errorf("Stop() error = %v, want DeadlineExceeded", err)
	}
}

func TestRunner_CancelsJobContext(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	cancelled := make(chan struct{})
	runner.Register(tasks.Job{
		Name:     "waiter",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			close(cancelled)
			return ctx.Err()
		},
	})
	runner.Start()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := runner.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Error("job context was not cancelled")
	}
}

func TestRunner_RunOnceAndJobs(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	var count atomic.Int32
	for _, name := range []string{"otp-cleanup", "oauth-state-cleanup"} {
		runner.Register(tasks.Job{
			Name:     name,
			Interval: time.Hour,
			Run: func(ctx context.Context) error {
				count.Add(1)
				return nil
			},
		})
	}

	if got := runner.Jobs(); !reflect.DeepEqual(got, []string{"otp-cleanup", "oauth-state-cleanup"}) {
		t.Errorf("Jobs() = %v", got)
	}
	if err := runner.RunOnce(context.Background(), "otp-cleanup"); err != nil {
		t.Errorf("RunOnce() error = %v", err)
	}
	if err := runner.RunOnce(context.Background(), "missing"); err != nil {
		t.Errorf("RunOnce(missing) error = %v, want nil", err)
	}
	if count.Load() != 1 {
		t.Errorf("ran %d times, want 1", count.Load())
	}
}
