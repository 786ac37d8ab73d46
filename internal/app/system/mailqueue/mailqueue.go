// Package mailqueue delivers notification emails through the job queue so
// an SMTP outage delays them instead of losing them.
package mailqueue

import (
	"context"
	"errors"
	"time"

	jobstore "github.com/dalemusser/stayhome/internal/app/store/jobs"
	"github.com/dalemusser/stayhome/internal/app/system/jobrunner"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"go.uber.org/zap"
)

// Queue and JobType identify outbox jobs.
const (
	Queue   = "mail"
	JobType = "send_email"
)

const enqueueTimeout = 5 * time.Second

// Sender implements mailer.Sender by enqueueing the email. Send succeeds
// once the email is stored; delivery happens in the job runner.
type Sender struct {
	jobs   *jobstore.Store
	logger *zap.Logger
}

// New returns a queueing Sender backed by jobs.
func New(jobs *jobstore.Store, logger *zap.Logger) *Sender {
	return &Sender{jobs: jobs, logger: logger}
}

// Send implements mailer.Sender.
func (s *Sender) Send(email mailer.Email) error {
	if email.To == "" {
		return errors.New("email has no recipient")
	}
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()

	job, err := s.jobs.Enqueue(ctx, jobstore.EnqueueInput{
		Queue:   Queue,
		Type:    JobType,
		Payload: payload(email),
	})
	if err != nil {
		return err
	}
	s.logger.Debug("email queued",
		zap.String("job_id", job.ID.Hex()),
		zap.String("to", email.To),
		zap.String("subject", email.Subject))
	return nil
}

// Deliver returns the job handler that hands queued emails to direct.
func Deliver(direct mailer.Sender) jobrunner.Handler {
	return func(_ context.Context, p map[string]string) error {
		email := fromPayload(p)
		if email.To == "" {
			return errors.New("queued email has no recipient")
		}
		return direct.Send(email)
	}
}

// Register wires delivery through direct into r.
func Register(r *jobrunner.Runner, direct mailer.Sender) {
	r.Handle(Queue, JobType, Deliver(direct))
}

func payload(e mailer.Email) map[string]string {
	p := map[string]string{
		"to":      e.To,
		"subject": e.Subject,
		"text":    e.TextBody,
	}
	if e.HTMLBody != "" {
		p["html"] = e.HTMLBody
	}
	return p
}

func fromPayload(p map[string]string) mailer.Email {
	return mailer.Email{
		To:       p["to"],
		Subject:  p["subject"],
		TextBody: p["text"],
		HTMLBody: p["html"],
	}
}
