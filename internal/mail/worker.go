package mail

import (
	"context"
	"log/slog"
	"time"
)

// Worker drains the mail queue, delivering each job with a real Sender.
type Worker struct {
	queue   *Queue
	sender  Sender
	logger  *slog.Logger
	poll    time.Duration
	backoff time.Duration
}

// NewWorker creates a worker that delivers jobs from q through sender.
func NewWorker(q *Queue, sender Sender, logger *slog.Logger) *Worker {
	return &Worker{
		queue:   q,
		sender:  sender,
		logger:  logger,
		poll:    5 * time.Second,
		backoff: RetryBackoff,
	}
}

// ProcessOne waits for one job and delivers it. It reports whether a job
// was handled; a failed delivery is retried or dead-lettered.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, err := w.queue.Dequeue(ctx, w.poll)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	if err := w.sender.Send(ctx, job.Message); err != nil {
		w.logger.Error("mail job failed",
			slog.String("job_id", job.ID),
			slog.Int("attempt", job.Attempt+1),
			slog.String("error", err.Error()),
		)
		if reErr := w.queue.Retry(ctx, job, err); reErr != nil {
			w.logger.Error("retry enqueue failed", slog.String("job_id", job.ID), slog.String("error", reErr.Error()))
		}
		return true, err
	}

	w.logger.Info("mail delivered", slog.String("job_id", job.ID), slog.String("to", job.Message.To))
	return true, nil
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("mail worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("mail worker stopping")
			return
		default:
		}

		_, err := w.ProcessOne(ctx)
		if err != nil && ctx.Err() == nil {
			w.sleep(ctx, w.backoff)
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
