package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
)

const (
	// QueueKey is the Redis list holding pending mail jobs.
	QueueKey = "vem:mail"
	// DeadLetterKey receives jobs that failed MaxAttempts times.
	DeadLetterKey = "vem:mail:dlq"
	// MaxAttempts is how many deliveries are tried before a job is dead-lettered.
	MaxAttempts = 3
	// RetryBackoff is how long the worker pauses after a failed delivery.
	RetryBackoff = 10 * time.Second
)

// Job is the queued envelope around a Message.
type Job struct {
	ID        string    `json:"id"`
	Message   Message   `json:"message"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"createdAt"`
	LastError string    `json:"lastError,omitempty"`
}

// Queue is a Redis-list job queue for outgoing mail. It implements Sender,
// so the API enqueues with the same call it would use to send inline.
type Queue struct {
	client *redis.Client
	logger *slog.Logger
}

// NewQueue creates a Redis-backed mail queue.
func NewQueue(client *redis.Client, logger *slog.Logger) *Queue {
	return &Queue{client: client, logger: logger}
}

// NewRedisClient connects to Redis and verifies connectivity.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("mail: redis ping: %w", err)
	}
	return rdb, nil
}

// Send enqueues msg for the worker.
func (q *Queue) Send(ctx context.Context, msg Message) error {
	job := Job{
		ID:        xid.New().String(),
		Message:   msg,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.push(ctx, QueueKey, &job); err != nil {
		return err
	}
	q.logger.Debug("enqueued mail job", slog.String("job_id", job.ID), slog.String("to", msg.To))
	return nil
}

// Dequeue blocks up to timeout for the next job. It returns (nil, nil) when
// the wait times out, or when the popped entry is not a valid job (which is
// logged and dropped).
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("mail: blpop: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("dropping invalid mail job", slog.String("raw", result[1]), slog.String("error", err.Error()))
		return nil, nil
	}
	return &job, nil
}

// Retry records the failure and re-enqueues the job, or dead-letters it
// once it has been tried MaxAttempts times.
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) error {
	job.Attempt++
	if cause != nil {
		job.LastError = cause.Error()
	}

	if job.Attempt >= MaxAttempts {
		if err := q.push(ctx, DeadLetterKey, job); err != nil {
			return err
		}
		q.logger.Warn("mail job moved to DLQ", slog.String("job_id", job.ID), slog.Int("attempt", job.Attempt))
		return nil
	}

	if err := q.push(ctx, QueueKey, job); err != nil {
		return err
	}
	q.logger.Info("mail job retried", slog.String("job_id", job.ID), slog.Int("attempt", job.Attempt))
	return nil
}

// Len reports how many jobs are waiting in key.
func (q *Queue) Len(ctx context.Context, key string) (int64, error) {
	return q.client.LLen(ctx, key).Result()
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("mail: marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("mail: rpush %s: %w", key, err)
	}
	return nil
}
