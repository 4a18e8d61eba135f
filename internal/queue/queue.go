// Package queue provides the durable FIFO job queue backed by a Redis list.
//
// Producers LPUSH onto the pending list; the single worker claims the tail
// with a blocking LMOVE onto a processing list and acknowledges with LREM
// once the job is done. Jobs claimed by a worker that died are moved back
// to the pending list on startup, so delivery is at-least-once and
// consumers must tolerate duplicates.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shadenhost/shaden/internal/model"
)

const (
	// PendingKey is the Redis list of jobs awaiting a worker.
	PendingKey = "jobs:pending"
	// ProcessingKey is the Redis list of jobs claimed by the worker.
	ProcessingKey = "jobs:processing"
	// DeadLetterKey collects payloads that failed to decode.
	DeadLetterKey = "jobs:dead"
)

// Queue is the durable job channel between command handlers and the
// provisioning worker.
type Queue struct {
	client *redis.Client
}

// Connect opens a Redis client for the queue and verifies connectivity.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Connection pool settings
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

// New creates a Queue on an existing Redis client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Ping checks Redis connectivity.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (q *Queue) Close() error {
	return q.client.Close()
}

// Claim is a dequeued job plus the raw payload needed to acknowledge it.
type Claim struct {
	Job *model.QueueJob
	raw string
}

// Enqueue appends a job to the tail of the pending list. The write is the
// only durability step; the caller is never blocked on the consumer.
func (q *Queue) Enqueue(ctx context.Context, job *model.QueueJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, PendingKey, string(data)).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Dequeue claims the head job, blocking up to timeout. Returns (nil, nil)
// when the queue stays empty; an empty queue is not an error. The claimed
// payload sits on the processing list until Ack.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Claim, error) {
	raw, err := q.client.BLMove(ctx, PendingKey, ProcessingKey, "RIGHT", "LEFT", timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue job: %w", err)
	}

	var job model.QueueJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Poison payload: park it on the dead-letter list and drop the claim.
		q.client.LPush(ctx, DeadLetterKey, raw)
		q.client.LRem(ctx, ProcessingKey, 1, raw)
		return nil, fmt.Errorf("decode job: %w", err)
	}

	return &Claim{Job: &job, raw: raw}, nil
}

// Ack removes a claimed job from the processing list, marking it done.
func (q *Queue) Ack(ctx context.Context, claim *Claim) error {
	if err := q.client.LRem(ctx, ProcessingKey, 1, claim.raw).Err(); err != nil {
		return fmt.Errorf("ack job: %w", err)
	}
	return nil
}

// RecoverStale moves jobs left on the processing list by a dead worker
// back onto the pending list. Called once at worker startup, before the
// drain loop; with a single worker any entry found here is stale.
func (q *Queue) RecoverStale(ctx context.Context) (int, error) {
	recovered := 0
	for {
		err := q.client.LMove(ctx, ProcessingKey, PendingKey, "RIGHT", "RIGHT").Err()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return recovered, nil
			}
			return recovered, fmt.Errorf("recover stale job: %w", err)
		}
		recovered++
	}
}

// Length returns the number of pending jobs.
func (q *Queue) Length(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, PendingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

// Position returns the 1-based rank of the first pending job owned by
// accountID, counted from the next job to be served. Best effort: the
// rank is a snapshot and shifts under concurrent dequeues; it is
// informational only and never used for correctness.
func (q *Queue) Position(ctx context.Context, accountID int64) (int, bool, error) {
	entries, err := q.client.LRange(ctx, PendingKey, 0, -1).Result()
	if err != nil {
		return 0, false, fmt.Errorf("queue snapshot: %w", err)
	}

	// LPUSH adds at index 0, so the next job to be served is the last entry.
	for i := len(entries) - 1; i >= 0; i-- {
		var job model.QueueJob
		if err := json.Unmarshal([]byte(entries[i]), &job); err != nil {
			continue
		}
		if job.AccountID == accountID {
			return len(entries) - i, true, nil
		}
	}
	return 0, false, nil
}
