// Package worker runs the single provisioning consumer that drains the
// job queue and drives the external panel.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shadenhost/shaden/internal/model"
	"github.com/shadenhost/shaden/internal/panel"
	"github.com/shadenhost/shaden/internal/queue"
	"github.com/shadenhost/shaden/internal/repository"
)

// DefaultDequeueTimeout bounds each blocking claim so shutdown is prompt.
const DefaultDequeueTimeout = 5 * time.Second

// DefaultErrorPause spaces out claim attempts while the queue itself is
// failing, so an unreachable Redis does not spin the loop.
const DefaultErrorPause = 2 * time.Second

// Provisioner is the slice of the panel client the worker needs.
type Provisioner interface {
	CreateServer(ctx context.Context, server *model.Server) (int64, error)
	DeleteServer(ctx context.Context, externalID int64) error
}

// Store is the slice of the repository the worker needs.
type Store interface {
	GetServer(ctx context.Context, id uuid.UUID) (*model.Server, error)
	MarkServerProvisioned(ctx context.Context, id uuid.UUID, externalID int64) error
}

// JobQueue is the claim/ack surface of the job queue.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Claim, error)
	Ack(ctx context.Context, claim *queue.Claim) error
	RecoverStale(ctx context.Context) (int, error)
}

// Worker is the single queue consumer. Jobs are processed strictly in
// claim order, one at a time.
type Worker struct {
	queue          JobQueue
	store          Store
	panel          Provisioner
	logger         *slog.Logger
	dequeueTimeout time.Duration
	errorPause     time.Duration
	started        bool
}

// New creates a provisioning worker.
func New(q JobQueue, store Store, p Provisioner, logger *slog.Logger) *Worker {
	return &Worker{
		queue:          q,
		store:          store,
		panel:          p,
		logger:         logger.With("component", "worker"),
		dequeueTimeout: DefaultDequeueTimeout,
		errorPause:     DefaultErrorPause,
	}
}

// SetDequeueTimeout overrides the default claim timeout.
func (w *Worker) SetDequeueTimeout(d time.Duration) {
	if d > 0 {
		w.dequeueTimeout = d
	}
}

// SetErrorPause overrides the pause between claim attempts after a
// queue error.
func (w *Worker) SetErrorPause(d time.Duration) {
	if d > 0 {
		w.errorPause = d
	}
}

// Run starts the drain loop. Blocks until context is cancelled. Jobs
// claimed by a previous run that died mid-flight are requeued first.
func (w *Worker) Run(ctx context.Context) error {
	if w.started {
		return errors.New("worker already started")
	}
	w.started = true

	recovered, err := w.queue.RecoverStale(ctx)
	if err != nil {
		return fmt.Errorf("recover stale jobs: %w", err)
	}
	if recovered > 0 {
		w.logger.Warn("requeued stale jobs from previous run", "count", recovered)
	}

	w.logger.Info("provisioning worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("provisioning worker stopping")
			return ctx.Err()
		default:
		}

		claim, err := w.queue.Dequeue(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("dequeue error", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.errorPause):
			}
			continue
		}
		if claim == nil {
			continue
		}

		w.handle(ctx, claim.Job)

		// The claim is acknowledged regardless of handler outcome: a job
		// that failed against the panel is not retried, only surfaced in
		// the server record and the logs.
		if err := w.queue.Ack(ctx, claim); err != nil {
			w.logger.Error("ack error", "job_id", claim.Job.ID, "error", err)
		}
	}
}

// handle dispatches a claimed job. Handler errors are logged, never
// returned; a bad job must not wedge the queue.
func (w *Worker) handle(ctx context.Context, job *model.QueueJob) {
	log := w.logger.With("job_id", job.ID, "job_type", job.Type, "account_id", job.AccountID)

	var err error
	switch job.Type {
	case model.JobCreateServer:
		err = w.handleCreate(ctx, job)
	case model.JobDeleteServer:
		err = w.handleDelete(ctx, job)
	default:
		log.Error("unknown job type, dropping")
		return
	}

	if err != nil {
		log.Error("job failed", "error", err)
		return
	}
	log.Info("job done")
}

// handleCreate provisions the panel instance for a purchased server and
// records the panel-assigned id. If provisioning fails the record stays
// in Creating with the purchase already debited; an operator resolves it.
func (w *Worker) handleCreate(ctx context.Context, job *model.QueueJob) error {
	var payload model.CreateServerPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode create payload: %w", err)
	}

	server, err := w.store.GetServer(ctx, payload.ServerID)
	if err != nil {
		if errors.Is(err, repository.ErrServerNotFound) {
			// Record deleted between enqueue and claim; nothing to build.
			w.logger.Warn("create job for missing server", "server_id", payload.ServerID)
			return nil
		}
		return fmt.Errorf("load server: %w", err)
	}

	if server.Status != model.StatusCreating || server.ExternalID != nil {
		// Redelivered job; the first delivery already provisioned it.
		return nil
	}

	externalID, err := w.panel.CreateServer(ctx, server)
	if err != nil {
		return fmt.Errorf("panel create for server %s: %w", server.ID, err)
	}

	if err := w.store.MarkServerProvisioned(ctx, server.ID, externalID); err != nil {
		if errors.Is(err, repository.ErrServerNotFound) {
			// Lost the race to a duplicate delivery; the panel instance
			// from this attempt is orphaned and must be reaped.
			w.logger.Warn("duplicate provision detected, deleting extra instance",
				"server_id", server.ID, "external_id", externalID)
			if delErr := w.panel.DeleteServer(ctx, externalID); delErr != nil {
				return fmt.Errorf("reap duplicate instance %d: %w", externalID, delErr)
			}
			return nil
		}
		return fmt.Errorf("record external id: %w", err)
	}
	return nil
}

// handleDelete tears down the panel instance for a deleted server. The
// record is already gone; only the external resource remains.
func (w *Worker) handleDelete(ctx context.Context, job *model.QueueJob) error {
	var payload model.DeleteServerPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode delete payload: %w", err)
	}

	if payload.ExternalID == nil {
		// Never provisioned, nothing on the panel to remove.
		return nil
	}

	if err := w.panel.DeleteServer(ctx, *payload.ExternalID); err != nil {
		return fmt.Errorf("panel delete for server %s: %w", payload.ServerID, err)
	}
	return nil
}

var _ Provisioner = (*panel.Client)(nil)
var _ Store = (*repository.Repository)(nil)
var _ JobQueue = (*queue.Queue)(nil)
