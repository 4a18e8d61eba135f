package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// JobType identifies the work a queue job carries.
type JobType string

const (
	JobCreateServer JobType = "create_server"
	JobDeleteServer JobType = "delete_server"
)

// QueueJob is one unit of provisioning work. Jobs are immutable once
// enqueued; failure handling enqueues a new job rather than editing the old
// one. Payload is job-type specific.
type QueueJob struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	AccountID int64           `json:"account_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewQueueJob builds a job with a fresh ULID and marshalled payload.
func NewQueueJob(jobType JobType, accountID int64, payload any) (*QueueJob, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &QueueJob{
		ID:        ulid.Make().String(),
		Type:      jobType,
		AccountID: accountID,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// CreateServerPayload is the payload for JobCreateServer.
type CreateServerPayload struct {
	ServerID uuid.UUID `json:"server_id"`
}

// DeleteServerPayload is the payload for JobDeleteServer. The internal
// record is already gone when this job runs; ExternalID is everything the
// worker needs for panel cleanup, and is nil if the server never finished
// provisioning.
type DeleteServerPayload struct {
	ServerID   uuid.UUID `json:"server_id"`
	ExternalID *int64    `json:"external_id,omitempty"`
}
