package model

import (
	"time"

	"github.com/google/uuid"
)

// ServerStatus is the lifecycle state of a provisioned instance.
type ServerStatus string

const (
	StatusCreating  ServerStatus = "creating"
	StatusRunning   ServerStatus = "running"
	StatusStopped   ServerStatus = "stopped"
	StatusSuspended ServerStatus = "suspended"
	StatusDeleted   ServerStatus = "deleted"
)

// CanTransitionTo reports whether moving from s to next is a legal lifecycle
// transition. Deleted is terminal. Creating leaves only via provisioning
// (running/suspended) or explicit cancellation (deleted).
func (s ServerStatus) CanTransitionTo(next ServerStatus) bool {
	if s == next {
		return false
	}
	switch s {
	case StatusCreating:
		return next == StatusRunning || next == StatusSuspended || next == StatusDeleted
	case StatusRunning:
		return next == StatusStopped || next == StatusSuspended || next == StatusDeleted
	case StatusStopped:
		return next == StatusRunning || next == StatusDeleted
	case StatusSuspended:
		return next == StatusRunning || next == StatusDeleted
	case StatusDeleted:
		return false
	}
	return false
}

// DefaultServerTermDays is the initial expiry term for a new server.
const DefaultServerTermDays = 30

// Server tracks a provisioned instance. The internal id is independent of
// the panel's; ExternalID is nil until the panel confirms creation. Owner is
// immutable after creation. Resources are copied from the plan at purchase
// time, not referenced live.
type Server struct {
	ID         uuid.UUID    `json:"id"`
	OwnerID    int64        `json:"owner_id"`
	ExternalID *int64       `json:"external_id,omitempty"`
	Name       string       `json:"name"`
	Plan       string       `json:"plan"`
	Resources  Resources    `json:"resources"`
	Status     ServerStatus `json:"status"`
	ExpiresAt  time.Time    `json:"expires_at"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NewServer builds a pending server record for owner with the plan's
// resource vector. Status starts at Creating with the default expiry term.
func NewServer(ownerID int64, name, plan string, resources Resources) *Server {
	now := time.Now().UTC()
	return &Server{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		Plan:      plan,
		Resources: resources,
		Status:    StatusCreating,
		ExpiresAt: now.AddDate(0, 0, DefaultServerTermDays),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsExpired reports whether the server's term has lapsed.
func (s *Server) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
