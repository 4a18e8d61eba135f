package dto

import (
	"time"

	"github.com/shadenhost/shaden/internal/model"
)

// PurchaseServerRequest represents the request body for buying a server.
type PurchaseServerRequest struct {
	Name string `json:"name"`
	Plan string `json:"plan"`
}

// RenewServerRequest represents the request body for renewing a server.
type RenewServerRequest struct {
	Days int `json:"days"`
}

// PowerRequest represents the request body for a power action.
type PowerRequest struct {
	Signal string `json:"signal"`
}

// ServerResponse represents a server in API responses.
type ServerResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Plan       string          `json:"plan"`
	Resources  model.Resources `json:"resources"`
	Status     string          `json:"status"`
	ExternalID *int64          `json:"external_id,omitempty"`
	ExpiresAt  time.Time       `json:"expires_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ToServerResponse converts a Server model to ServerResponse.
func ToServerResponse(server *model.Server) *ServerResponse {
	return &ServerResponse{
		ID:         server.ID.String(),
		Name:       server.Name,
		Plan:       server.Plan,
		Resources:  server.Resources,
		Status:     string(server.Status),
		ExternalID: server.ExternalID,
		ExpiresAt:  server.ExpiresAt,
		CreatedAt:  server.CreatedAt,
	}
}

// ToServerListResponse converts a slice of Server models.
func ToServerListResponse(servers []*model.Server) []ServerResponse {
	responses := make([]ServerResponse, len(servers))
	for i, server := range servers {
		responses[i] = *ToServerResponse(server)
	}
	return responses
}

// QueueStatusResponse reports the provisioning queue as seen by one account.
type QueueStatusResponse struct {
	Depth    int64 `json:"depth"`
	Queued   bool  `json:"queued"`
	Position int   `json:"position,omitempty"`
}
