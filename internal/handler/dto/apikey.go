package dto

import (
	"time"

	"github.com/shadenhost/shaden/internal/model"
)

// CreateAPIKeyRequest is the payload for minting a new API key.
type CreateAPIKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
	Env    string   `json:"env,omitempty"`
}

// APIKeyResponse describes a stored key without its secret.
type APIKeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreatedAPIKeyResponse carries the plaintext key. It is returned exactly
// once, at creation time.
type CreatedAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

// ToAPIKeyResponse converts a model.APIKey to an APIKeyResponse.
func ToAPIKeyResponse(k *model.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:         k.ID,
		Name:       k.Name,
		KeyPrefix:  k.KeyPrefix,
		Scopes:     k.Scopes,
		RevokedAt:  k.RevokedAt,
		LastUsedAt: k.LastUsedAt,
		CreatedAt:  k.CreatedAt,
	}
}

// ToAPIKeyListResponse converts a slice of keys.
func ToAPIKeyListResponse(keys []*model.APIKey) []APIKeyResponse {
	out := make([]APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, ToAPIKeyResponse(k))
	}
	return out
}
