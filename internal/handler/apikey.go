package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/shadenhost/shaden/internal/auth"
	"github.com/shadenhost/shaden/internal/handler/dto"
	"github.com/shadenhost/shaden/internal/model"
	"github.com/shadenhost/shaden/internal/repository"
)

// APIKeyHandler handles the admin key-management endpoints.
type APIKeyHandler struct {
	logger     *slog.Logger
	repository *repository.Repository
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(logger *slog.Logger, repo *repository.Repository) *APIKeyHandler {
	return &APIKeyHandler{
		logger:     logger,
		repository: repo,
	}
}

// CreateAPIKey handles POST /api/v1/admin/keys.
func (h *APIKeyHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	for _, scope := range req.Scopes {
		if !slices.Contains(model.ValidScopes, scope) {
			writeError(w, http.StatusBadRequest, "INVALID_SCOPE",
				"Invalid scope: "+scope+". Valid scopes: read, write, admin")
			return
		}
	}

	// Default to read scope if none provided
	if len(req.Scopes) == 0 {
		req.Scopes = []string{model.ScopeRead}
	}

	generatedKey, err := auth.GenerateAPIKey(req.Env)
	if err != nil {
		h.logger.Error("failed to generate API key", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate API key")
		return
	}

	apiKey := &model.APIKey{
		ID:        ulid.Make().String(),
		Name:      req.Name,
		KeyHash:   generatedKey.Hash,
		KeyPrefix: generatedKey.Prefix,
		Scopes:    req.Scopes,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.repository.CreateAPIKey(ctx, apiKey); err != nil {
		h.logger.Error("failed to create API key", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create API key")
		return
	}

	h.logger.Info("api_key_created",
		"key_id", apiKey.ID,
		"key_prefix", apiKey.KeyPrefix,
		"created_by", auth.KeyIDFromContext(ctx),
	)

	// The plaintext key is shown once only.
	writeJSON(w, http.StatusCreated, dto.CreatedAPIKeyResponse{
		APIKeyResponse: dto.ToAPIKeyResponse(apiKey),
		Key:            generatedKey.Plaintext,
	})
}

// ListAPIKeys handles GET /api/v1/admin/keys.
func (h *APIKeyHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.repository.ListAPIKeys(r.Context())
	if err != nil {
		h.logger.Error("failed to list API keys", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list API keys")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"keys": dto.ToAPIKeyListResponse(keys)})
}

// RevokeAPIKey handles DELETE /api/v1/admin/keys/{keyID}.
func (h *APIKeyHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyID")
	if keyID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_KEY_ID", "Key id is required")
		return
	}

	if err := h.repository.RevokeAPIKey(r.Context(), keyID); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			writeError(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found or already revoked")
			return
		}
		h.logger.Error("failed to revoke API key", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke API key")
		return
	}

	h.logger.Info("api_key_revoked",
		"key_id", keyID,
		"revoked_by", auth.KeyIDFromContext(r.Context()),
	)

	w.WriteHeader(http.StatusNoContent)
}
