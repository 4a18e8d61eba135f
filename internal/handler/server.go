package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shadenhost/shaden/internal/handler/dto"
	"github.com/shadenhost/shaden/internal/panel"
	"github.com/shadenhost/shaden/internal/service"
)

// ServerHandler handles HTTP requests for server lifecycle operations.
type ServerHandler struct {
	svc    *service.ServerService
	logger *slog.Logger
}

// NewServerHandler creates a new ServerHandler.
func NewServerHandler(svc *service.ServerService, logger *slog.Logger) *ServerHandler {
	return &ServerHandler{
		svc:    svc,
		logger: logger,
	}
}

// Plans handles GET /api/v1/plans.
func (h *ServerHandler) Plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Plans())
}

// Purchase handles POST /api/v1/accounts/{accountID}/servers.
func (h *ServerHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}

	var req dto.PurchaseServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	server, err := h.svc.Purchase(r.Context(), accountID, req.Name, req.Plan)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("server_purchased",
		"server_id", server.ID,
		"account_id", accountID,
		"plan", req.Plan,
	)

	writeJSON(w, http.StatusAccepted, dto.ToServerResponse(server))
}

// List handles GET /api/v1/accounts/{accountID}/servers.
func (h *ServerHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}

	servers, err := h.svc.List(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToServerListResponse(servers))
}

// Get handles GET /api/v1/accounts/{accountID}/servers/{serverID}.
func (h *ServerHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}
	serverID, ok := serverIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_SERVER", "Server id must be a UUID")
		return
	}

	server, err := h.svc.Get(r.Context(), accountID, serverID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToServerResponse(server))
}

// Delete handles DELETE /api/v1/accounts/{accountID}/servers/{serverID}.
func (h *ServerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}
	serverID, ok := serverIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_SERVER", "Server id must be a UUID")
		return
	}

	if err := h.svc.Delete(r.Context(), accountID, serverID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("server_deleted", "server_id", serverID, "account_id", accountID)

	w.WriteHeader(http.StatusNoContent)
}

// Renew handles POST /api/v1/accounts/{accountID}/servers/{serverID}/renew.
func (h *ServerHandler) Renew(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}
	serverID, ok := serverIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_SERVER", "Server id must be a UUID")
		return
	}

	var req dto.RenewServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	server, err := h.svc.Renew(r.Context(), accountID, serverID, req.Days)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("server_renewed",
		"server_id", serverID,
		"account_id", accountID,
		"days", req.Days,
	)

	writeJSON(w, http.StatusOK, dto.ToServerResponse(server))
}

// Power handles POST /api/v1/accounts/{accountID}/servers/{serverID}/power.
func (h *ServerHandler) Power(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}
	serverID, ok := serverIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_SERVER", "Server id must be a UUID")
		return
	}

	var req dto.PowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	server, err := h.svc.Power(r.Context(), accountID, serverID, panel.PowerSignal(req.Signal))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToServerResponse(server))
}

// Queue handles GET /api/v1/accounts/{accountID}/queue.
func (h *ServerHandler) Queue(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}

	status, err := h.svc.Queue(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.QueueStatusResponse{
		Depth:    status.Depth,
		Queued:   status.Queued,
		Position: status.Position,
	})
}
