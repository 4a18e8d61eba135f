package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shadenhost/shaden/internal/handler/dto"
	"github.com/shadenhost/shaden/internal/service"
)

// EconomyHandler handles HTTP requests for balances, transfers, rewards
// and the item store.
type EconomyHandler struct {
	svc    *service.EconomyService
	logger *slog.Logger
}

// NewEconomyHandler creates a new EconomyHandler.
func NewEconomyHandler(svc *service.EconomyService, logger *slog.Logger) *EconomyHandler {
	return &EconomyHandler{
		svc:    svc,
		logger: logger,
	}
}

// Login handles POST /api/v1/accounts/{accountID}/login.
// Creates the ledger on first contact.
func (h *EconomyHandler) Login(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}

	user, err := h.svc.Login(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToAccountResponse(user))
}

// Get handles GET /api/v1/accounts/{accountID}.
func (h *EconomyHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}

	user, err := h.svc.Balance(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToAccountResponse(user))
}

// Transfer handles POST /api/v1/accounts/{accountID}/transfer.
func (h *EconomyHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}

	var req dto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := h.svc.Transfer(r.Context(), accountID, req.To, req.Amount); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("transfer_completed",
		"from", accountID,
		"to", req.To,
		"amount", req.Amount,
	)

	w.WriteHeader(http.StatusNoContent)
}

// Reward handles POST /api/v1/accounts/{accountID}/rewards.
func (h *EconomyHandler) Reward(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}

	var req dto.RewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	balance, err := h.svc.ClaimReward(r.Context(), accountID, service.RewardKind(req.Kind))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{AccountID: accountID, Coins: balance})
}

// Items handles GET /api/v1/store.
func (h *EconomyHandler) Items(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Items())
}

// BuyItem handles POST /api/v1/accounts/{accountID}/store/buy.
func (h *EconomyHandler) BuyItem(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}

	var req dto.BuyItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	user, err := h.svc.BuyItem(r.Context(), accountID, req.ItemID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("item_purchased",
		"account_id", accountID,
		"item_id", req.ItemID,
	)

	writeJSON(w, http.StatusOK, dto.ToAccountResponse(user))
}
