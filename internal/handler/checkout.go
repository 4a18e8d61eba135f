package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shadenhost/shaden/internal/handler/dto"
	"github.com/shadenhost/shaden/internal/service"
)

// CheckoutHandler handles HTTP requests for coin purchases.
type CheckoutHandler struct {
	svc    *service.OrderService
	logger *slog.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(svc *service.OrderService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		svc:    svc,
		logger: logger,
	}
}

// Begin handles POST /api/v1/accounts/{accountID}/checkout.
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}

	var req dto.BeginCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	order, err := h.svc.BeginCheckout(r.Context(), accountID, req.SessionID, req.AmountCents, req.Coins)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToOrderResponse(order))
}

// Event handles POST /api/v1/checkout/events, the payment provider's
// completion webhook. A redelivered completed-session event is answered
// with 200 so the provider stops retrying; the credit was already applied.
func (h *CheckoutHandler) Event(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckoutEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.Status != "completed" {
		// Only completion events carry a credit; everything else is
		// acknowledged and dropped.
		w.WriteHeader(http.StatusOK)
		return
	}

	order, err := h.svc.CompleteCheckout(r.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, service.ErrOrderCompleted) {
			w.WriteHeader(http.StatusOK)
			return
		}
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("checkout_completed",
		"order_id", order.ID,
		"account_id", order.AccountID,
		"coins", order.Coins,
	)

	writeJSON(w, http.StatusOK, dto.ToOrderResponse(order))
}

// Get handles GET /api/v1/checkout/sessions/{sessionID}.
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDParam(r)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_SESSION", "Session id is required")
		return
	}

	order, err := h.svc.GetOrder(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToOrderResponse(order))
}
