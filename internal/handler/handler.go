// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shadenhost/shaden/internal/handler/dto"
	"github.com/shadenhost/shaden/internal/repository"
	"github.com/shadenhost/shaden/internal/service"
)

// Handler carries cross-cutting handler helpers.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Hello is a simple hello endpoint for testing.
// GET /
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"message": "Hello from Shaden!",
		"version": "0.1.0",
	}
	writeJSON(w, http.StatusOK, response)
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// writeJSON writes a JSON response with the given status code. The status
// line is already on the wire when encoding runs, so an encode failure
// cannot be reported to the client.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a plain error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

// accountIDParam parses the {accountID} URL parameter.
func accountIDParam(r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "accountID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// sessionIDParam returns the {sessionID} URL parameter.
func sessionIDParam(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

// serverIDParam parses the {serverID} URL parameter.
func serverIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "serverID"))
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

// handleServiceError maps service errors to HTTP responses. A rejected
// debit carries the exact shortfall so clients can tell the user how many
// coins are missing.
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ife *repository.InsufficientFundsError
	if errors.As(err, &ife) {
		writeJSON(w, http.StatusPaymentRequired, dto.ErrorResponse{
			Error:     ife.Error(),
			Code:      "INSUFFICIENT_FUNDS",
			Needed:    &ife.Needed,
			Available: &ife.Available,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found")
	case errors.Is(err, service.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be positive")
	case errors.Is(err, service.ErrSelfTransfer):
		writeError(w, http.StatusBadRequest, "SELF_TRANSFER", "Cannot transfer to yourself")
	case errors.Is(err, service.ErrFeatureDisabled):
		writeError(w, http.StatusForbidden, "FEATURE_DISABLED", "This feature is disabled")
	case errors.Is(err, service.ErrInvalidCouponCode):
		writeError(w, http.StatusBadRequest, "INVALID_CODE", "Invalid coupon code format")
	case errors.Is(err, service.ErrCouponNotFound):
		writeError(w, http.StatusNotFound, "COUPON_NOT_FOUND", "Coupon not found")
	case errors.Is(err, service.ErrCouponExists):
		writeError(w, http.StatusConflict, "COUPON_EXISTS", "Coupon code already exists")
	case errors.Is(err, service.ErrCouponExpired):
		writeError(w, http.StatusConflict, "COUPON_EXPIRED", "Coupon is expired")
	case errors.Is(err, service.ErrCouponExhausted):
		writeError(w, http.StatusConflict, "COUPON_EXHAUSTED", "Coupon has no uses left")
	case errors.Is(err, service.ErrCouponAlreadyUsed):
		writeError(w, http.StatusConflict, "COUPON_ALREADY_USED", "Coupon already redeemed by this account")
	case errors.Is(err, service.ErrEmptyCouponGrant):
		writeError(w, http.StatusBadRequest, "EMPTY_GRANT", "Coupon must grant coins or resources")
	case errors.Is(err, service.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "PLAN_NOT_FOUND", "Plan not found")
	case errors.Is(err, service.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "ITEM_NOT_FOUND", "Store item not found")
	case errors.Is(err, service.ErrInvalidServerName):
		writeError(w, http.StatusBadRequest, "INVALID_NAME", "Invalid server name")
	case errors.Is(err, service.ErrInsufficientResources):
		writeError(w, http.StatusConflict, "INSUFFICIENT_RESOURCES", "Resource capacity does not cover the plan")
	case errors.Is(err, service.ErrServerNotFound):
		writeError(w, http.StatusNotFound, "SERVER_NOT_FOUND", "Server not found")
	case errors.Is(err, service.ErrServerNotProvisioned):
		writeError(w, http.StatusConflict, "NOT_PROVISIONED", "Server is not provisioned yet")
	case errors.Is(err, service.ErrInvalidPowerSignal):
		writeError(w, http.StatusBadRequest, "INVALID_SIGNAL", "Invalid power signal")
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", "Server cannot change to that state")
	case errors.Is(err, service.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, "INVALID_DURATION", "Duration must be positive")
	case errors.Is(err, service.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
	case errors.Is(err, service.ErrOrderCompleted):
		writeError(w, http.StatusConflict, "ORDER_COMPLETED", "Order already completed")
	case errors.Is(err, service.ErrSessionExists):
		writeError(w, http.StatusConflict, "SESSION_EXISTS", "Checkout session already recorded")
	default:
		logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
