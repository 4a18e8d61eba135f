package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shadenhost/shaden/internal/handler/dto"
	"github.com/shadenhost/shaden/internal/service"
)

// CouponHandler handles HTTP requests for coupon redemption.
type CouponHandler struct {
	svc    *service.CouponService
	logger *slog.Logger
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(svc *service.CouponService, logger *slog.Logger) *CouponHandler {
	return &CouponHandler{
		svc:    svc,
		logger: logger,
	}
}

// Redeem handles POST /api/v1/accounts/{accountID}/redeem.
func (h *CouponHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}

	var req dto.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	grant, err := h.svc.Redeem(r.Context(), req.Code, accountID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("coupon_redeemed",
		"account_id", accountID,
		"coins", grant.Coins,
	)

	writeJSON(w, http.StatusOK, dto.GrantResponse{
		Coins:     grant.Coins,
		Resources: grant.Resources,
	})
}
