package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shadenhost/shaden/internal/auth"
	"github.com/shadenhost/shaden/internal/handler/dto"
	"github.com/shadenhost/shaden/internal/service"
)

// AdminHandler provides the operator surface: balance adjustments, coupon
// management and economy totals.
type AdminHandler struct {
	economy *service.EconomyService
	coupons *service.CouponService
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(economy *service.EconomyService, coupons *service.CouponService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		economy: economy,
		coupons: coupons,
		logger:  logger,
	}
}

// Credit handles POST /api/v1/admin/accounts/{accountID}/credit.
func (h *AdminHandler) Credit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}

	var req dto.AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	balance, err := h.economy.Credit(r.Context(), accountID, req.Amount)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("admin_credit",
		"account_id", accountID,
		"amount", req.Amount,
		"key_id", auth.KeyIDFromContext(r.Context()),
	)

	writeJSON(w, http.StatusOK, dto.BalanceResponse{AccountID: accountID, Coins: balance})
}

// Debit handles POST /api/v1/admin/accounts/{accountID}/debit.
func (h *AdminHandler) Debit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}

	var req dto.AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	balance, err := h.economy.Debit(r.Context(), accountID, req.Amount)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("admin_debit",
		"account_id", accountID,
		"amount", req.Amount,
		"key_id", auth.KeyIDFromContext(r.Context()),
	)

	writeJSON(w, http.StatusOK, dto.BalanceResponse{AccountID: accountID, Coins: balance})
}

// SetBalance handles PUT /api/v1/admin/accounts/{accountID}/balance.
func (h *AdminHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}

	var req dto.SetBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := h.economy.SetBalance(r.Context(), accountID, req.Coins); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("admin_set_balance",
		"account_id", accountID,
		"coins", req.Coins,
		"key_id", auth.KeyIDFromContext(r.Context()),
	)

	writeJSON(w, http.StatusOK, dto.BalanceResponse{AccountID: accountID, Coins: req.Coins})
}

// GrantResources handles POST /api/v1/admin/accounts/{accountID}/resources.
func (h *AdminHandler) GrantResources(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account id must be a positive integer")
		return
	}

	var req dto.GrantResourcesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	user, err := h.economy.GrantResources(r.Context(), accountID, req.Resources)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("admin_grant_resources",
		"account_id", accountID,
		"key_id", auth.KeyIDFromContext(r.Context()),
	)

	writeJSON(w, http.StatusOK, dto.ToAccountResponse(user))
}

// CreateCoupon handles POST /api/v1/admin/coupons.
func (h *AdminHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	coupon, err := h.coupons.CreateCoupon(r.Context(), service.CreateCouponInput{
		Code:      req.Code,
		Coins:     req.Coins,
		Resources: req.Resources,
		MaxUses:   req.MaxUses,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("coupon_created",
		"code", coupon.Code,
		"key_id", auth.KeyIDFromContext(r.Context()),
	)

	writeJSON(w, http.StatusCreated, dto.ToCouponResponse(coupon))
}

// ListCoupons handles GET /api/v1/admin/coupons.
func (h *AdminHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.ListCoupons(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToCouponListResponse(coupons))
}

// RevokeCoupon handles DELETE /api/v1/admin/coupons/{code}.
func (h *AdminHandler) RevokeCoupon(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "MISSING_CODE", "Coupon code is required")
		return
	}

	if err := h.coupons.RevokeCoupon(r.Context(), code); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("coupon_revoked",
		"code", code,
		"key_id", auth.KeyIDFromContext(r.Context()),
	)

	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.economy.Stats(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToStatsResponse(stats))
}
