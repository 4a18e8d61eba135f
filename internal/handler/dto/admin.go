package dto

import (
	"time"

	"github.com/shadenhost/shaden/internal/model"
	"github.com/shadenhost/shaden/internal/repository"
)

// AdjustBalanceRequest represents the request body for admin credit/debit.
type AdjustBalanceRequest struct {
	Amount int64 `json:"amount"`
}

// SetBalanceRequest represents the request body for overwriting a balance.
type SetBalanceRequest struct {
	Coins int64 `json:"coins"`
}

// GrantResourcesRequest represents the request body for an admin resource
// grant.
type GrantResourcesRequest struct {
	Resources model.Resources `json:"resources"`
}

// CreateCouponRequest represents the request body for creating a coupon.
type CreateCouponRequest struct {
	Code      string           `json:"code"`
	Coins     int64            `json:"coins"`
	Resources *model.Resources `json:"resources,omitempty"`
	MaxUses   *int64           `json:"max_uses,omitempty"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
}

// CouponResponse represents a coupon in API responses.
type CouponResponse struct {
	Code      string           `json:"code"`
	Coins     int64            `json:"coins"`
	Resources *model.Resources `json:"resources,omitempty"`
	MaxUses   *int64           `json:"max_uses,omitempty"`
	UsedCount int64            `json:"used_count"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// ToCouponResponse converts a Coupon model to CouponResponse.
func ToCouponResponse(coupon *model.Coupon) *CouponResponse {
	return &CouponResponse{
		Code:      coupon.Code,
		Coins:     coupon.Coins,
		Resources: coupon.Resources,
		MaxUses:   coupon.MaxUses,
		UsedCount: coupon.UsedCount,
		ExpiresAt: coupon.ExpiresAt,
		CreatedAt: coupon.CreatedAt,
	}
}

// ToCouponListResponse converts a slice of Coupon models.
func ToCouponListResponse(coupons []*model.Coupon) []CouponResponse {
	responses := make([]CouponResponse, len(coupons))
	for i, coupon := range coupons {
		responses[i] = *ToCouponResponse(coupon)
	}
	return responses
}

// StatsResponse represents economy-wide totals.
type StatsResponse struct {
	Users       int64 `json:"users"`
	TotalCoins  int64 `json:"total_coins"`
	Servers     int64 `json:"servers"`
	ActiveCodes int64 `json:"active_codes"`
}

// ToStatsResponse converts repository stats.
func ToStatsResponse(stats *repository.EconomyStats) *StatsResponse {
	return &StatsResponse{
		Users:       stats.Users,
		TotalCoins:  stats.TotalCoins,
		Servers:     stats.Servers,
		ActiveCodes: stats.ActiveCodes,
	}
}
