// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/shadenhost/shaden/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// Needed and Available carry the exact amounts when a debit was
	// rejected for a short balance.
	Needed    *int64 `json:"needed,omitempty"`
	Available *int64 `json:"available,omitempty"`
}

// AccountResponse represents a ledger in API responses.
type AccountResponse struct {
	AccountID int64           `json:"account_id"`
	Coins     int64           `json:"coins"`
	Resources model.Resources `json:"resources"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ToAccountResponse converts a User model to AccountResponse.
func ToAccountResponse(user *model.User) *AccountResponse {
	return &AccountResponse{
		AccountID: user.AccountID,
		Coins:     user.Coins,
		Resources: user.Resources,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// BalanceResponse carries a balance after a credit or debit.
type BalanceResponse struct {
	AccountID int64 `json:"account_id"`
	Coins     int64 `json:"coins"`
}

// TransferRequest represents the request body for a transfer.
type TransferRequest struct {
	To     int64 `json:"to"`
	Amount int64 `json:"amount"`
}

// RewardRequest represents the request body for claiming a reward.
type RewardRequest struct {
	Kind string `json:"kind"`
}

// BuyItemRequest represents the request body for a store purchase.
type BuyItemRequest struct {
	ItemID string `json:"item_id"`
}

// RedeemRequest represents the request body for redeeming a coupon.
type RedeemRequest struct {
	Code string `json:"code"`
}

// GrantResponse represents what a redemption applied.
type GrantResponse struct {
	Coins     int64           `json:"coins"`
	Resources model.Resources `json:"resources"`
}
