package dto

import (
	"time"

	"github.com/shadenhost/shaden/internal/model"
)

// BeginCheckoutRequest represents the request body for starting a checkout.
type BeginCheckoutRequest struct {
	SessionID   string `json:"session_id"`
	AmountCents int64  `json:"amount_cents"`
	Coins       int64  `json:"coins"`
}

// CheckoutEventRequest is the completion event posted by the payment
// provider's webhook.
type CheckoutEventRequest struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// OrderResponse represents an order in API responses.
type OrderResponse struct {
	ID          string     `json:"id"`
	AccountID   int64      `json:"account_id"`
	SessionID   string     `json:"session_id"`
	AmountCents int64      `json:"amount_cents"`
	Coins       int64      `json:"coins"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ToOrderResponse converts an Order model to OrderResponse.
func ToOrderResponse(order *model.Order) *OrderResponse {
	return &OrderResponse{
		ID:          order.ID,
		AccountID:   order.AccountID,
		SessionID:   order.SessionID,
		AmountCents: order.AmountCents,
		Coins:       order.Coins,
		Status:      string(order.Status),
		CreatedAt:   order.CreatedAt,
		CompletedAt: order.CompletedAt,
	}
}
