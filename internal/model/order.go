package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// OrderStatus is the lifecycle state of a checkout order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

// Order records a coin purchase through the external checkout provider.
// SessionID is the provider's checkout session id and doubles as the
// idempotency key: a completed-checkout event credits the ledger exactly
// once per session, however many times it is delivered.
type Order struct {
	ID          string      `json:"id"`
	AccountID   int64       `json:"account_id"`
	SessionID   string      `json:"session_id"`
	AmountCents int64       `json:"amount_cents"`
	Coins       int64       `json:"coins"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// NewOrder builds a pending order for a checkout session.
func NewOrder(accountID int64, sessionID string, amountCents, coins int64) *Order {
	return &Order{
		ID:          ulid.Make().String(),
		AccountID:   accountID,
		SessionID:   sessionID,
		AmountCents: amountCents,
		Coins:       coins,
		Status:      OrderPending,
		CreatedAt:   time.Now().UTC(),
	}
}
