package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shadenhost/shaden/internal/model"
)

const orderColumns = `
	id, account_id, session_id, amount_cents, coins, status, created_at, completed_at
`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID,
		&o.AccountID,
		&o.SessionID,
		&o.AmountCents,
		&o.Coins,
		&o.Status,
		&o.CreatedAt,
		&o.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// CreateOrder records a pending checkout order. The unique constraint on
// session_id rejects duplicate recordings of the same checkout session.
func (r *Repository) CreateOrder(ctx context.Context, order *model.Order) error {
	query := `
		INSERT INTO orders (id, account_id, session_id, amount_cents, coins, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		order.ID,
		order.AccountID,
		order.SessionID,
		order.AmountCents,
		order.Coins,
		order.Status,
		order.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSessionExists
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetOrderBySession retrieves an order by checkout session id.
func (r *Repository) GetOrderBySession(ctx context.Context, sessionID string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE session_id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// CompleteOrder flips a pending order to completed and credits the buyer's
// ledger, as one transaction. The conditional status flip is the
// idempotency gate: the session id is the key, and a second delivery of
// the same completed-checkout event matches no pending row, so the credit
// is applied exactly once.
func (r *Repository) CompleteOrder(ctx context.Context, sessionID string) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin order completion: %w", err)
	}
	defer tx.Rollback(ctx)

	flip := `
		UPDATE orders
		SET status = $2, completed_at = now()
		WHERE session_id = $1 AND status = $3
		RETURNING ` + orderColumns

	order, err := scanOrder(tx.QueryRow(ctx, flip, sessionID, model.OrderCompleted, model.OrderPending))
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			return nil, fmt.Errorf("failed to complete order: %w", err)
		}
		// No pending row: distinguish duplicate delivery from unknown session.
		existing, getErr := r.GetOrderBySession(ctx, sessionID)
		if getErr != nil {
			return nil, getErr
		}
		if existing.Status == model.OrderCompleted {
			return nil, ErrOrderCompleted
		}
		return nil, fmt.Errorf("order %s not completable from status %s", sessionID, existing.Status)
	}

	credit := `
		UPDATE users
		SET coins = coins + $2, updated_at = now()
		WHERE account_id = $1
	`
	tag, err := tx.Exec(ctx, credit, order.AccountID, order.Coins)
	if err != nil {
		return nil, fmt.Errorf("failed to credit order coins: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order completion: %w", err)
	}
	return order, nil
}
