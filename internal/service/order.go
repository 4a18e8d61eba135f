package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shadenhost/shaden/internal/model"
	"github.com/shadenhost/shaden/internal/repository"
)

// OrderStore is the slice of the repository the order service needs.
type OrderStore interface {
	GetOrCreateUser(ctx context.Context, accountID int64) (*model.User, error)
	CreateOrder(ctx context.Context, order *model.Order) error
	GetOrderBySession(ctx context.Context, sessionID string) (*model.Order, error)
	CompleteOrder(ctx context.Context, sessionID string) (*model.Order, error)
}

// OrderService records checkout sessions and credits completed ones.
type OrderService struct {
	store  OrderStore
	logger *slog.Logger
}

// NewOrderService creates an OrderService.
func NewOrderService(store OrderStore, logger *slog.Logger) *OrderService {
	return &OrderService{
		store:  store,
		logger: logger.With("component", "service.order"),
	}
}

// BeginCheckout records a pending order for an external checkout session.
func (s *OrderService) BeginCheckout(ctx context.Context, accountID int64, sessionID string, amountCents, coins int64) (*model.Order, error) {
	if sessionID == "" {
		return nil, ErrOrderNotFound
	}
	if amountCents <= 0 || coins <= 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := s.store.GetOrCreateUser(ctx, accountID); err != nil {
		return nil, err
	}

	order := model.NewOrder(accountID, sessionID, amountCents, coins)
	if err := s.store.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, repository.ErrSessionExists) {
			return nil, ErrSessionExists
		}
		return nil, fmt.Errorf("record order: %w", err)
	}

	s.logger.Info("checkout started",
		"order_id", order.ID, "account_id", accountID, "coins", coins)
	return order, nil
}

// CompleteCheckout flips a pending order to completed and credits the
// buyer. Redelivered completion events for the same session report
// ErrOrderCompleted and apply nothing; the first delivery won.
func (s *OrderService) CompleteCheckout(ctx context.Context, sessionID string) (*model.Order, error) {
	order, err := s.store.CompleteOrder(ctx, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			return nil, ErrOrderNotFound
		case errors.Is(err, repository.ErrOrderCompleted):
			return nil, ErrOrderCompleted
		}
		return nil, fmt.Errorf("complete order: %w", err)
	}

	s.logger.Info("checkout completed",
		"order_id", order.ID, "account_id", order.AccountID, "coins", order.Coins)
	return order, nil
}

// GetOrder returns the order for a checkout session.
func (s *OrderService) GetOrder(ctx context.Context, sessionID string) (*model.Order, error) {
	order, err := s.store.GetOrderBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

var _ OrderStore = (*repository.Repository)(nil)
