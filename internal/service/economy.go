package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shadenhost/shaden/internal/config"
	"github.com/shadenhost/shaden/internal/model"
	"github.com/shadenhost/shaden/internal/repository"
)

// LedgerStore is the slice of the repository the economy service needs.
type LedgerStore interface {
	GetUser(ctx context.Context, accountID int64) (*model.User, error)
	GetOrCreateUser(ctx context.Context, accountID int64) (*model.User, error)
	Credit(ctx context.Context, accountID, amount int64) (int64, error)
	Debit(ctx context.Context, accountID, amount int64) (int64, error)
	SetCoins(ctx context.Context, accountID, coins int64) error
	GrantResources(ctx context.Context, accountID int64, delta model.Resources) error
	Transfer(ctx context.Context, fromID, toID, amount int64) error
	PurchaseItem(ctx context.Context, accountID, price int64, grant model.Resources) (*model.User, error)
	GetEconomyStats(ctx context.Context) (*repository.EconomyStats, error)
}

// EconomyService handles balances, rewards, transfers and the item store.
type EconomyService struct {
	store           LedgerStore
	catalog         *config.Catalog
	logger          *slog.Logger
	afkReward       int64
	taskReward      int64
	transferEnabled bool
}

// NewEconomyService creates an EconomyService.
func NewEconomyService(store LedgerStore, catalog *config.Catalog, cfg *config.Config, logger *slog.Logger) *EconomyService {
	return &EconomyService{
		store:           store,
		catalog:         catalog,
		logger:          logger.With("component", "service.economy"),
		afkReward:       cfg.AFKReward,
		taskReward:      cfg.TaskReward,
		transferEnabled: cfg.EnableTransfer,
	}
}

// Login returns the ledger for accountID, creating it on first contact.
func (s *EconomyService) Login(ctx context.Context, accountID int64) (*model.User, error) {
	user, err := s.store.GetOrCreateUser(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("login account %d: %w", accountID, err)
	}
	return user, nil
}

// Balance returns the ledger for accountID.
func (s *EconomyService) Balance(ctx context.Context, accountID int64) (*model.User, error) {
	user, err := s.store.GetUser(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Credit adds amount to an account (admin operation).
func (s *EconomyService) Credit(ctx context.Context, accountID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	balance, err := s.store.Credit(ctx, accountID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	s.logger.Info("account credited", "account_id", accountID, "amount", amount, "balance", balance)
	return balance, nil
}

// Debit removes amount from an account (admin operation). The balance check
// and the decrement happen together in the store, so a short balance is
// rejected without ever going negative.
func (s *EconomyService) Debit(ctx context.Context, accountID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	balance, err := s.store.Debit(ctx, accountID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	s.logger.Info("account debited", "account_id", accountID, "amount", amount, "balance", balance)
	return balance, nil
}

// SetBalance overwrites an account's balance (admin operation).
func (s *EconomyService) SetBalance(ctx context.Context, accountID, coins int64) error {
	if coins < 0 {
		return ErrInvalidAmount
	}
	if err := s.store.SetCoins(ctx, accountID, coins); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.logger.Info("balance set", "account_id", accountID, "coins", coins)
	return nil
}

// GrantResources adds delta to an account's resource vector (admin
// operation) and returns the updated ledger.
func (s *EconomyService) GrantResources(ctx context.Context, accountID int64, delta model.Resources) (*model.User, error) {
	if delta.IsZero() {
		return nil, ErrInvalidAmount
	}
	if err := s.store.GrantResources(ctx, accountID, delta); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user, err := s.store.GetUser(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("resources granted", "account_id", accountID, "delta", delta)
	return user, nil
}

// Transfer moves amount between two accounts.
func (s *EconomyService) Transfer(ctx context.Context, fromID, toID, amount int64) error {
	if !s.transferEnabled {
		return ErrFeatureDisabled
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if fromID == toID {
		return ErrSelfTransfer
	}

	if err := s.store.Transfer(ctx, fromID, toID, amount); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.logger.Info("transfer done", "from", fromID, "to", toID, "amount", amount)
	return nil
}

// RewardKind names an earn action.
type RewardKind string

const (
	RewardAFK  RewardKind = "afk"
	RewardTask RewardKind = "task"
)

// ClaimReward credits the fixed reward for an earn action and returns the
// new balance.
func (s *EconomyService) ClaimReward(ctx context.Context, accountID int64, kind RewardKind) (int64, error) {
	var amount int64
	switch kind {
	case RewardAFK:
		amount = s.afkReward
	case RewardTask:
		amount = s.taskReward
	default:
		return 0, ErrInvalidAmount
	}

	// Rewards go to the ledger even on first contact.
	if _, err := s.store.GetOrCreateUser(ctx, accountID); err != nil {
		return 0, err
	}
	balance, err := s.store.Credit(ctx, accountID, amount)
	if err != nil {
		return 0, err
	}
	s.logger.Info("reward claimed", "account_id", accountID, "kind", kind, "amount", amount)
	return balance, nil
}

// Items returns the purchasable store items.
func (s *EconomyService) Items() []config.StoreItem {
	items := make([]config.StoreItem, 0, len(s.catalog.Items))
	for _, item := range s.catalog.Items {
		if item.Enabled {
			items = append(items, item)
		}
	}
	return items
}

// BuyItem debits an item's price and applies its resource grant, as one
// store-level transaction. Returns the updated ledger.
func (s *EconomyService) BuyItem(ctx context.Context, accountID int64, itemID string) (*model.User, error) {
	item, ok := s.catalog.FindItem(itemID)
	if !ok {
		return nil, ErrItemNotFound
	}
	if item.Resources == nil || item.Resources.IsZero() {
		return nil, ErrItemNotFound
	}

	if _, err := s.store.GetOrCreateUser(ctx, accountID); err != nil {
		return nil, err
	}

	user, err := s.store.PurchaseItem(ctx, accountID, item.Price, *item.Resources)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.logger.Info("item bought", "account_id", accountID, "item", item.ID, "price", item.Price)
	return user, nil
}

// Stats returns economy-wide totals (admin operation).
func (s *EconomyService) Stats(ctx context.Context) (*repository.EconomyStats, error) {
	return s.store.GetEconomyStats(ctx)
}

var _ LedgerStore = (*repository.Repository)(nil)
