package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shadenhost/shaden/internal/model"
)

const userColumns = `
	account_id, coins,
	res_ram, res_cpu, res_disk, res_databases, res_allocations, res_backups,
	created_at, updated_at
`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.AccountID,
		&u.Coins,
		&u.Resources.RAM,
		&u.Resources.CPU,
		&u.Resources.Disk,
		&u.Resources.Databases,
		&u.Resources.Allocations,
		&u.Resources.Backups,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a ledger by account id.
func (r *Repository) GetUser(ctx context.Context, accountID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE account_id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreateUser returns the ledger for accountID, creating a zero-balance
// record if none exists. The insert relies on the primary key, so
// concurrent calls for the same id converge on one row instead of racing a
// read-then-insert.
func (r *Repository) GetOrCreateUser(ctx context.Context, accountID int64) (*model.User, error) {
	insert := `
		INSERT INTO users (account_id)
		VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, insert, accountID); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return r.GetUser(ctx, accountID)
}

// Credit increases an account's balance and returns the new balance.
func (r *Repository) Credit(ctx context.Context, accountID, amount int64) (int64, error) {
	query := `
		UPDATE users
		SET coins = coins + $2, updated_at = now()
		WHERE account_id = $1
		RETURNING coins
	`

	var balance int64
	err := r.pool.QueryRow(ctx, query, accountID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to credit account: %w", err)
	}
	return balance, nil
}

// Debit decreases an account's balance if and only if the balance covers
// amount. The check and the decrement are one conditional UPDATE, so two
// concurrent debits against the same balance cannot both succeed when only
// one could be honored.
func (r *Repository) Debit(ctx context.Context, accountID, amount int64) (int64, error) {
	query := `
		UPDATE users
		SET coins = coins - $2, updated_at = now()
		WHERE account_id = $1 AND coins >= $2
		RETURNING coins
	`

	var balance int64
	err := r.pool.QueryRow(ctx, query, accountID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to debit account: %w", err)
	}

	// No row matched: either the account is missing or the balance is short.
	user, getErr := r.GetUser(ctx, accountID)
	if getErr != nil {
		return 0, getErr
	}
	return 0, &InsufficientFundsError{Needed: amount, Available: user.Coins}
}

// SetCoins overwrites an account's balance (admin operation).
func (r *Repository) SetCoins(ctx context.Context, accountID, coins int64) error {
	query := `
		UPDATE users
		SET coins = $2, updated_at = now()
		WHERE account_id = $1
	`

	tag, err := r.pool.Exec(ctx, query, accountID, coins)
	if err != nil {
		return fmt.Errorf("failed to set coins: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GrantResources adds delta component-wise to the account's resource vector.
func (r *Repository) GrantResources(ctx context.Context, accountID int64, delta model.Resources) error {
	query := `
		UPDATE users
		SET res_ram         = res_ram + $2,
		    res_cpu         = res_cpu + $3,
		    res_disk        = res_disk + $4,
		    res_databases   = res_databases + $5,
		    res_allocations = res_allocations + $6,
		    res_backups     = res_backups + $7,
		    updated_at      = now()
		WHERE account_id = $1
	`

	tag, err := r.pool.Exec(ctx, query, accountID,
		delta.RAM, delta.CPU, delta.Disk,
		delta.Databases, delta.Allocations, delta.Backups,
	)
	if err != nil {
		return fmt.Errorf("failed to grant resources: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Transfer moves amount from one account to another as one transaction.
// The debit and the credit commit together or not at all; a failure at any
// point rolls the debit back, so currency is never destroyed by a partial
// transfer.
func (r *Repository) Transfer(ctx context.Context, fromID, toID, amount int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback(ctx)

	debit := `
		UPDATE users
		SET coins = coins - $2, updated_at = now()
		WHERE account_id = $1 AND coins >= $2
		RETURNING coins
	`
	var remaining int64
	if err := tx.QueryRow(ctx, debit, fromID, amount).Scan(&remaining); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to debit sender: %w", err)
		}
		var available int64
		if err := tx.QueryRow(ctx, `SELECT coins FROM users WHERE account_id = $1`, fromID).Scan(&available); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to inspect sender: %w", err)
		}
		return &InsufficientFundsError{Needed: amount, Available: available}
	}

	credit := `
		UPDATE users
		SET coins = coins + $2, updated_at = now()
		WHERE account_id = $1
	`
	tag, err := tx.Exec(ctx, credit, toID, amount)
	if err != nil {
		return fmt.Errorf("failed to credit recipient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}

// PurchaseItem debits price and applies grant to the same account as one
// transaction. Used for store items that convert coins into resource
// capacity; a failed debit leaves the resource vector untouched.
func (r *Repository) PurchaseItem(ctx context.Context, accountID, price int64, grant model.Resources) (*model.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin purchase: %w", err)
	}
	defer tx.Rollback(ctx)

	debit := `
		UPDATE users
		SET coins = coins - $2, updated_at = now()
		WHERE account_id = $1 AND coins >= $2
		RETURNING coins
	`
	var remaining int64
	if err := tx.QueryRow(ctx, debit, accountID, price).Scan(&remaining); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to debit purchase: %w", err)
		}
		var available int64
		if err := tx.QueryRow(ctx, `SELECT coins FROM users WHERE account_id = $1`, accountID).Scan(&available); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to inspect buyer: %w", err)
		}
		return nil, &InsufficientFundsError{Needed: price, Available: available}
	}

	apply := `
		UPDATE users
		SET res_ram         = res_ram + $2,
		    res_cpu         = res_cpu + $3,
		    res_disk        = res_disk + $4,
		    res_databases   = res_databases + $5,
		    res_allocations = res_allocations + $6,
		    res_backups     = res_backups + $7,
		    updated_at      = now()
		WHERE account_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(tx.QueryRow(ctx, apply, accountID,
		grant.RAM, grant.CPU, grant.Disk,
		grant.Databases, grant.Allocations, grant.Backups,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to apply purchase grant: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}
	return user, nil
}

// EconomyStats aggregates ledger totals for the admin surface.
type EconomyStats struct {
	Users       int64
	TotalCoins  int64
	Servers     int64
	ActiveCodes int64
}

// GetEconomyStats returns user/coin/server/coupon totals.
func (r *Repository) GetEconomyStats(ctx context.Context) (*EconomyStats, error) {
	query := `
		SELECT
			(SELECT count(*) FROM users),
			(SELECT coalesce(sum(coins), 0) FROM users),
			(SELECT count(*) FROM servers WHERE status <> 'deleted'),
			(SELECT count(*) FROM coupons)
	`

	var stats EconomyStats
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.Users, &stats.TotalCoins, &stats.Servers, &stats.ActiveCodes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get economy stats: %w", err)
	}
	return &stats, nil
}
