package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shadenhost/shaden/internal/model"
)

const couponColumns = `
	code, coins,
	res_ram, res_cpu, res_disk, res_databases, res_allocations, res_backups,
	max_uses, used_count, expires_at, created_at, created_by
`

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var (
		c   model.Coupon
		res model.Resources
	)
	err := row.Scan(
		&c.Code,
		&c.Coins,
		&res.RAM,
		&res.CPU,
		&res.Disk,
		&res.Databases,
		&res.Allocations,
		&res.Backups,
		&c.MaxUses,
		&c.UsedCount,
		&c.ExpiresAt,
		&c.CreatedAt,
		&c.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}
	if !res.IsZero() {
		c.Resources = &res
	}
	return &c, nil
}

// CreateCoupon inserts a new coupon. Fails with ErrCouponExists if the code
// is taken.
func (r *Repository) CreateCoupon(ctx context.Context, coupon *model.Coupon) error {
	query := `
		INSERT INTO coupons (
			code, coins,
			res_ram, res_cpu, res_disk, res_databases, res_allocations, res_backups,
			max_uses, expires_at, created_at, created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	var res model.Resources
	if coupon.Resources != nil {
		res = *coupon.Resources
	}

	_, err := r.pool.Exec(ctx, query,
		coupon.Code,
		coupon.Coins,
		res.RAM, res.CPU, res.Disk, res.Databases, res.Allocations, res.Backups,
		coupon.MaxUses,
		coupon.ExpiresAt,
		coupon.CreatedAt,
		coupon.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCouponExists
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}

// GetCoupon retrieves a coupon by its normalized code.
func (r *Repository) GetCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	coupon, err := scanCoupon(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return coupon, nil
}

// ListCoupons returns all coupons, newest first.
func (r *Repository) ListCoupons(ctx context.Context) ([]*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []*model.Coupon
	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, coupon)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coupons: %w", err)
	}
	return coupons, nil
}

// RevokeCoupon deletes a coupon. Already-applied grants are untouched;
// revocation is irreversible.
func (r *Repository) RevokeCoupon(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to revoke coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCouponNotFound
	}
	return nil
}

// RedeemCoupon atomically claims one use of a coupon for accountID and
// applies the grant to the account's ledger. The per-account uniqueness,
// the use-count ceiling, the expiry check and the ledger credit are one
// transaction: concurrent redemptions of a single-use code by the same or
// different accounts serialize on the redemption row and the conditional
// counter update, so exactly max_uses redemptions ever succeed.
func (r *Repository) RedeemCoupon(ctx context.Context, code string, accountID int64, now time.Time) (*model.Grant, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin redemption: %w", err)
	}
	defer tx.Rollback(ctx)

	// Per-account one-shot guard. The primary key on (code, account_id)
	// makes the second attempt a no-op insert.
	claim := `
		INSERT INTO coupon_redemptions (code, account_id, redeemed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (code, account_id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, claim, code, accountID, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to claim redemption: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrCouponAlreadyUsed
	}

	// Conditional counter bump doubles as the expiry/limit gate.
	bump := `
		UPDATE coupons
		SET used_count = used_count + 1
		WHERE code = $1
		  AND (expires_at IS NULL OR expires_at > $2)
		  AND (max_uses IS NULL OR used_count < max_uses)
		RETURNING coins, res_ram, res_cpu, res_disk, res_databases, res_allocations, res_backups
	`
	var grant model.Grant
	err = tx.QueryRow(ctx, bump, code, now).Scan(
		&grant.Coins,
		&grant.Resources.RAM,
		&grant.Resources.CPU,
		&grant.Resources.Disk,
		&grant.Resources.Databases,
		&grant.Resources.Allocations,
		&grant.Resources.Backups,
	)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to redeem coupon: %w", err)
		}
		// Rejected: classify before rolling back.
		return nil, r.classifyRedeemFailure(ctx, code, now)
	}

	// Apply the grant to the ledger inside the same transaction.
	apply := `
		UPDATE users
		SET coins           = coins + $2,
		    res_ram         = res_ram + $3,
		    res_cpu         = res_cpu + $4,
		    res_disk        = res_disk + $5,
		    res_databases   = res_databases + $6,
		    res_allocations = res_allocations + $7,
		    res_backups     = res_backups + $8,
		    updated_at      = now()
		WHERE account_id = $1
	`
	applyTag, err := tx.Exec(ctx, apply, accountID,
		grant.Coins,
		grant.Resources.RAM, grant.Resources.CPU, grant.Resources.Disk,
		grant.Resources.Databases, grant.Resources.Allocations, grant.Resources.Backups,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to apply grant: %w", err)
	}
	if applyTag.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit redemption: %w", err)
	}
	return &grant, nil
}

// classifyRedeemFailure decides which rejection to report when the
// conditional redeem matched no row.
func (r *Repository) classifyRedeemFailure(ctx context.Context, code string, now time.Time) error {
	coupon, err := r.GetCoupon(ctx, code)
	if err != nil {
		return err
	}
	if coupon.IsExpired(now) {
		return ErrCouponExpired
	}
	if !coupon.UsesRemaining() {
		return ErrCouponLimitReached
	}
	return fmt.Errorf("coupon %q rejected for unknown reason", code)
}
