package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shadenhost/shaden/internal/model"
)

const serverColumns = `
	id, owner_id, external_id, name, plan,
	res_ram, res_cpu, res_disk, res_databases, res_allocations, res_backups,
	status, expires_at, created_at, updated_at
`

func scanServer(row pgx.Row) (*model.Server, error) {
	var s model.Server
	err := row.Scan(
		&s.ID,
		&s.OwnerID,
		&s.ExternalID,
		&s.Name,
		&s.Plan,
		&s.Resources.RAM,
		&s.Resources.CPU,
		&s.Resources.Disk,
		&s.Resources.Databases,
		&s.Resources.Allocations,
		&s.Resources.Backups,
		&s.Status,
		&s.ExpiresAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServerNotFound
		}
		return nil, err
	}
	return &s, nil
}

// CreateServer inserts a new server record.
func (r *Repository) CreateServer(ctx context.Context, server *model.Server) error {
	query := `
		INSERT INTO servers (
			id, owner_id, external_id, name, plan,
			res_ram, res_cpu, res_disk, res_databases, res_allocations, res_backups,
			status, expires_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.pool.Exec(ctx, query,
		server.ID,
		server.OwnerID,
		server.ExternalID,
		server.Name,
		server.Plan,
		server.Resources.RAM,
		server.Resources.CPU,
		server.Resources.Disk,
		server.Resources.Databases,
		server.Resources.Allocations,
		server.Resources.Backups,
		server.Status,
		server.ExpiresAt,
		server.CreatedAt,
		server.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return nil
}

// GetServer retrieves a server by its internal id.
func (r *Repository) GetServer(ctx context.Context, id uuid.UUID) (*model.Server, error) {
	query := `SELECT ` + serverColumns + ` FROM servers WHERE id = $1`

	server, err := scanServer(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrServerNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	return server, nil
}

// ListServersByOwner returns all of an account's server records, newest
// first.
func (r *Repository) ListServersByOwner(ctx context.Context, ownerID int64) ([]*model.Server, error) {
	query := `
		SELECT ` + serverColumns + `
		FROM servers
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	var servers []*model.Server
	for rows.Next() {
		server, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		servers = append(servers, server)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating servers: %w", err)
	}
	return servers, nil
}

// MarkServerProvisioned records the panel-assigned id and moves the server
// from Creating to Running. Conditional on the record still being in
// Creating without an external id, so redelivered create jobs become
// no-ops. Returns ErrServerNotFound if nothing matched.
func (r *Repository) MarkServerProvisioned(ctx context.Context, id uuid.UUID, externalID int64) error {
	query := `
		UPDATE servers
		SET external_id = $2, status = $3, updated_at = now()
		WHERE id = $1 AND status = $4 AND external_id IS NULL
	`

	tag, err := r.pool.Exec(ctx, query, id, externalID, model.StatusRunning, model.StatusCreating)
	if err != nil {
		return fmt.Errorf("failed to mark server provisioned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServerNotFound
	}
	return nil
}

// UpdateServerStatus transitions a server's status. The legal-transition
// set is enforced in SQL so concurrent writers cannot revive a deleted
// record or skip states.
func (r *Repository) UpdateServerStatus(ctx context.Context, id uuid.UUID, from, to model.ServerStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}

	query := `
		UPDATE servers
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`

	tag, err := r.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update server status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServerNotFound
	}
	return nil
}

// DeleteServer removes a server record and returns the removed row, which
// carries the external id the cleanup job needs.
func (r *Repository) DeleteServer(ctx context.Context, id uuid.UUID) (*model.Server, error) {
	query := `DELETE FROM servers WHERE id = $1 RETURNING ` + serverColumns

	server, err := scanServer(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrServerNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("failed to delete server: %w", err)
	}
	return server, nil
}

// RenewServer extends a server's expiry by days after debiting cost from
// the owner's ledger, as one transaction. A failed debit leaves expires_at
// untouched; a missing server leaves the balance untouched.
func (r *Repository) RenewServer(ctx context.Context, id uuid.UUID, ownerID int64, days int, cost int64) (*model.Server, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin renewal: %w", err)
	}
	defer tx.Rollback(ctx)

	debit := `
		UPDATE users
		SET coins = coins - $2, updated_at = now()
		WHERE account_id = $1 AND coins >= $2
		RETURNING coins
	`
	var remaining int64
	if err := tx.QueryRow(ctx, debit, ownerID, cost).Scan(&remaining); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to debit renewal cost: %w", err)
		}
		var available int64
		if err := tx.QueryRow(ctx, `SELECT coins FROM users WHERE account_id = $1`, ownerID).Scan(&available); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to inspect owner: %w", err)
		}
		return nil, &InsufficientFundsError{Needed: cost, Available: available}
	}

	extend := `
		UPDATE servers
		SET expires_at = expires_at + make_interval(days => $3), updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND status <> 'deleted'
		RETURNING ` + serverColumns

	server, err := scanServer(tx.QueryRow(ctx, extend, id, ownerID, days))
	if err != nil {
		if errors.Is(err, ErrServerNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("failed to extend expiry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit renewal: %w", err)
	}
	return server, nil
}
