package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/shadenhost/shaden/internal/config"
	"github.com/shadenhost/shaden/internal/model"
	"github.com/shadenhost/shaden/internal/panel"
	"github.com/shadenhost/shaden/internal/queue"
	"github.com/shadenhost/shaden/internal/repository"
)

// Server name format: 3-48 chars, letters, digits, space, hyphen, underscore.
var serverNameRegex = regexp.MustCompile(`^[a-zA-Z0-9 _-]{3,48}$`)

// ServerStore is the slice of the repository the server service needs.
type ServerStore interface {
	GetOrCreateUser(ctx context.Context, accountID int64) (*model.User, error)
	Debit(ctx context.Context, accountID, amount int64) (int64, error)
	Credit(ctx context.Context, accountID, amount int64) (int64, error)
	CreateServer(ctx context.Context, server *model.Server) error
	GetServer(ctx context.Context, id uuid.UUID) (*model.Server, error)
	ListServersByOwner(ctx context.Context, ownerID int64) ([]*model.Server, error)
	UpdateServerStatus(ctx context.Context, id uuid.UUID, from, to model.ServerStatus) error
	DeleteServer(ctx context.Context, id uuid.UUID) (*model.Server, error)
	RenewServer(ctx context.Context, id uuid.UUID, ownerID int64, days int, cost int64) (*model.Server, error)
}

// Enqueuer is the producer side of the job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *model.QueueJob) error
	Length(ctx context.Context) (int64, error)
	Position(ctx context.Context, accountID int64) (int, bool, error)
}

// PowerClient sends power signals to the panel.
type PowerClient interface {
	Power(ctx context.Context, externalID int64, signal panel.PowerSignal) error
}

// ServerService handles purchase, lifecycle and power control of servers.
type ServerService struct {
	store           ServerStore
	queue           Enqueuer
	panel           PowerClient
	catalog         *config.Catalog
	logger          *slog.Logger
	renewCostPerDay int64
	renewEnabled    bool
	deleteEnabled   bool
}

// NewServerService creates a ServerService.
func NewServerService(store ServerStore, q Enqueuer, p PowerClient, catalog *config.Catalog, cfg *config.Config, logger *slog.Logger) *ServerService {
	return &ServerService{
		store:           store,
		queue:           q,
		panel:           p,
		catalog:         catalog,
		logger:          logger.With("component", "service.server"),
		renewCostPerDay: cfg.RenewCostPerDay,
		renewEnabled:    cfg.EnableRenew,
		deleteEnabled:   cfg.EnableDelete,
	}
}

// Plans returns the purchasable plans.
func (s *ServerService) Plans() []config.Plan {
	plans := make([]config.Plan, 0, len(s.catalog.Plans))
	for _, plan := range s.catalog.Plans {
		if plan.Enabled {
			plans = append(plans, plan)
		}
	}
	return plans
}

// Purchase debits a plan's price, records the server in Creating and
// enqueues the provisioning job. The record is created before the job so
// the worker always finds it; if the job cannot be enqueued the purchase
// is unwound.
func (s *ServerService) Purchase(ctx context.Context, accountID int64, name, planID string) (*model.Server, error) {
	name = strings.TrimSpace(name)
	if !serverNameRegex.MatchString(name) {
		return nil, ErrInvalidServerName
	}

	plan, ok := s.catalog.FindPlan(planID)
	if !ok {
		return nil, ErrPlanNotFound
	}

	user, err := s.store.GetOrCreateUser(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !user.Resources.Covers(plan.Resources) {
		return nil, ErrInsufficientResources
	}

	if plan.Price > 0 {
		if _, err := s.store.Debit(ctx, accountID, plan.Price); err != nil {
			return nil, err
		}
	}

	server := model.NewServer(accountID, name, plan.ID, plan.Resources)
	if err := s.store.CreateServer(ctx, server); err != nil {
		s.refund(ctx, accountID, plan.Price, "record creation failed")
		return nil, fmt.Errorf("create server record: %w", err)
	}

	job, err := model.NewQueueJob(model.JobCreateServer, accountID, model.CreateServerPayload{ServerID: server.ID})
	if err == nil {
		err = s.queue.Enqueue(ctx, job)
	}
	if err != nil {
		// Unwind: drop the record and give the coins back. The worker
		// never saw this server.
		if _, delErr := s.store.DeleteServer(ctx, server.ID); delErr != nil {
			s.logger.Error("purchase unwind failed", "server_id", server.ID, "error", delErr)
		}
		s.refund(ctx, accountID, plan.Price, "enqueue failed")
		return nil, fmt.Errorf("enqueue provisioning job: %w", err)
	}

	s.logger.Info("server purchased",
		"server_id", server.ID, "account_id", accountID, "plan", plan.ID, "price", plan.Price)
	return server, nil
}

// refund is the compensation path for a purchase that failed after the
// debit. Failure here is logged and left to the operator.
func (s *ServerService) refund(ctx context.Context, accountID, amount int64, reason string) {
	if amount <= 0 {
		return
	}
	if _, err := s.store.Credit(ctx, accountID, amount); err != nil {
		s.logger.Error("refund failed",
			"account_id", accountID, "amount", amount, "reason", reason, "error", err)
	}
}

// List returns an account's servers.
func (s *ServerService) List(ctx context.Context, accountID int64) ([]*model.Server, error) {
	return s.store.ListServersByOwner(ctx, accountID)
}

// Get returns one of an account's servers. Asking for another account's
// server reports not-found rather than confirming it exists.
func (s *ServerService) Get(ctx context.Context, accountID int64, id uuid.UUID) (*model.Server, error) {
	server, err := s.store.GetServer(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrServerNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, err
	}
	if server.OwnerID != accountID {
		return nil, ErrServerNotFound
	}
	return server, nil
}

// Delete removes an account's server record and enqueues panel cleanup.
// The record goes first so the server disappears from the owner's view
// immediately; the panel instance follows asynchronously.
func (s *ServerService) Delete(ctx context.Context, accountID int64, id uuid.UUID) error {
	if !s.deleteEnabled {
		return ErrFeatureDisabled
	}

	if _, err := s.Get(ctx, accountID, id); err != nil {
		return err
	}

	removed, err := s.store.DeleteServer(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrServerNotFound) {
			return ErrServerNotFound
		}
		return err
	}

	job, err := model.NewQueueJob(model.JobDeleteServer, accountID, model.DeleteServerPayload{
		ServerID:   removed.ID,
		ExternalID: removed.ExternalID,
	})
	if err == nil {
		err = s.queue.Enqueue(ctx, job)
	}
	if err != nil {
		// The record is gone either way; the panel instance is orphaned
		// until an operator removes it.
		s.logger.Error("cleanup job not enqueued",
			"server_id", removed.ID, "external_id", removed.ExternalID, "error", err)
		return fmt.Errorf("enqueue cleanup job: %w", err)
	}

	s.logger.Info("server deleted", "server_id", id, "account_id", accountID)
	return nil
}

// Renew extends a server's expiry by days at the configured per-day cost.
func (s *ServerService) Renew(ctx context.Context, accountID int64, id uuid.UUID, days int) (*model.Server, error) {
	if !s.renewEnabled {
		return nil, ErrFeatureDisabled
	}
	if days <= 0 {
		return nil, ErrInvalidDuration
	}

	cost := int64(days) * s.renewCostPerDay
	server, err := s.store.RenewServer(ctx, id, accountID, days, cost)
	if err != nil {
		if errors.Is(err, repository.ErrServerNotFound) {
			return nil, ErrServerNotFound
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.logger.Info("server renewed",
		"server_id", id, "account_id", accountID, "days", days, "cost", cost)
	return server, nil
}

// Power sends a power signal to a provisioned server and tracks the
// resulting status. Start and stop flip the record; restart and kill
// leave it as is.
func (s *ServerService) Power(ctx context.Context, accountID int64, id uuid.UUID, signal panel.PowerSignal) (*model.Server, error) {
	if !signal.IsValid() {
		return nil, ErrInvalidPowerSignal
	}

	server, err := s.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if server.ExternalID == nil {
		return nil, ErrServerNotProvisioned
	}

	from, to := server.Status, server.Status
	switch signal {
	case panel.PowerStart:
		to = model.StatusRunning
	case panel.PowerStop, panel.PowerKill:
		to = model.StatusStopped
	}
	if to != from && !from.CanTransitionTo(to) {
		return nil, ErrInvalidTransition
	}

	if err := s.panel.Power(ctx, *server.ExternalID, signal); err != nil {
		return nil, fmt.Errorf("power %s: %w", signal, err)
	}

	if to != from {
		if err := s.store.UpdateServerStatus(ctx, id, from, to); err != nil {
			// The panel accepted the signal; a lost status race only
			// skews the cached state.
			s.logger.Warn("status update after power signal failed",
				"server_id", id, "from", from, "to", to, "error", err)
		} else {
			server.Status = to
		}
	}

	s.logger.Info("power signal sent", "server_id", id, "signal", signal)
	return server, nil
}

// QueueStatus reports pending queue depth and, when the account has a job
// waiting, its 1-based position.
type QueueStatus struct {
	Depth    int64
	Position int
	Queued   bool
}

// Queue returns a best-effort snapshot of the provisioning queue as seen
// by one account.
func (s *ServerService) Queue(ctx context.Context, accountID int64) (*QueueStatus, error) {
	depth, err := s.queue.Length(ctx)
	if err != nil {
		return nil, err
	}
	pos, queued, err := s.queue.Position(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &QueueStatus{Depth: depth, Position: pos, Queued: queued}, nil
}

var (
	_ ServerStore = (*repository.Repository)(nil)
	_ Enqueuer    = (*queue.Queue)(nil)
	_ PowerClient = (*panel.Client)(nil)
)
