package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shadenhost/shaden/internal/config"
	"github.com/shadenhost/shaden/internal/model"
	"github.com/shadenhost/shaden/internal/panel"
	"github.com/shadenhost/shaden/internal/repository"
)

// fakeRepo is an in-memory stand-in for the repository that mirrors its
// conditional-update semantics closely enough for service tests.
type fakeRepo struct {
	mu          sync.Mutex
	users       map[int64]*model.User
	coupons     map[string]*model.Coupon
	redemptions map[string]map[int64]bool
	servers     map[uuid.UUID]*model.Server
	orders      map[string]*model.Order

	createServerErr error
	debitErr        error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:       make(map[int64]*model.User),
		coupons:     make(map[string]*model.Coupon),
		redemptions: make(map[string]map[int64]bool),
		servers:     make(map[uuid.UUID]*model.Server),
		orders:      make(map[string]*model.Order),
	}
}

func (f *fakeRepo) GetUser(ctx context.Context, accountID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[accountID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) GetOrCreateUser(ctx context.Context, accountID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[accountID]
	if !ok {
		u = &model.User{AccountID: accountID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		f.users[accountID] = u
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) Credit(ctx context.Context, accountID, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[accountID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	u.Coins += amount
	return u.Coins, nil
}

func (f *fakeRepo) Debit(ctx context.Context, accountID, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debitErr != nil {
		return 0, f.debitErr
	}
	u, ok := f.users[accountID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	if u.Coins < amount {
		return 0, &repository.InsufficientFundsError{Needed: amount, Available: u.Coins}
	}
	u.Coins -= amount
	return u.Coins, nil
}

func (f *fakeRepo) SetCoins(ctx context.Context, accountID, coins int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[accountID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Coins = coins
	return nil
}

func (f *fakeRepo) GrantResources(ctx context.Context, accountID int64, delta model.Resources) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[accountID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Resources = u.Resources.Add(delta)
	return nil
}

func (f *fakeRepo) Transfer(ctx context.Context, fromID, toID, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	from, ok := f.users[fromID]
	if !ok {
		return repository.ErrUserNotFound
	}
	to, ok := f.users[toID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if from.Coins < amount {
		return &repository.InsufficientFundsError{Needed: amount, Available: from.Coins}
	}
	from.Coins -= amount
	to.Coins += amount
	return nil
}

func (f *fakeRepo) PurchaseItem(ctx context.Context, accountID, price int64, grant model.Resources) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[accountID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if u.Coins < price {
		return nil, &repository.InsufficientFundsError{Needed: price, Available: u.Coins}
	}
	u.Coins -= price
	u.Resources = u.Resources.Add(grant)
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) GetEconomyStats(ctx context.Context) (*repository.EconomyStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repository.EconomyStats{Users: int64(len(f.users))}
	for _, u := range f.users {
		stats.TotalCoins += u.Coins
	}
	stats.Servers = int64(len(f.servers))
	stats.ActiveCodes = int64(len(f.coupons))
	return stats, nil
}

func (f *fakeRepo) CreateCoupon(ctx context.Context, coupon *model.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.coupons[coupon.Code]; exists {
		return repository.ErrCouponExists
	}
	cp := *coupon
	f.coupons[coupon.Code] = &cp
	return nil
}

func (f *fakeRepo) GetCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[code]
	if !ok {
		return nil, repository.ErrCouponNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeRepo) ListCoupons(ctx context.Context) ([]*model.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Coupon, 0, len(f.coupons))
	for _, c := range f.coupons {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeRepo) RevokeCoupon(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.coupons[code]; !ok {
		return repository.ErrCouponNotFound
	}
	delete(f.coupons, code)
	return nil
}

func (f *fakeRepo) RedeemCoupon(ctx context.Context, code string, accountID int64, now time.Time) (*model.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[code]
	if !ok {
		return nil, repository.ErrCouponNotFound
	}
	if f.redemptions[code] == nil {
		f.redemptions[code] = make(map[int64]bool)
	}
	if f.redemptions[code][accountID] {
		return nil, repository.ErrCouponAlreadyUsed
	}
	if c.IsExpired(now) {
		return nil, repository.ErrCouponExpired
	}
	if !c.UsesRemaining() {
		return nil, repository.ErrCouponLimitReached
	}
	u, ok := f.users[accountID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	f.redemptions[code][accountID] = true
	c.UsedCount++
	grant := c.Grant()
	u.Coins += grant.Coins
	u.Resources = u.Resources.Add(grant.Resources)
	return &grant, nil
}

func (f *fakeRepo) CreateServer(ctx context.Context, server *model.Server) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createServerErr != nil {
		return f.createServerErr
	}
	cp := *server
	f.servers[server.ID] = &cp
	return nil
}

func (f *fakeRepo) GetServer(ctx context.Context, id uuid.UUID) (*model.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.servers[id]
	if !ok {
		return nil, repository.ErrServerNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) ListServersByOwner(ctx context.Context, ownerID int64) ([]*model.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Server
	for _, s := range f.servers {
		if s.OwnerID == ownerID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateServerStatus(ctx context.Context, id uuid.UUID, from, to model.ServerStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.servers[id]
	if !ok || s.Status != from {
		return repository.ErrServerNotFound
	}
	if !from.CanTransitionTo(to) {
		return errors.New("illegal transition")
	}
	s.Status = to
	return nil
}

func (f *fakeRepo) DeleteServer(ctx context.Context, id uuid.UUID) (*model.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.servers[id]
	if !ok {
		return nil, repository.ErrServerNotFound
	}
	delete(f.servers, id)
	return s, nil
}

func (f *fakeRepo) RenewServer(ctx context.Context, id uuid.UUID, ownerID int64, days int, cost int64) (*model.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[ownerID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if u.Coins < cost {
		return nil, &repository.InsufficientFundsError{Needed: cost, Available: u.Coins}
	}
	s, ok := f.servers[id]
	if !ok || s.OwnerID != ownerID || s.Status == model.StatusDeleted {
		return nil, repository.ErrServerNotFound
	}
	u.Coins -= cost
	s.ExpiresAt = s.ExpiresAt.AddDate(0, 0, days)
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) CreateOrder(ctx context.Context, order *model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.orders[order.SessionID]; exists {
		return repository.ErrSessionExists
	}
	cp := *order
	f.orders[order.SessionID] = &cp
	return nil
}

func (f *fakeRepo) GetOrderBySession(ctx context.Context, sessionID string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[sessionID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeRepo) CompleteOrder(ctx context.Context, sessionID string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[sessionID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if o.Status == model.OrderCompleted {
		return nil, repository.ErrOrderCompleted
	}
	u, ok := f.users[o.AccountID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	now := time.Now()
	o.Status = model.OrderCompleted
	o.CompletedAt = &now
	u.Coins += o.Coins
	cp := *o
	return &cp, nil
}

// fakeQueue records enqueued jobs.
type fakeQueue struct {
	mu         sync.Mutex
	jobs       []*model.QueueJob
	enqueueErr error
}

func (q *fakeQueue) Enqueue(ctx context.Context, job *model.QueueJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Length(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

func (q *fakeQueue) Position(ctx context.Context, accountID int64) (int, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, job := range q.jobs {
		if job.AccountID == accountID {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}

// fakePower records power signals.
type fakePower struct {
	mu       sync.Mutex
	signals  []panel.PowerSignal
	powerErr error
}

func (p *fakePower) Power(ctx context.Context, externalID int64, signal panel.PowerSignal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.powerErr != nil {
		return p.powerErr
	}
	p.signals = append(p.signals, signal)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testConfig() *config.Config {
	return &config.Config{
		RenewCostPerDay: 2,
		AFKReward:       10,
		TaskReward:      25,
		EnableTransfer:  true,
		EnableRenew:     true,
		EnableDelete:    true,
	}
}
