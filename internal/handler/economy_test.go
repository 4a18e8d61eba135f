package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shadenhost/shaden/internal/config"
	"github.com/shadenhost/shaden/internal/handler/dto"
	"github.com/shadenhost/shaden/internal/model"
	"github.com/shadenhost/shaden/internal/repository"
	"github.com/shadenhost/shaden/internal/service"
)

// fakeStore backs the handler tests with in-memory ledgers, coupons and
// orders. It mirrors the repository's conditional-update semantics.
type fakeStore struct {
	mu          sync.Mutex
	users       map[int64]*model.User
	coupons     map[string]*model.Coupon
	redemptions map[string]map[int64]bool
	orders      map[string]*model.Order
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[int64]*model.User),
		coupons:     make(map[string]*model.Coupon),
		redemptions: make(map[string]map[int64]bool),
		orders:      make(map[string]*model.Order),
	}
}

func (f *fakeStore) GetUser(ctx context.Context, accountID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[accountID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetOrCreateUser(ctx context.Context, accountID int64) (*model.User, error) {
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

func (f *fakeStore) Credit(ctx context.Context, accountID, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[accountID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	u.Coins += amount
	return u.Coins, nil
}

func (f *fakeStore) Debit(ctx context.Context, accountID, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeStore) SetCoins(ctx context.Context, accountID, coins int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[accountID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Coins = coins
	return nil
}

func (f *fakeStore) GrantResources(ctx context.Context, accountID int64, delta model.Resources) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[accountID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Resources = u.Resources.Add(delta)
	return nil
}

func (f *fakeStore) Transfer(ctx context.Context, fromID, toID, amount int64) error {
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

func (f *fakeStore) PurchaseItem(ctx context.Context, accountID, price int64, grant model.Resources) (*model.User, error) {
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

func (f *fakeStore) GetEconomyStats(ctx context.Context) (*repository.EconomyStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repository.EconomyStats{Users: int64(len(f.users))}
	for _, u := range f.users {
		stats.TotalCoins += u.Coins
	}
	return stats, nil
}

func (f *fakeStore) CreateCoupon(ctx context.Context, coupon *model.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.coupons[coupon.Code]; exists {
		return repository.ErrCouponExists
	}
	cp := *coupon
	f.coupons[coupon.Code] = &cp
	return nil
}

func (f *fakeStore) GetCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[code]
	if !ok {
		return nil, repository.ErrCouponNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) ListCoupons(ctx context.Context) ([]*model.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Coupon, 0, len(f.coupons))
	for _, c := range f.coupons {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) RevokeCoupon(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.coupons[code]; !ok {
		return repository.ErrCouponNotFound
	}
	delete(f.coupons, code)
	return nil
}

func (f *fakeStore) RedeemCoupon(ctx context.Context, code string, accountID int64, now time.Time) (*model.Grant, error) {
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

func (f *fakeStore) CreateOrder(ctx context.Context, order *model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.orders[order.SessionID]; exists {
		return repository.ErrSessionExists
	}
	cp := *order
	f.orders[order.SessionID] = &cp
	return nil
}

func (f *fakeStore) GetOrderBySession(ctx context.Context, sessionID string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[sessionID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) CompleteOrder(ctx context.Context, sessionID string) (*model.Order, error) {
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

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testCatalog() *config.Catalog {
	ram := model.Resources{RAM: 1024}
	return &config.Catalog{
		Items: []config.StoreItem{
			{ID: "ram-1g", Name: "1 GB RAM", Price: 100, Resources: &ram, Enabled: true},
		},
	}
}

// newEconomyRouter wires the economy and coupon handlers onto a router the
// way cmd/api does, minus auth.
func newEconomyRouter(store *fakeStore) *chi.Mux {
	logger := discardLogger()
	cfg := &config.Config{AFKReward: 10, TaskReward: 25, EnableTransfer: true}

	economy := NewEconomyHandler(service.NewEconomyService(store, testCatalog(), cfg, logger), logger)
	coupons := NewCouponHandler(service.NewCouponService(store, logger), logger)
	checkout := NewCheckoutHandler(service.NewOrderService(store, logger), logger)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Post("/login", economy.Login)
			r.Get("/", economy.Get)
			r.Post("/transfer", economy.Transfer)
			r.Post("/rewards", economy.Reward)
			r.Post("/store/buy", economy.BuyItem)
			r.Post("/redeem", coupons.Redeem)
			r.Post("/checkout", checkout.Begin)
		})
		r.Post("/checkout/events", checkout.Event)
		r.Get("/checkout/sessions/{sessionID}", checkout.Get)
	})
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestEconomy_LoginCreatesAccount(t *testing.T) {
	store := newFakeStore()
	router := newEconomyRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/accounts/42/login", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.AccountResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.AccountID != 42 || resp.Coins != 0 {
		t.Fatalf("unexpected account: %+v", resp)
	}
}

func TestEconomy_GetUnknownAccount(t *testing.T) {
	store := newFakeStore()
	router := newEconomyRouter(store)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/accounts/42/", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "ACCOUNT_NOT_FOUND" {
		t.Errorf("unexpected error code: %s", resp.Code)
	}
}

func TestEconomy_InvalidAccountID(t *testing.T) {
	store := newFakeStore()
	router := newEconomyRouter(store)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/accounts/not-a-number/", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestEconomy_TransferInsufficientFunds(t *testing.T) {
	store := newFakeStore()
	router := newEconomyRouter(store)

	store.users[1] = &model.User{AccountID: 1, Coins: 30}
	store.users[2] = &model.User{AccountID: 2}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/accounts/1/transfer",
		dto.TransferRequest{To: 2, Amount: 100})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected status 402, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "INSUFFICIENT_FUNDS" {
		t.Errorf("unexpected error code: %s", resp.Code)
	}
	if resp.Needed == nil || *resp.Needed != 100 {
		t.Errorf("expected needed=100, got %v", resp.Needed)
	}
	if resp.Available == nil || *resp.Available != 30 {
		t.Errorf("expected available=30, got %v", resp.Available)
	}
	if store.users[1].Coins != 30 || store.users[2].Coins != 0 {
		t.Errorf("balances changed on rejected transfer: %d, %d",
			store.users[1].Coins, store.users[2].Coins)
	}
}

func TestEconomy_RewardCreditsBalance(t *testing.T) {
	store := newFakeStore()
	router := newEconomyRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/accounts/7/rewards",
		dto.RewardRequest{Kind: "task"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.BalanceResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Coins != 25 {
		t.Errorf("expected balance 25, got %d", resp.Coins)
	}
}

func TestEconomy_BuyItemGrantsResources(t *testing.T) {
	store := newFakeStore()
	router := newEconomyRouter(store)

	store.users[5] = &model.User{AccountID: 5, Coins: 150}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/accounts/5/store/buy",
		dto.BuyItemRequest{ItemID: "ram-1g"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.AccountResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Coins != 50 {
		t.Errorf("expected 50 coins left, got %d", resp.Coins)
	}
	if resp.Resources.RAM != 1024 {
		t.Errorf("expected 1024 MB RAM granted, got %d", resp.Resources.RAM)
	}
}

func TestEconomy_BuyUnknownItem(t *testing.T) {
	store := newFakeStore()
	router := newEconomyRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/accounts/5/store/buy",
		dto.BuyItemRequest{ItemID: "nope"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestCoupon_RedeemOncePerAccount(t *testing.T) {
	store := newFakeStore()
	router := newEconomyRouter(store)

	store.coupons["welcome"] = &model.Coupon{Code: "welcome", Coins: 500, CreatedAt: time.Now()}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/accounts/9/redeem",
		dto.RedeemRequest{Code: "WELCOME"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var grant dto.GrantResponse
	if err := json.NewDecoder(rec.Body).Decode(&grant); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if grant.Coins != 500 {
		t.Errorf("expected grant of 500 coins, got %d", grant.Coins)
	}

	rec2 := doJSON(t, router, http.MethodPost, "/api/v1/accounts/9/redeem",
		dto.RedeemRequest{Code: "welcome"})
	if rec2.Code != http.StatusConflict {
		t.Fatalf("expected status 409 on second redeem, got %d", rec2.Code)
	}

	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec2.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "COUPON_ALREADY_USED" {
		t.Errorf("unexpected error code: %s", resp.Code)
	}
	if store.users[9].Coins != 500 {
		t.Errorf("expected balance 500 after one redemption, got %d", store.users[9].Coins)
	}
}

func TestCheckout_CompletionIsIdempotent(t *testing.T) {
	store := newFakeStore()
	router := newEconomyRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/accounts/3/checkout",
		dto.BeginCheckoutRequest{SessionID: "cs_123", AmountCents: 499, Coins: 1000})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	event := dto.CheckoutEventRequest{SessionID: "cs_123", Status: "completed"}
	rec2 := doJSON(t, router, http.MethodPost, "/api/v1/checkout/events", event)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec2.Code, rec2.Body.String())
	}

	// Redelivery is answered 200 without a second credit.
	rec3 := doJSON(t, router, http.MethodPost, "/api/v1/checkout/events", event)
	if rec3.Code != http.StatusOK {
		t.Fatalf("expected status 200 on redelivery, got %d", rec3.Code)
	}

	if store.users[3].Coins != 1000 {
		t.Errorf("expected 1000 coins after redelivered completion, got %d", store.users[3].Coins)
	}
}

func TestCheckout_NonCompletionEventDropped(t *testing.T) {
	store := newFakeStore()
	router := newEconomyRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/accounts/3/checkout",
		dto.BeginCheckoutRequest{SessionID: "cs_9", AmountCents: 499, Coins: 1000})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	rec2 := doJSON(t, router, http.MethodPost, "/api/v1/checkout/events",
		dto.CheckoutEventRequest{SessionID: "cs_9", Status: "expired"})
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec2.Code)
	}

	if store.users[3].Coins != 0 {
		t.Errorf("expected no credit for non-completion event, got %d", store.users[3].Coins)
	}
}
