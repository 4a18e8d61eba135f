//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shadenhost/shaden/internal/auth"
	"github.com/shadenhost/shaden/internal/model"
	"github.com/shadenhost/shaden/internal/repository"
)

type apiKeyCreateResponse struct {
	ID     string   `json:"id"`
	Key    string   `json:"key"`
	Scopes []string `json:"scopes"`
}

type accountResponse struct {
	AccountID int64           `json:"account_id"`
	Coins     int64           `json:"coins"`
	Resources model.Resources `json:"resources"`
}

type balanceResponse struct {
	AccountID int64 `json:"account_id"`
	Coins     int64 `json:"coins"`
}

type grantResponse struct {
	Coins     int64           `json:"coins"`
	Resources model.Resources `json:"resources"`
}

type orderResponse struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

func TestE2ESmoke(t *testing.T) {
	baseURL := envOrDefault("SHADEN_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	bootstrapKey := bootstrapAdminKey(t, dbURL)
	testKey := createAPIKey(t, baseURL, bootstrapKey)

	accountID := time.Now().UnixNano() % 1_000_000_000

	// First login creates the ledger with a zero balance.
	var account accountResponse
	status := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/accounts/%d/login", baseURL, accountID), testKey, nil, &account)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from login, got %d", status)
	}
	if account.AccountID != accountID {
		t.Fatalf("login returned account %d, want %d", account.AccountID, accountID)
	}

	// Fund the account through the admin surface.
	var funded balanceResponse
	payload := map[string]any{"amount": 1000}
	status = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/admin/accounts/%d/credit", baseURL, accountID), testKey, payload, &funded)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from admin credit, got %d", status)
	}
	if funded.Coins != 1000 {
		t.Fatalf("expected 1000 coins after credit, got %d", funded.Coins)
	}

	buyStoreItem(t, baseURL, testKey, accountID)
	redeemCoupon(t, baseURL, testKey, accountID)
	completeCheckout(t, baseURL, testKey, accountID)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func bootstrapAdminKey(t *testing.T, dbURL string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer repo.Close()

	generated, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}

	apiKey := &model.APIKey{
		ID:        ulid.Make().String(),
		Name:      "e2e-bootstrap",
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Scopes:    []string{model.ScopeAdmin},
		CreatedAt: time.Now().UTC(),
	}

	if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
		t.Fatalf("create api key: %v", err)
	}

	return generated.Plaintext
}

func createAPIKey(t *testing.T, baseURL, bootstrapKey string) string {
	t.Helper()

	payload := map[string]any{
		"name":   "e2e-key",
		"scopes": []string{"admin"},
	}

	var resp apiKeyCreateResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/admin/keys", bootstrapKey, payload, &resp)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from api key create, got %d", status)
	}
	if resp.Key == "" {
		t.Fatalf("api key response missing key")
	}
	return resp.Key
}

func buyStoreItem(t *testing.T, baseURL, apiKey string, accountID int64) {
	t.Helper()

	before := getAccount(t, baseURL, apiKey, accountID)

	// ram_512 ships in the default catalog at 100 coins.
	payload := map[string]any{"item_id": "ram_512"}
	var after accountResponse
	status := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/accounts/%d/store/buy", baseURL, accountID), apiKey, payload, &after)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from store buy, got %d", status)
	}
	if after.Coins != before.Coins-100 {
		t.Fatalf("expected %d coins after purchase, got %d", before.Coins-100, after.Coins)
	}
	if after.Resources.RAM != before.Resources.RAM+512 {
		t.Fatalf("expected ram grant of 512, got %d -> %d", before.Resources.RAM, after.Resources.RAM)
	}
}

func redeemCoupon(t *testing.T, baseURL, apiKey string, accountID int64) {
	t.Helper()

	code := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	create := map[string]any{"code": code, "coins": 250}
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/admin/coupons", apiKey, create, nil)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from coupon create, got %d", status)
	}

	before := getAccount(t, baseURL, apiKey, accountID)

	redeem := map[string]any{"code": code}
	var grant grantResponse
	status = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/accounts/%d/redeem", baseURL, accountID), apiKey, redeem, &grant)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from redeem, got %d", status)
	}
	if grant.Coins != 250 {
		t.Fatalf("expected grant of 250 coins, got %d", grant.Coins)
	}

	after := getAccount(t, baseURL, apiKey, accountID)
	if after.Coins != before.Coins+250 {
		t.Fatalf("redeem did not credit the ledger: %d -> %d", before.Coins, after.Coins)
	}

	// Second redemption by the same account must be rejected.
	status = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/accounts/%d/redeem", baseURL, accountID), apiKey, redeem, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 from second redemption, got %d", status)
	}
}

func completeCheckout(t *testing.T, baseURL, apiKey string, accountID int64) {
	t.Helper()

	before := getAccount(t, baseURL, apiKey, accountID)

	sessionID := fmt.Sprintf("cs_e2e_%d", time.Now().UnixNano())
	begin := map[string]any{"session_id": sessionID, "amount_cents": 499, "coins": 500}
	var order orderResponse
	status := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/accounts/%d/checkout", baseURL, accountID), apiKey, begin, &order)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from checkout begin, got %d", status)
	}
	if order.Status != "pending" {
		t.Fatalf("expected pending order, got %q", order.Status)
	}

	event := map[string]any{"session_id": sessionID, "status": "completed"}
	status = doJSON(t, http.MethodPost, baseURL+"/api/v1/checkout/events", apiKey, event, &order)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from completion event, got %d", status)
	}

	after := getAccount(t, baseURL, apiKey, accountID)
	if after.Coins != before.Coins+500 {
		t.Fatalf("completion did not credit 500 coins: %d -> %d", before.Coins, after.Coins)
	}

	// Redelivered event is acknowledged without a second credit.
	status = doJSON(t, http.MethodPost, baseURL+"/api/v1/checkout/events", apiKey, event, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from redelivered event, got %d", status)
	}
	again := getAccount(t, baseURL, apiKey, accountID)
	if again.Coins != after.Coins {
		t.Fatalf("redelivered event credited again: %d -> %d", after.Coins, again.Coins)
	}
}

func getAccount(t *testing.T, baseURL, apiKey string, accountID int64) accountResponse {
	t.Helper()

	var resp accountResponse
	status := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/accounts/%d", baseURL, accountID), apiKey, nil, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from account get, got %d", status)
	}
	return resp
}

func doJSON(t *testing.T, method, url, apiKey string, body any, out any) int {
	t.Helper()

	var buf io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		buf = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		decoder := json.NewDecoder(resp.Body)
		if err := decoder.Decode(out); err != nil && resp.ContentLength != 0 {
			t.Fatalf("decode response: %v", err)
		}
	}

	return resp.StatusCode
}

// TestE2ENoSecretsInResponses validates that API keys are never echoed back.
func TestE2ENoSecretsInResponses(t *testing.T) {
	baseURL := envOrDefault("SHADEN_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	bootstrapKey := bootstrapAdminKey(t, dbURL)

	client := &http.Client{Timeout: 10 * time.Second}

	// Error responses must not leak the Authorization header value.
	fakeKey := "sh_live_fake00_" + strings.Repeat("x", 32)
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/plans", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+fakeKey)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	bodyStr := string(body)
	if strings.Contains(bodyStr, fakeKey) {
		t.Error("SECURITY: Error response leaked Authorization header value")
	}
	if strings.Contains(bodyStr, bootstrapKey) {
		t.Error("SECURITY: Response contains the bootstrap API key")
	}

	// Key listings must carry prefixes only, never the full key.
	req2, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/admin/keys", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req2.Header.Set("Authorization", "Bearer "+bootstrapKey)

	resp2, err := client.Do(req2)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if strings.Contains(string(body2), bootstrapKey) {
		t.Error("SECURITY: Key listing echoed back a full API key")
	}
}
