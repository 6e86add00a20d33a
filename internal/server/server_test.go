package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/ledger/internal/auth"
	"github.com/congo-pay/ledger/internal/config"
	"github.com/congo-pay/ledger/internal/logging"
	"github.com/congo-pay/ledger/internal/metrics"
	"github.com/congo-pay/ledger/internal/money"
	"github.com/congo-pay/ledger/internal/routes"
)

type harness struct {
	t      *testing.T
	app    *fiber.App
	tokens *auth.Tokens
	keys   int
}

func newHarness(t *testing.T, cache *redis.Client) *harness {
	t.Helper()
	tokens, err := auth.NewTokens("test-secret", "CongoLedger")
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	limit, _ := money.FromMajor(50_000)
	srv, err := New(routes.Deps{
		Cfg: config.Config{
			AppName:         "CongoLedger",
			AppEnv:          "test",
			LockTimeout:     time.Second,
			IdempotencyTTL:  time.Minute,
			DefaultCurrency: "INR",
			WithdrawalLimit: limit,
		},
		Cache:   cache,
		Logger:  logging.Discard(),
		Metrics: metrics.New(),
		Tokens:  tokens,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &harness{t: t, app: srv.App(), tokens: tokens}
}

func (h *harness) do(method, path, actor, body string) (int, map[string]any) {
	h.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if actor != "" {
		token, err := h.tokens.Issue(actor, time.Minute)
		if err != nil {
			h.t.Fatalf("issue token: %v", err)
		}
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if method != fiber.MethodGet {
		h.keys++
		req.Header.Set("Idempotency-Key", fmt.Sprintf("key-%d", h.keys))
	}
	resp, err := h.app.Test(req, 5000)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read body: %v", err)
	}
	decoded := map[string]any{}
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded
}

func (h *harness) open(actor string) (id, number string) {
	h.t.Helper()
	status, body := h.do(fiber.MethodPost, "/api/v1/accounts", actor, `{"type":"savings"}`)
	if status != fiber.StatusCreated {
		h.t.Fatalf("open account: %d %v", status, body)
	}
	return body["id"].(string), body["account_number"].(string)
}

func balanceOf(body map[string]any, key string) string {
	acc, _ := body[key].(map[string]any)
	b, _ := acc["balance"].(string)
	return b
}

func TestLedgerFlowOverHTTP(t *testing.T) {
	h := newHarness(t, nil)

	aliceID, _ := h.open("alice")
	bobID, bobNumber := h.open("bob")

	status, body := h.do(fiber.MethodPost, "/api/v1/accounts/"+aliceID+"/deposit", "alice", `{"amount":"1000.00"}`)
	if status != fiber.StatusOK || balanceOf(body, "account") != "1000.00" {
		t.Fatalf("deposit: %d %v", status, body)
	}

	status, body = h.do(fiber.MethodPost, "/api/v1/transactions/transfer", "alice",
		fmt.Sprintf(`{"from_account_id":%q,"to_account_number":%q,"amount":250}`, aliceID, bobNumber))
	if status != fiber.StatusOK || balanceOf(body, "from_account") != "750.00" {
		t.Fatalf("transfer: %d %v", status, body)
	}

	status, body = h.do(fiber.MethodPost, "/api/v1/accounts/"+bobID+"/withdraw", "bob", `{"amount":"300.00"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected insufficient funds, got %d %v", status, body)
	}

	status, body = h.do(fiber.MethodGet, "/api/v1/accounts/"+bobID, "bob", "")
	if status != fiber.StatusOK || body["balance"] != "250.00" || body["formatted_balance"] != "INR 250.00" {
		t.Fatalf("bob account: %d %v", status, body)
	}

	status, body = h.do(fiber.MethodGet, "/api/v1/transactions/"+aliceID+"?page=1&limit=1", "alice", "")
	if status != fiber.StatusOK {
		t.Fatalf("history: %d %v", status, body)
	}
	pg := body["pagination"].(map[string]any)
	txs := body["transactions"].([]any)
	if pg["total"] != float64(2) || pg["pages"] != float64(2) || len(txs) != 1 {
		t.Fatalf("unexpected page %v", body)
	}
	if txs[0].(map[string]any)["type"] != "transfer" {
		t.Fatalf("expected newest record first, got %v", txs[0])
	}

	status, body = h.do(fiber.MethodGet, "/api/v1/transactions/"+aliceID+"?type=deposit", "alice", "")
	if status != fiber.StatusOK || body["pagination"].(map[string]any)["total"] != float64(1) {
		t.Fatalf("filtered history: %d %v", status, body)
	}

	status, body = h.do(fiber.MethodGet, "/api/v1/transactions", "bob", "")
	if status != fiber.StatusOK || body["pagination"].(map[string]any)["total"] != float64(1) {
		t.Fatalf("actor history: %d %v", status, body)
	}
}

func TestOutcomeStatusCodes(t *testing.T) {
	h := newHarness(t, nil)
	aliceID, aliceNumber := h.open("alice")
	bobID, bobNumber := h.open("bob")

	cases := []struct {
		name   string
		method string
		path   string
		actor  string
		body   string
		status int
	}{
		{"no token", fiber.MethodGet, "/api/v1/accounts", "", "", fiber.StatusUnauthorized},
		{"zero amount", fiber.MethodPost, "/api/v1/accounts/" + aliceID + "/deposit", "alice", `{"amount":"0"}`, fiber.StatusBadRequest},
		{"too many decimals", fiber.MethodPost, "/api/v1/accounts/" + aliceID + "/deposit", "alice", `{"amount":"1.005"}`, fiber.StatusBadRequest},
		{"long description", fiber.MethodPost, "/api/v1/accounts/" + aliceID + "/deposit", "alice",
			`{"amount":"1.00","description":"` + strings.Repeat("x", 201) + `"}`, fiber.StatusBadRequest},
		{"someone else's account", fiber.MethodPost, "/api/v1/accounts/" + bobID + "/deposit", "alice", `{"amount":"1.00"}`, fiber.StatusNotFound},
		{"unknown account", fiber.MethodGet, "/api/v1/accounts/missing", "alice", "", fiber.StatusNotFound},
		{"same account", fiber.MethodPost, "/api/v1/transactions/transfer", "alice",
			fmt.Sprintf(`{"from_account_id":%q,"to_account_number":%q,"amount":"1.00"}`, aliceID, aliceNumber), fiber.StatusBadRequest},
		{"unknown destination", fiber.MethodPost, "/api/v1/transactions/transfer", "alice",
			fmt.Sprintf(`{"from_account_id":%q,"to_account_number":"000000000000","amount":"1.00"}`, aliceID), fiber.StatusNotFound},
		{"bad type filter", fiber.MethodGet, "/api/v1/transactions/" + aliceID + "?type=refund", "alice", "", fiber.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if status, body := h.do(tc.method, tc.path, tc.actor, tc.body); status != tc.status {
				t.Fatalf("expected %d got %d %v", tc.status, status, body)
			}
		})
	}

	if status, _ := h.do(fiber.MethodDelete, "/api/v1/accounts/"+bobID, "bob", ""); status != fiber.StatusOK {
		t.Fatalf("deactivate: %d", status)
	}
	status, body := h.do(fiber.MethodPost, "/api/v1/transactions/transfer", "alice",
		fmt.Sprintf(`{"from_account_id":%q,"to_account_number":%q,"amount":"1.00"}`, aliceID, bobNumber))
	if status != fiber.StatusConflict {
		t.Fatalf("expected inactive destination to conflict, got %d %v", status, body)
	}
}

func TestIdempotentDepositOverHTTP(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()
	h := newHarness(t, cache)
	aliceID, _ := h.open("alice")

	token, _ := h.tokens.Issue("alice", time.Minute)
	deposit := func() int {
		req := httptest.NewRequest(fiber.MethodPost, "/api/v1/accounts/"+aliceID+"/deposit", strings.NewReader(`{"amount":"10.00"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		req.Header.Set("Idempotency-Key", "deposit-once")
		resp, err := h.app.Test(req, 5000)
		if err != nil {
			t.Fatalf("deposit: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if deposit() != fiber.StatusOK || deposit() != fiber.StatusOK {
		t.Fatal("expected both deposits to succeed")
	}

	status, body := h.do(fiber.MethodGet, "/api/v1/accounts/"+aliceID, "alice", "")
	if status != fiber.StatusOK || body["balance"] != "10.00" {
		t.Fatalf("retried deposit applied twice: %d %v", status, body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, nil)
	if status, body := h.do(fiber.MethodGet, "/healthz", "", ""); status != fiber.StatusOK {
		t.Fatalf("healthz: %d %v", status, body)
	}

	aliceID, _ := h.open("alice")
	h.do(fiber.MethodPost, "/api/v1/accounts/"+aliceID+"/deposit", "alice", `{"amount":"5.00"}`)

	resp, err := h.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), 5000)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), `ledger_operations_total{operation="deposit",outcome="ok"} 1`) {
		t.Fatalf("deposit not counted:\n%s", raw)
	}
}
