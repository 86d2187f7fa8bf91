package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zcoin/internal/app/economy"
	"zcoin/internal/config"
)

const testAdminKey = "secret"

var t0 = time.Date(2026, 7, 1, 20, 0, 0, 0, time.UTC)

type testServer struct {
	*httptest.Server
	svc *economy.Service
}

func newTestServer(t *testing.T, pinger Pinger) *testServer {
	t.Helper()
	holder, err := config.NewEconomyHolder(nil)
	if err != nil {
		t.Fatalf("economy holder: %v", err)
	}
	svc := economy.Build(economy.MemoryStores(), holder, economy.BuildOptions{Now: func() time.Time { return t0 }})
	srv := httptest.NewServer(NewRouter(svc, config.ServerConfig{AdminAPIKey: testAdminKey}, pinger, "test"))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, svc: svc}
}

func (s *testServer) do(t *testing.T, method, path string, body any, admin bool) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin-Key", testAdminKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func (s *testServer) grant(t *testing.T, account string, amount int64) {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/admin/grant", map[string]any{"account": account, "amount": amount}, true)
	if status != http.StatusOK {
		t.Fatalf("grant %s: status=%d body=%v", account, status, body)
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return context.DeadlineExceeded }

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	status, body := s.do(t, http.MethodGet, "/healthz", nil, false)
	if status != http.StatusOK || body["db"] != "memory" {
		t.Fatalf("healthz status=%d body=%v", status, body)
	}

	down := newTestServer(t, downPinger{})
	status, body = down.do(t, http.MethodGet, "/healthz", nil, false)
	if status != http.StatusServiceUnavailable || body["ok"] != false {
		t.Fatalf("healthz down status=%d body=%v", status, body)
	}
}

func TestAdminRequiresKey(t *testing.T) {
	s := newTestServer(t, nil)
	status, body := s.do(t, http.MethodPost, "/api/admin/grant", map[string]any{"account": "alice", "amount": 10}, false)
	if status != http.StatusUnauthorized || body["error"] != "unauthorized" {
		t.Fatalf("status=%d body=%v", status, body)
	}
	s.grant(t, "alice", 10)
}

func TestBalanceTransferAndErrors(t *testing.T) {
	s := newTestServer(t, nil)
	s.grant(t, "alice", 100)

	status, body := s.do(t, http.MethodPost, "/api/transfers", map[string]any{"from": "alice", "to": "bob", "amount": 30, "key": "tip-1"}, false)
	if status != http.StatusOK {
		t.Fatalf("transfer status=%d body=%v", status, body)
	}

	status, body = s.do(t, http.MethodGet, "/api/accounts/bob/balance", nil, false)
	if status != http.StatusOK || body["balance"] != float64(30) {
		t.Fatalf("balance status=%d body=%v", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/api/transfers", map[string]any{"from": "bob", "to": "alice", "amount": 31}, false)
	if status != http.StatusConflict || body["error"] != "insufficient_funds" {
		t.Fatalf("overdraft status=%d body=%v", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/api/transfers", map[string]any{"from": "bob", "to": "@BOB", "amount": 1}, false)
	if status != http.StatusBadRequest || body["error"] != "self_transfer" {
		t.Fatalf("self transfer status=%d body=%v", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/api/transfers", `{"from":`, false)
	if status != http.StatusBadRequest || body["error"] != "invalid_json" {
		t.Fatalf("bad json status=%d body=%v", status, body)
	}

	status, body = s.do(t, http.MethodGet, "/api/accounts/alice/history?limit=1", nil, false)
	items, _ := body["items"].([]any)
	if status != http.StatusOK || len(items) != 1 || body["limit"] != float64(1) {
		t.Fatalf("history status=%d body=%v", status, body)
	}
}

func TestActivitySingleAndBatch(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, http.MethodPost, "/api/activity", map[string]any{"id": "m-1", "account": "alice", "trigger": "chat", "at": t0}, false)
	if status != http.StatusOK || body["amount"] != float64(2) {
		t.Fatalf("activity status=%d body=%v", status, body)
	}
	status, body = s.do(t, http.MethodPost, "/api/activity", map[string]any{"id": "m-2", "account": "alice", "trigger": "chat", "at": t0}, false)
	if status != http.StatusTooManyRequests || body["error"] != "cooldown_active" {
		t.Fatalf("cooldown status=%d body=%v", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/api/activity", map[string]any{"facts": []map[string]any{
		{"id": "p-1", "account": "alice", "trigger": "presence", "at": t0},
		{"id": "x-1", "account": "alice", "trigger": "missing", "at": t0},
	}}, false)
	items, _ := body["items"].([]any)
	if status != http.StatusOK || len(items) != 2 {
		t.Fatalf("batch status=%d body=%v", status, body)
	}
	if code := items[1].(map[string]any)["error"]; code != "unknown_trigger" {
		t.Fatalf("batch error code=%v", code)
	}

	status, body = s.do(t, http.MethodGet, "/api/accounts/alice/streak", nil, false)
	if status != http.StatusOK || body["length"] != float64(1) {
		t.Fatalf("streak status=%d body=%v", status, body)
	}
}

func TestMultiplierAdmin(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, http.MethodPost, "/api/admin/multipliers", map[string]any{"account": "alice", "source": "event", "factor": "1.5", "duration_sec": 600}, true)
	if status != http.StatusOK {
		t.Fatalf("set multiplier status=%d body=%v", status, body)
	}
	status, body = s.do(t, http.MethodGet, "/api/accounts/alice/factor", nil, false)
	if status != http.StatusOK || body["factor"] != "1.5" {
		t.Fatalf("factor status=%d body=%v", status, body)
	}
	status, _ = s.do(t, http.MethodDelete, "/api/admin/multipliers/alice/event", nil, true)
	if status != http.StatusNoContent {
		t.Fatalf("delete multiplier status=%d", status)
	}
	_, body = s.do(t, http.MethodGet, "/api/accounts/alice/factor", nil, false)
	if body["factor"] != "1" {
		t.Fatalf("factor after delete=%v", body)
	}
	status, body = s.do(t, http.MethodPost, "/api/admin/multipliers", map[string]any{"account": "alice", "source": "event", "factor": "0"}, true)
	if status != http.StatusBadRequest || body["error"] != "invalid_factor" {
		t.Fatalf("zero factor status=%d body=%v", status, body)
	}
}

func TestGames(t *testing.T) {
	s := newTestServer(t, nil)
	s.grant(t, "alice", 1_000)
	s.grant(t, "bob", 1_000)

	status, body := s.do(t, http.MethodPost, "/api/games/slots", map[string]any{"account": "alice", "wager": 1}, false)
	if status != http.StatusBadRequest || body["error"] != "wager_out_of_range" {
		t.Fatalf("slots status=%d body=%v", status, body)
	}
	status, body = s.do(t, http.MethodPost, "/api/games/slots", map[string]any{"account": "alice", "wager": 10, "key": "spin-1"}, false)
	if status != http.StatusOK {
		t.Fatalf("slots status=%d body=%v", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/api/games/flip", map[string]any{"account": "alice", "wager": 50, "mode": "pvp"}, false)
	if status != http.StatusCreated || body["state"] != "OPEN" {
		t.Fatalf("open flip status=%d body=%v", status, body)
	}
	flipID, _ := body["id"].(string)
	status, body = s.do(t, http.MethodPost, "/api/games/flip/"+flipID+"/join", map[string]any{"account": "bob"}, false)
	if status != http.StatusOK || body["state"] != "SETTLED" {
		t.Fatalf("join flip status=%d body=%v", status, body)
	}
	status, body = s.do(t, http.MethodPost, "/api/games/flip/"+flipID+"/join", map[string]any{"account": "carol"}, false)
	if status != http.StatusConflict || body["error"] != "session_already_settled" {
		t.Fatalf("rejoin status=%d body=%v", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/api/games/challenges", map[string]any{"initiator": "alice", "opponent": "bob", "wager": 100}, false)
	if status != http.StatusCreated {
		t.Fatalf("challenge status=%d body=%v", status, body)
	}
	chID, _ := body["id"].(string)
	status, body = s.do(t, http.MethodPost, "/api/games/challenges/"+chID+"/decline", map[string]any{"account": "bob"}, false)
	if status != http.StatusOK || body["state"] != "CANCELLED" {
		t.Fatalf("decline status=%d body=%v", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/api/games/heists", map[string]any{"account": "alice", "wager": 100}, false)
	if status != http.StatusCreated {
		t.Fatalf("heist status=%d body=%v", status, body)
	}
	heistID, _ := body["id"].(string)
	status, body = s.do(t, http.MethodPost, "/api/games/heists/"+heistID+"/join", map[string]any{"account": "bob", "wager": 100}, false)
	if status != http.StatusOK || body["state"] != "OPEN" {
		t.Fatalf("join heist status=%d body=%v", status, body)
	}
	status, body = s.do(t, http.MethodPost, "/api/admin/heists/"+heistID+"/resolve", nil, true)
	if status != http.StatusOK || body["state"] != "SETTLED" {
		t.Fatalf("resolve heist status=%d body=%v", status, body)
	}

	status, body = s.do(t, http.MethodGet, "/api/games/sessions?game=flip", nil, false)
	items, _ := body["items"].([]any)
	if status != http.StatusOK || len(items) != 1 {
		t.Fatalf("sessions status=%d body=%v", status, body)
	}
	status, body = s.do(t, http.MethodGet, "/api/games/sessions/nope", nil, false)
	if status != http.StatusNotFound || body["error"] != "session_not_found" {
		t.Fatalf("missing session status=%d body=%v", status, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodGet, "/healthz", nil, false)
	resp, err := http.Get(s.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), `zcoin_http_requests_total{method="GET",route="/healthz",status="2xx"}`) {
		t.Fatalf("metrics output missing healthz counter")
	}
}
