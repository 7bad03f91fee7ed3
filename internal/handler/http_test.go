package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/economy-guard/internal/cache"
	"github.com/economy-guard/internal/catalog"
	"github.com/economy-guard/internal/config"
	"github.com/economy-guard/internal/domain"
	"github.com/economy-guard/internal/ratelimit"
	"github.com/economy-guard/internal/store"
	"github.com/economy-guard/internal/validator"
	"github.com/economy-guard/internal/violation"
	"github.com/economy-guard/internal/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler() (*Handler, *store.MemoryStore) {
	logger := testLogger()
	st := store.NewMemoryStore()
	pipeline := violation.NewPipeline(st, 100, time.Minute, logger)
	limiter := ratelimit.New(map[string]ratelimit.Policy{
		ratelimit.ActionPurchase: {MaxCount: 1000, Window: time.Minute},
		ratelimit.ActionEarnings: {MaxCount: 1000, Window: time.Minute},
		ratelimit.ActionLevelUp:  {MaxCount: 1000, Window: time.Minute},
		ratelimit.ActionSync:     {MaxCount: 1000, Window: time.Minute},
	})
	svc := validator.NewService(
		limiter,
		cache.New(st, config.DefaultConfig().Cache.TTL, logger),
		st,
		catalog.NewDefaultProvider(),
		pipeline,
		logger,
	)
	hub := websocket.NewHub(logger)
	go hub.Run()
	return NewHandler(svc, hub, logger), st
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp
}

func TestGetState_DefaultsForNewUser(t *testing.T) {
	h, _ := newTestHandler()
	router := h.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/players/alice/state", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}

	state := resp.Data.(map[string]interface{})
	if state["cash"].(float64) != 5000 {
		t.Errorf("expected default cash 5000, got %v", state["cash"])
	}
	if state["level"].(float64) != 1 {
		t.Errorf("expected default level 1, got %v", state["level"])
	}
}

func TestPurchase_AppliesAndRecords(t *testing.T) {
	h, st := newTestHandler()
	router := h.Router()

	body, _ := json.Marshal(domain.PurchaseRequest{
		ItemType: "furniture",
		ItemID:   "chair_basic",
		X:        2,
		Z:        3,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/players/alice/purchase", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}

	result := resp.Data.(map[string]interface{})
	if result["ok"] != true {
		t.Fatalf("expected purchase to apply, got %v", resp.Data)
	}
	if st.TransactionCount() != 1 {
		t.Errorf("expected 1 audit record, got %d", st.TransactionCount())
	}
}

func TestPurchase_DeclineIsStillHTTP200(t *testing.T) {
	h, _ := newTestHandler()
	router := h.Router()

	// jukebox costs 2500 but needs level 6
	body, _ := json.Marshal(domain.PurchaseRequest{ItemType: "furniture", ItemID: "jukebox"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/players/alice/purchase", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result := resp.Data.(map[string]interface{})
	if result["ok"] != false {
		t.Fatalf("expected decline, got %v", resp.Data)
	}
	decline := result["decline"].(map[string]interface{})
	if decline["code"] != string(domain.DeclineLevelLocked) {
		t.Errorf("expected LEVEL_LOCKED, got %v", decline["code"])
	}
}

func TestPurchase_MissingFieldsRejected(t *testing.T) {
	h, _ := newTestHandler()
	router := h.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/players/alice/purchase", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestEarnings_UnknownCurrencyIsBadRequest(t *testing.T) {
	h, _ := newTestHandler()
	router := h.Router()

	body, _ := json.Marshal(EarningsRequest{Currency: "gold", Amount: 100, Reason: "daily_bonus"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/players/alice/earnings", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestEarnings_AppliesAmount(t *testing.T) {
	h, _ := newTestHandler()
	router := h.Router()

	body, _ := json.Marshal(EarningsRequest{Currency: domain.CurrencyCash, Amount: 250, Reason: "drink_served"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/players/alice/earnings", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result := resp.Data.(map[string]interface{})
	if result["ok"] != true {
		t.Fatalf("expected earn to apply, got %v", resp.Data)
	}
	if result["new_balance"].(float64) != 5250 {
		t.Errorf("expected new balance 5250, got %v", result["new_balance"])
	}
}

func TestSync_MatchingStateIsSynced(t *testing.T) {
	h, _ := newTestHandler()
	router := h.Router()

	body, _ := json.Marshal(domain.ClientState{Cash: 5000, Diamonds: 5, XP: 0, Level: 1})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/players/alice/sync", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result := resp.Data.(map[string]interface{})
	if result["synced"] != true {
		t.Fatalf("expected synced state, got %v", resp.Data)
	}
}

func TestReportViolation_CriticalHitsCounters(t *testing.T) {
	h, st := newTestHandler()
	router := h.Router()

	body, _ := json.Marshal(ViolationReport{Type: domain.ViolationBannedAction})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/players/alice/violations", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if st.ViolationCount() != 1 {
		t.Errorf("expected 1 violation logged, got %d", st.ViolationCount())
	}

	// Summary endpoint reflects the counter
	sumReq := httptest.NewRequest(http.MethodGet, "/api/v1/players/alice/violations", nil)
	sumRec := httptest.NewRecorder()
	router.ServeHTTP(sumRec, sumReq)

	resp := decodeResponse(t, sumRec)
	summary := resp.Data.(map[string]interface{})
	if summary["total"].(float64) != 1 {
		t.Errorf("expected total 1, got %v", summary["total"])
	}
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := newTestHandler()
	router := h.Router()

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestGetWebSocketStats_ReportsWatchers(t *testing.T) {
	h, _ := newTestHandler()
	router := h.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws/stats?user_id=alice", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	stats := decodeResponse(t, rec).Data.(map[string]interface{})
	if stats["total_connections"].(float64) != 0 {
		t.Errorf("expected 0 connections, got %v", stats["total_connections"])
	}
	if stats["watchers"].(float64) != 0 {
		t.Errorf("expected 0 watchers for alice, got %v", stats["watchers"])
	}

	// Without a user_id the per-user watcher count is omitted
	bareReq := httptest.NewRequest(http.MethodGet, "/api/v1/ws/stats", nil)
	bareRec := httptest.NewRecorder()
	router.ServeHTTP(bareRec, bareReq)

	bareStats := decodeResponse(t, bareRec).Data.(map[string]interface{})
	if _, ok := bareStats["watchers"]; ok {
		t.Error("expected no watchers field without user_id")
	}
}
