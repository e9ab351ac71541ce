package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/calendar"
	"papertrade/internal/ledger"
	"papertrade/internal/market"
	"papertrade/internal/scheduler"
	"papertrade/internal/snapshot"
	"papertrade/internal/store/gormstore"
	"papertrade/internal/strategy"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := gormstore.NewGormStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	locks := ledger.NewKeyedMutex()
	svc := ledger.NewService(st, ledger.NewFixedRateCosts(
		decimal.NewFromFloat(0.0003), decimal.NewFromFloat(0.001), decimal.Zero,
	), locks, ledger.Options{})
	engine := snapshot.NewEngine(st, locks)
	prices := market.NewMemorySource()
	runner := strategy.NewRunner(svc, strategy.DefaultRegistry(), prices, nil, time.Second)
	cal, err := calendar.New(nil)
	require.NoError(t, err)
	pipeline := scheduler.NewPipeline(st, svc, engine, runner, prices, cal, 2)

	server, err := NewServer(ServerConfig{
		Addr:      ":0",
		Ledger:    svc,
		Snapshots: engine,
		Pipeline:  pipeline,
		Store:     st,
	})
	require.NoError(t, err)
	return server
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)
	return rec
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/accounts", map[string]any{
		"user_id":         "alice",
		"initial_capital": "3000000",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, server, http.MethodGet, "/api/accounts/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var account struct {
		UserID        string `json:"UserID"`
		AvailableCash string `json:"AvailableCash"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	assert.Equal(t, "alice", account.UserID)
	assert.Equal(t, "3000000", account.AvailableCash)

	rec = doJSON(t, server, http.MethodGet, "/api/accounts/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, server, http.MethodDelete, "/api/accounts/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Trading against a closed account is rejected.
	rec = doJSON(t, server, http.MethodPost, "/api/accounts/alice/trades", map[string]any{
		"instrument":      "BTCUSDT",
		"side":            "buy",
		"quantity":        "1",
		"reference_price": "100",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestApplyTradeOverHTTP(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/accounts", map[string]any{
		"user_id":         "alice",
		"initial_capital": "10000",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/accounts/alice/trades", map[string]any{
		"instrument":      "BTCUSDT",
		"side":            "buy",
		"quantity":        "10",
		"reference_price": "100",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Overspending maps to 422, not 500.
	rec = doJSON(t, server, http.MethodPost, "/api/accounts/alice/trades", map[string]any{
		"instrument":      "BTCUSDT",
		"side":            "buy",
		"quantity":        "1000",
		"reference_price": "100",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/accounts/alice/positions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BTCUSDT")

	rec = doJSON(t, server, http.MethodGet, "/api/accounts/alice/trades?side=buy", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/accounts/alice/trades?since=not-a-time", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/accounts/alice/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "true", "freshly traded account reconciles clean")
}

func TestInitAccountValidation(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/accounts", map[string]any{
		"initial_capital": "1000",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "user_id is required")

	rec = doJSON(t, server, http.MethodPost, "/api/accounts", map[string]any{
		"user_id":         "alice",
		"initial_capital": "1000",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Re-init after trading conflicts; re-init of an untouched account is a
	// no-op handled at the ledger layer, so exercise the funded path.
	rec = doJSON(t, server, http.MethodPost, "/api/accounts/alice/trades", map[string]any{
		"instrument":      "AAA",
		"side":            "buy",
		"quantity":        "1",
		"reference_price": "10",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, server, http.MethodPost, "/api/accounts", map[string]any{
		"user_id":         "alice",
		"initial_capital": "2000",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSaveStrategyJobOverHTTP(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/accounts", map[string]any{
		"user_id":         "alice",
		"initial_capital": "100000",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/accounts/alice/strategies", map[string]any{
		"strategy":       "sma_cross",
		"is_active":      true,
		"allocated_cash": "50000",
		"params":         map[string]any{"fast": 5, "slow": 20},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, server, http.MethodPost, "/api/accounts/alice/strategies", map[string]any{
		"is_active": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "strategy name is required")
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
