// internal/api/api_test.go
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propshare-wallet/internal/api"
	"propshare-wallet/internal/api/handler"
	"propshare-wallet/internal/broadcast"
	"propshare-wallet/internal/cleanup"
	"propshare-wallet/internal/engine"
	"propshare-wallet/internal/enginetest"
	"propshare-wallet/internal/pricefeed"
	"propshare-wallet/internal/repository"
)

// newTestServer wires the full HTTP surface over in-memory fakes, so the
// tests run without postgres or a live price feed.
func newTestServer(t *testing.T) (*httptest.Server, *enginetest.MemRepo) {
	t.Helper()

	repo := enginetest.NewMemRepo()
	scratch := enginetest.NewMemCache()
	logger := slog.New(slog.DiscardHandler)
	colls := []repository.OwnerCollection{repo}

	engines := engine.NewRegistry(engine.Deps{
		Repo:        repo,
		Cache:       scratch,
		Feed:        pricefeed.Fixed{PriceUSD: decimal.NewFromInt(4500)},
		Broadcaster: broadcast.New(),
		Cleaner:     cleanup.New(colls, colls, logger),
		Logger:      logger,
	})
	t.Cleanup(engines.Close)

	walletHandler := handler.NewWalletHandler(engines, logger)
	server := httptest.NewServer(api.NewRouter(walletHandler, logger))
	t.Cleanup(server.Close)
	return server, repo
}

func doRequest(t *testing.T, server *httptest.Server, method, path, ownerID string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	if ownerID != "" {
		req.Header.Set("X-Owner-ID", ownerID)
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, payload
}

type stateResponse struct {
	IsConnected  bool            `json:"is_connected"`
	Address      string          `json:"address"`
	BalanceUnits decimal.Decimal `json:"balance_units"`
	IsLoading    bool            `json:"is_loading"`
	Error        string          `json:"error"`
}

func connectWallet(t *testing.T, server *httptest.Server, ownerID string, balance int64) stateResponse {
	t.Helper()

	code, body := doRequest(t, server, http.MethodPost, "/wallet/connect", ownerID, map[string]interface{}{
		"balance_units":     decimal.NewFromInt(balance),
		"strike_price_usd":  decimal.NewFromInt(4000),
		"initial_value_usd": decimal.NewFromInt(balance * 4000),
	})
	require.Equal(t, http.StatusOK, code, "connect failed: %s", body)

	var state stateResponse
	require.NoError(t, json.Unmarshal(body, &state))
	return state
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	code, body := doRequest(t, server, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", string(body))
}

func TestMissingOwnerHeaderIsRejected(t *testing.T) {
	server, _ := newTestServer(t)

	code, _ := doRequest(t, server, http.MethodGet, "/wallet", "", nil)

	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetWalletBeforeConnect(t *testing.T) {
	server, _ := newTestServer(t)

	code, body := doRequest(t, server, http.MethodGet, "/wallet", "owner-1", nil)
	require.Equal(t, http.StatusOK, code)

	var state stateResponse
	require.NoError(t, json.Unmarshal(body, &state))
	assert.False(t, state.IsConnected)
	assert.True(t, state.BalanceUnits.IsZero())
}

func TestConnectPersistsAndReturnsState(t *testing.T) {
	server, repo := newTestServer(t)

	state := connectWallet(t, server, "owner-1", 5)

	assert.True(t, state.IsConnected)
	assert.NotEmpty(t, state.Address)
	assert.True(t, state.BalanceUnits.Equal(decimal.NewFromInt(5)))

	stored := repo.Stored("owner-1")
	require.NotNil(t, stored)
	assert.Equal(t, state.Address, stored.PublicAddress)
}

func TestConnectRejectsMalformedBody(t *testing.T) {
	server, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/wallet/connect", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	req.Header.Set("X-Owner-ID", "owner-1")

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreditAndDebitAdjustBalance(t *testing.T) {
	server, _ := newTestServer(t)
	connectWallet(t, server, "owner-1", 5)

	code, body := doRequest(t, server, http.MethodPost, "/wallet/credit", "owner-1", map[string]interface{}{
		"units": decimal.NewFromInt(2),
	})
	require.Equal(t, http.StatusOK, code)

	var state stateResponse
	require.NoError(t, json.Unmarshal(body, &state))
	assert.True(t, state.BalanceUnits.Equal(decimal.NewFromInt(7)))

	code, body = doRequest(t, server, http.MethodPost, "/wallet/debit", "owner-1", map[string]interface{}{
		"units": decimal.NewFromInt(3),
	})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &state))
	assert.True(t, state.BalanceUnits.Equal(decimal.NewFromInt(4)))
}

func TestDebitBeyondBalanceIsPaymentRequired(t *testing.T) {
	server, _ := newTestServer(t)
	connectWallet(t, server, "owner-1", 5)

	code, _ := doRequest(t, server, http.MethodPost, "/wallet/debit", "owner-1", map[string]interface{}{
		"units": decimal.NewFromInt(100),
	})

	assert.Equal(t, http.StatusPaymentRequired, code)

	// The failed debit must not change the balance.
	code, body := doRequest(t, server, http.MethodGet, "/wallet", "owner-1", nil)
	require.Equal(t, http.StatusOK, code)
	var state stateResponse
	require.NoError(t, json.Unmarshal(body, &state))
	assert.True(t, state.BalanceUnits.Equal(decimal.NewFromInt(5)))
}

func TestDebitRejectsNonPositiveUnits(t *testing.T) {
	server, _ := newTestServer(t)
	connectWallet(t, server, "owner-1", 5)

	code, _ := doRequest(t, server, http.MethodPost, "/wallet/debit", "owner-1", map[string]interface{}{
		"units": decimal.Zero,
	})

	assert.Equal(t, http.StatusBadRequest, code)
}

func TestValuationEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	connectWallet(t, server, "owner-1", 5)

	code, body := doRequest(t, server, http.MethodGet, "/wallet/valuation", "owner-1", nil)
	require.Equal(t, http.StatusOK, code)

	var snap struct {
		CurrentValueUSD   decimal.Decimal `json:"current_value_usd"`
		ProfitLossUSD     decimal.Decimal `json:"profit_loss_usd"`
		ProfitLossPercent decimal.Decimal `json:"profit_loss_percent"`
		Stale             bool            `json:"stale"`
	}
	require.NoError(t, json.Unmarshal(body, &snap))

	// strike 4000, balance 5, current price 4500.
	assert.True(t, snap.CurrentValueUSD.Equal(decimal.NewFromInt(22500)), "got %s", snap.CurrentValueUSD)
	assert.True(t, snap.ProfitLossUSD.Equal(decimal.NewFromInt(2500)))
	assert.True(t, snap.ProfitLossPercent.Equal(decimal.NewFromFloat(12.5)))
	assert.False(t, snap.Stale)
}

func TestValuationWithoutWalletIsNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	code, _ := doRequest(t, server, http.MethodGet, "/wallet/valuation", "owner-1", nil)

	assert.Equal(t, http.StatusNotFound, code)
}

func TestDisconnectClearsWalletAndReportsCleanup(t *testing.T) {
	server, repo := newTestServer(t)
	connectWallet(t, server, "owner-1", 5)

	code, body := doRequest(t, server, http.MethodPost, "/wallet/disconnect", "owner-1", nil)
	require.Equal(t, http.StatusOK, code)

	var resp struct {
		State             stateResponse `json:"state"`
		CleanupIncomplete bool          `json:"cleanup_incomplete"`
		FailedCollections []string      `json:"failed_collections"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))

	assert.False(t, resp.State.IsConnected)
	assert.False(t, resp.CleanupIncomplete)
	assert.Empty(t, resp.FailedCollections)
	assert.Nil(t, repo.Stored("owner-1"), "durable record removed by cleanup")

	// A subsequent read sees a disconnected wallet.
	code, body = doRequest(t, server, http.MethodGet, "/wallet", "owner-1", nil)
	require.Equal(t, http.StatusOK, code)
	var state stateResponse
	require.NoError(t, json.Unmarshal(body, &state))
	assert.False(t, state.IsConnected)
}

func TestStoreOutageMapsToServiceUnavailable(t *testing.T) {
	server, repo := newTestServer(t)
	connectWallet(t, server, "owner-1", 5)

	repo.FailWrites(errors.New("store unreachable"))

	code, body := doRequest(t, server, http.MethodPost, "/wallet/credit", "owner-1", map[string]interface{}{
		"units": decimal.NewFromInt(1),
	})
	assert.Equal(t, http.StatusServiceUnavailable, code, "got %s", body)

	// The wallet is still readable with its last-known balance.
	repo.FailWrites(nil)
	code, body = doRequest(t, server, http.MethodGet, "/wallet", "owner-1", nil)
	require.Equal(t, http.StatusOK, code)
	var state stateResponse
	require.NoError(t, json.Unmarshal(body, &state))
	assert.True(t, state.BalanceUnits.Equal(decimal.NewFromInt(5)))
}

func TestRefreshPicksUpExternalWrites(t *testing.T) {
	server, repo := newTestServer(t)
	connectWallet(t, server, "owner-1", 5)

	// Another instance changes the durable record directly.
	rec := repo.Stored("owner-1")
	rec.BalanceUnits = decimal.NewFromInt(42)
	require.NoError(t, repo.Update(context.Background(), rec))

	code, body := doRequest(t, server, http.MethodPost, "/wallet/refresh", "owner-1", nil)
	require.Equal(t, http.StatusOK, code)

	var state stateResponse
	require.NoError(t, json.Unmarshal(body, &state))
	assert.True(t, state.BalanceUnits.Equal(decimal.NewFromInt(42)))
}
