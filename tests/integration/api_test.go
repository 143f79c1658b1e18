//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"autotrader/internal/api/handlers"
	"autotrader/internal/bot"
	"autotrader/internal/models"
	"autotrader/internal/service"
)

// ============================================================
// Helpers
// ============================================================

func doRequest(t *testing.T, ts *TestServer, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// ============================================================
// Subscriber commands
// ============================================================

func TestAPI_SubscriberCommands_Integration(t *testing.T) {
	ts := SetupTestServer(t)
	if ts == nil {
		return
	}
	defer ts.Cleanup()

	t.Run("add pair persists normalized symbol", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodPost, "/api/v1/subscribers/11/pairs", handlers.AddPairRequest{Symbol: "sol/usdt"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected status 200, got %d", resp.StatusCode)
		}
		var pairs handlers.PairsResponse
		decodeBody(t, resp, &pairs)
		if len(pairs.Pairs) != 3 || pairs.Pairs[2] != "SOL/USDT" {
			t.Errorf("unexpected pairs: %v", pairs.Pairs)
		}

		var stored []byte
		if err := ts.DB.QueryRow(`SELECT array_to_string(pairs, ',') FROM subscribers WHERE id = 11`).Scan(&stored); err != nil {
			t.Fatalf("subscriber not persisted: %v", err)
		}
		if string(stored) != "BTC/USDT,ETH/USDT,SOL/USDT" {
			t.Errorf("unexpected stored pairs: %s", stored)
		}
	})

	t.Run("remove unknown pair", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodDelete, "/api/v1/subscribers/11/pairs/DOGE/USDT", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", resp.StatusCode)
		}
	})

	t.Run("toggle autotrade", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodPost, "/api/v1/subscribers/11/autotrade", nil)
		var sub handlers.SubscriberResponse
		decodeBody(t, resp, &sub)
		if !sub.Autotrade {
			t.Error("expected autotrade enabled after toggle")
		}
	})

	t.Run("rejected settings keep state", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodPatch, "/api/v1/subscribers/11/settings", map[string]interface{}{
			"order_notional": "30",
			"leverage":       500,
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", resp.StatusCode)
		}

		sub, err := ts.Store.View(11)
		if err != nil {
			t.Fatalf("View() error = %v", err)
		}
		if !sub.OrderNotional.Equal(decimal.NewFromInt(10)) || sub.Leverage != 5 {
			t.Errorf("settings changed by rejected request: notional=%s leverage=%d", sub.OrderNotional, sub.Leverage)
		}
	})
}

// ============================================================
// Trades through the paper exchange
// ============================================================

func TestAPI_TradeFlow_Integration(t *testing.T) {
	ts := SetupTestServer(t)
	if ts == nil {
		return
	}
	defer ts.Cleanup()

	ctx := context.Background()
	ts.Store.Ensure(21)

	var lastTrade *models.Trade
	for i := 0; i < 3; i++ {
		result := ts.Executor.Execute(ctx, bot.ExecuteParams{
			SubscriberID:  21,
			Symbol:        "BTC/USDT",
			Side:          models.SideBuy,
			OrderNotional: decimal.NewFromInt(10),
			Leverage:      5,
		})
		if !result.Success {
			t.Fatalf("Execute() failed: %v", result.Error)
		}
		lastTrade = result.Trade
	}

	t.Run("trade stored in database", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodGet, "/api/v1/trades/"+lastTrade.ID, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected status 200, got %d", resp.StatusCode)
		}
		var trade models.Trade
		decodeBody(t, resp, &trade)
		// 10 USDT * 5x / 50000 = 0.001 BTC
		if !trade.Size.Equal(decimal.RequireFromString("0.001")) || trade.OrderID == "" {
			t.Errorf("unexpected trade: %+v", trade)
		}
	})

	t.Run("trade log", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodGet, "/api/v1/subscribers/21/trades?limit=2", nil)
		var trades handlers.TradesResponse
		decodeBody(t, resp, &trades)
		if trades.Total != 2 || trades.Trades[1].ID != lastTrade.ID {
			t.Errorf("expected 2 newest trades ending with %s, got %+v", lastTrade.ID, trades.Trades)
		}
	})

	t.Run("status shows exhausted limits", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodGet, "/api/v1/subscribers/21/status", nil)
		var status models.SubscriberStatus
		decodeBody(t, resp, &status)
		if status.DailyTrades != 3 || !status.LimitsExhausted {
			t.Errorf("expected 3 trades and exhausted limits, got %+v", status)
		}
	})

	t.Run("paper state", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodGet, "/api/v1/exchange/paper", nil)
		var state service.PaperState
		decodeBody(t, resp, &state)
		if len(state.Fills) != 3 {
			t.Errorf("expected 3 fills, got %d", len(state.Fills))
		}
		if len(state.Positions) != 1 || state.Positions[0].Size != "0.003" {
			t.Errorf("unexpected positions: %+v", state.Positions)
		}
	})

	t.Run("balance reduced by fees", func(t *testing.T) {
		resp := doRequest(t, ts, http.MethodGet, "/api/v1/balance", nil)
		var balance handlers.BalanceResponse
		decodeBody(t, resp, &balance)
		if balance.Balance >= 1000 || balance.Balance < 999 {
			t.Errorf("expected balance just under 1000, got %v", balance.Balance)
		}
	})
}

// ============================================================
// System endpoints
// ============================================================

func TestAPI_Health_Integration(t *testing.T) {
	ts := SetupTestServer(t)
	if ts == nil {
		return
	}
	defer ts.Cleanup()

	resp := doRequest(t, ts, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var health handlers.HealthResponse
	decodeBody(t, resp, &health)
	if health.Checks["postgres"] != "ok" {
		t.Errorf("expected postgres ok, got %v", health.Checks)
	}

	// Сканер в этом сервере не запущен
	resp = doRequest(t, ts, http.MethodGet, "/api/v1/engine/status", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 without engine, got %d", resp.StatusCode)
	}
}
