//go:build integration

// Package integration contains integration tests for the autotrading service.
//
// These tests verify the interaction between components against a real PostgreSQL:
// - Database tests: migrations, subscriber state round trip, trade log
// - API tests: full HTTP request cycle through the router and middleware
// - WebSocket tests: per-subscriber notification routing
//
// Run with: go test -tags=integration ./tests/integration/...
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"autotrader/internal/api"
	"autotrader/internal/api/handlers"
	"autotrader/internal/bot"
	"autotrader/internal/config"
	"autotrader/internal/exchange"
	"autotrader/internal/repository"
	"autotrader/internal/service"
	"autotrader/internal/websocket"
)

// TestConfig contains configuration for integration tests
type TestConfig struct {
	DBDriver   string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// TestServer encapsulates all components needed for integration testing
type TestServer struct {
	DB       *sql.DB
	Router   *mux.Router
	Server   *httptest.Server
	Hub      *websocket.Hub
	Market   *fakeMarket
	Paper    *exchange.Paper
	Store    *bot.SubscriberStore
	Executor *bot.OrderExecutor
	Repos    *TestRepositories
	Services *TestServices
	Cleanup  func()
}

// TestRepositories contains all repository instances for testing
type TestRepositories struct {
	Subscriber   *repository.SubscriberRepository
	Trade        *repository.TradeRepository
	Notification *repository.NotificationRepository
	Storage      *repository.SubscriberStorage
}

// TestServices contains all service instances for testing
type TestServices struct {
	Subscriber   *service.SubscriberService
	Notification *service.NotificationService
	Exchange     *service.ExchangeService
}

// getTestConfig returns configuration from environment variables or defaults
func getTestConfig() TestConfig {
	return TestConfig{
		DBDriver:   getEnv("TEST_DB_DRIVER", "postgres"),
		DBHost:     getEnv("TEST_DB_HOST", "localhost"),
		DBPort:     getEnv("TEST_DB_PORT", "5432"),
		DBName:     getEnv("TEST_DB_NAME", "autotrader_test"),
		DBUser:     getEnv("TEST_DB_USER", "postgres"),
		DBPassword: getEnv("TEST_DB_PASSWORD", "postgres"),
		DBSSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// testBotConfig - limits small enough to exhaust in a test
func testBotConfig() config.BotConfig {
	return config.BotConfig{
		ScanInterval:     time.Minute,
		ErrorBackoff:     time.Second,
		CandleTimeframe:  "5m",
		CandleLimit:      200,
		CallTimeout:      5 * time.Second,
		OrderTimeout:     5 * time.Second,
		Cooldown:         30 * time.Minute,
		MaxTradesPerDay:  3,
		MaxDailyLoss:     decimal.NewFromInt(50),
		DefaultOrderUSDT: decimal.NewFromInt(10),
		DefaultLeverage:  5,
		DefaultPairs:     []string{"BTC/USDT", "ETH/USDT"},
		TradeLogLimit:    50,
	}
}

// SetupTestDB creates a test database connection and applies migrations
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	cfg := getTestConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
	)

	db, err := sql.Open(cfg.DBDriver, connStr)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil, func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
		return nil, func() {}
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := repository.Migrate(ctx, db); err != nil {
		db.Close()
		t.Fatalf("failed to migrate: %v", err)
	}
	truncateTables(t, db)

	cleanup := func() {
		truncateTables(t, db)
		if err := db.Close(); err != nil {
			t.Logf("error closing database: %v", err)
		}
	}

	return db, cleanup
}

// SetupTestServer creates a complete test server on a paper exchange over fakeMarket
func SetupTestServer(t *testing.T) *TestServer {
	db, dbCleanup := SetupTestDB(t)
	if db == nil {
		return nil
	}

	cfg := testBotConfig()

	hub := websocket.NewHub()
	go hub.Run()

	repos := &TestRepositories{
		Subscriber:   repository.NewSubscriberRepository(db),
		Trade:        repository.NewTradeRepository(db),
		Notification: repository.NewNotificationRepository(db),
	}
	repos.Storage = repository.NewSubscriberStorage(repos.Subscriber, repos.Trade)

	market := newFakeMarket(map[string]float64{"BTC/USDT": 50000, "ETH/USDT": 2500})
	paper := exchange.NewPaper(market, exchange.PaperConfig{StartBalance: 1000, FeeRate: 0.0004})

	store := bot.NewSubscriberStore(cfg, repos.Storage)
	cooldowns := bot.NewCooldownTracker(bot.NewMemoryCooldownStore(), cfg.Cooldown)

	services := &TestServices{
		Subscriber:   service.NewSubscriberService(store, cooldowns, bot.NewRiskLimits(cfg), repos.Trade),
		Notification: service.NewNotificationService(repos.Notification),
		Exchange:     service.NewExchangeService(paper),
	}
	services.Notification.SetWebSocketHub(hub)
	services.Exchange.SetWebSocketHub(hub)

	router := api.SetupRoutes(&api.Dependencies{
		SubscriberService:   services.Subscriber,
		NotificationService: services.Notification,
		ExchangeService:     services.Exchange,
		Hub:                 hub,
		HealthChecks:        map[string]handlers.HealthCheck{"postgres": db.PingContext},
	})
	server := httptest.NewServer(router)

	cleanup := func() {
		server.Close()
		hub.Stop()
		dbCleanup()
	}

	return &TestServer{
		DB:       db,
		Router:   router,
		Server:   server,
		Hub:      hub,
		Market:   market,
		Paper:    paper,
		Store:    store,
		Executor: bot.NewOrderExecutor(paper, store, cfg),
		Repos:    repos,
		Services: services,
		Cleanup:  cleanup,
	}
}

// truncateTables clears all tables created by repository.Migrate
func truncateTables(t *testing.T, db *sql.DB) {
	for _, table := range []string{"trades", "notifications", "subscribers"} {
		if _, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s", table)); err != nil {
			t.Logf("failed to truncate %s: %v", table, err)
		}
	}
}

// ============================================================
// fakeMarket - market data source for the paper exchange
// ============================================================

type fakeMarket struct {
	mu     sync.Mutex
	prices map[string]float64
}

func newFakeMarket(prices map[string]float64) *fakeMarket {
	return &fakeMarket{prices: prices}
}

func (m *fakeMarket) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

func (m *fakeMarket) GetName() string { return "fake" }

func (m *fakeMarket) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]exchange.Candle, error) {
	return nil, nil
}

func (m *fakeMarket) FetchTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	price, ok := m.prices[symbol]
	if !ok {
		return nil, &exchange.ExchangeError{Exchange: "fake", Code: "-1121", Message: "invalid symbol"}
	}
	return &exchange.Ticker{Symbol: symbol, LastPrice: price, Timestamp: time.Now()}, nil
}

func (m *fakeMarket) CreateMarketOrder(ctx context.Context, symbol, side, size string) (*exchange.Order, error) {
	return nil, fmt.Errorf("fake market does not accept orders")
}

func (m *fakeMarket) SetLeverage(ctx context.Context, symbol string, leverage int) error { return nil }

func (m *fakeMarket) FetchBalance(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{}, nil
}

func (m *fakeMarket) Close() error { return nil }

var _ exchange.Exchange = (*fakeMarket)(nil)
