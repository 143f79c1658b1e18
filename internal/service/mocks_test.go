package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"autotrader/internal/config"
	"autotrader/internal/exchange"
	"autotrader/internal/models"
)

// ============ Репозитории ============

type mockNotificationRepo struct {
	mu            sync.Mutex
	created       []*models.Notification
	createErr     error
	recent        []*models.Notification
	bySubscriber  map[int64][]*models.Notification
	lastLimit     int
	deleteBefore  time.Time
	deleted       int64
	deleteErr     error
	nextID        int64
	getRecentHits int
}

func (m *mockNotificationRepo) Create(ctx context.Context, notif *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	notif.ID = m.nextID
	if notif.Timestamp.IsZero() {
		notif.Timestamp = time.Now()
	}
	m.created = append(m.created, notif)
	return nil
}

func (m *mockNotificationRepo) GetRecent(ctx context.Context, limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	m.getRecentHits++
	return m.recent, nil
}

func (m *mockNotificationRepo) GetBySubscriber(ctx context.Context, subscriberID int64, limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	return m.bySubscriber[subscriberID], nil
}

func (m *mockNotificationRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteBefore = before
	return m.deleted, m.deleteErr
}

type mockTradeRepo struct {
	trades map[string]*models.Trade
}

var errTradeMissing = errors.New("trade not found")

func (m *mockTradeRepo) GetByID(ctx context.Context, id string) (*models.Trade, error) {
	if t, ok := m.trades[id]; ok {
		return t, nil
	}
	return nil, errTradeMissing
}

// ============ WebSocket ============

type mockBroadcaster struct {
	mu            sync.Mutex
	notifications []*models.Notification
	balances      map[string]float64
}

func (m *mockBroadcaster) BroadcastNotification(notif *models.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, notif)
}

func (m *mockBroadcaster) BroadcastBalanceUpdate(exchange string, balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances == nil {
		m.balances = make(map[string]float64)
	}
	m.balances[exchange] = balance
}

// ============ Биржа ============

type mockExchange struct {
	price      float64
	balance    map[string]float64
	balanceErr error
	// balanceHang - FetchBalance ждёт отмены контекста
	balanceHang bool
}

func (m *mockExchange) GetName() string { return "mock" }

func (m *mockExchange) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]exchange.Candle, error) {
	return nil, nil
}

func (m *mockExchange) FetchTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	return &exchange.Ticker{Symbol: symbol, LastPrice: m.price, Timestamp: time.Now()}, nil
}

func (m *mockExchange) CreateMarketOrder(ctx context.Context, symbol, side, size string) (*exchange.Order, error) {
	return nil, errors.New("not supported")
}

func (m *mockExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}

func (m *mockExchange) FetchBalance(ctx context.Context) (map[string]float64, error) {
	if m.balanceHang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.balance, m.balanceErr
}

func (m *mockExchange) Close() error { return nil }

// ============ Конфигурация ============

func testBotConfig() config.BotConfig {
	return config.BotConfig{
		CallTimeout:      time.Second,
		Cooldown:         30 * time.Minute,
		MaxTradesPerDay:  10,
		MaxDailyLoss:     decimal.NewFromInt(50),
		DefaultOrderUSDT: decimal.NewFromInt(10),
		DefaultLeverage:  5,
		DefaultPairs:     []string{"BTC/USDT", "ETH/USDT", "BNB/USDT"},
		TradeLogLimit:    50,
	}
}
