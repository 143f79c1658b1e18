package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"autotrader/internal/config"
	"autotrader/internal/exchange"
	"autotrader/internal/models"
)

// ============ Мок биржи ============

type mockExchange struct {
	mu sync.Mutex

	candles   map[string][]exchange.Candle
	candleErr error
	price     float64
	tickerErr error
	orderErr  error
	levErr    error

	candleCalls int
	orders      []mockOrderCall
	leverage    map[string]int
}

type mockOrderCall struct {
	Symbol string
	Side   string
	Size   string
}

func newMockExchange(price float64) *mockExchange {
	return &mockExchange{
		candles:  make(map[string][]exchange.Candle),
		price:    price,
		leverage: make(map[string]int),
	}
}

func (m *mockExchange) GetName() string { return "mock" }

func (m *mockExchange) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]exchange.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candleCalls++
	if m.candleErr != nil {
		return nil, m.candleErr
	}
	return m.candles[symbol], nil
}

func (m *mockExchange) FetchTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tickerErr != nil {
		return nil, m.tickerErr
	}
	return &exchange.Ticker{Symbol: symbol, LastPrice: m.price, Timestamp: time.Now()}, nil
}

func (m *mockExchange) CreateMarketOrder(ctx context.Context, symbol, side, size string) (*exchange.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.orderErr != nil {
		return nil, m.orderErr
	}
	m.orders = append(m.orders, mockOrderCall{Symbol: symbol, Side: side, Size: size})
	id := fmt.Sprintf("ord-%d", len(m.orders))
	return &exchange.Order{
		ID:           id,
		Symbol:       symbol,
		Side:         side,
		Quantity:     size,
		FilledQty:    size,
		AvgFillPrice: fmt.Sprint(m.price),
		Status:       exchange.OrderStatusFilled,
		Raw:          []byte(`{"orderId":"` + id + `"}`),
	}, nil
}

func (m *mockExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.levErr != nil {
		return m.levErr
	}
	m.leverage[symbol] = leverage
	return nil
}

func (m *mockExchange) FetchBalance(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{"USDT": 1000}, nil
}

func (m *mockExchange) Close() error { return nil }

func (m *mockExchange) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockExchange) setCandles(symbol string, candles []exchange.Candle) {
	m.mu.Lock()
	m.candles[symbol] = candles
	m.mu.Unlock()
}

// ============ Мок уведомлений ============

type mockNotifier struct {
	mu     sync.Mutex
	trades []models.Trade
	engine []string
}

func (n *mockNotifier) NotifyTrade(ctx context.Context, trade *models.Trade) {
	n.mu.Lock()
	n.trades = append(n.trades, *trade)
	n.mu.Unlock()
}

func (n *mockNotifier) NotifyEngine(ctx context.Context, message string) {
	n.mu.Lock()
	n.engine = append(n.engine, message)
	n.mu.Unlock()
}

func (n *mockNotifier) tradeCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.trades)
}

// ============ Мок хранилища подписчиков ============

type mockPersister struct {
	mu          sync.Mutex
	subscribers map[int64]models.Subscriber
	trades      []models.Trade
	saveErr     error
}

func newMockPersister() *mockPersister {
	return &mockPersister{subscribers: make(map[int64]models.Subscriber)}
}

func (p *mockPersister) SaveSubscriber(ctx context.Context, sub *models.Subscriber) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.subscribers[sub.ID] = *sub.Clone()
	return nil
}

func (p *mockPersister) SaveTrade(ctx context.Context, trade *models.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.trades = append(p.trades, *trade)
	return nil
}

// ============ Мок хранилища кулдаунов ============

type failingCooldownStore struct{}

func (failingCooldownStore) Get(ctx context.Context, subscriberID int64, symbol string) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("redis: connection refused")
}

func (failingCooldownStore) Set(ctx context.Context, subscriberID int64, symbol string, at time.Time, ttl time.Duration) error {
	return errors.New("redis: connection refused")
}

func (failingCooldownStore) List(ctx context.Context, subscriberID int64) (map[string]time.Time, error) {
	return nil, errors.New("redis: connection refused")
}

// ============ Фикстуры ============

// fakeClock - управляемые часы для хранилищ
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testBotConfig() config.BotConfig {
	return config.BotConfig{
		ScanInterval:     time.Minute,
		ErrorBackoff:     10 * time.Millisecond,
		CandleTimeframe:  "5m",
		CandleLimit:      200,
		CallTimeout:      time.Second,
		OrderTimeout:     time.Second,
		Cooldown:         30 * time.Minute,
		MaxTradesPerDay:  10,
		MaxDailyLoss:     decimal.NewFromInt(50),
		DefaultOrderUSDT: decimal.NewFromInt(10),
		DefaultLeverage:  5,
		DefaultPairs:     []string{"BTC/USDT", "ETH/USDT", "BNB/USDT"},
		TradeLogLimit:    50,
	}
}

// trendCandles строит 200 свечей: тренд, затем 14 колебаний ±1 (RSI = 50).
// up=true даёт score +1.5 (BUY), up=false - score -1.5 (SELL).
func trendCandles(up bool) []exchange.Candle {
	closes := make([]float64, 0, 200)
	for i := 0; i < 186; i++ {
		if up {
			closes = append(closes, float64(100+i))
		} else {
			closes = append(closes, float64(400-i))
		}
	}
	last := closes[len(closes)-1]
	for j := 0; j < 14; j++ {
		step := 1.0
		if j%2 == 0 {
			step = -1
		}
		if !up {
			step = -step
		}
		last += step
		closes = append(closes, last)
	}
	return candlesFromCloses(closes)
}

// risingCandles - монотонный рост: SMA +1, RSI = 100 (-1), MACD +0.5. Score 0.5, без направления.
func risingCandles(n int) []exchange.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	return candlesFromCloses(closes)
}

func candlesFromCloses(closes []float64) []exchange.Candle {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	candles := make([]exchange.Candle, len(closes))
	for i, c := range closes {
		candles[i] = exchange.Candle{
			OpenTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:     c,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			Volume:   10,
		}
	}
	return candles
}
