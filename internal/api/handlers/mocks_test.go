package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"autotrader/internal/models"
	"autotrader/internal/repository"
	"autotrader/internal/service"
	"autotrader/pkg/utils"
)

// ============ Mock Subscriber Service ============

// MockSubscriberService мок для SubscriberServiceInterface с простыми правилами сервиса
type MockSubscriberService struct {
	mu     sync.Mutex
	subs   map[int64]*models.Subscriber
	trades map[string]*models.Trade
	err    error
}

func NewMockSubscriberService() *MockSubscriberService {
	return &MockSubscriberService{
		subs:   make(map[int64]*models.Subscriber),
		trades: make(map[string]*models.Trade),
	}
}

func (m *MockSubscriberService) get(id int64) *models.Subscriber {
	sub, ok := m.subs[id]
	if !ok {
		sub = &models.Subscriber{
			ID:            id,
			Pairs:         []string{"BTC/USDT", "ETH/USDT"},
			OrderNotional: decimal.NewFromInt(10),
			Leverage:      5,
		}
		m.subs[id] = sub
	}
	return sub
}

func (m *MockSubscriberService) GetStatus(ctx context.Context, id int64) (*models.SubscriberStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	sub := m.get(id)
	return &models.SubscriberStatus{
		SubscriberID:    id,
		Autotrade:       sub.Autotrade,
		Pairs:           sub.Pairs,
		DailyTrades:     sub.DailyTrades,
		MaxTradesPerDay: 10,
		MaxDailyLoss:    decimal.NewFromInt(50),
		Cooldowns: []models.CooldownStatus{
			{Symbol: "BTC/USDT", Until: time.Now().Add(10 * time.Minute), Remaining: "10m0s"},
		},
	}, nil
}

func (m *MockSubscriberService) ListPairs(id int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.get(id).Pairs, nil
}

func (m *MockSubscriberService) AddPair(id int64, symbol string) (*models.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := utils.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	sub := m.get(id)
	sub.AddPair(utils.NormalizeSymbol(symbol))
	return sub.Clone(), nil
}

func (m *MockSubscriberService) RemovePair(id int64, symbol string) (*models.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := m.get(id)
	if !sub.RemovePair(utils.NormalizeSymbol(symbol)) {
		return nil, service.ErrPairNotSubscribed
	}
	return sub.Clone(), nil
}

func (m *MockSubscriberService) SetAutotrade(id int64, enabled bool) (*models.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := m.get(id)
	sub.Autotrade = enabled
	return sub.Clone(), nil
}

func (m *MockSubscriberService) ToggleAutotrade(id int64) (*models.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := m.get(id)
	sub.Autotrade = !sub.Autotrade
	return sub.Clone(), nil
}

func (m *MockSubscriberService) SetOrderNotional(id int64, notional decimal.Decimal) (*models.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := utils.ValidateNotional(notional); err != nil {
		return nil, err
	}
	sub := m.get(id)
	sub.OrderNotional = notional
	return sub.Clone(), nil
}

func (m *MockSubscriberService) SetLeverage(id int64, leverage int) (*models.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := utils.ValidateLeverage(leverage); err != nil {
		return nil, err
	}
	sub := m.get(id)
	sub.Leverage = leverage
	return sub.Clone(), nil
}

func (m *MockSubscriberService) ListTrades(id int64, limit int) ([]models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = service.DefaultTradesLimit
	}
	return m.get(id).RecentTrades(limit), nil
}

func (m *MockSubscriberService) GetTrade(ctx context.Context, tradeID string) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.trades[tradeID]; ok {
		return t, nil
	}
	return nil, repository.ErrTradeNotFound
}

// ============ Mock Notification Service ============

// MockNotificationService мок для NotificationServiceInterface
type MockNotificationService struct {
	mu            sync.Mutex
	notifications []*models.Notification
	lastLimit     int
	lastFilter    *int64
	getErr        error
}

func NewMockNotificationService() *MockNotificationService {
	return &MockNotificationService{}
}

// AddNotification добавляет уведомление (новые сверху)
func (m *MockNotificationService) AddNotification(notifType string, subscriberID *int64, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := &models.Notification{
		ID:           int64(len(m.notifications) + 1),
		Timestamp:    time.Now(),
		Type:         notifType,
		Severity:     models.SeverityInfo,
		SubscriberID: subscriberID,
		Message:      message,
	}
	m.notifications = append([]*models.Notification{n}, m.notifications...)
}

func (m *MockNotificationService) GetNotifications(ctx context.Context, subscriberID *int64, limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.lastLimit = limit
	m.lastFilter = subscriberID
	if limit <= 0 {
		limit = service.DefaultNotificationsLimit
	}

	var out []*models.Notification
	for _, n := range m.notifications {
		if subscriberID != nil && (n.SubscriberID == nil || *n.SubscriberID != *subscriberID) {
			continue
		}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockNotificationService) CreateNotification(ctx context.Context, notif *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append([]*models.Notification{notif}, m.notifications...)
	return nil
}

// ============ Mock Exchange Service ============

type MockExchangeService struct {
	balance    float64
	balanceErr error
	paper      *service.PaperState
}

func (m *MockExchangeService) GetBalance(ctx context.Context) (float64, error) {
	return m.balance, m.balanceErr
}

func (m *MockExchangeService) GetInfo() service.ExchangeInfo {
	return service.ExchangeInfo{Name: "paper", Paper: m.paper != nil}
}

func (m *MockExchangeService) GetPaperState() (*service.PaperState, error) {
	if m.paper == nil {
		return nil, service.ErrNotPaperExchange
	}
	return m.paper, nil
}

// ============ Mock Engine ============

type mockEngine struct {
	status models.EngineStatus
}

func (m *mockEngine) Status() models.EngineStatus { return m.status }

var errDatabaseDown = errors.New("connection refused")
