package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"autotrader/internal/bot"
	"autotrader/internal/models"
	"autotrader/internal/repository"
)

// NotificationRepositoryInterface определяет интерфейс репозитория уведомлений
type NotificationRepositoryInterface interface {
	Create(ctx context.Context, notif *models.Notification) error
	GetRecent(ctx context.Context, limit int) ([]*models.Notification, error)
	GetBySubscriber(ctx context.Context, subscriberID int64, limit int) ([]*models.Notification, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// TradeRepositoryInterface определяет интерфейс репозитория сделок
type TradeRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*models.Trade, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ NotificationRepositoryInterface = (*repository.NotificationRepository)(nil)
var _ TradeRepositoryInterface = (*repository.TradeRepository)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// SubscriberServiceInterface определяет интерфейс сервиса подписчиков
type SubscriberServiceInterface interface {
	GetStatus(ctx context.Context, id int64) (*models.SubscriberStatus, error)
	ListPairs(id int64) ([]string, error)
	AddPair(id int64, symbol string) (*models.Subscriber, error)
	RemovePair(id int64, symbol string) (*models.Subscriber, error)
	SetAutotrade(id int64, enabled bool) (*models.Subscriber, error)
	ToggleAutotrade(id int64) (*models.Subscriber, error)
	SetOrderNotional(id int64, notional decimal.Decimal) (*models.Subscriber, error)
	SetLeverage(id int64, leverage int) (*models.Subscriber, error)
	ListTrades(id int64, limit int) ([]models.Trade, error)
	GetTrade(ctx context.Context, tradeID string) (*models.Trade, error)
}

// NotificationServiceInterface определяет интерфейс сервиса уведомлений
type NotificationServiceInterface interface {
	GetNotifications(ctx context.Context, subscriberID *int64, limit int) ([]*models.Notification, error)
	CreateNotification(ctx context.Context, notif *models.Notification) error
}

// ExchangeServiceInterface определяет интерфейс сервиса биржи
type ExchangeServiceInterface interface {
	GetBalance(ctx context.Context) (float64, error)
	GetInfo() ExchangeInfo
	GetPaperState() (*PaperState, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ SubscriberServiceInterface = (*SubscriberService)(nil)
var _ NotificationServiceInterface = (*NotificationService)(nil)
var _ ExchangeServiceInterface = (*ExchangeService)(nil)
var _ bot.Notifier = (*NotificationService)(nil)
