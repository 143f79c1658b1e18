package service

import (
	"context"
	"fmt"
	"time"

	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// Лимиты выборки уведомлений
const (
	DefaultNotificationsLimit = 100
	MaxNotificationsLimit     = 500
)

// WebSocketBroadcaster - интерфейс для отправки WebSocket сообщений
//
// Позволяет избежать циклических зависимостей между пакетами
// и упрощает тестирование (можно подставить mock)
type WebSocketBroadcaster interface {
	BroadcastNotification(notif *models.Notification)
}

// NotificationService сохраняет события движка и рассылает их по WebSocket.
//
// Типы уведомлений:
// - TRADE: автосделка исполнена (адресовано подписчику)
// - ENGINE: запуск/остановка сканера
//
// Неудачные автосделки уведомлений не порождают, они видны только в логах.
type NotificationService struct {
	notificationRepo NotificationRepositoryInterface
	wsHub            WebSocketBroadcaster
	log              *utils.Logger
}

// NewNotificationService создает новый экземпляр NotificationService.
func NewNotificationService(notificationRepo NotificationRepositoryInterface) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		log:              utils.L().WithComponent("notifications"),
	}
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast уведомлений.
//
// Вызывается после инициализации Hub в main.go:
//
//	notifService := service.NewNotificationService(notifRepo)
//	notifService.SetWebSocketHub(wsHub)
func (s *NotificationService) SetWebSocketHub(hub WebSocketBroadcaster) {
	s.wsHub = hub
}

// CreateNotification сохраняет уведомление и отправляет broadcast через WebSocket (если hub настроен).
//
// При ошибке БД уведомление не рассылается.
func (s *NotificationService) CreateNotification(ctx context.Context, notif *models.Notification) error {
	if err := s.notificationRepo.Create(ctx, notif); err != nil {
		s.log.Error("failed to save notification",
			utils.String("type", notif.Type), utils.Err(err))
		return err
	}

	if s.wsHub != nil {
		s.wsHub.BroadcastNotification(notif)
	}
	return nil
}

// NotifyTrade объявляет исполненную автосделку подписчику
func (s *NotificationService) NotifyTrade(ctx context.Context, trade *models.Trade) {
	subID := trade.SubscriberID
	notif := &models.Notification{
		Type:         models.NotificationTypeTrade,
		Severity:     models.SeverityInfo,
		SubscriberID: &subID,
		Message:      FormatTradeMessage(trade),
		Meta: map[string]interface{}{
			"trade_id": trade.ID,
			"order_id": trade.OrderID,
			"symbol":   trade.Symbol,
			"side":     trade.Side,
			"size":     trade.Size.String(),
			"price":    trade.Price.String(),
			"leverage": trade.Leverage,
		},
	}
	_ = s.CreateNotification(ctx, notif)
}

// NotifyEngine сохраняет событие сканера (запуск, остановка)
func (s *NotificationService) NotifyEngine(ctx context.Context, message string) {
	_ = s.CreateNotification(ctx, &models.Notification{
		Type:     models.NotificationTypeEngine,
		Severity: models.SeverityInfo,
		Message:  message,
	})
}

// FormatTradeMessage - текст объявления о сделке
func FormatTradeMessage(trade *models.Trade) string {
	return fmt.Sprintf("AUTO-TRADE %s %s @ %s\nsize=%s lev=%d",
		trade.Side, trade.Symbol, trade.Price.String(), trade.Size.String(), trade.Leverage)
}

// GetNotifications возвращает уведомления (новые сверху).
//
// Параметры:
// - subscriberID: если задан, только уведомления этого подписчика
// - limit: максимальное количество записей (по умолчанию 100, не более 500)
func (s *NotificationService) GetNotifications(ctx context.Context, subscriberID *int64, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationsLimit
	}
	if limit > MaxNotificationsLimit {
		limit = MaxNotificationsLimit
	}

	if subscriberID != nil {
		return s.notificationRepo.GetBySubscriber(ctx, *subscriberID, limit)
	}
	return s.notificationRepo.GetRecent(ctx, limit)
}

// CleanupOld удаляет уведомления старше retention
func (s *NotificationService) CleanupOld(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.notificationRepo.DeleteOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Info("old notifications removed", utils.Int64("deleted", deleted))
	}
	return deleted, nil
}
