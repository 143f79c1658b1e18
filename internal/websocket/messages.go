package websocket

import (
	"time"

	"autotrader/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeNotification - новое уведомление (автосделка, запуск/остановка сканера)
	MessageTypeNotification MessageType = "notification"

	// MessageTypeBalanceUpdate - обновление баланса биржи
	// Отправляется при каждом запросе баланса через API
	MessageTypeBalanceUpdate MessageType = "balanceUpdate"

	// MessageTypeEngineStatus - снимок состояния сканера
	// Отправляется периодически, пока есть подключенные клиенты
	MessageTypeEngineStatus MessageType = "engineStatus"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// NotificationMessage - сообщение о новом уведомлении
type NotificationMessage struct {
	BaseMessage
	Data *NotificationData `json:"data"`
}

// NotificationData - данные уведомления
type NotificationData struct {
	// ID уведомления в БД
	ID int64 `json:"id"`

	// Тип уведомления (TRADE, ENGINE)
	Type string `json:"type"`

	// Уровень важности (info, warn, error)
	Severity string `json:"severity"`

	// Подписчик, которому адресовано уведомление (если применимо)
	SubscriberID *int64 `json:"subscriber_id,omitempty"`

	Message string                 `json:"message"`
	Meta    map[string]interface{} `json:"meta,omitempty"`

	// Время создания уведомления
	Timestamp time.Time `json:"timestamp"`
}

// BalanceUpdateMessage - сообщение об обновлении баланса биржи
type BalanceUpdateMessage struct {
	BaseMessage
	Exchange string  `json:"exchange"`
	Balance  float64 `json:"balance"`
}

// EngineStatusMessage - сообщение с состоянием сканера
type EngineStatusMessage struct {
	BaseMessage
	Data models.EngineStatus `json:"data"`
}

// ============ Фабричные функции для создания сообщений ============

// NewNotificationMessage создает сообщение уведомления
func NewNotificationMessage(notif *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotification,
			Timestamp: time.Now(),
		},
		Data: &NotificationData{
			ID:           notif.ID,
			Type:         notif.Type,
			Severity:     notif.Severity,
			SubscriberID: notif.SubscriberID,
			Message:      notif.Message,
			Meta:         notif.Meta,
			Timestamp:    notif.Timestamp,
		},
	}
}

// NewBalanceUpdateMessage создает сообщение обновления баланса
func NewBalanceUpdateMessage(exchange string, balance float64) *BalanceUpdateMessage {
	return &BalanceUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeBalanceUpdate,
			Timestamp: time.Now(),
		},
		Exchange: exchange,
		Balance:  balance,
	}
}

// NewEngineStatusMessage создает сообщение состояния сканера
func NewEngineStatusMessage(status models.EngineStatus) *EngineStatusMessage {
	return &EngineStatusMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeEngineStatus,
			Timestamp: time.Now(),
		},
		Data: status,
	}
}
