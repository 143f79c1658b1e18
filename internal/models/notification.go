package models

import "time"

// Notification - событие для оператора и подписчика (сохраняется и рассылается по WebSocket)
type Notification struct {
	ID           int64                  `json:"id" db:"id"`
	Timestamp    time.Time              `json:"timestamp" db:"timestamp"`
	Type         string                 `json:"type" db:"type"`
	Severity     string                 `json:"severity" db:"severity"`
	SubscriberID *int64                 `json:"subscriber_id,omitempty" db:"subscriber_id"`
	Message      string                 `json:"message" db:"message"`
	Meta         map[string]interface{} `json:"meta,omitempty" db:"meta"` // JSONB в БД
}

// Типы уведомлений
const (
	NotificationTypeTrade  = "TRADE"  // автосделка исполнена
	NotificationTypeEngine = "ENGINE" // запуск/остановка сканера
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
