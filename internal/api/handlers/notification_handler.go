package handlers

import (
	"net/http"
	"strconv"
	"time"

	"autotrader/internal/service"
)

// NotificationHandler отвечает за журнал уведомлений
//
// Endpoints:
// - GET /api/v1/notifications - последние уведомления
// - GET /api/v1/notifications?subscriber_id=42 - уведомления подписчика
// - GET /api/v1/notifications?limit=50 - с ограничением количества
type NotificationHandler struct {
	notificationService service.NotificationServiceInterface
}

// NewNotificationHandler создает новый NotificationHandler с внедрением зависимости
func NewNotificationHandler(notificationService service.NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// GetNotificationsResponse представляет ответ списка уведомлений
type GetNotificationsResponse struct {
	Notifications []NotificationDTO `json:"notifications"`
	Total         int               `json:"total"`
}

// NotificationDTO представляет уведомление в API
type NotificationDTO struct {
	ID           int64                  `json:"id"`
	Timestamp    string                 `json:"timestamp"`
	Type         string                 `json:"type"`
	Severity     string                 `json:"severity"`
	SubscriberID *int64                 `json:"subscriber_id,omitempty"`
	Message      string                 `json:"message"`
	Meta         map[string]interface{} `json:"meta,omitempty"`
}

// GetNotifications возвращает список уведомлений (новые сверху)
//
// GET /api/v1/notifications
//
// Query параметры:
// - subscriber_id (int): только уведомления подписчика
// - limit (int): количество записей (по умолчанию 100, максимум 500)
//
// HTTP коды:
// - 200 OK: успешно, возвращает массив уведомлений
// - 400 Bad Request: некорректный subscriber_id
// - 500 Internal Server Error: ошибка сервера
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	var subscriberID *int64
	if raw := r.URL.Query().Get("subscriber_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid request", "subscriber_id must be a positive integer")
			return
		}
		subscriberID = &id
	}

	notifications, err := h.notificationService.GetNotifications(r.Context(), subscriberID, queryLimit(r))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get notifications", err.Error())
		return
	}

	dtos := make([]NotificationDTO, 0, len(notifications))
	for _, n := range notifications {
		dtos = append(dtos, NotificationDTO{
			ID:           n.ID,
			Timestamp:    n.Timestamp.Format(time.RFC3339),
			Type:         n.Type,
			Severity:     n.Severity,
			SubscriberID: n.SubscriberID,
			Message:      n.Message,
			Meta:         n.Meta,
		})
	}

	respondWithJSON(w, http.StatusOK, GetNotificationsResponse{
		Notifications: dtos,
		Total:         len(dtos),
	})
}
