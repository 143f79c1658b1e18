package repository

import (
	"context"
	"database/sql"
	"time"

	jsoniter "github.com/json-iterator/go"

	"autotrader/internal/models"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// NotificationRepository - работа с таблицей notifications
//
// Типы уведомлений: TRADE (исполненная автосделка), ENGINE (запуск и остановка сканера)
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создает новый экземпляр репозитория
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, timestamp, type, severity, subscriber_id, message, meta`

// Create сохраняет уведомление и заполняет ID
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (timestamp, type, severity, subscriber_id, message, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	var meta []byte
	if len(n.Meta) > 0 {
		var err error
		meta, err = jsonAPI.Marshal(n.Meta)
		if err != nil {
			return err
		}
	}

	return r.db.QueryRowContext(ctx, query,
		n.Timestamp,
		n.Type,
		n.Severity,
		n.SubscriberID,
		n.Message,
		meta,
	).Scan(&n.ID)
}

// GetRecent возвращает последние limit уведомлений (новые первыми)
func (r *NotificationRepository) GetRecent(ctx context.Context, limit int) ([]*models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		ORDER BY timestamp DESC
		LIMIT $1`

	return r.query(ctx, query, limit)
}

// GetBySubscriber возвращает последние limit уведомлений подписчика (новые первыми)
func (r *NotificationRepository) GetBySubscriber(ctx context.Context, subscriberID int64, limit int) ([]*models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE subscriber_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	return r.query(ctx, query, subscriberID, limit)
}

// DeleteOlderThan удаляет уведомления старше before. Возвращает число удалённых.
func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE timestamp < $1`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *NotificationRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var (
			subscriberID sql.NullInt64
			meta         []byte
		)
		err := rows.Scan(
			&n.ID,
			&n.Timestamp,
			&n.Type,
			&n.Severity,
			&subscriberID,
			&n.Message,
			&meta,
		)
		if err != nil {
			return nil, err
		}
		if subscriberID.Valid {
			id := subscriberID.Int64
			n.SubscriberID = &id
		}
		if len(meta) > 0 {
			if err := jsonAPI.Unmarshal(meta, &n.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, n)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
