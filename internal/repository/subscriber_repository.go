package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"autotrader/internal/models"
)

// SubscriberRepository - работа с таблицей subscribers
type SubscriberRepository struct {
	db *sql.DB
}

// NewSubscriberRepository создает новый экземпляр репозитория
func NewSubscriberRepository(db *sql.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// Upsert создаёт подписчика или перезаписывает его настройки и счётчики
func (r *SubscriberRepository) Upsert(ctx context.Context, sub *models.Subscriber) error {
	query := `
		INSERT INTO subscribers (id, autotrade, pairs, order_notional, leverage, daily_trades, daily_loss, last_reset, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			autotrade = EXCLUDED.autotrade,
			pairs = EXCLUDED.pairs,
			order_notional = EXCLUDED.order_notional,
			leverage = EXCLUDED.leverage,
			daily_trades = EXCLUDED.daily_trades,
			daily_loss = EXCLUDED.daily_loss,
			last_reset = EXCLUDED.last_reset,
			updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = now
	}

	pairs := sub.Pairs
	if pairs == nil {
		pairs = []string{}
	}

	_, err := r.db.ExecContext(ctx, query,
		sub.ID,
		sub.Autotrade,
		pq.Array(pairs),
		sub.OrderNotional,
		sub.Leverage,
		sub.DailyTrades,
		sub.DailyLoss,
		sub.LastReset,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	return err
}

// SaveSubscriber - Upsert под интерфейс bot.SubscriberPersister
func (r *SubscriberRepository) SaveSubscriber(ctx context.Context, sub *models.Subscriber) error {
	return r.Upsert(ctx, sub)
}

// ListSubscribers возвращает всех подписчиков по возрастанию ID
func (r *SubscriberRepository) ListSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	query := `
		SELECT id, autotrade, pairs, order_notional, leverage, daily_trades, daily_loss, last_reset, created_at, updated_at
		FROM subscribers
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return subs, nil
}

// rowScanner - общий интерфейс *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscriber(row rowScanner) (*models.Subscriber, error) {
	sub := &models.Subscriber{}
	var pairs pq.StringArray
	err := row.Scan(
		&sub.ID,
		&sub.Autotrade,
		&pairs,
		&sub.OrderNotional,
		&sub.Leverage,
		&sub.DailyTrades,
		&sub.DailyLoss,
		&sub.LastReset,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Pairs = []string(pairs)
	return sub, nil
}
