package repository

import (
	"context"
	"database/sql"
	"fmt"

	"autotrader/internal/models"
)

// migrations - схема БД. Применяются по порядку, каждая идемпотентна.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS subscribers (
		id BIGINT PRIMARY KEY,
		autotrade BOOLEAN NOT NULL DEFAULT false,
		pairs TEXT[] NOT NULL DEFAULT '{}',
		order_notional NUMERIC(20,8) NOT NULL,
		leverage INT NOT NULL,
		daily_trades INT NOT NULL DEFAULT 0,
		daily_loss NUMERIC(20,8) NOT NULL DEFAULT 0,
		last_reset TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id UUID PRIMARY KEY,
		subscriber_id BIGINT NOT NULL,
		time TIMESTAMPTZ NOT NULL,
		symbol VARCHAR(20) NOT NULL,
		side VARCHAR(4) NOT NULL,
		size NUMERIC(30,12) NOT NULL,
		price NUMERIC(30,12) NOT NULL,
		notional NUMERIC(20,8) NOT NULL,
		leverage INT NOT NULL,
		order_id VARCHAR(64) NOT NULL DEFAULT '',
		raw JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_subscriber_time ON trades (subscriber_id, time DESC)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		type VARCHAR(20) NOT NULL,
		severity VARCHAR(10) NOT NULL,
		subscriber_id BIGINT,
		message TEXT NOT NULL,
		meta JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_timestamp ON notifications (timestamp DESC)`,
}

// Migrate создаёт таблицы, если их нет
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

// SubscriberStorage объединяет репозитории подписчиков и сделок:
// bot.SubscriberPersister для хранилища подписчиков и bot.SubscriberLoader для восстановления
type SubscriberStorage struct {
	subscribers *SubscriberRepository
	trades      *TradeRepository
}

// NewSubscriberStorage создаёт хранилище поверх одного подключения
func NewSubscriberStorage(subscribers *SubscriberRepository, trades *TradeRepository) *SubscriberStorage {
	return &SubscriberStorage{subscribers: subscribers, trades: trades}
}

func (s *SubscriberStorage) SaveSubscriber(ctx context.Context, sub *models.Subscriber) error {
	return s.subscribers.SaveSubscriber(ctx, sub)
}

func (s *SubscriberStorage) SaveTrade(ctx context.Context, trade *models.Trade) error {
	return s.trades.SaveTrade(ctx, trade)
}

func (s *SubscriberStorage) ListSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	return s.subscribers.ListSubscribers(ctx)
}

func (s *SubscriberStorage) ListRecentTrades(ctx context.Context, subscriberID int64, limit int) ([]models.Trade, error) {
	return s.trades.ListRecentTrades(ctx, subscriberID, limit)
}
