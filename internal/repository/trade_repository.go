package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"autotrader/internal/models"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
)

// TradeRepository - работа с таблицей trades
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

const tradeColumns = `id, subscriber_id, time, symbol, side, size, price, notional, leverage, order_id, raw`

// Create записывает сделку. Повторная запись с тем же ID игнорируется.
func (r *TradeRepository) Create(ctx context.Context, trade *models.Trade) error {
	query := `
		INSERT INTO trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	if trade.Time.IsZero() {
		trade.Time = time.Now().UTC()
	}

	var raw interface{}
	if len(trade.Raw) > 0 {
		raw = []byte(trade.Raw)
	}

	_, err := r.db.ExecContext(ctx, query,
		trade.ID,
		trade.SubscriberID,
		trade.Time,
		trade.Symbol,
		trade.Side,
		trade.Size,
		trade.Price,
		trade.Notional,
		trade.Leverage,
		trade.OrderID,
		raw,
	)
	return err
}

// SaveTrade - Create под интерфейс bot.SubscriberPersister
func (r *TradeRepository) SaveTrade(ctx context.Context, trade *models.Trade) error {
	return r.Create(ctx, trade)
}

// GetByID возвращает сделку по ID
func (r *TradeRepository) GetByID(ctx context.Context, id string) (*models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	trade, err := scanTrade(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	return trade, nil
}

// ListRecentTrades возвращает до limit последних сделок подписчика (старые первыми)
func (r *TradeRepository) ListRecentTrades(ctx context.Context, subscriberID int64, limit int) ([]models.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE subscriber_id = $1
		ORDER BY time DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, subscriberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	// в журнале новые сделки в конце
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	return trades, nil
}

func scanTrade(row rowScanner) (*models.Trade, error) {
	trade := &models.Trade{}
	var raw []byte
	err := row.Scan(
		&trade.ID,
		&trade.SubscriberID,
		&trade.Time,
		&trade.Symbol,
		&trade.Side,
		&trade.Size,
		&trade.Price,
		&trade.Notional,
		&trade.Leverage,
		&trade.OrderID,
		&raw,
	)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		trade.Raw = append([]byte(nil), raw...)
	}
	return trade, nil
}
