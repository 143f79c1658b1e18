package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Trade - исполненный рыночный ордер. Неизменяем после записи.
type Trade struct {
	ID           string          `json:"id" db:"id"`
	SubscriberID int64           `json:"subscriber_id" db:"subscriber_id"`
	Time         time.Time       `json:"time" db:"time"`
	Symbol       string          `json:"symbol" db:"symbol"`
	Side         string          `json:"side" db:"side"`         // BUY, SELL
	Size         decimal.Decimal `json:"size" db:"size"`         // в базовом активе
	Price        decimal.Decimal `json:"price" db:"price"`       // цена тикера на момент расчёта
	Notional     decimal.Decimal `json:"notional" db:"notional"` // USDT до плеча
	Leverage     int             `json:"leverage" db:"leverage"`
	OrderID      string          `json:"order_id" db:"order_id"`
	Raw          json.RawMessage `json:"raw,omitempty" db:"raw"` // ответ биржи как есть
}

// Стороны сделки
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)
