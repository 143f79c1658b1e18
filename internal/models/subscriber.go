package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subscriber - настройки автоторговли и дневные счётчики одного подписчика
type Subscriber struct {
	ID            int64           `json:"id" db:"id"`
	Autotrade     bool            `json:"autotrade" db:"autotrade"`
	Pairs         []string        `json:"pairs" db:"pairs"`                   // множество пар вида BTC/USDT
	OrderNotional decimal.Decimal `json:"order_notional" db:"order_notional"` // USDT на сделку до плеча
	Leverage      int             `json:"leverage" db:"leverage"`
	DailyTrades   int             `json:"daily_trades" db:"daily_trades"`
	DailyLoss     decimal.Decimal `json:"daily_loss" db:"daily_loss"`
	LastReset     time.Time       `json:"last_reset" db:"last_reset"` // 00:00 UTC дня последнего сброса
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`

	// Trades - последние сделки (новые в конце), длина ограничена TradeLogLimit хранилища
	Trades []Trade `json:"-" db:"-"`
}

// Clone возвращает глубокую копию (срезы не разделяются с оригиналом)
func (s *Subscriber) Clone() *Subscriber {
	if s == nil {
		return nil
	}
	c := *s
	c.Pairs = append([]string(nil), s.Pairs...)
	c.Trades = append([]Trade(nil), s.Trades...)
	return &c
}

// HasPair проверяет, отслеживается ли пара
func (s *Subscriber) HasPair(symbol string) bool {
	for _, p := range s.Pairs {
		if p == symbol {
			return true
		}
	}
	return false
}

// AddPair добавляет пару; false если она уже есть
func (s *Subscriber) AddPair(symbol string) bool {
	if s.HasPair(symbol) {
		return false
	}
	s.Pairs = append(s.Pairs, symbol)
	return true
}

// RemovePair удаляет пару; false если её не было
func (s *Subscriber) RemovePair(symbol string) bool {
	for i, p := range s.Pairs {
		if p == symbol {
			s.Pairs = append(s.Pairs[:i], s.Pairs[i+1:]...)
			return true
		}
	}
	return false
}

// AppendTrade добавляет сделку в журнал, обрезая его до limit последних записей
func (s *Subscriber) AppendTrade(t Trade, limit int) {
	s.Trades = append(s.Trades, t)
	if limit > 0 && len(s.Trades) > limit {
		s.Trades = append([]Trade(nil), s.Trades[len(s.Trades)-limit:]...)
	}
}

// RecentTrades возвращает до limit последних сделок (новые в конце)
func (s *Subscriber) RecentTrades(limit int) []Trade {
	trades := s.Trades
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	return append([]Trade(nil), trades...)
}

// SubscriberStatus - снимок для команды /status
type SubscriberStatus struct {
	SubscriberID    int64            `json:"subscriber_id"`
	Autotrade       bool             `json:"autotrade"`
	Pairs           []string         `json:"pairs"`
	OrderNotional   decimal.Decimal  `json:"order_notional"`
	Leverage        int              `json:"leverage"`
	DailyTrades     int              `json:"daily_trades"`
	MaxTradesPerDay int              `json:"max_trades_per_day"`
	DailyLoss       decimal.Decimal  `json:"daily_loss"`
	MaxDailyLoss    decimal.Decimal  `json:"max_daily_loss"`
	LimitsExhausted bool             `json:"limits_exhausted"`
	LastReset       time.Time        `json:"last_reset"`
	Cooldowns       []CooldownStatus `json:"cooldowns,omitempty"`
}

// CooldownStatus - активный кулдаун по паре
type CooldownStatus struct {
	Symbol    string    `json:"symbol"`
	Until     time.Time `json:"until"`
	Remaining string    `json:"remaining"`
}
