package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Exchange - возможности биржи, которыми пользуется торговое ядро.
// Экземпляр создаётся один раз при старте (NewExchange) и передаётся в движок.
type Exchange interface {
	// GetName возвращает имя биржи
	GetName() string

	// FetchCandles возвращает до limit последних свечей (старые первыми).
	// Пустой результат без ошибки означает отсутствие данных.
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)

	// FetchTicker возвращает последнюю цену
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)

	// CreateMarketOrder отправляет рыночный ордер. size - в базовом активе, строкой с нужной точностью.
	CreateMarketOrder(ctx context.Context, symbol, side, size string) (*Order, error)

	// SetLeverage устанавливает плечо по символу. Ошибка не критична для ордера.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// FetchBalance возвращает баланс фьючерсного кошелька по активам
	FetchBalance(ctx context.Context) (map[string]float64, error)

	// Close освобождает ресурсы клиента
	Close() error
}

// Candle - одна OHLCV свеча
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Ticker - последняя цена символа
type Ticker struct {
	Symbol    string    `json:"symbol"`
	LastPrice float64   `json:"last_price"`
	Timestamp time.Time `json:"timestamp"`
}

// Order - подтверждение биржи по рыночному ордеру
type Order struct {
	ID            string          `json:"id"`
	ClientOrderID string          `json:"client_order_id"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Quantity      string          `json:"quantity"`
	FilledQty     string          `json:"filled_qty"`
	AvgFillPrice  string          `json:"avg_fill_price"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	Raw           json.RawMessage `json:"raw,omitempty"` // ответ биржи без изменений
}

// Стороны ордера
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Статусы ордера
const (
	OrderStatusNew      = "NEW"
	OrderStatusFilled   = "FILLED"
	OrderStatusPartial  = "PARTIALLY_FILLED"
	OrderStatusRejected = "REJECTED"
)

// ============ Ошибки ============

// ExchangeError - ошибка, пришедшая от биржи (код и сообщение API)
type ExchangeError struct {
	Exchange string
	Code     string
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return e.Exchange + ": [" + e.Code + "] " + e.Message
	}
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}

// FetchReason - типизированная причина неудачного обращения к бирже
type FetchReason string

const (
	FetchNoData   FetchReason = "no_data"  // биржа ответила, но данных нет
	FetchTimeout  FetchReason = "timeout"  // истёк таймаут вызова
	FetchRejected FetchReason = "rejected" // биржа или сеть вернули ошибку
)

// FetchError - неудачный вызов с причиной. Вызывающий код ветвится по Reason, а не по тексту.
type FetchError struct {
	Op     string
	Symbol string
	Reason FetchReason
	Err    error
}

func (e *FetchError) Error() string {
	msg := e.Op + " " + e.Symbol + ": " + string(e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable - ошибки данных и отказы API не повторяем, сетевые сбои повторяем
func (e *FetchError) Retryable() bool {
	if e.Reason != FetchRejected {
		return false
	}
	var exErr *ExchangeError
	return !errors.As(e.Err, &exErr)
}

// Classify оборачивает ошибку вызова в FetchError с подходящей причиной
func Classify(op, symbol string, err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	reason := FetchRejected
	if errors.Is(err, context.DeadlineExceeded) {
		reason = FetchTimeout
	}
	return &FetchError{Op: op, Symbol: symbol, Reason: reason, Err: err}
}

// ReasonOf возвращает причину ошибки; для не-FetchError - FetchRejected
func ReasonOf(err error) FetchReason {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FetchTimeout
	}
	return FetchRejected
}
