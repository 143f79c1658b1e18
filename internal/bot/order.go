package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"autotrader/internal/config"
	"autotrader/internal/exchange"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

var (
	ErrInvalidPrice = errors.New("invalid ticker price")
	ErrZeroSize     = errors.New("order size rounds to zero")
	ErrInvalidSide  = errors.New("invalid order side")
)

// OrderExecutor - расчёт размера и отправка рыночного ордера для одного подписчика
//
// Ордер отправляется ровно один раз: повтор рыночного ордера может удвоить позицию.
type OrderExecutor struct {
	exchange     exchange.Exchange
	store        *SubscriberStore
	callTimeout  time.Duration
	orderTimeout time.Duration
	log          *utils.Logger
}

// ExecuteParams - параметры сделки
type ExecuteParams struct {
	SubscriberID  int64
	Symbol        string
	Side          string          // BUY, SELL
	OrderNotional decimal.Decimal // USDT до плеча
	Leverage      int
}

// ExecuteResult - результат исполнения
type ExecuteResult struct {
	Success bool
	Error   error

	Trade *models.Trade
	Order *exchange.Order
}

// NewOrderExecutor создаёт исполнитель
func NewOrderExecutor(ex exchange.Exchange, store *SubscriberStore, cfg config.BotConfig) *OrderExecutor {
	return &OrderExecutor{
		exchange:     ex,
		store:        store,
		callTimeout:  cfg.CallTimeout,
		orderTimeout: cfg.OrderTimeout,
		log:          utils.L().WithComponent("executor"),
	}
}

// Execute выполняет сделку:
//  1. тикер и размер = round(notional × leverage / price, 6)
//  2. установка плеча (ошибка не прерывает сделку)
//  3. рыночный ордер
//  4. запись сделки и счётчика в хранилище подписчиков
//
// Ошибки не паникуют и не пробрасываются, а возвращаются в ExecuteResult.
func (oe *OrderExecutor) Execute(ctx context.Context, p ExecuteParams) ExecuteResult {
	log := oe.log.With(utils.Subscriber(p.SubscriberID), utils.Symbol(p.Symbol), utils.Side(p.Side))

	if p.Side != models.SideBuy && p.Side != models.SideSell {
		return oe.fail(p, "sizing", fmt.Errorf("%w: %q", ErrInvalidSide, p.Side))
	}

	// 1. Цена и размер
	tickerCtx, cancel := context.WithTimeout(ctx, oe.callTimeout)
	ticker, err := oe.exchange.FetchTicker(tickerCtx, p.Symbol)
	cancel()
	if err != nil {
		log.Warn("ticker fetch failed", utils.Reason(string(exchange.ReasonOf(err))), utils.Err(err))
		return oe.fail(p, "ticker", exchange.Classify("fetch_ticker", p.Symbol, err))
	}
	if ticker.LastPrice <= 0 || math.IsNaN(ticker.LastPrice) || math.IsInf(ticker.LastPrice, 0) {
		return oe.fail(p, "sizing", fmt.Errorf("%w: %v", ErrInvalidPrice, ticker.LastPrice))
	}

	price := decimal.NewFromFloat(ticker.LastPrice)
	size := utils.CalculateOrderSize(p.OrderNotional, p.Leverage, price, utils.SizePrecision)
	if !size.IsPositive() {
		return oe.fail(p, "sizing", fmt.Errorf("%w: notional=%s leverage=%d price=%s",
			ErrZeroSize, p.OrderNotional, p.Leverage, price))
	}

	log.Info("placing market order",
		utils.Size(size.String()), utils.Price(ticker.LastPrice), utils.Leverage(p.Leverage))

	// Ордер не привязан к контексту тика: остановка не должна обрывать отправку на середине
	orderCtx, orderCancel := context.WithTimeout(context.Background(), oe.orderTimeout)
	defer orderCancel()

	// 2. Плечо
	if err := oe.exchange.SetLeverage(orderCtx, p.Symbol, p.Leverage); err != nil {
		OrderErrors.WithLabelValues("leverage").Inc()
		log.Debug("set leverage failed, proceeding with order", utils.Err(err))
	}

	// 3. Ордер
	start := time.Now()
	order, err := oe.exchange.CreateMarketOrder(orderCtx, p.Symbol, p.Side, size.String())
	OrderExecutionLatency.WithLabelValues(oe.exchange.GetName(), p.Side).
		Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		log.Error("order failed", utils.Size(size.String()), utils.Err(err))
		return oe.fail(p, "order", err)
	}

	// 4. Запись
	trade := models.Trade{
		ID:           uuid.NewString(),
		SubscriberID: p.SubscriberID,
		Time:         time.Now().UTC(),
		Symbol:       p.Symbol,
		Side:         p.Side,
		Size:         size,
		Price:        price,
		Notional:     p.OrderNotional,
		Leverage:     p.Leverage,
		OrderID:      order.ID,
		Raw:          order.Raw,
	}
	oe.store.RecordTrade(trade)
	RecordOrder(p.Symbol, p.Side, true)

	log.Info("order placed",
		utils.OrderID(order.ID), utils.Size(size.String()), utils.String("status", order.Status))

	return ExecuteResult{Success: true, Trade: &trade, Order: order}
}

func (oe *OrderExecutor) fail(p ExecuteParams, stage string, err error) ExecuteResult {
	OrderErrors.WithLabelValues(stage).Inc()
	RecordOrder(p.Symbol, p.Side, false)
	return ExecuteResult{Error: err}
}
