package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"autotrader/pkg/utils"
)

// Paper - биржа без реальных ордеров: рыночные данные берутся у source,
// ордера исполняются по последней цене с комиссией, баланс ведётся в памяти.
type Paper struct {
	source  Exchange
	feeRate decimal.Decimal

	mu        sync.Mutex
	balances  map[string]decimal.Decimal
	positions map[string]decimal.Decimal // symbol -> размер (отрицательный = short)
	margins   map[string]decimal.Decimal // symbol -> залог под открытую позицию
	leverage  map[string]int
	fills     []Order
	log       *utils.Logger
}

// PaperConfig - параметры симуляции
type PaperConfig struct {
	StartBalance float64 // USDT
	FeeRate      float64 // доля, например 0.0004 = 4 bps
}

// NewPaper создаёт paper-биржу поверх источника рыночных данных
func NewPaper(source Exchange, cfg PaperConfig) *Paper {
	return &Paper{
		source:    source,
		feeRate:   decimal.NewFromFloat(cfg.FeeRate),
		balances:  map[string]decimal.Decimal{"USDT": decimal.NewFromFloat(cfg.StartBalance)},
		positions: make(map[string]decimal.Decimal),
		margins:   make(map[string]decimal.Decimal),
		leverage:  make(map[string]int),
		log:       utils.L().WithComponent("paper"),
	}
}

func (p *Paper) GetName() string {
	return "paper"
}

func (p *Paper) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	return p.source.FetchCandles(ctx, symbol, timeframe, limit)
}

func (p *Paper) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	return p.source.FetchTicker(ctx, symbol)
}

// CreateMarketOrder исполняет ордер целиком по последней цене источника
func (p *Paper) CreateMarketOrder(ctx context.Context, symbol, side, size string) (*Order, error) {
	qty, err := decimal.NewFromString(size)
	if err != nil || !qty.IsPositive() {
		return nil, &ExchangeError{Exchange: p.GetName(), Code: "-1111", Message: fmt.Sprintf("invalid quantity %q", size)}
	}
	side = strings.ToUpper(side)
	if side != SideBuy && side != SideSell {
		return nil, &ExchangeError{Exchange: p.GetName(), Code: "-1117", Message: fmt.Sprintf("invalid side %q", side)}
	}

	ticker, err := p.source.FetchTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}
	price := decimal.NewFromFloat(ticker.LastPrice)

	p.mu.Lock()
	defer p.mu.Unlock()

	lev := p.leverage[symbol]
	if lev < 1 {
		lev = 1
	}
	notional := qty.Mul(price)
	fee := notional.Mul(p.feeRate)

	signed := qty
	if side == SideSell {
		signed = qty.Neg()
	}

	// Встречный ордер сначала сокращает позицию и освобождает залог пропорционально,
	// остаток открывает позицию в обратную сторону
	cur := p.positions[symbol]
	opening := qty
	released := decimal.Zero
	if !cur.IsZero() && cur.Sign() != signed.Sign() {
		closing := decimal.Min(qty, cur.Abs())
		released = p.margins[symbol].Mul(closing).Div(cur.Abs())
		opening = qty.Sub(closing)
	}
	margin := opening.Mul(price).Div(decimal.NewFromInt(int64(lev)))

	usdt := p.balances["USDT"]
	free := usdt.Sub(p.usedMarginLocked()).Add(released)
	if free.LessThan(margin.Add(fee)) {
		return nil, &ExchangeError{Exchange: p.GetName(), Code: "-2019", Message: "margin is insufficient"}
	}
	p.balances["USDT"] = usdt.Sub(fee)

	next := cur.Add(signed)
	p.positions[symbol] = next
	if next.IsZero() {
		delete(p.margins, symbol)
	} else {
		p.margins[symbol] = p.margins[symbol].Sub(released).Add(margin)
	}

	order := Order{
		ID:            strconv.FormatInt(time.Now().UnixNano(), 10),
		ClientOrderID: uuid.NewString(),
		Symbol:        symbol,
		Side:          side,
		Quantity:      qty.String(),
		FilledQty:     qty.String(),
		AvgFillPrice:  price.String(),
		Status:        OrderStatusFilled,
		CreatedAt:     time.Now().UTC(),
	}
	order.Raw, _ = jsonAPI.Marshal(map[string]string{
		"orderId":     order.ID,
		"status":      order.Status,
		"avgPrice":    order.AvgFillPrice,
		"executedQty": order.FilledQty,
		"fee":         fee.String(),
	})
	p.fills = append(p.fills, order)

	p.log.Info("paper order filled",
		utils.Symbol(symbol), utils.Side(side), utils.Size(order.FilledQty), utils.Price(ticker.LastPrice))
	return &order, nil
}

func (p *Paper) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 || leverage > utils.MaxLeverage {
		return &ExchangeError{Exchange: p.GetName(), Code: "-4028", Message: fmt.Sprintf("leverage %d is not valid", leverage)}
	}
	p.mu.Lock()
	p.leverage[symbol] = leverage
	p.mu.Unlock()
	return nil
}

func (p *Paper) FetchBalance(ctx context.Context) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]float64, len(p.balances))
	for asset, v := range p.balances {
		out[asset] = v.InexactFloat64()
	}
	return out, nil
}

// Fills возвращает копию исполненных ордеров
func (p *Paper) Fills() []Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Order(nil), p.fills...)
}

// UsedMargin - залог под все открытые позиции
func (p *Paper) UsedMargin() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usedMarginLocked()
}

func (p *Paper) usedMarginLocked() decimal.Decimal {
	total := decimal.Zero
	for _, m := range p.margins {
		total = total.Add(m)
	}
	return total
}

// Position возвращает текущий размер позиции по символу
func (p *Paper) Position(symbol string) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positions[symbol]
}

func (p *Paper) Close() error {
	return p.source.Close()
}
