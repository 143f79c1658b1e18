package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"autotrader/pkg/utils"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Binance - адаптер USDT-M фьючерсов Binance
type Binance struct {
	client     *futures.Client
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *utils.Logger
}

// NewBinance создаёт клиент. Ключи могут быть пустыми - тогда доступны только публичные данные.
func NewBinance(cfg Config) *Binance {
	futures.UseTestnet = cfg.Testnet

	httpClient := NewHTTPClient(DefaultHTTPClientConfig())
	client := binance.NewFuturesClient(cfg.APIKey, cfg.APISecret)
	client.HTTPClient = httpClient
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}

	return &Binance{
		client:     client,
		httpClient: httpClient,
		limiter:    newLimiter(cfg),
		log:        utils.L().WithComponent("binance"),
	}
}

func newLimiter(cfg Config) *rate.Limiter {
	if cfg.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
}

func (b *Binance) GetName() string {
	return "binance"
}

// ToBinanceSymbol: "BTC/USDT" -> "BTCUSDT"
func ToBinanceSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "")
}

func (b *Binance) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, Classify("fetch_candles", symbol, err)
	}

	klines, err := b.client.NewKlinesService().
		Symbol(ToBinanceSymbol(symbol)).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, Classify("fetch_candles", symbol, b.wrapErr(err))
	}

	candles := make([]Candle, 0, len(klines))
	for _, k := range klines {
		c, err := parseKline(k)
		if err != nil {
			return nil, &FetchError{Op: "fetch_candles", Symbol: symbol, Reason: FetchRejected, Err: err}
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func parseKline(k *futures.Kline) (Candle, error) {
	var (
		c   = Candle{OpenTime: utils.FromUnixMillis(k.OpenTime)}
		err error
	)
	fields := []struct {
		dst *float64
		src string
	}{
		{&c.Open, k.Open}, {&c.High, k.High}, {&c.Low, k.Low}, {&c.Close, k.Close}, {&c.Volume, k.Volume},
	}
	for _, f := range fields {
		if *f.dst, err = strconv.ParseFloat(f.src, 64); err != nil {
			return Candle{}, fmt.Errorf("parse kline value %q: %w", f.src, err)
		}
	}
	return c, nil
}

func (b *Binance) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, Classify("fetch_ticker", symbol, err)
	}

	prices, err := b.client.NewListPricesService().Symbol(ToBinanceSymbol(symbol)).Do(ctx)
	if err != nil {
		return nil, Classify("fetch_ticker", symbol, b.wrapErr(err))
	}
	if len(prices) == 0 {
		return nil, &FetchError{Op: "fetch_ticker", Symbol: symbol, Reason: FetchNoData}
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return nil, &FetchError{Op: "fetch_ticker", Symbol: symbol, Reason: FetchRejected, Err: err}
	}

	return &Ticker{Symbol: symbol, LastPrice: price, Timestamp: time.Now().UTC()}, nil
}

// CreateMarketOrder не повторяет запрос: повтор рыночного ордера может удвоить позицию
func (b *Binance) CreateMarketOrder(ctx context.Context, symbol, side, size string) (*Order, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	clientID := "at-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
	res, err := b.client.NewCreateOrderService().
		Symbol(ToBinanceSymbol(symbol)).
		Side(futures.SideType(strings.ToUpper(side))).
		Type(futures.OrderTypeMarket).
		Quantity(size).
		NewClientOrderID(clientID).
		Do(ctx)
	if err != nil {
		return nil, b.wrapErr(err)
	}

	orderID := strconv.FormatInt(res.OrderID, 10)
	return &Order{
		ID:            orderID,
		ClientOrderID: res.ClientOrderID,
		Symbol:        symbol,
		Side:          string(res.Side),
		Quantity:      res.OrigQuantity,
		FilledQty:     res.ExecutedQuantity,
		AvgFillPrice:  res.AvgPrice,
		Status:        string(res.Status),
		CreatedAt:     utils.FromUnixMillis(res.UpdateTime),
		Raw:           b.rawConfirmation(res, orderID),
	}, nil
}

// rawConfirmation сериализует ответ биржи для журнала сделок; nil если не удалось
func (b *Binance) rawConfirmation(res interface{}, orderID string) []byte {
	raw, err := jsonAPI.Marshal(res)
	if err != nil {
		b.log.Debug("failed to encode order confirmation", utils.OrderID(orderID), utils.Err(err))
		return nil
	}
	return raw
}

func (b *Binance) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := b.client.NewChangeLeverageService().
		Symbol(ToBinanceSymbol(symbol)).
		Leverage(leverage).
		Do(ctx)
	return b.wrapErr(err)
}

func (b *Binance) FetchBalance(ctx context.Context) (map[string]float64, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	balances, err := b.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return nil, b.wrapErr(err)
	}

	out := make(map[string]float64, len(balances))
	for _, bal := range balances {
		v, err := strconv.ParseFloat(bal.Balance, 64)
		if err != nil {
			b.log.Debug("skip unparsable balance", utils.String("asset", bal.Asset), utils.Err(err))
			continue
		}
		out[bal.Asset] = v
	}
	return out, nil
}

func (b *Binance) Close() error {
	CloseIdle(b.httpClient)
	return nil
}

// wrapErr переводит ошибку API Binance в ExchangeError; сетевые ошибки возвращаются как есть
func (b *Binance) wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return &ExchangeError{
			Exchange: b.GetName(),
			Code:     strconv.FormatInt(apiErr.Code, 10),
			Message:  apiErr.Message,
			Original: err,
		}
	}
	return fmt.Errorf("%s: %w", b.GetName(), err)
}
