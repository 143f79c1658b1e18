package bot

import (
	"context"
	"time"

	"autotrader/internal/config"
	"autotrader/internal/exchange"
	"autotrader/internal/indicators"
	"autotrader/internal/models"
	"autotrader/pkg/retry"
	"autotrader/pkg/utils"
)

// Периоды индикаторов сигнала
const (
	smaShortPeriod = 10
	smaLongPeriod  = 30
	emaShortPeriod = 12
	emaShortWindow = 50
	rsiPeriod      = 14
	macdFast       = 12
	macdSlow       = 26
	macdSignal     = 9
	atrPeriod      = 14

	rsiOversold   = 30.0
	rsiOverbought = 70.0

	// VerdictThreshold - минимальный |score| для направления
	VerdictThreshold = 1.0
)

// SignalGenerator строит сигнал по истории свечей одного символа
type SignalGenerator struct {
	exchange    exchange.Exchange
	suite       indicators.Suite
	timeframe   string
	candleLimit int
	callTimeout time.Duration
	retryCfg    retry.Config
	log         *utils.Logger
}

// NewSignalGenerator создаёт генератор. suite == nil - текущий набор индикаторов.
func NewSignalGenerator(ex exchange.Exchange, suite indicators.Suite, cfg config.BotConfig) *SignalGenerator {
	if suite == nil {
		suite = indicators.Default()
	}
	return &SignalGenerator{
		exchange:    ex,
		suite:       suite,
		timeframe:   cfg.CandleTimeframe,
		candleLimit: cfg.CandleLimit,
		callTimeout: cfg.CallTimeout,
		retryCfg:    retry.ReadConfig(),
		log:         utils.L().WithComponent("signal"),
	}
}

// Generate загружает свечи и оценивает их.
// (nil, nil) - данных нет, символ пропускается. Ошибка транспорта - *exchange.FetchError.
func (g *SignalGenerator) Generate(ctx context.Context, symbol string) (*models.SignalInfo, error) {
	start := time.Now()

	candles, err := retry.DoWithResult(ctx, func() ([]exchange.Candle, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		defer cancel()

		c, err := g.exchange.FetchCandles(callCtx, symbol, g.timeframe, g.candleLimit)
		if err != nil {
			return nil, exchange.Classify("fetch_candles", symbol, err)
		}
		return c, nil
	}, g.retryCfg)

	CandleFetchLatency.WithLabelValues(g.exchange.GetName()).Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		fe := exchange.Classify("fetch_candles", symbol, err)
		FetchFailures.WithLabelValues(string(fe.Reason)).Inc()
		return nil, fe
	}
	if len(candles) == 0 {
		FetchFailures.WithLabelValues(string(exchange.FetchNoData)).Inc()
		return nil, nil
	}

	sig := Evaluate(g.suite, symbol, candles)
	SignalsTotal.WithLabelValues(verdictLabel(sig.Verdict)).Inc()

	g.log.WithSymbol(symbol).Debug("signal evaluated",
		utils.Score(sig.Score),
		utils.Side(string(sig.Verdict)),
		utils.Float64("rsi", sig.RSI),
		utils.Float64("atr", sig.ATR),
	)
	return sig, nil
}

// Evaluate считает индикаторы и скоринг по свечам (старые первыми). Чистая функция.
func Evaluate(suite indicators.Suite, symbol string, candles []exchange.Candle) *models.SignalInfo {
	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	sig := &models.SignalInfo{
		Symbol:   symbol,
		SMAShort: suite.SMA(closes, smaShortPeriod),
		SMALong:  suite.SMA(closes, smaLongPeriod),
		EMAShort: suite.EMA(tailOf(closes, emaShortWindow), emaShortPeriod),
		RSI:      suite.RSI(closes, rsiPeriod),
		MACD:     suite.MACD(closes, macdFast, macdSlow, macdSignal).Line,
		ATR:      suite.ATR(highs, lows, closes, atrPeriod),
		Version:  suite.Version(),
	}
	if len(closes) > 0 {
		sig.Price = closes[len(closes)-1]
	}

	sig.Score = Score(sig.SMAShort, sig.SMALong, sig.RSI, sig.MACD)
	sig.Verdict = VerdictFor(sig.Score)
	return sig
}

// Score - сумма голосов индикаторов. Неопределённые индикаторы не голосуют.
//   - SMA: +1 если короткая выше длинной, иначе -1
//   - RSI: +1 ниже 30, -1 выше 70
//   - MACD: +0.5 если линия > 0, иначе -0.5
func Score(smaShort, smaLong, rsi, macd float64) float64 {
	score := 0.0

	if !indicators.Undefined(smaShort) && !indicators.Undefined(smaLong) {
		if smaShort > smaLong {
			score++
		} else {
			score--
		}
	}

	if !indicators.Undefined(rsi) {
		if rsi < rsiOversold {
			score++
		} else if rsi > rsiOverbought {
			score--
		}
	}

	if !indicators.Undefined(macd) {
		if macd > 0 {
			score += 0.5
		} else {
			score -= 0.5
		}
	}

	return score
}

// VerdictFor переводит score в направление
func VerdictFor(score float64) models.Verdict {
	switch {
	case score >= VerdictThreshold:
		return models.VerdictBuy
	case score <= -VerdictThreshold:
		return models.VerdictSell
	default:
		return models.VerdictNone
	}
}

func tailOf(series []float64, n int) []float64 {
	if len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}

func verdictLabel(v models.Verdict) string {
	if v == models.VerdictNone {
		return "none"
	}
	return string(v)
}
