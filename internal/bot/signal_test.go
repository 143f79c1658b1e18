package bot

import (
	"context"
	"errors"
	"math"
	"testing"

	"autotrader/internal/exchange"
	"autotrader/internal/indicators"
	"autotrader/internal/models"
)

func TestScore(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name     string
		smaShort float64
		smaLong  float64
		rsi      float64
		macd     float64
		want     float64
	}{
		{"all undefined", nan, nan, nan, nan, 0},
		{"sma up only", 11, 10, nan, nan, 1},
		{"sma down only", 9, 10, nan, nan, -1},
		{"sma equal counts as down", 10, 10, nan, nan, -1},
		{"one sma undefined", 11, nan, nan, nan, 0},
		{"rsi oversold", nan, nan, 29.9, nan, 1},
		{"rsi overbought", nan, nan, 70.1, nan, -1},
		{"rsi neutral at 30", nan, nan, 30, nan, 0},
		{"rsi neutral at 70", nan, nan, 70, nan, 0},
		{"macd positive", nan, nan, nan, 0.01, 0.5},
		{"macd zero counts as negative", nan, nan, nan, 0, -0.5},
		{"all bullish", 11, 10, 25, 1, 2.5},
		{"all bearish", 9, 10, 75, -1, -2.5},
		{"sma up, macd down", 11, 10, 50, -1, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.smaShort, tt.smaLong, tt.rsi, tt.macd); got != tt.want {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerdictFor_Boundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  models.Verdict
	}{
		{1.0, models.VerdictBuy},
		{1.5, models.VerdictBuy},
		{0.5, models.VerdictNone},
		{0, models.VerdictNone},
		{-0.5, models.VerdictNone},
		{-1.0, models.VerdictSell},
		{-2.5, models.VerdictSell},
	}

	for _, tt := range tests {
		if got := VerdictFor(tt.score); got != tt.want {
			t.Errorf("VerdictFor(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestEvaluate(t *testing.T) {
	suite := indicators.Default()

	tests := []struct {
		name    string
		candles []exchange.Candle
		score   float64
		verdict models.Verdict
	}{
		{"uptrend with pullback", trendCandles(true), 1.5, models.VerdictBuy},
		{"downtrend with bounce", trendCandles(false), -1.5, models.VerdictSell},
		{"monotonic rise", risingCandles(200), 0.5, models.VerdictNone},
		{"too short for anything", risingCandles(5), 0, models.VerdictNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Evaluate(suite, "BTC/USDT", tt.candles)
			if sig.Score != tt.score {
				t.Errorf("score = %v, want %v", sig.Score, tt.score)
			}
			if sig.Verdict != tt.verdict {
				t.Errorf("verdict = %q, want %q", sig.Verdict, tt.verdict)
			}
			if sig.Price != tt.candles[len(tt.candles)-1].Close {
				t.Errorf("price = %v, want last close", sig.Price)
			}
			if sig.Version != indicators.VersionApproxV1 {
				t.Errorf("version = %q", sig.Version)
			}
		})
	}

	short := Evaluate(suite, "BTC/USDT", risingCandles(5))
	for name, v := range map[string]float64{"sma_long": short.SMALong, "rsi": short.RSI, "macd": short.MACD, "atr": short.ATR} {
		if !indicators.Undefined(v) {
			t.Errorf("%s should be undefined for a short series, got %v", name, v)
		}
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	candles := trendCandles(true)
	a := Evaluate(indicators.Default(), "BTC/USDT", candles)
	b := Evaluate(indicators.Default(), "BTC/USDT", candles)

	if a.Score != b.Score || a.RSI != b.RSI || a.MACD != b.MACD || a.ATR != b.ATR {
		t.Errorf("same input gave different signals: %+v vs %+v", a, b)
	}
}

func TestSignalGenerator_Generate(t *testing.T) {
	ex := newMockExchange(50000)
	ex.setCandles("BTC/USDT", trendCandles(true))
	gen := NewSignalGenerator(ex, nil, testBotConfig())

	sig, err := gen.Generate(context.Background(), "BTC/USDT")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sig.Verdict != models.VerdictBuy || sig.Symbol != "BTC/USDT" {
		t.Errorf("unexpected signal: %+v", sig)
	}
}

func TestSignalGenerator_NoData(t *testing.T) {
	ex := newMockExchange(50000)
	gen := NewSignalGenerator(ex, nil, testBotConfig())

	sig, err := gen.Generate(context.Background(), "DOGE/USDT")
	if err != nil || sig != nil {
		t.Errorf("empty candles should give (nil, nil), got (%v, %v)", sig, err)
	}
}

func TestSignalGenerator_FetchErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		reason    exchange.FetchReason
		wantCalls int
	}{
		{
			name:      "api rejection is not retried",
			err:       &exchange.ExchangeError{Exchange: "mock", Code: "-1121", Message: "Invalid symbol."},
			reason:    exchange.FetchRejected,
			wantCalls: 1,
		},
		{
			name:      "timeout is not retried",
			err:       context.DeadlineExceeded,
			reason:    exchange.FetchTimeout,
			wantCalls: 1,
		},
		{
			name:      "network failure is retried",
			err:       errors.New("connection reset by peer"),
			reason:    exchange.FetchRejected,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := newMockExchange(50000)
			ex.candleErr = tt.err
			gen := NewSignalGenerator(ex, nil, testBotConfig())

			sig, err := gen.Generate(context.Background(), "BTC/USDT")
			if sig != nil {
				t.Errorf("expected nil signal, got %+v", sig)
			}

			var fe *exchange.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *exchange.FetchError, got %T: %v", err, err)
			}
			if fe.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", fe.Reason, tt.reason)
			}
			if ex.candleCalls != tt.wantCalls {
				t.Errorf("FetchCandles called %d times, want %d", ex.candleCalls, tt.wantCalls)
			}
		})
	}
}
