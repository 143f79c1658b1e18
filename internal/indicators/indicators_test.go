package indicators

import (
	"math"
	"testing"
)

const eps = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// ============================================================
// SMA
// ============================================================

func TestSMA(t *testing.T) {
	tests := []struct {
		name     string
		series   []float64
		period   int
		expected float64
		undef    bool
	}{
		{"last three of five", []float64{1, 2, 3, 4, 5}, 3, 4, false},
		{"exact length", []float64{2, 4}, 2, 3, false},
		{"period 1", []float64{7, 8, 9}, 1, 9, false},
		{"too short", []float64{1, 2}, 3, 0, true},
		{"empty", nil, 3, 0, true},
		{"zero period", []float64{1, 2, 3}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SMA(tt.series, tt.period)
			if tt.undef {
				if !Undefined(got) {
					t.Errorf("SMA() = %v, want undefined", got)
				}
				return
			}
			if !almostEqual(got, tt.expected) {
				t.Errorf("SMA() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// ============================================================
// EMA
// ============================================================

func TestEMA(t *testing.T) {
	tests := []struct {
		name     string
		series   []float64
		period   int
		expected float64
		undef    bool
	}{
		// k = 0.5: 1 -> 1.5 -> 2.25
		{"seeded with first element", []float64{1, 2, 3}, 3, 2.25, false},
		{"constant series", []float64{5, 5, 5, 5, 5}, 3, 5, false},
		{"too short", []float64{1, 2}, 3, 0, true},
		{"zero period", []float64{1, 2}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EMA(tt.series, tt.period)
			if tt.undef {
				if !Undefined(got) {
					t.Errorf("EMA() = %v, want undefined", got)
				}
				return
			}
			if !almostEqual(got, tt.expected) {
				t.Errorf("EMA() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestEMA_SeedBiasDiffersFromSMASeed(t *testing.T) {
	// Затравка первым элементом: на коротком ряду EMA заметно отстаёт от SMA-затравки
	series := []float64{100, 10, 10, 10}
	got := EMA(series, 3)
	// 100 -> 55 -> 32.5 -> 21.25
	if !almostEqual(got, 21.25) {
		t.Errorf("EMA() = %v, want 21.25", got)
	}
}

// ============================================================
// RSI
// ============================================================

func TestRSI(t *testing.T) {
	tests := []struct {
		name     string
		series   []float64
		period   int
		expected float64
		undef    bool
	}{
		{"only gains", []float64{1, 2, 3, 4}, 3, 100, false},
		{"only losses", []float64{4, 3, 2, 1}, 3, 0, false},
		{"balanced", []float64{1, 2, 1, 2, 1}, 4, 50, false},
		{"older deltas ignored", []float64{100, 1, 2, 1, 2, 1}, 4, 50, false},
		{"flat series", []float64{5, 5, 5, 5}, 3, 100, false},
		// gains 3, losses 1 -> rs 3 -> 75
		{"three to one", []float64{10, 11, 12, 11, 12}, 4, 75, false},
		{"too short", []float64{1, 2, 3}, 3, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RSI(tt.series, tt.period)
			if tt.undef {
				if !Undefined(got) {
					t.Errorf("RSI() = %v, want undefined", got)
				}
				return
			}
			if !almostEqual(got, tt.expected) {
				t.Errorf("RSI() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// ============================================================
// MACD
// ============================================================

func TestMACD_TooShort(t *testing.T) {
	res := MACD(linear(34, 1, 1), 12, 26, 9)
	if !Undefined(res.Line) || !Undefined(res.Signal) || !Undefined(res.Histogram) {
		t.Errorf("MACD on 34 values should be fully undefined, got %+v", res)
	}
}

func TestMACD_SignalAlwaysUndefined(t *testing.T) {
	res := MACD(linear(200, 100, 1), 12, 26, 9)
	if Undefined(res.Line) {
		t.Fatal("MACD line should be defined on 200 values")
	}
	if !Undefined(res.Signal) || !Undefined(res.Histogram) {
		t.Errorf("signal and histogram are not computed, got %+v", res)
	}
}

func TestMACD_Direction(t *testing.T) {
	tests := []struct {
		name     string
		series   []float64
		positive bool
	}{
		{"uptrend", linear(200, 100, 1), true},
		{"downtrend", linear(200, 300, -1), false},
		{"minimum length uptrend", linear(35, 100, 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := MACD(tt.series, 12, 26, 9)
			if (res.Line > 0) != tt.positive {
				t.Errorf("MACD line = %v, positive want %v", res.Line, tt.positive)
			}
		})
	}
}

func TestMACD_Constant(t *testing.T) {
	res := MACD(linear(60, 42, 0), 12, 26, 9)
	if !almostEqual(res.Line, 0) {
		t.Errorf("MACD line on constant series = %v, want 0", res.Line)
	}
}

// ============================================================
// ATR
// ============================================================

func TestATR(t *testing.T) {
	highs := []float64{10, 11, 12}
	lows := []float64{9, 10, 11}
	closes := []float64{9.5, 10.5, 11.5}

	// TR1 = max(1, 1.5, 0.5) = 1.5, TR2 = max(1, 1.5, 0.5) = 1.5
	if got := ATR(highs, lows, closes, 2); !almostEqual(got, 1.5) {
		t.Errorf("ATR() = %v, want 1.5", got)
	}

	// Используются только последние period значений TR
	highs = []float64{10, 20, 12, 13}
	lows = []float64{9, 5, 11, 12}
	closes = []float64{9.5, 10, 11.5, 12.5}
	// TR2 = max(1, 2, 1) = 2, TR3 = max(1, 1.5, 0.5) = 1.5
	if got := ATR(highs, lows, closes, 2); !almostEqual(got, 1.75) {
		t.Errorf("ATR() = %v, want 1.75", got)
	}
}

func TestATR_Undefined(t *testing.T) {
	tests := []struct {
		name   string
		highs  []float64
		lows   []float64
		closes []float64
		period int
	}{
		{"too few closes", []float64{1, 2}, []float64{1, 2}, []float64{1, 2}, 2},
		{"highs shorter than closes", []float64{1, 2}, []float64{1, 2, 3}, []float64{1, 2, 3}, 2},
		{"lows shorter than closes", []float64{1, 2, 3}, []float64{1}, []float64{1, 2, 3}, 2},
		{"zero period", []float64{1, 2, 3}, []float64{1, 2, 3}, []float64{1, 2, 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ATR(tt.highs, tt.lows, tt.closes, tt.period); !Undefined(got) {
				t.Errorf("ATR() = %v, want undefined", got)
			}
		})
	}
}

// ============================================================
// Общие свойства
// ============================================================

func TestShortSeriesNeverPanics(t *testing.T) {
	for n := 0; n < 36; n++ {
		s := linear(n, 1, 1)
		_ = SMA(s, 30)
		_ = EMA(s, 12)
		_ = RSI(s, 14)
		_ = MACD(s, 12, 26, 9)
		_ = ATR(s, s, s, 14)
	}

	s := linear(9, 1, 1)
	if !Undefined(SMA(s, 10)) || !Undefined(EMA(s, 10)) || !Undefined(RSI(s, 14)) ||
		!Undefined(MACD(s, 12, 26, 9).Line) || !Undefined(ATR(s, s, s, 14)) {
		t.Error("every indicator should be undefined on a 9-value series")
	}
}

func TestDeterministic(t *testing.T) {
	closes := make([]float64, 200)
	highs := make([]float64, 200)
	lows := make([]float64, 200)
	for i := range closes {
		closes[i] = 50000 + 300*math.Sin(float64(i)/7) + float64(i)*1.3
		highs[i] = closes[i] + 25
		lows[i] = closes[i] - 25
	}

	type snapshot struct{ sma, ema, rsi, macd, atr uint64 }
	take := func() snapshot {
		return snapshot{
			sma:  math.Float64bits(SMA(closes, 30)),
			ema:  math.Float64bits(EMA(closes, 12)),
			rsi:  math.Float64bits(RSI(closes, 14)),
			macd: math.Float64bits(MACD(closes, 12, 26, 9).Line),
			atr:  math.Float64bits(ATR(highs, lows, closes, 14)),
		}
	}

	first := take()
	for i := 0; i < 50; i++ {
		if got := take(); got != first {
			t.Fatalf("iteration %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestApproxV1Suite(t *testing.T) {
	var s Suite = Default()
	if s.Version() != VersionApproxV1 {
		t.Errorf("Version() = %q, want %q", s.Version(), VersionApproxV1)
	}

	series := linear(50, 10, 0.5)
	if got, want := s.SMA(series, 10), SMA(series, 10); got != want {
		t.Errorf("Suite.SMA = %v, want %v", got, want)
	}
	if got, want := s.EMA(series, 12), EMA(series, 12); got != want {
		t.Errorf("Suite.EMA = %v, want %v", got, want)
	}
	if got, want := s.RSI(series, 14), RSI(series, 14); got != want {
		t.Errorf("Suite.RSI = %v, want %v", got, want)
	}
	if got, want := s.MACD(series, 12, 26, 9).Line, MACD(series, 12, 26, 9).Line; got != want {
		t.Errorf("Suite.MACD = %v, want %v", got, want)
	}
	if got, want := s.ATR(series, series, series, 14), ATR(series, series, series, 14); got != want {
		t.Errorf("Suite.ATR = %v, want %v", got, want)
	}
}

// ============================================================
// Бенчмарки
// ============================================================

func BenchmarkIndicators200(b *testing.B) {
	closes := linear(200, 50000, 3)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = SMA(closes, 10)
		_ = SMA(closes, 30)
		_ = RSI(closes, 14)
		_ = MACD(closes, 12, 26, 9)
		_ = ATR(closes, closes, closes, 14)
	}
}
