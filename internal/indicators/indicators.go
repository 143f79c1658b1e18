// Package indicators - технические индикаторы над рядами цен.
//
// Все функции чистые и детерминированные. Ряд упорядочен от старых значений к новым.
// Неопределённое значение (слишком короткий ряд) возвращается как NaN, см. Undefined.
package indicators

import "math"

// Undefined сообщает, что значение индикатора не определено
func Undefined(v float64) bool {
	return math.IsNaN(v)
}

func nan() float64 {
	return math.NaN()
}

// tail возвращает последние n элементов (или весь ряд, если он короче)
func tail(series []float64, n int) []float64 {
	if n >= len(series) {
		return series
	}
	return series[len(series)-n:]
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SMA - среднее арифметическое последних period значений
func SMA(series []float64, period int) float64 {
	if period <= 0 || len(series) < period {
		return nan()
	}
	return mean(tail(series, period))
}

// EMA - экспоненциальное среднее с k = 2/(period+1).
//
// Приближение: затравка - первый элемент входного ряда, а не SMA первых period значений.
// Поэтому на коротких окнах результат смещён к началу ряда. Пороги скоринга
// подобраны под это поведение, менять его без смены версии Suite нельзя.
func EMA(series []float64, period int) float64 {
	if period <= 0 || len(series) < period {
		return nan()
	}
	return emaSeeded(series, period)
}

// RSI считается только по последним period изменениям цены
// (не скользящее сглаживание Уайлдера по всему ряду).
// Если потерь не было, возвращает 100.
func RSI(series []float64, period int) float64 {
	if period <= 0 || len(series) < period+1 {
		return nan()
	}

	window := tail(series, period+1)
	var gains, losses float64
	for i := 1; i < len(window); i++ {
		diff := window[i] - window[i-1]
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}

	if losses == 0 {
		return 100
	}
	rs := (gains / float64(period)) / (losses / float64(period))
	return 100 - 100/(1+rs)
}

// MACDResult - линия MACD, сигнальная линия и гистограмма
type MACDResult struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// MACD возвращает только приближённую линию: EMA(fast) по последним fast+slow значениям
// минус EMA(slow) по последним 2*slow значениям. Signal и Histogram всегда NaN.
// При len(series) < slow+signal все три значения NaN.
func MACD(series []float64, fast, slow, signal int) MACDResult {
	res := MACDResult{Line: nan(), Signal: nan(), Histogram: nan()}
	if fast <= 0 || slow <= 0 || signal <= 0 || len(series) < slow+signal {
		return res
	}

	fastEMA := emaSeeded(tail(series, slow+fast), fast)
	slowEMA := emaSeeded(tail(series, slow+slow), slow)
	res.Line = fastEMA - slowEMA
	return res
}

// emaSeeded - EMA без проверки длины окна (окно уже отрезано вызывающим)
func emaSeeded(window []float64, period int) float64 {
	k := 2.0 / float64(period+1)
	ema := window[0]
	for _, v := range window[1:] {
		ema = v*k + ema*(1-k)
	}
	return ema
}

// TrueRange для бара i: max(high-low, |high-prevClose|, |low-prevClose|)
func TrueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}

// ATR - среднее последних period значений true range.
// Нужно минимум period+1 закрытий; ряды high/low должны быть не короче closes.
func ATR(highs, lows, closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 || len(highs) < len(closes) || len(lows) < len(closes) {
		return nan()
	}

	start := len(closes) - period
	sum := 0.0
	for i := start; i < len(closes); i++ {
		sum += TrueRange(highs[i], lows[i], closes[i-1])
	}
	return sum / float64(period)
}
