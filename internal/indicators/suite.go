package indicators

// Suite - набор индикаторов, которым пользуется генератор сигналов.
//
// Версия фиксирует семантику: пороги скоринга подобраны под конкретную реализацию,
// поэтому исправленная EMA/MACD должна появиться как новая версия, а не заменить ApproxV1.
type Suite interface {
	Version() string
	SMA(series []float64, period int) float64
	EMA(series []float64, period int) float64
	RSI(series []float64, period int) float64
	MACD(series []float64, fast, slow, signal int) MACDResult
	ATR(highs, lows, closes []float64, period int) float64
}

// VersionApproxV1 - EMA с затравкой первым элементом, MACD без сигнальной линии
const VersionApproxV1 = "approx-v1"

// ApproxV1 - текущая реализация на функциях пакета
type ApproxV1 struct{}

var _ Suite = ApproxV1{}

func (ApproxV1) Version() string { return VersionApproxV1 }

func (ApproxV1) SMA(series []float64, period int) float64 { return SMA(series, period) }

func (ApproxV1) EMA(series []float64, period int) float64 { return EMA(series, period) }

func (ApproxV1) RSI(series []float64, period int) float64 { return RSI(series, period) }

func (ApproxV1) MACD(series []float64, fast, slow, signal int) MACDResult {
	return MACD(series, fast, slow, signal)
}

func (ApproxV1) ATR(highs, lows, closes []float64, period int) float64 {
	return ATR(highs, lows, closes, period)
}

// Default возвращает Suite по умолчанию
func Default() Suite {
	return ApproxV1{}
}
