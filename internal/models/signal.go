package models

import "math"

// Verdict - дискретное направление сигнала
type Verdict string

const (
	VerdictNone Verdict = ""
	VerdictBuy  Verdict = "BUY"
	VerdictSell Verdict = "SELL"
)

// SignalInfo - результат оценки одной пары за тик. Не сохраняется.
// Неопределённые индикаторы - NaN.
type SignalInfo struct {
	Symbol   string
	Price    float64 // последнее закрытие
	SMAShort float64
	SMALong  float64
	EMAShort float64
	RSI      float64
	MACD     float64
	ATR      float64
	Score    float64
	Verdict  Verdict
	Version  string // версия набора индикаторов
}

// HasVerdict - есть ли направление
func (s *SignalInfo) HasVerdict() bool {
	return s != nil && s.Verdict != VerdictNone
}

// Side переводит вердикт в сторону ордера
func (s *SignalInfo) Side() string {
	switch s.Verdict {
	case VerdictBuy:
		return SideBuy
	case VerdictSell:
		return SideSell
	}
	return ""
}

// ATRDefined - ATR посчитан и не равен нулю
func (s *SignalInfo) ATRDefined() bool {
	return !math.IsNaN(s.ATR) && s.ATR != 0
}
