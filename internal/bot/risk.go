package bot

import (
	"github.com/shopspring/decimal"

	"autotrader/internal/config"
	"autotrader/internal/models"
)

// Причины отказа риск-гейта
const (
	RiskReasonTradeLimit = "trade_limit" // дневной лимит сделок
	RiskReasonLossLimit  = "loss_limit"  // дневной лимит убытка
	RiskReasonNoVerdict  = "no_verdict"  // нет сигнала или направления
	RiskReasonWeakSignal = "weak_signal" // ATR определён, но |score| < 1
)

// RiskLimits - дневные лимиты подписчика
type RiskLimits struct {
	MaxTradesPerDay int
	MaxDailyLoss    decimal.Decimal
}

// NewRiskLimits берёт лимиты из конфигурации
func NewRiskLimits(cfg config.BotConfig) RiskLimits {
	return RiskLimits{
		MaxTradesPerDay: cfg.MaxTradesPerDay,
		MaxDailyLoss:    cfg.MaxDailyLoss,
	}
}

// Exhausted - исчерпан ли какой-либо дневной лимит. Вторым значением - причина.
// Счётчики должны быть уже сброшены на текущий UTC день.
func (l RiskLimits) Exhausted(sub *models.Subscriber) (bool, string) {
	if sub.DailyTrades >= l.MaxTradesPerDay {
		return true, RiskReasonTradeLimit
	}
	if sub.DailyLoss.GreaterThanOrEqual(l.MaxDailyLoss) {
		return true, RiskReasonLossLimit
	}
	return false, ""
}

// RiskDecision - решение риск-гейта
type RiskDecision struct {
	Allowed bool
	Reason  string
}

// CheckRisk решает, можно ли открыть сделку по сигналу. Чистая функция без побочных эффектов.
//
// Порядок проверок: лимит сделок, лимит убытка, наличие направления, сила сигнала.
func CheckRisk(sub *models.Subscriber, sig *models.SignalInfo, limits RiskLimits) RiskDecision {
	if exhausted, reason := limits.Exhausted(sub); exhausted {
		return RiskDecision{Reason: reason}
	}

	if !sig.HasVerdict() {
		return RiskDecision{Reason: RiskReasonNoVerdict}
	}

	if sig.ATRDefined() && abs(sig.Score) < VerdictThreshold {
		return RiskDecision{Reason: RiskReasonWeakSignal}
	}

	return RiskDecision{Allowed: true}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
