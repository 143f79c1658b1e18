package utils

import (
	"github.com/shopspring/decimal"
)

// math.go - денежная арифметика для размера позиции
//
// Все функции чистые. Денежные величины передаются как decimal.Decimal,
// чтобы размер ордера не зависел от ошибок двоичной плавающей точки.

// SizePrecision - число знаков после запятой в размере ордера (в базовом активе)
const SizePrecision int32 = 6

// CalculateOrderSize считает размер позиции в базовом активе: (notional × leverage) / price,
// округлённый до places знаков (половина округляется от нуля).
//
// Возвращает decimal.Zero если цена или плечо не положительные.
//
// Примеры:
//   - CalculateOrderSize(10, 5, 50000, 6) = 0.001
//   - CalculateOrderSize(1, 1, 2000000, 6) = 0.000001 (0.0000005 округляется вверх)
func CalculateOrderSize(notional decimal.Decimal, leverage int, price decimal.Decimal, places int32) decimal.Decimal {
	if leverage <= 0 || !price.IsPositive() || !notional.IsPositive() {
		return decimal.Zero
	}
	return Exposure(notional, leverage).Div(price).Round(places)
}

// Exposure возвращает notional × leverage
func Exposure(notional decimal.Decimal, leverage int) decimal.Decimal {
	return notional.Mul(decimal.NewFromInt(int64(leverage)))
}
