package utils

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// validator.go - проверка пользовательского ввода (пары, плечо, размер ордера)
//
// Каноническая форма пары - "BASE/QUOTE" в верхнем регистре, как её показывает пользователю бот.

var (
	ErrInvalidSymbol   = errors.New("invalid symbol")
	ErrInvalidLeverage = errors.New("invalid leverage")
	ErrInvalidNotional = errors.New("invalid order notional")
)

// MaxLeverage - максимальное плечо USDT-M фьючерсов
const MaxLeverage = 125

// MaxOrderNotional - верхняя граница размера ордера в USDT
var MaxOrderNotional = decimal.NewFromInt(1_000_000)

// knownQuotes - котируемые активы для разбора слитных символов ("BTCUSDT")
var knownQuotes = []string{"USDT", "USDC", "BUSD", "FDUSD", "BTC", "ETH", "BNB"}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// NormalizeSymbol приводит пару к виду "BASE/QUOTE"
//
// Примеры:
//   - "btc/usdt" -> "BTC/USDT"
//   - "eth-usdt" -> "ETH/USDT"
//   - "BNBUSDT"  -> "BNB/USDT"
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.NewReplacer("-", "/", "_", "/").Replace(s)
	if strings.Contains(s, "/") {
		return s
	}
	for _, q := range knownQuotes {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return s[:len(s)-len(q)] + "/" + q
		}
	}
	return s
}

// ValidateSymbol проверяет пару после нормализации
func ValidateSymbol(symbol string) error {
	base, quote, ok := strings.Cut(NormalizeSymbol(symbol), "/")
	if !ok {
		return fmt.Errorf("%w: %q must look like BASE/QUOTE", ErrInvalidSymbol, symbol)
	}
	v := getValidator()
	if err := v.Var(base, "required,alphanum,max=15"); err != nil {
		return fmt.Errorf("%w: base asset of %q", ErrInvalidSymbol, symbol)
	}
	if err := v.Var(quote, "required,alphanum,min=2,max=10"); err != nil {
		return fmt.Errorf("%w: quote asset of %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

// ExtractBaseCurrency возвращает базовый актив пары
func ExtractBaseCurrency(symbol string) string {
	base, _, _ := strings.Cut(NormalizeSymbol(symbol), "/")
	return base
}

// ExtractQuoteCurrency возвращает котируемый актив пары
func ExtractQuoteCurrency(symbol string) string {
	_, quote, _ := strings.Cut(NormalizeSymbol(symbol), "/")
	return quote
}

// ValidateLeverage проверяет плечо (1..MaxLeverage)
func ValidateLeverage(leverage int) error {
	if err := getValidator().Var(leverage, fmt.Sprintf("min=1,max=%d", MaxLeverage)); err != nil {
		return fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidLeverage, leverage, MaxLeverage)
	}
	return nil
}

// ValidateNotional проверяет размер ордера в USDT
func ValidateNotional(notional decimal.Decimal) error {
	if !notional.IsPositive() {
		return fmt.Errorf("%w: must be positive, got %s", ErrInvalidNotional, notional)
	}
	if notional.GreaterThan(MaxOrderNotional) {
		return fmt.Errorf("%w: %s exceeds %s", ErrInvalidNotional, notional, MaxOrderNotional)
	}
	return nil
}
