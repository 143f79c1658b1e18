package exchange

import (
	"fmt"
	"strings"
)

// Config - параметры подключения к бирже
type Config struct {
	Name      string // binance, paper
	APIKey    string
	APISecret string
	Testnet   bool
	BaseURL   string // переопределение REST адреса (тесты, прокси)

	RateLimit float64 // запросов в секунду, 0 - без ограничения
	RateBurst int

	PaperBalance float64 // стартовый USDT баланс для paper
	PaperFeeRate float64
}

// SupportedExchanges - список поддерживаемых бирж
var SupportedExchanges = []string{
	"binance",
	"paper",
}

// NewExchange создает экземпляр биржи по имени из конфигурации.
// paper берёт рыночные данные с публичного API Binance, ключи ему не нужны.
func NewExchange(cfg Config) (Exchange, error) {
	name := strings.ToLower(cfg.Name)

	switch name {
	case "binance":
		if cfg.APIKey == "" || cfg.APISecret == "" {
			return nil, fmt.Errorf("exchange %s: api key and secret are required", name)
		}
		return NewBinance(cfg), nil
	case "paper":
		public := cfg
		public.APIKey, public.APISecret = "", ""
		return NewPaper(NewBinance(public), PaperConfig{
			StartBalance: cfg.PaperBalance,
			FeeRate:      cfg.PaperFeeRate,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", name)
	}
}

// IsSupported проверяет, поддерживается ли биржа
func IsSupported(name string) bool {
	name = strings.ToLower(name)
	for _, supported := range SupportedExchanges {
		if name == supported {
			return true
		}
	}
	return false
}
