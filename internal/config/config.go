package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"autotrader/pkg/crypto"
	"autotrader/pkg/utils"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Security SecurityConfig
	Exchange ExchangeConfig
	Bot      BotConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// RedisConfig - хранилище кулдаунов. Пустой Addr - кулдауны в памяти процесса.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	APITokenHash   string   // bcrypt хеш токена API; пусто - без авторизации
	EncryptionKey  string   // ключ AES-256 для ключей биржи в окружении
	AllowedOrigins []string // для WebSocket
}

// ExchangeConfig - подключение к бирже
type ExchangeConfig struct {
	Name         string
	APIKey       string
	APISecret    string
	Testnet      bool
	RateLimit    float64
	RateBurst    int
	PaperBalance float64
	PaperFeeRate float64
}

// BotConfig - настройки сканера и лимитов
type BotConfig struct {
	// Расписание
	ScanInterval time.Duration
	ErrorBackoff time.Duration // пауза после упавшего тика

	// Рыночные данные
	CandleTimeframe string
	CandleLimit     int

	// Таймауты вызовов биржи
	CallTimeout  time.Duration
	OrderTimeout time.Duration

	Cooldown time.Duration

	// Дневные лимиты подписчика
	MaxTradesPerDay int
	MaxDailyLoss    decimal.Decimal

	// Значения по умолчанию для нового подписчика
	DefaultOrderUSDT decimal.Decimal
	DefaultLeverage  int
	DefaultPairs     []string

	TradeLogLimit int
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level       string
	Format      string
	Output      string
	Development bool
}

// Load загружает конфигурацию из переменных окружения.
// Файл .env в рабочем каталоге подхватывается, если он есть; уже заданные переменные не перезаписываются.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "autotrader"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Security: SecurityConfig{
			APITokenHash:   getEnv("API_TOKEN_HASH", ""),
			EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", nil),
		},
		Exchange: ExchangeConfig{
			Name:         strings.ToLower(getEnv("EXCHANGE_NAME", "paper")),
			APIKey:       getEnv("EXCHANGE_API_KEY", ""),
			APISecret:    getEnv("EXCHANGE_API_SECRET", ""),
			Testnet:      getEnvAsBool("EXCHANGE_TESTNET", false),
			RateLimit:    getEnvAsFloat("EXCHANGE_RATE_LIMIT", 10),
			RateBurst:    getEnvAsInt("EXCHANGE_RATE_BURST", 5),
			PaperBalance: getEnvAsFloat("PAPER_START_BALANCE", 1000),
			PaperFeeRate: getEnvAsFloat("PAPER_FEE_RATE", 0.0004),
		},
		Bot: BotConfig{
			ScanInterval: getEnvAsDuration("SCAN_INTERVAL", 300*time.Second),
			ErrorBackoff: getEnvAsDuration("ERROR_BACKOFF", 10*time.Second),

			CandleTimeframe: getEnv("CANDLE_TIMEFRAME", "5m"),
			CandleLimit:     getEnvAsInt("CANDLE_LIMIT", 200),

			CallTimeout:  getEnvAsDuration("CALL_TIMEOUT", 10*time.Second),
			OrderTimeout: getEnvAsDuration("ORDER_TIMEOUT", 15*time.Second),

			Cooldown: getEnvAsDuration("COOLDOWN", 30*time.Minute),

			MaxTradesPerDay: getEnvAsInt("MAX_TRADES_PER_DAY", 10),
			MaxDailyLoss:    getEnvAsDecimal("MAX_DAILY_LOSS", decimal.NewFromInt(50)),

			DefaultOrderUSDT: getEnvAsDecimal("DEFAULT_ORDER_USDT", decimal.NewFromInt(10)),
			DefaultLeverage:  getEnvAsInt("DEFAULT_LEVERAGE", 5),
			DefaultPairs:     getEnvAsList("DEFAULT_PAIRS", []string{"BTC/USDT", "ETH/USDT", "BNB/USDT"}),

			TradeLogLimit: getEnvAsInt("TRADE_LOG_LIMIT", 50),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			Output:      getEnv("LOG_OUTPUT", ""),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	for i, p := range cfg.Bot.DefaultPairs {
		cfg.Bot.DefaultPairs[i] = utils.NormalizeSymbol(p)
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	if err := cfg.decryptCredentials(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	if c.Security.EncryptionKey != "" && len(c.Security.EncryptionKey) != crypto.KeyLength {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly %d bytes for AES-256", crypto.KeyLength)
	}

	if c.Security.APITokenHash != "" {
		if err := crypto.ValidateHash(c.Security.APITokenHash); err != nil {
			return fmt.Errorf("API_TOKEN_HASH is not a valid bcrypt hash: %w", err)
		}
	}

	if c.Exchange.Name == "binance" && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("EXCHANGE_API_KEY and EXCHANGE_API_SECRET are required for EXCHANGE_NAME=binance")
	}

	return nil
}

// decryptCredentials расшифровывает ключи биржи, если задан ENCRYPTION_KEY
func (c *Config) decryptCredentials() error {
	if c.Security.EncryptionKey == "" {
		return nil
	}

	key, err := crypto.DecryptCredential(c.Exchange.APIKey, c.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("EXCHANGE_API_KEY: %w", err)
	}
	secret, err := crypto.DecryptCredential(c.Exchange.APISecret, c.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("EXCHANGE_API_SECRET: %w", err)
	}

	c.Exchange.APIKey, c.Exchange.APISecret = key, secret
	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Exchange.Name != "binance" && c.Exchange.Name != "paper" {
		return fmt.Errorf("EXCHANGE_NAME must be binance or paper, got %q", c.Exchange.Name)
	}

	if c.Exchange.RateLimit < 0 {
		return fmt.Errorf("EXCHANGE_RATE_LIMIT cannot be negative, got %v", c.Exchange.RateLimit)
	}

	// Таймауты и интервалы должны быть положительными
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"SCAN_INTERVAL", c.Bot.ScanInterval},
		{"ERROR_BACKOFF", c.Bot.ErrorBackoff},
		{"CALL_TIMEOUT", c.Bot.CallTimeout},
		{"ORDER_TIMEOUT", c.Bot.OrderTimeout},
		{"COOLDOWN", c.Bot.Cooldown},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %v", d.name, d.value)
		}
	}

	if _, err := utils.TimeframeToDuration(c.Bot.CandleTimeframe); err != nil {
		return fmt.Errorf("CANDLE_TIMEFRAME: %w", err)
	}

	if c.Bot.CandleLimit < 1 || c.Bot.CandleLimit > 1500 {
		return fmt.Errorf("CANDLE_LIMIT must be between 1 and 1500, got %d", c.Bot.CandleLimit)
	}

	if c.Bot.MaxTradesPerDay < 0 {
		return fmt.Errorf("MAX_TRADES_PER_DAY cannot be negative, got %d", c.Bot.MaxTradesPerDay)
	}

	if c.Bot.MaxDailyLoss.IsNegative() {
		return fmt.Errorf("MAX_DAILY_LOSS cannot be negative, got %s", c.Bot.MaxDailyLoss)
	}

	if err := utils.ValidateNotional(c.Bot.DefaultOrderUSDT); err != nil {
		return fmt.Errorf("DEFAULT_ORDER_USDT: %w", err)
	}

	if err := utils.ValidateLeverage(c.Bot.DefaultLeverage); err != nil {
		return fmt.Errorf("DEFAULT_LEVERAGE: %w", err)
	}

	for _, p := range c.Bot.DefaultPairs {
		if err := utils.ValidateSymbol(p); err != nil {
			return fmt.Errorf("DEFAULT_PAIRS: %w", err)
		}
	}

	if c.Bot.TradeLogLimit < 1 {
		return fmt.Errorf("TRADE_LOG_LIMIT must be positive, got %d", c.Bot.TradeLogLimit)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList читает список через запятую, пустые элементы отбрасываются
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
