package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autotrader/internal/bot"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// Ошибки сервиса подписчиков
var (
	ErrPairNotSubscribed = errors.New("pair is not in the subscriber's list")
	ErrInvalidSubscriber = errors.New("subscriber id must be positive")
)

// Лимиты журнала сделок для команды /trades
const (
	DefaultTradesLimit = 20
	MaxTradesLimit     = 200
)

// SubscriberService - команды подписчика поверх хранилища состояния.
//
// Каждая команда сначала регистрирует подписчика (Ensure), как это делает бот при любом сообщении.
type SubscriberService struct {
	store     *bot.SubscriberStore
	cooldowns *bot.CooldownTracker
	limits    bot.RiskLimits
	trades    TradeRepositoryInterface
	log       *utils.Logger
}

// NewSubscriberService создает сервис подписчиков
func NewSubscriberService(
	store *bot.SubscriberStore,
	cooldowns *bot.CooldownTracker,
	limits bot.RiskLimits,
	trades TradeRepositoryInterface,
) *SubscriberService {
	return &SubscriberService{
		store:     store,
		cooldowns: cooldowns,
		limits:    limits,
		trades:    trades,
		log:       utils.L().WithComponent("subscriber-service"),
	}
}

// EnsureSubscriber регистрирует подписчика с настройками по умолчанию (идемпотентно)
func (s *SubscriberService) EnsureSubscriber(id int64) (*models.Subscriber, error) {
	if id <= 0 {
		return nil, ErrInvalidSubscriber
	}
	return s.store.Ensure(id), nil
}

// ListTrades возвращает до limit последних сделок (новые в конце)
func (s *SubscriberService) ListTrades(id int64, limit int) ([]models.Trade, error) {
	sub, err := s.EnsureSubscriber(id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTradesLimit
	}
	if limit > MaxTradesLimit {
		limit = MaxTradesLimit
	}
	return sub.RecentTrades(limit), nil
}

// GetTrade возвращает сделку из БД по ID
func (s *SubscriberService) GetTrade(ctx context.Context, tradeID string) (*models.Trade, error) {
	return s.trades.GetByID(ctx, tradeID)
}

// SetAutotrade включает или выключает автоторговлю
func (s *SubscriberService) SetAutotrade(id int64, enabled bool) (*models.Subscriber, error) {
	return s.update(id, func(sub *models.Subscriber) error {
		sub.Autotrade = enabled
		return nil
	}, "autotrade changed", utils.Bool("enabled", enabled))
}

// ToggleAutotrade переключает автоторговлю
func (s *SubscriberService) ToggleAutotrade(id int64) (*models.Subscriber, error) {
	return s.update(id, func(sub *models.Subscriber) error {
		sub.Autotrade = !sub.Autotrade
		return nil
	}, "autotrade toggled")
}

// ListPairs возвращает пары подписчика
func (s *SubscriberService) ListPairs(id int64) ([]string, error) {
	sub, err := s.EnsureSubscriber(id)
	if err != nil {
		return nil, err
	}
	return sub.Pairs, nil
}

// AddPair добавляет пару (в верхнем регистре). Повторное добавление ничего не меняет.
func (s *SubscriberService) AddPair(id int64, symbol string) (*models.Subscriber, error) {
	if err := utils.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = utils.NormalizeSymbol(symbol)

	return s.update(id, func(sub *models.Subscriber) error {
		sub.AddPair(symbol)
		return nil
	}, "pair added", utils.Symbol(symbol))
}

// RemovePair удаляет пару из списка подписчика
func (s *SubscriberService) RemovePair(id int64, symbol string) (*models.Subscriber, error) {
	symbol = utils.NormalizeSymbol(symbol)

	return s.update(id, func(sub *models.Subscriber) error {
		if !sub.RemovePair(symbol) {
			return fmt.Errorf("%w: %s", ErrPairNotSubscribed, symbol)
		}
		return nil
	}, "pair removed", utils.Symbol(symbol))
}

// SetOrderNotional задаёт размер ордера в USDT до плеча
func (s *SubscriberService) SetOrderNotional(id int64, notional decimal.Decimal) (*models.Subscriber, error) {
	if err := utils.ValidateNotional(notional); err != nil {
		return nil, err
	}
	return s.update(id, func(sub *models.Subscriber) error {
		sub.OrderNotional = notional
		return nil
	}, "order notional changed", utils.Notional(notional.String()))
}

// SetLeverage задаёт плечо
func (s *SubscriberService) SetLeverage(id int64, leverage int) (*models.Subscriber, error) {
	if err := utils.ValidateLeverage(leverage); err != nil {
		return nil, err
	}
	return s.update(id, func(sub *models.Subscriber) error {
		sub.Leverage = leverage
		return nil
	}, "leverage changed", utils.Leverage(leverage))
}

// GetStatus возвращает снимок счётчиков, лимитов и активных кулдаунов
func (s *SubscriberService) GetStatus(ctx context.Context, id int64) (*models.SubscriberStatus, error) {
	sub, err := s.EnsureSubscriber(id)
	if err != nil {
		return nil, err
	}

	exhausted, _ := s.limits.Exhausted(sub)
	return &models.SubscriberStatus{
		SubscriberID:    sub.ID,
		Autotrade:       sub.Autotrade,
		Pairs:           sub.Pairs,
		OrderNotional:   sub.OrderNotional,
		Leverage:        sub.Leverage,
		DailyTrades:     sub.DailyTrades,
		MaxTradesPerDay: s.limits.MaxTradesPerDay,
		DailyLoss:       sub.DailyLoss,
		MaxDailyLoss:    s.limits.MaxDailyLoss,
		LimitsExhausted: exhausted,
		LastReset:       sub.LastReset,
		Cooldowns:       s.cooldowns.Status(ctx, sub.ID),
	}, nil
}

func (s *SubscriberService) update(id int64, fn func(*models.Subscriber) error, msg string, fields ...zap.Field) (*models.Subscriber, error) {
	if id <= 0 {
		return nil, ErrInvalidSubscriber
	}
	sub, err := s.store.Update(id, fn)
	if err != nil {
		return nil, err
	}
	s.log.Info(msg, append(fields, utils.Subscriber(id))...)
	return sub, nil
}
