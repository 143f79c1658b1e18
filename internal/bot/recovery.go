package bot

import (
	"context"
	"fmt"
	"time"

	"autotrader/internal/models"
	"autotrader/pkg/retry"
	"autotrader/pkg/utils"
)

// SubscriberLoader - чтение сохранённых подписчиков (repository.SubscriberRepository + TradeRepository)
type SubscriberLoader interface {
	ListSubscribers(ctx context.Context) ([]*models.Subscriber, error)
	ListRecentTrades(ctx context.Context, subscriberID int64, limit int) ([]models.Trade, error)
}

// RecoveryManager восстанавливает состояние подписчиков после перезапуска:
// настройки, дневные счётчики и хвост журнала сделок.
// Кулдауны в памяти не восстанавливаются; при Redis они переживают перезапуск сами.
type RecoveryManager struct {
	loader        SubscriberLoader
	store         *SubscriberStore
	tradeLogLimit int
	timeout       time.Duration
	retryCfg      retry.Config
	log           *utils.Logger
}

// NewRecoveryManager создаёт менеджер восстановления
func NewRecoveryManager(loader SubscriberLoader, store *SubscriberStore, tradeLogLimit int) *RecoveryManager {
	return &RecoveryManager{
		loader:        loader,
		store:         store,
		tradeLogLimit: tradeLogLimit,
		timeout:       30 * time.Second,
		retryCfg:      retry.StartupConfig(),
		log:           utils.L().WithComponent("recovery"),
	}
}

// Recover загружает подписчиков в хранилище. Возвращает число загруженных.
// Ошибка чтения журнала сделок одного подписчика не прерывает восстановление.
func (r *RecoveryManager) Recover(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	subs, err := retry.DoWithResult(ctx, func() ([]*models.Subscriber, error) {
		return r.loader.ListSubscribers(ctx)
	}, r.retryCfg)
	if err != nil {
		return 0, fmt.Errorf("load subscribers: %w", err)
	}

	for _, sub := range subs {
		trades, err := r.loader.ListRecentTrades(ctx, sub.ID, r.tradeLogLimit)
		if err != nil {
			r.log.Warn("failed to load trade log", utils.Subscriber(sub.ID), utils.Err(err))
			continue
		}
		sub.Trades = trades
	}

	loaded := r.store.Load(subs)
	r.log.Info("subscribers recovered", utils.Int("loaded", loaded), utils.Int("stored", len(subs)))
	return loaded, nil
}
