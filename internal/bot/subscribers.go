package bot

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"autotrader/internal/config"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// ErrSubscriberNotFound - подписчик ещё не создан (View без Ensure)
var ErrSubscriberNotFound = errors.New("subscriber not found")

// SubscriberPersister - запись состояния подписчиков в постоянное хранилище.
// Реализуется repository.SubscriberStorage; nil - только память.
type SubscriberPersister interface {
	SaveSubscriber(ctx context.Context, sub *models.Subscriber) error
	SaveTrade(ctx context.Context, trade *models.Trade) error
}

// SubscriberDefaults - настройки нового подписчика
type SubscriberDefaults struct {
	OrderNotional decimal.Decimal
	Leverage      int
	Pairs         []string
}

// SubscriberStore - состояние всех подписчиков процесса.
//
// Карта защищена RWMutex, каждый подписчик - своим мьютексом.
// Любое изменение - атомарное чтение-изменение-запись под мьютексом подписчика,
// дневной сброс выполняется в той же секции до любых проверок лимитов.
type SubscriberStore struct {
	mu      sync.RWMutex
	entries map[int64]*subscriberEntry

	defaults      SubscriberDefaults
	tradeLogLimit int
	persister     SubscriberPersister
	persistTTL    time.Duration

	now func() time.Time
	log *utils.Logger
}

type subscriberEntry struct {
	mu  sync.Mutex
	sub *models.Subscriber
}

// NewSubscriberStore создаёт хранилище с настройками по умолчанию из конфигурации
func NewSubscriberStore(cfg config.BotConfig, persister SubscriberPersister) *SubscriberStore {
	return &SubscriberStore{
		entries: make(map[int64]*subscriberEntry),
		defaults: SubscriberDefaults{
			OrderNotional: cfg.DefaultOrderUSDT,
			Leverage:      cfg.DefaultLeverage,
			Pairs:         cfg.DefaultPairs,
		},
		tradeLogLimit: cfg.TradeLogLimit,
		persister:     persister,
		persistTTL:    cfg.CallTimeout,
		now:           func() time.Time { return time.Now().UTC() },
		log:           utils.L().WithComponent("subscribers"),
	}
}

// Load заполняет хранилище сохранёнными подписчиками (при старте).
// Существующие записи не перезаписываются.
func (s *SubscriberStore) Load(subs []*models.Subscriber) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		if _, exists := s.entries[sub.ID]; exists {
			continue
		}
		s.entries[sub.ID] = &subscriberEntry{sub: sub.Clone()}
		loaded++
	}
	return loaded
}

// entry возвращает запись подписчика, создавая её с настройками по умолчанию
func (s *SubscriberStore) entry(id int64) (*subscriberEntry, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// повторная проверка под Lock
	if e, ok = s.entries[id]; ok {
		return e, false
	}

	now := s.now()
	e = &subscriberEntry{sub: &models.Subscriber{
		ID:            id,
		Pairs:         append([]string(nil), s.defaults.Pairs...),
		OrderNotional: s.defaults.OrderNotional,
		Leverage:      s.defaults.Leverage,
		DailyLoss:     decimal.Zero,
		LastReset:     utils.GetDayStartFrom(now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}}
	s.entries[id] = e
	return e, true
}

func (s *SubscriberStore) lookup(id int64) (*subscriberEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// resetIfNewDay обнуляет дневные счётчики при смене UTC даты. Вызывать под мьютексом подписчика.
func (s *SubscriberStore) resetIfNewDay(sub *models.Subscriber) bool {
	now := s.now()
	if !utils.IsNewTradingDay(sub.LastReset, now) {
		return false
	}
	sub.DailyTrades = 0
	sub.DailyLoss = decimal.Zero
	sub.LastReset = utils.GetDayStartFrom(now)
	sub.UpdatedAt = now
	return true
}

// Ensure создаёт подписчика при первом обращении и выполняет дневной сброс.
// Возвращает снимок состояния.
func (s *SubscriberStore) Ensure(id int64) *models.Subscriber {
	e, created := s.entry(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	reset := s.resetIfNewDay(e.sub)
	if created || reset {
		s.persist(e.sub)
	}
	if reset {
		s.log.Info("daily counters reset", utils.Subscriber(id))
	}
	return e.sub.Clone()
}

// Update атомарно изменяет подписчика: сброс дня, fn, запись в хранилище.
// Если fn вернула ошибку, изменения fn отбрасываются.
func (s *SubscriberStore) Update(id int64, fn func(sub *models.Subscriber) error) (*models.Subscriber, error) {
	e, _ := s.entry(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	s.resetIfNewDay(e.sub)

	draft := e.sub.Clone()
	if err := fn(draft); err != nil {
		return e.sub.Clone(), err
	}
	draft.ID = id
	draft.UpdatedAt = s.now()
	e.sub = draft

	s.persist(e.sub)
	return e.sub.Clone(), nil
}

// View возвращает снимок существующего подписчика (с дневным сбросом)
func (s *SubscriberStore) View(id int64) (*models.Subscriber, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, ErrSubscriberNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if s.resetIfNewDay(e.sub) {
		s.persist(e.sub)
	}
	return e.sub.Clone(), nil
}

// RecordTrade добавляет сделку в журнал и увеличивает дневной счётчик сделок.
// DailyLoss не меняется: реализованный PnL не отслеживается.
func (s *SubscriberStore) RecordTrade(trade models.Trade) *models.Subscriber {
	e, _ := s.entry(trade.SubscriberID)

	e.mu.Lock()
	defer e.mu.Unlock()

	s.resetIfNewDay(e.sub)
	e.sub.AppendTrade(trade, s.tradeLogLimit)
	e.sub.DailyTrades++
	e.sub.UpdatedAt = s.now()

	if s.persister != nil {
		ctx, cancel := s.persistContext()
		defer cancel()
		if err := s.persister.SaveTrade(ctx, &trade); err != nil {
			OrderErrors.WithLabelValues("persist").Inc()
			s.log.Error("failed to persist trade",
				utils.Subscriber(trade.SubscriberID), utils.OrderID(trade.OrderID), utils.Err(err))
		}
	}
	s.persist(e.sub)
	return e.sub.Clone()
}

// IDs возвращает идентификаторы подписчиков по возрастанию
func (s *SubscriberStore) IDs() []int64 {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len - количество подписчиков
func (s *SubscriberStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// persist сохраняет подписчика. Вызывать под мьютексом подписчика.
// Ошибка хранилища не откатывает состояние в памяти.
func (s *SubscriberStore) persist(sub *models.Subscriber) {
	if s.persister == nil {
		return
	}
	ctx, cancel := s.persistContext()
	defer cancel()

	if err := s.persister.SaveSubscriber(ctx, sub); err != nil {
		s.log.Error("failed to persist subscriber", utils.Subscriber(sub.ID), utils.Err(err))
	}
}

func (s *SubscriberStore) persistContext() (context.Context, context.CancelFunc) {
	ttl := s.persistTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), ttl)
}
