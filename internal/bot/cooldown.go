package bot

import (
	"context"
	"sort"
	"sync"
	"time"

	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// CooldownStore хранит время последнего действия по паре (subscriber, symbol).
// Реализации: MemoryCooldownStore и cache.RedisCooldownStore.
type CooldownStore interface {
	// Get возвращает время последнего действия; false если записи нет
	Get(ctx context.Context, subscriberID int64, symbol string) (time.Time, bool, error)
	// Set записывает время действия. ttl - подсказка хранилищу, запись может жить дольше.
	Set(ctx context.Context, subscriberID int64, symbol string, at time.Time, ttl time.Duration) error
	// List возвращает все записи подписчика
	List(ctx context.Context, subscriberID int64) (map[string]time.Time, error)
}

// ============ Хранилище в памяти ============

type cooldownKey struct {
	subscriberID int64
	symbol       string
}

// MemoryCooldownStore - хранилище кулдаунов в памяти процесса. Записи не удаляются.
type MemoryCooldownStore struct {
	mu      sync.RWMutex
	entries map[cooldownKey]time.Time
}

// NewMemoryCooldownStore создаёт пустое хранилище
func NewMemoryCooldownStore() *MemoryCooldownStore {
	return &MemoryCooldownStore{entries: make(map[cooldownKey]time.Time)}
}

func (m *MemoryCooldownStore) Get(ctx context.Context, subscriberID int64, symbol string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.entries[cooldownKey{subscriberID, symbol}]
	return at, ok, nil
}

func (m *MemoryCooldownStore) Set(ctx context.Context, subscriberID int64, symbol string, at time.Time, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[cooldownKey{subscriberID, symbol}] = at
	m.mu.Unlock()
	return nil
}

func (m *MemoryCooldownStore) List(ctx context.Context, subscriberID int64) (map[string]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]time.Time)
	for k, at := range m.entries {
		if k.subscriberID == subscriberID {
			out[k.symbol] = at
		}
	}
	return out, nil
}

// ============ Трекер ============

// CooldownTracker - окно тишины по паре после исполненной сделки
type CooldownTracker struct {
	store  CooldownStore
	window time.Duration
	now    func() time.Time
	log    *utils.Logger
}

// NewCooldownTracker создаёт трекер. store == nil - хранилище в памяти.
func NewCooldownTracker(store CooldownStore, window time.Duration) *CooldownTracker {
	if store == nil {
		store = NewMemoryCooldownStore()
	}
	return &CooldownTracker{
		store:  store,
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
		log:    utils.L().WithComponent("cooldown"),
	}
}

// Window - длительность окна
func (c *CooldownTracker) Window() time.Duration {
	return c.window
}

// Active - действует ли окно по паре. Ошибка хранилища трактуется как активное окно:
// лучше пропустить пару, чем открыть повторную сделку.
func (c *CooldownTracker) Active(ctx context.Context, subscriberID int64, symbol string) bool {
	return c.Remaining(ctx, subscriberID, symbol) > 0
}

// Remaining - сколько осталось до конца окна (0 если окно не действует)
func (c *CooldownTracker) Remaining(ctx context.Context, subscriberID int64, symbol string) time.Duration {
	last, ok, err := c.store.Get(ctx, subscriberID, symbol)
	if err != nil {
		c.log.Warn("cooldown lookup failed, treating pair as cooling down",
			utils.Subscriber(subscriberID), utils.Symbol(symbol), utils.Err(err))
		return c.window
	}
	if !ok {
		return 0
	}
	if left := c.window - c.now().Sub(last); left > 0 {
		return left
	}
	return 0
}

// Touch начинает окно с текущего момента
func (c *CooldownTracker) Touch(ctx context.Context, subscriberID int64, symbol string) {
	if err := c.store.Set(ctx, subscriberID, symbol, c.now(), c.window); err != nil {
		c.log.Error("failed to store cooldown",
			utils.Subscriber(subscriberID), utils.Symbol(symbol), utils.Err(err))
	}
}

// Status возвращает действующие окна подписчика, отсортированные по символу
func (c *CooldownTracker) Status(ctx context.Context, subscriberID int64) []models.CooldownStatus {
	entries, err := c.store.List(ctx, subscriberID)
	if err != nil {
		c.log.Warn("cooldown list failed", utils.Subscriber(subscriberID), utils.Err(err))
		return nil
	}

	now := c.now()
	var out []models.CooldownStatus
	for symbol, last := range entries {
		until := last.Add(c.window)
		if !until.After(now) {
			continue
		}
		out = append(out, models.CooldownStatus{
			Symbol:    symbol,
			Until:     until,
			Remaining: utils.FormatDuration(until.Sub(now)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
