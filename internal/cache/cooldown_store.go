// Package cache - хранилище кулдаунов в Redis.
//
// Окна переживают перезапуск процесса и истекают сами по TTL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"autotrader/internal/config"
	"autotrader/pkg/utils"
)

// KeyPrefix - префикс ключей кулдаунов: autotrader:cooldown:{subscriber}:{symbol}
const KeyPrefix = "autotrader:cooldown"

// scanBatch - подсказка COUNT для SCAN
const scanBatch = 100

// redisClient - используемое подмножество *redis.Client
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisCooldownStore реализует bot.CooldownStore поверх Redis.
// Значение ключа - время действия в миллисекундах Unix.
type RedisCooldownStore struct {
	client redisClient
	log    *utils.Logger
}

// NewRedisCooldownStore подключается к Redis и проверяет соединение
func NewRedisCooldownStore(ctx context.Context, cfg config.RedisConfig) (*RedisCooldownStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return newRedisCooldownStore(client), nil
}

func newRedisCooldownStore(client redisClient) *RedisCooldownStore {
	return &RedisCooldownStore{
		client: client,
		log:    utils.L().WithComponent("cooldown-redis"),
	}
}

// Get возвращает время последнего действия по паре
func (s *RedisCooldownStore) Get(ctx context.Context, subscriberID int64, symbol string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, Key(subscriberID, symbol)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("get cooldown: %w", err)
	}

	at, err := parseMillis(raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get cooldown %s: %w", symbol, err)
	}
	return at, true, nil
}

// Set записывает время действия; ключ живёт ttl
func (s *RedisCooldownStore) Set(ctx context.Context, subscriberID int64, symbol string, at time.Time, ttl time.Duration) error {
	value := strconv.FormatInt(at.UnixMilli(), 10)
	if err := s.client.Set(ctx, Key(subscriberID, symbol), value, ttl).Err(); err != nil {
		return fmt.Errorf("set cooldown: %w", err)
	}
	return nil
}

// List возвращает все живые записи подписчика.
// Битые значения пропускаются с предупреждением.
func (s *RedisCooldownStore) List(ctx context.Context, subscriberID int64) (map[string]time.Time, error) {
	prefix := fmt.Sprintf("%s:%d:", KeyPrefix, subscriberID)
	out := make(map[string]time.Time)

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scan cooldowns: %w", err)
		}

		for _, key := range keys {
			raw, err := s.client.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				continue // истёк между SCAN и GET
			}
			if err != nil {
				return nil, fmt.Errorf("get cooldown: %w", err)
			}
			at, err := parseMillis(raw)
			if err != nil {
				s.log.Warn("skipping malformed cooldown entry", utils.String("key", key), utils.Err(err))
				continue
			}
			out[strings.TrimPrefix(key, prefix)] = at
		}

		if next == 0 {
			break
		}
		cursor = next
	}
	return out, nil
}

// Ping проверяет соединение (для /health)
func (s *RedisCooldownStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (s *RedisCooldownStore) Close() error {
	return s.client.Close()
}

// Key строит ключ кулдауна пары
func Key(subscriberID int64, symbol string) string {
	return fmt.Sprintf("%s:%d:%s", KeyPrefix, subscriberID, symbol)
}

func parseMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", raw, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
