package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IlyasAtabaev731/finance/internal/domain/models"
	"github.com/IlyasAtabaev731/finance/internal/lib/logger/sl"
	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned by a Store when the key is absent.
var ErrCacheMiss = errors.New("quote: cache miss")

// Store is the key/value backend used by Cached.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// Cached is a read-through cache in front of another Lookup. Store errors
// are logged and the wrapped lookup is used instead.
type Cached struct {
	next   Lookup
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(next Lookup, store Store, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{next: next, store: store, ttl: ttl, logger: logger}
}

func cacheKey(symbol string) string {
	return fmt.Sprintf("stock:%s:quote", symbol)
}

func (c *Cached) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = Normalize(symbol)
	if symbol == "" {
		return nil, ErrNotFound
	}
	key := cacheKey(symbol)

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var q models.Quote
		if err := json.Unmarshal([]byte(raw), &q); err == nil {
			return &q, nil
		}
		c.logger.Warn("dropping malformed cached quote", slog.String("key", key))
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("quote cache read failed", slog.String("key", key), sl.Err(err))
	}

	q, err := c.next.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(q)
	if err == nil {
		err = c.store.Set(ctx, key, string(data), c.ttl)
	}
	if err != nil {
		c.logger.Warn("quote cache write failed", slog.String("key", key), sl.Err(err))
	}

	return q, nil
}

// RedisStore adapts a redis client to Store.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}
