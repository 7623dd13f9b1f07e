package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisCounterStore backs the rate limiter with a Redis sorted set per key,
// scored by record time. Unlike the database store, expiry is handled here:
// the whole set gets a TTL of twice the longest window seen, since Redis is
// the natural place for that.
type RedisCounterStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisCounterOption configures a RedisCounterStore
type RedisCounterOption func(*RedisCounterStore)

// WithPrefix overrides the key prefix
func WithPrefix(prefix string) RedisCounterOption {
	return func(s *RedisCounterStore) { s.prefix = prefix }
}

// WithTTL overrides the per-key TTL
func WithTTL(d time.Duration) RedisCounterOption {
	return func(s *RedisCounterStore) { s.ttl = d }
}

// NewRedisCounterStore creates a Redis-backed counter store
func NewRedisCounterStore(rdb *redis.Client, opts ...RedisCounterOption) *RedisCounterStore {
	s := &RedisCounterStore{
		rdb:    rdb,
		prefix: "ratelimit:counter",
		ttl:    2 * DefaultWindowSeconds * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisCounterStore) key(key string) string {
	return s.prefix + ":" + key
}

// CountSince implements CounterStore
func (s *RedisCounterStore) CountSince(ctx context.Context, key string, since time.Time) (int, error) {
	min := strconv.FormatInt(since.UnixNano(), 10)

	n, err := s.rdb.ZCount(ctx, s.key(key), min, "+inf").Result()
	if err != nil {
		return 0, err
	}

	return int(n), nil
}

// Record implements CounterStore
func (s *RedisCounterStore) Record(ctx context.Context, entry Entry) error {
	k := s.key(entry.Key)

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{
		Score:  float64(entry.CreatedAt.UnixNano()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, k, s.ttl)

	_, err := pipe.Exec(ctx)
	return err
}
