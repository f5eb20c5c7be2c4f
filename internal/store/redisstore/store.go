package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps the shared Redis client. It currently backs the rate-limit
// counters; callers treat it as a plain keyed-counter store.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// Counts returns the current value for each key, zero for missing keys.
func (s *Store) Counts(ctx context.Context, keys []string) ([]int64, error) {
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	counts := make([]int64, len(keys))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				counts[i] = n
			}
		}
	}
	return counts, nil
}

// IncrementAll bumps every key in one pipeline and refreshes its expiry.
func (s *Store) IncrementAll(ctx context.Context, keys []string, ttls []time.Duration) error {
	pipe := s.rdb.Pipeline()
	for i, key := range keys {
		pipe.Incr(ctx, key)
		if i < len(ttls) {
			pipe.Expire(ctx, key, ttls[i])
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}
