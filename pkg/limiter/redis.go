package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements CounterStore on a redis client. It is the production
// backend: INCR inside MULTI/EXEC gives the atomicity the quota depends on,
// and redis-managed key expiry does the per-window reset.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client. It pings the server once so a bad
// address fails at startup instead of on the first request.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Incr runs INCR and PTTL in one MULTI/EXEC so both are observed at the same
// logical store state. A plain pipeline would let another client's INCR land
// between the two commands.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, time.Duration, error) {
	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return incr.Val(), pttl.Val(), nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.PExpire(ctx, key, ttl).Err()
}

func (s *RedisStore) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	return s.client.Scan(ctx, cursor, pattern, count).Result()
}

func (s *RedisStore) TTLs(ctx context.Context, keys []string) ([]time.Duration, error) {
	cmds := make([]*redis.DurationCmd, len(keys))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.PTTL(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ttls := make([]time.Duration, len(keys))
	for i, cmd := range cmds {
		ttls[i] = cmd.Val()
	}
	return ttls, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return s.client.Del(ctx, keys...).Result()
}
