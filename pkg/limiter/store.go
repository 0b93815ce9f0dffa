package limiter

import (
	"context"
	"time"
)

// TTL sentinels, mirroring redis PTTL semantics. Any implementation of
// CounterStore must use the same values.
const (
	// TTLNone means the key exists but has no expiry set. These are the
	// orphans the sweeper deletes.
	TTLNone = -1 * time.Millisecond

	// TTLMissing means the key does not exist.
	TTLMissing = -2 * time.Millisecond
)

// CounterStore is the shared coordination point between gateway instances.
// All correctness rests on Incr's atomicity guarantee: the returned count and
// TTL are observed as of the same logical store state, so concurrent
// increments from different processes can never lose an update.
//
// Every operation may fail transiently and must be safe to retry.
type CounterStore interface {
	// Incr atomically increments the counter at key and returns the
	// post-increment value together with the key's remaining TTL, both read
	// from the same logical state.
	Incr(ctx context.Context, key string) (count int64, ttl time.Duration, err error)

	// Expire sets the key's time-to-live. Called exactly once per window,
	// right after the counter transitions from absent to 1.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Scan walks the key namespace in batches. A returned cursor of 0 means
	// the scan is complete; passing cursor 0 starts a new scan.
	Scan(ctx context.Context, cursor uint64, pattern string, count int64) (keys []string, next uint64, err error)

	// TTLs reads the remaining TTL for every key in one round trip,
	// preserving order.
	TTLs(ctx context.Context, keys []string) ([]time.Duration, error)

	// Delete removes the given keys and reports how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)
}
