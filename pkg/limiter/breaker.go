package limiter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/minutely/gateway-rate-limiter/pkg/clock"
)

// BreakerConfig tunes the circuit breaker around the counter store.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold int

	// Cooldown is how long the circuit stays open before a half-open probe
	// is allowed through.
	Cooldown time.Duration
}

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// BreakerStore wraps a CounterStore with an explicit closed/open/half-open
// state machine. While open, every call fails immediately with
// ErrBreakerOpen instead of paying a timeout against a dead store; after the
// cooldown a single probe call is let through (concurrent calls keep failing
// fast until the probe resolves), and its outcome closes or reopens the
// circuit.
//
// Context errors do not count as store failures: a caller hanging up says
// nothing about store health.
type BreakerStore struct {
	inner CounterStore
	cfg   BreakerConfig
	clk   clock.Clock

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
	probing  bool
}

func NewBreakerStore(inner CounterStore, cfg BreakerConfig, clk clock.Clock) *BreakerStore {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &BreakerStore{inner: inner, cfg: cfg, clk: clk}
}

// allow decides whether a call may proceed, transitioning open -> half-open
// when the cooldown has elapsed. At most one probe is in flight at a time:
// while it runs, every other call keeps getting ErrBreakerOpen, so a request
// burst cannot hammer a store that is likely still down.
func (b *BreakerStore) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if b.clk.Now().Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrBreakerOpen
		}
		b.state = breakerHalfOpen
		b.probing = true
	case breakerHalfOpen:
		if b.probing {
			return ErrBreakerOpen
		}
		b.probing = true
	}
	return nil
}

func (b *BreakerStore) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasProbe := b.probing
	b.probing = false

	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		// The caller hung up; that says nothing about store health. If this
		// was the half-open probe its slot is released: back to open, and the
		// elapsed cooldown lets the next call probe immediately.
		if wasProbe && b.state == breakerHalfOpen {
			b.state = breakerOpen
		}
		return
	}

	if err == nil {
		b.state = breakerClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.state = breakerOpen
		b.openedAt = b.clk.Now()
	}
}

func (b *BreakerStore) do(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *BreakerStore) Incr(ctx context.Context, key string) (int64, time.Duration, error) {
	var (
		count int64
		ttl   time.Duration
	)
	err := b.do(func() error {
		var err error
		count, ttl, err = b.inner.Incr(ctx, key)
		return err
	})
	return count, ttl, err
}

func (b *BreakerStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return b.do(func() error {
		return b.inner.Expire(ctx, key, ttl)
	})
}

func (b *BreakerStore) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	var (
		keys []string
		next uint64
	)
	err := b.do(func() error {
		var err error
		keys, next, err = b.inner.Scan(ctx, cursor, pattern, count)
		return err
	})
	return keys, next, err
}

func (b *BreakerStore) TTLs(ctx context.Context, keys []string) ([]time.Duration, error) {
	var ttls []time.Duration
	err := b.do(func() error {
		var err error
		ttls, err = b.inner.TTLs(ctx, keys)
		return err
	})
	return ttls, err
}

func (b *BreakerStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	var deleted int64
	err := b.do(func() error {
		var err error
		deleted, err = b.inner.Delete(ctx, keys...)
		return err
	})
	return deleted, err
}
