package limiter

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/minutely/gateway-rate-limiter/pkg/clock"
)

type counter struct {
	count     int64
	expiresAt time.Time // zero means no expiry was ever set
}

// MemoryStore is an in-process CounterStore.
//
// It is safe for concurrent use but its state is local to the process, so it
// cannot enforce a global limit across replicas. Use RedisStore in
// production; use MemoryStore in tests and single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	clk     clock.Clock
	entries map[string]*counter

	// In-flight scan cursors, mapping each issued token to the last key it
	// returned. A scan resumes strictly after that key.
	scans      map[uint64]string
	lastCursor uint64
}

// NewMemoryStore constructs an empty store. A nil clock defaults to the
// system clock.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &MemoryStore{
		clk:     clk,
		entries: make(map[string]*counter),
		scans:   make(map[uint64]string),
	}
}

func (m *MemoryStore) Incr(ctx context.Context, key string) (int64, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	c, ok := m.entries[key]
	if ok && c.expired(now) {
		delete(m.entries, key)
		ok = false
	}
	if !ok {
		c = &counter{}
		m.entries[key] = c
	}
	c.count++
	return c.count, c.ttl(now), nil
}

func (m *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	if c, ok := m.entries[key]; ok && !c.expired(now) {
		c.expiresAt = now.Add(ttl)
	}
	return nil
}

// Scan resumes from the last key the cursor's batch returned, not from a
// positional index, so keys deleted between calls (the sweeper deletes every
// batch before asking for the next) cannot shift later keys out of the scan.
func (m *MemoryStore) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var after string
	if cursor != 0 {
		after = m.scans[cursor]
		delete(m.scans, cursor)
	}

	now := m.clk.Now()
	matched := make([]string, 0, len(m.entries))
	for key, c := range m.entries {
		if c.expired(now) || key <= after {
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			matched = append(matched, key)
		}
	}
	sort.Strings(matched)

	if int64(len(matched)) <= count {
		return matched, 0, nil
	}

	batch := matched[:count]
	m.lastCursor++
	m.scans[m.lastCursor] = batch[len(batch)-1]
	return batch, m.lastCursor, nil
}

func (m *MemoryStore) TTLs(ctx context.Context, keys []string) ([]time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	ttls := make([]time.Duration, len(keys))
	for i, key := range keys {
		c, ok := m.entries[key]
		if !ok || c.expired(now) {
			ttls[i] = TTLMissing
			continue
		}
		ttls[i] = c.ttl(now)
	}
	return ttls, nil
}

func (m *MemoryStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	var deleted int64
	for _, key := range keys {
		if c, ok := m.entries[key]; ok {
			if !c.expired(now) {
				deleted++
			}
			delete(m.entries, key)
		}
	}
	return deleted, nil
}

func (c *counter) expired(now time.Time) bool {
	return !c.expiresAt.IsZero() && !now.Before(c.expiresAt)
}

func (c *counter) ttl(now time.Time) time.Duration {
	if c.expiresAt.IsZero() {
		return TTLNone
	}
	return c.expiresAt.Sub(now)
}
