package limiter

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minutely/gateway-rate-limiter/pkg/clock"
)

// downStore fails every call and counts how often it was reached.
type downStore struct {
	CounterStore
	calls atomic.Int64
}

func (d *downStore) Incr(ctx context.Context, key string) (int64, time.Duration, error) {
	d.calls.Add(1)
	return 0, 0, errors.New("dial tcp: connection refused")
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clk := clock.NewManualClock(time.Unix(1000, 0))
	inner := &downStore{CounterStore: NewMemoryStore(clk)}
	b := NewBreakerStore(inner, BreakerConfig{FailureThreshold: 3, Cooldown: 30 * time.Second}, clk)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _, err := b.Incr(ctx, "k1")
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrBreakerOpen, "circuit must stay closed below the threshold")
	}

	_, _, err := b.Incr(ctx, "k1")
	require.ErrorIs(t, err, ErrBreakerOpen)
	assert.EqualValues(t, 3, inner.calls.Load(), "an open circuit must not reach the store")
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	clk := clock.NewManualClock(time.Unix(1000, 0))
	inner := &downStore{CounterStore: NewMemoryStore(clk)}
	b := NewBreakerStore(inner, BreakerConfig{FailureThreshold: 2, Cooldown: 30 * time.Second}, clk)

	ctx := context.Background()
	b.Incr(ctx, "k1")
	b.Incr(ctx, "k1")

	_, _, err := b.Incr(ctx, "k1")
	require.ErrorIs(t, err, ErrBreakerOpen)

	// After the cooldown one probe goes through; it fails, reopening the
	// circuit immediately.
	clk.Advance(30 * time.Second)
	_, _, err = b.Incr(ctx, "k1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrBreakerOpen, "the probe must reach the store")

	_, _, err = b.Incr(ctx, "k1")
	require.ErrorIs(t, err, ErrBreakerOpen, "a failed probe reopens the circuit")
}

// probeGateStore fails its first calls, then blocks inside the store until
// released, so a test can hold a probe in flight.
type probeGateStore struct {
	CounterStore
	failures atomic.Int64
	entered  chan struct{}
	release  chan struct{}
}

func (s *probeGateStore) Incr(ctx context.Context, key string) (int64, time.Duration, error) {
	if s.failures.Add(-1) >= 0 {
		return 0, 0, errors.New("dial tcp: connection refused")
	}
	s.entered <- struct{}{}
	<-s.release
	return s.CounterStore.Incr(ctx, key)
}

func TestBreaker_SingleProbeInHalfOpen(t *testing.T) {
	clk := clock.NewManualClock(time.Unix(1000, 0))
	inner := &probeGateStore{
		CounterStore: NewMemoryStore(clk),
		entered:      make(chan struct{}, 10),
		release:      make(chan struct{}),
	}
	inner.failures.Store(1)
	b := NewBreakerStore(inner, BreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Second}, clk)

	ctx := context.Background()
	_, _, err := b.Incr(ctx, "k1")
	require.Error(t, err)

	clk.Advance(10 * time.Second)

	probeDone := make(chan error, 1)
	go func() {
		_, _, err := b.Incr(ctx, "k1")
		probeDone <- err
	}()

	select {
	case <-inner.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("the probe never reached the store")
	}

	// While the probe is in flight, other callers must not reach the store.
	_, _, err = b.Incr(ctx, "k1")
	require.ErrorIs(t, err, ErrBreakerOpen, "only one probe may be in flight")

	close(inner.release)
	require.NoError(t, <-probeDone)

	// The successful probe closed the circuit.
	count, _, err := b.Incr(ctx, "k1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestBreaker_ClosesOnSuccessfulProbe(t *testing.T) {
	clk := clock.NewManualClock(time.Unix(1000, 0))
	mem := NewMemoryStore(clk)

	failing := &flakyStore{CounterStore: mem, failFirst: 2}
	b := NewBreakerStore(failing, BreakerConfig{FailureThreshold: 2, Cooldown: 10 * time.Second}, clk)

	ctx := context.Background()
	b.Incr(ctx, "k1")
	b.Incr(ctx, "k1")
	_, _, err := b.Incr(ctx, "k1")
	require.ErrorIs(t, err, ErrBreakerOpen)

	clk.Advance(10 * time.Second)
	count, _, err := b.Incr(ctx, "k1")
	require.NoError(t, err, "the probe should succeed once the store recovers")
	assert.EqualValues(t, 1, count)

	// Circuit is closed again: calls flow normally.
	count, _, err = b.Incr(ctx, "k1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestBreaker_ContextErrorsDoNotTrip(t *testing.T) {
	clk := clock.NewManualClock(time.Unix(1000, 0))
	b := NewBreakerStore(NewMemoryStore(clk), BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute}, clk)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := b.Incr(canceled, "k1")
	require.Error(t, err)

	// A real call still goes through: the canceled context did not open the
	// circuit.
	count, _, err := b.Incr(context.Background(), "k1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
