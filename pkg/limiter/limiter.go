package limiter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/minutely/gateway-rate-limiter/pkg/clock"
)

// Limiter decides allow/block per client against a shared counter store.
//
// One instance owns its store, its immutable Config, and its background
// sweeper. Construct it once at process start and inject it into the request
// pipeline; there is no package-level state.
//
// The limiter holds no in-process locks on the request path: correctness
// rests entirely on the store's atomic increment, so concurrent requests only
// ever wait on their own store round trips.
type Limiter struct {
	store     CounterStore
	cfg       Config
	threshold int64
	prefix    string
	clk       clock.Clock
	recorder  MetricsRecorder
	logger    *slog.Logger
	breaker   *BreakerConfig
	sweeper   *Sweeper
}

// New validates cfg and builds a Limiter around store.
func New(store CounterStore, cfg Config, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("counter store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limiter config: %w", err)
	}

	l := &Limiter{
		store:     store,
		cfg:       cfg,
		threshold: cfg.Threshold(),
		prefix:    "ratelimit:",
		clk:       clock.NewSystemClock(),
		recorder:  &NoOpMetricsRecorder{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "limiter")

	if l.breaker != nil {
		l.store = NewBreakerStore(store, *l.breaker, l.clk)
	}
	l.sweeper = newSweeper(l.store, l.prefix+"*", cfg.ScanBatchSize, cfg.CleanupInterval, l.clk, l.logger)

	return l, nil
}

// Allow runs one quota check for clientID.
//
// Errors: ErrInvalidClientID for a missing or too-short id (the store is
// never contacted), ErrStoreUnavailable once retries are exhausted, or the
// context's error if the caller went away. The fail-open/fail-closed choice
// on store unavailability is deliberately left to the caller.
func (l *Limiter) Allow(ctx context.Context, clientID string) (Result, error) {
	start := time.Now()

	key, err := windowKey(l.prefix, clientID, l.clk.Now(), l.cfg.Window)
	if err != nil {
		return Result{}, err
	}

	var (
		count int64
		ttl   time.Duration
	)
	err = l.withRetry(ctx, "incr", clientID, func(ctx context.Context) error {
		c, t, err := l.store.Incr(ctx, key)
		if err != nil {
			return err
		}
		count, ttl = c, t
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	// This call created the counter, so it owns setting the expiry. The
	// expiry is set exactly once per window and never extended by later
	// increments. Losing this call (crash, store error after retries) leaves
	// an orphaned counter for the sweeper; the request itself still gets a
	// valid decision.
	if count == 1 {
		err := l.withRetry(ctx, "expire", clientID, func(ctx context.Context) error {
			return l.store.Expire(ctx, key, l.cfg.Window)
		})
		if err != nil {
			l.logger.Error("failed to set counter expiry, sweeper will reconcile",
				"key", key,
				"correlation_id", CorrelationIDFromContext(ctx),
				"error", err,
			)
		} else {
			ttl = l.cfg.Window
		}
	}

	now := l.clk.Now()
	reset := now.Add(l.cfg.Window)
	if ttl > 0 {
		reset = now.Add(ttl)
	}

	remaining := l.threshold - count
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:   count <= l.threshold,
		Count:     count,
		Remaining: remaining,
		Limit:     l.threshold,
		ResetTime: reset,
	}
	l.emit(clientID, res, time.Since(start))
	return res, nil
}

// Config returns the limiter's immutable configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Start launches the background cleanup sweeper. It stops when ctx is
// canceled or Stop is called.
func (l *Limiter) Start(ctx context.Context) error {
	return l.sweeper.Start(ctx)
}

// Stop halts the sweeper and waits for an in-flight sweep to finish.
func (l *Limiter) Stop() {
	l.sweeper.Stop()
}

// Sweep runs one reconciliation pass immediately, outside the schedule.
func (l *Limiter) Sweep(ctx context.Context) (CleanupReport, error) {
	return l.sweeper.Sweep(ctx)
}

// emit records the decision. Recorder panics are contained here so a broken
// metrics backend can never fail a request.
func (l *Limiter) emit(clientID string, res Result, elapsed time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Warn("metrics emission failed", "client_id", clientID, "panic", r)
		}
	}()

	status := "allowed"
	if !res.Allowed {
		status = "blocked"
	}
	l.recorder.Add(MetricRequests, 1, map[string]string{"client": clientID, "status": status})
	l.recorder.Set(MetricRemaining, float64(res.Remaining), map[string]string{"client": clientID})
	l.recorder.Observe(MetricLatency, elapsed.Seconds(), nil)
}
