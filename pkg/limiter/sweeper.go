package limiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/minutely/gateway-rate-limiter/pkg/clock"
)

// Sweeper reconciles orphaned counters: keys whose expiry was never set
// because the process died (or the store failed) between the creating
// increment and the expire call. Without it those counters would pin their
// window's count forever.
//
// Each gateway instance runs its own sweeper against the shared store. That
// is redundant but safe: delete is idempotent, and a fresh increment on a
// just-deleted key simply starts a new counter, which is exactly what an
// expired window should do. No leader election is attempted.
type Sweeper struct {
	store    CounterStore
	pattern  string
	batch    int64
	interval time.Duration
	clk      clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func newSweeper(store CounterStore, pattern string, batch int64, interval time.Duration, clk clock.Clock, logger *slog.Logger) *Sweeper {
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Sweeper{
		store:    store,
		pattern:  pattern,
		batch:    batch,
		interval: interval,
		clk:      clk,
		logger:   logger.With("component", "sweeper"),
	}
}

// Start schedules a sweep every cleanup interval. The schedule stops when
// ctx is canceled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper already running")
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc("@every "+s.interval.String(), func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("cleanup sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("cleanup sweeper started", "interval", s.interval, "pattern", s.pattern)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the schedule and waits for a running sweep to complete.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("cleanup sweeper stopped")
	}
}

// Sweep performs one full cursor scan of the key namespace. For every batch
// it pipeline-reads the remaining TTLs and deletes the keys that have no
// expiry set. The scan runs until the cursor returns zero, so one pass covers
// the whole namespace regardless of its size.
func (s *Sweeper) Sweep(ctx context.Context) (CleanupReport, error) {
	report := CleanupReport{Timestamp: s.clk.Now()}

	var cursor uint64
	for {
		keys, next, err := s.store.Scan(ctx, cursor, s.pattern, s.batch)
		if err != nil {
			return report, fmt.Errorf("scan failed at cursor %d: %w", cursor, err)
		}

		if len(keys) > 0 {
			report.Scanned += len(keys)

			ttls, err := s.store.TTLs(ctx, keys)
			if err != nil {
				return report, fmt.Errorf("ttl read failed: %w", err)
			}

			var orphans []string
			for i, ttl := range ttls {
				// TTLNone: the expiry was never established. TTLMissing keys
				// raced with redis expiry and are already gone; deleting them
				// again is a harmless no-op.
				if ttl < 0 {
					orphans = append(orphans, keys[i])
				}
			}

			if len(orphans) > 0 {
				deleted, err := s.store.Delete(ctx, orphans...)
				if err != nil {
					return report, fmt.Errorf("delete failed: %w", err)
				}
				report.Deleted += int(deleted)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	s.logger.Info("cleanup sweep completed",
		"scanned", report.Scanned,
		"deleted", report.Deleted,
	)
	return report, nil
}
