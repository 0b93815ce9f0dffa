package limiter

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidClientID is returned when the client identifier is missing or
	// shorter than MinClientIDLength. The store is never contacted in that case.
	ErrInvalidClientID = errors.New("invalid client id")

	// ErrStoreUnavailable is returned after every retry attempt against the
	// counter store has failed. The limiter takes no fail-open/fail-closed
	// stance itself; that policy belongs to the caller (see Middleware).
	ErrStoreUnavailable = errors.New("counter store unavailable")

	// ErrBreakerOpen is returned by BreakerStore while the circuit is open.
	ErrBreakerOpen = errors.New("circuit breaker open")
)

// MinClientIDLength is the shortest client identifier the limiter accepts.
// Anything shorter is rejected before any store access.
const MinClientIDLength = 3

// Config describes one limiter instance. It is immutable after New; the
// effective ceiling (Threshold) is computed once at construction and never
// recomputed per request.
type Config struct {
	// Limit is the nominal request ceiling per window.
	Limit int

	// Window is the fixed window length.
	Window time.Duration

	// BurstPercent widens the enforced ceiling to
	// Limit + Limit*BurstPercent/100. Range 0..100.
	BurstPercent int

	// RetryAttempts is the number of additional attempts after a failed
	// store call. 0 disables retries.
	RetryAttempts int

	// RetryDelay is the flat pause between attempts. The pause honors
	// context cancellation.
	RetryDelay time.Duration

	// CleanupInterval is how often the sweeper reconciles counters that
	// never received an expiry.
	CleanupInterval time.Duration

	// ScanBatchSize is the sweeper's SCAN batch size.
	ScanBatchSize int64

	// FailOpen selects the middleware policy when the store is unavailable
	// after retries: allow the request (true) or reject it (false).
	FailOpen bool
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be > 0, got %d", c.Limit)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be > 0, got %v", c.Window)
	}
	if c.BurstPercent < 0 || c.BurstPercent > 100 {
		return fmt.Errorf("burst percent must be in [0,100], got %d", c.BurstPercent)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts must be >= 0, got %d", c.RetryAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must be >= 0, got %v", c.RetryDelay)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup interval must be > 0, got %v", c.CleanupInterval)
	}
	if c.ScanBatchSize <= 0 {
		return fmt.Errorf("scan batch size must be > 0, got %d", c.ScanBatchSize)
	}
	return nil
}

// Threshold is the enforced ceiling: Limit plus the burst allowance.
func (c Config) Threshold() int64 {
	return int64(c.Limit) + int64(c.Limit)*int64(c.BurstPercent)/100
}

// Result is the outcome of one quota check.
type Result struct {
	// Allowed reports whether the request is within the ceiling.
	Allowed bool

	// Count is the post-increment counter value for this window.
	Count int64

	// Remaining is how much of the ceiling is left, floored at 0.
	Remaining int64

	// Limit is the enforced ceiling (threshold), for response headers.
	Limit int64

	// ResetTime is when the current window's counter expires.
	ResetTime time.Time
}

// CleanupReport summarizes one full sweep over the key namespace.
type CleanupReport struct {
	Scanned   int
	Deleted   int
	Timestamp time.Time
}
