package limiter

import (
	"log/slog"

	"github.com/minutely/gateway-rate-limiter/pkg/clock"
)

// Option customizes a Limiter at construction time.
type Option func(*Limiter)

// WithPrefix sets the key namespace prefix (default "ratelimit:"). All
// counter keys and the sweeper's scan pattern derive from it.
func WithPrefix(prefix string) Option {
	return func(l *Limiter) {
		l.prefix = prefix
	}
}

// WithRecorder injects a custom metrics backend.
func WithRecorder(r MetricsRecorder) Option {
	return func(l *Limiter) {
		if r != nil {
			l.recorder = r
		}
	}
}

// WithLogger sets the structured logger (default slog.Default).
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock injects a time source, primarily for deterministic tests.
func WithClock(clk clock.Clock) Option {
	return func(l *Limiter) {
		if clk != nil {
			l.clk = clk
		}
	}
}

// WithBreaker wraps the counter store in a circuit breaker so that a dead
// store sheds load quickly instead of eating a full retry cycle per request.
func WithBreaker(cfg BreakerConfig) Option {
	return func(l *Limiter) {
		l.breaker = &cfg
	}
}
