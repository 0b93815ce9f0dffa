// Package limiter provides distributed request rate limiting for stateless
// API gateway instances, based on fixed-window counters in a shared store.
//
// The primary entry point is the Limiter:
//
//	res, err := l.Allow(ctx, clientID)
//
// The returned Result contains whether the request is allowed, how much of
// the window's quota remains, and the reset time callers need to set the
// standard rate-limit headers.
//
// # Overview
//
// Time is divided into fixed windows of Config.Window length. Every request
// increments a per-(client, window) counter in the shared store and compares
// the post-increment count against the enforced ceiling:
//
//	threshold = Limit + Limit*BurstPercent/100
//
// Because every gateway instance increments the same counter atomically, the
// aggregate count reflects all completed increments regardless of which
// instance handled which request, and a client cannot exceed the ceiling by
// spreading requests across instances.
//
// # Core Types
//
// Config defines the policy and is immutable for the life of a Limiter:
//
//   - Limit and Window: the nominal quota, for example 100 per minute
//   - BurstPercent: tolerance on top of Limit before blocking
//   - RetryAttempts and RetryDelay: flat-delay retry on transient store
//     failures
//   - CleanupInterval and ScanBatchSize: the background sweep
//   - FailOpen: what the HTTP middleware does when the store is down
//
// Result is the per-decision outcome: Allowed, Count, Remaining, the
// enforced Limit, and ResetTime.
//
// # Backends
//
// The store contract is CounterStore; two implementations ship with the
// package:
//
//   - RedisStore: the production backend. The increment runs INCR and PTTL
//     inside MULTI/EXEC so the count and TTL are observed at the same
//     logical store state, which is what makes concurrent increments from
//     many instances lose-free.
//
//   - MemoryStore: an in-process implementation with an injectable clock.
//     Useful for unit tests, local development, and single-instance
//     deployments; it cannot enforce a global limit across replicas.
//
// # Counter Lifecycle and the Sweeper
//
// The first increment in a window creates the counter; the creating call
// then sets the key's expiry to the window length, exactly once. That second
// call is intentionally not atomic with the increment: if the process dies
// between them the counter is left without an expiry, which is a temporary
// enforcement gap, not a correctness violation. The Sweeper closes the gap:
// on every CleanupInterval it cursor-scans the key namespace, pipeline-reads
// TTLs per batch, and deletes counters that never received an expiry,
// reporting a CleanupReport per pass. Concurrent sweeps from multiple
// instances are redundant but safe.
//
// # Concurrency
//
// The limiter introduces no in-process locks on the request path;
// correctness depends on the store's atomic increment, not on local
// synchronization. A request is suspended only for its own store round
// trips, never for another request's.
//
// # Context and Error Policy
//
// Allow accepts a context.Context and threads it through every store call
// and through the retry pause, so a client disconnect cancels the whole
// check including the wait between attempts.
//
// Allow reports ErrInvalidClientID without touching the store, and
// ErrStoreUnavailable after retries are exhausted. The package does not
// impose a fail-open vs fail-closed policy in the limiter itself; Middleware
// applies the explicit Config.FailOpen choice at the HTTP boundary.
//
// # Metrics
//
// Every decision synchronously emits a request counter (by client and
// allowed/blocked status) and a remaining-quota gauge through the
// MetricsRecorder interface. The default recorder is a no-op; pkg/metrics
// provides a prometheus-backed one. Metric emission can never fail a
// request: recorder panics are swallowed and logged.
//
// # Usage
//
//	store, err := limiter.NewRedisStore(client)
//	if err != nil {
//		log.Fatal(err)
//	}
//	l, err := limiter.New(store, limiter.Config{
//		Limit:           100,
//		Window:          time.Minute,
//		BurstPercent:    20,
//		RetryAttempts:   3,
//		RetryDelay:      100 * time.Millisecond,
//		CleanupInterval: 5 * time.Minute,
//		ScanBatchSize:   100,
//		FailOpen:        true,
//	}, limiter.WithPrefix("gw:"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	l.Start(ctx) // background sweeper
//	mux.Handle("/", limiter.Middleware(l)(handler))
//
// # Storage Details
//
// Counter keys have the shape:
//
//	{prefix}{clientID}:{windowIndex}
//
// where windowIndex is floor(nowMillis / windowMillis). The key depends on
// nothing request-scoped; in particular the correlation id is carried in the
// context for logging only and never reaches key derivation, since a
// per-request key component would give every request its own counter and
// disable the quota.
//
// TTL semantics mirror redis PTTL: a negative TTL of TTLNone marks a key
// without expiry (a sweep target), TTLMissing a key that does not exist.
//
// # Configuration
//
// The Limiter is configured with functional options:
//
//	l, _ := limiter.New(store, cfg,
//		limiter.WithPrefix("gw:"),
//		limiter.WithRecorder(promRecorder),
//		limiter.WithLogger(logger),
//		limiter.WithClock(clk),
//		limiter.WithBreaker(limiter.BreakerConfig{FailureThreshold: 5, Cooldown: 30 * time.Second}),
//	)
//
// WithBreaker wraps the store in an explicit closed/open/half-open circuit
// breaker so a dead store sheds load immediately instead of paying the full
// retry cycle on every request.
package limiter
