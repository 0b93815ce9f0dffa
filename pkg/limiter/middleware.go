package limiter

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Request and response headers used by the middleware.
const (
	HeaderClientID      = "X-Client-ID"
	HeaderCorrelationID = "X-Correlation-ID"

	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

const rateLimitExceededMessage = "rate limit exceeded, see X-RateLimit-Reset for when the window resets"

// Middleware adapts the limiter to an HTTP pipeline.
//
// Per request it extracts the client id and correlation id headers (a missing
// correlation id gets a generated one), runs the quota check, writes the
// X-RateLimit-* headers on every decision, and answers 429 with Retry-After
// when the client is over its ceiling. Requests without a usable client id
// are rejected with 400 before the store is ever contacted.
//
// When the store is unavailable after retries the configured policy applies:
// fail-open forwards the request without quota headers, fail-closed answers
// 503.
func Middleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := strings.TrimSpace(r.Header.Get(HeaderClientID))

			correlationID := strings.TrimSpace(r.Header.Get(HeaderCorrelationID))
			if correlationID == "" {
				correlationID = uuid.NewString()
			}
			ctx := WithCorrelationID(r.Context(), correlationID)
			r = r.WithContext(ctx)
			w.Header().Set(HeaderCorrelationID, correlationID)

			res, err := l.Allow(ctx, clientID)
			if err != nil {
				switch {
				case errors.Is(err, ErrInvalidClientID):
					http.Error(w, fmt.Sprintf("missing or invalid %s header", HeaderClientID), http.StatusBadRequest)
				case errors.Is(err, ErrStoreUnavailable):
					if l.cfg.FailOpen {
						l.logger.Error("store unavailable, failing open",
							"client_id", clientID,
							"correlation_id", correlationID,
							"error", err,
						)
						next.ServeHTTP(w, r)
						return
					}
					l.logger.Error("store unavailable, failing closed",
						"client_id", clientID,
						"correlation_id", correlationID,
						"error", err,
					)
					http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				default:
					// Context errors: the caller is gone, nothing sensible
					// to write.
				}
				return
			}

			setRateLimitHeaders(w, res)

			if !res.Allowed {
				retryAfter := int64(res.ResetTime.Sub(l.clk.Now()).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				http.Error(w, rateLimitExceededMessage, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders attaches the three standard quota headers. They are
// written for allowed and blocked requests alike so well-behaved clients can
// pace themselves without polling.
func setRateLimitHeaders(w http.ResponseWriter, res Result) {
	w.Header().Set(HeaderRateLimitLimit, strconv.FormatInt(res.Limit, 10))
	w.Header().Set(HeaderRateLimitRemaining, strconv.FormatInt(res.Remaining, 10))
	w.Header().Set(HeaderRateLimitReset, strconv.FormatInt(res.ResetTime.Unix(), 10))
}
