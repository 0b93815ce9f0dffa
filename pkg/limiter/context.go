package limiter

import "context"

type correlationIDKey struct{}

// WithCorrelationID returns a context carrying the request's correlation id.
// The id is used for logging and tracing only; it never participates in
// window key derivation.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext extracts the correlation id, or "" when absent.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}
