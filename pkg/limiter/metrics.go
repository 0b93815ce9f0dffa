package limiter

// Metric names emitted by the limiter. A MetricsRecorder maps these to its
// backend's naming scheme (see pkg/metrics for the prometheus mapping).
const (
	// MetricRequests counts decisions; tags: client, status (allowed|blocked).
	MetricRequests = "ratelimit.requests"

	// MetricRemaining gauges the remaining quota after a decision; tags: client.
	MetricRemaining = "ratelimit.remaining"

	// MetricLatency observes the end-to-end check duration in seconds.
	MetricLatency = "ratelimit.latency"
)

// MetricsRecorder receives one record per decision. Implementations must be
// fast and must never block: they run synchronously on the request path.
// Panics from a recorder are swallowed and logged by the limiter, so a broken
// metrics backend can degrade observability but never a request.
type MetricsRecorder interface {
	Add(name string, value float64, tags map[string]string)
	Set(name string, value float64, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

// NoOpMetricsRecorder is a placeholder that does nothing.
// It ensures we never have to check 'if r.recorder != nil' in our hot path.
type NoOpMetricsRecorder struct{}

func (n *NoOpMetricsRecorder) Add(name string, value float64, tags map[string]string)     {}
func (n *NoOpMetricsRecorder) Set(name string, value float64, tags map[string]string)     {}
func (n *NoOpMetricsRecorder) Observe(name string, value float64, tags map[string]string) {}
