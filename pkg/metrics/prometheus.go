// Package metrics exposes the limiter's decision stream as prometheus time
// series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/minutely/gateway-rate-limiter/pkg/limiter"
)

// PrometheusRecorder implements limiter.MetricsRecorder.
//
// Exported series:
//   - gateway_ratelimit_requests_total{client,status}: decisions by outcome
//   - gateway_ratelimit_remaining{client}: remaining quota after the last decision
//   - gateway_ratelimit_check_duration_seconds: end-to-end check latency
type PrometheusRecorder struct {
	requests  *prometheus.CounterVec
	remaining *prometheus.GaugeVec
	latency   prometheus.Histogram
}

// NewPrometheusRecorder creates and registers the limiter metrics with the
// provided registry.
func NewPrometheusRecorder(registry *prometheus.Registry) *PrometheusRecorder {
	r := &PrometheusRecorder{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "ratelimit",
				Name:      "requests_total",
				Help:      "Rate limit decisions by client and outcome",
			},
			[]string{"client", "status"},
		),
		remaining: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gateway",
				Subsystem: "ratelimit",
				Name:      "remaining",
				Help:      "Remaining quota per client after the last decision",
			},
			[]string{"client"},
		),
		latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "ratelimit",
				Name:      "check_duration_seconds",
				Help:      "Duration of quota checks in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(r.requests, r.remaining, r.latency)
	return r
}

func (r *PrometheusRecorder) Add(name string, value float64, tags map[string]string) {
	if name == limiter.MetricRequests {
		r.requests.WithLabelValues(tags["client"], tags["status"]).Add(value)
	}
}

func (r *PrometheusRecorder) Set(name string, value float64, tags map[string]string) {
	if name == limiter.MetricRemaining {
		r.remaining.WithLabelValues(tags["client"]).Set(value)
	}
}

func (r *PrometheusRecorder) Observe(name string, value float64, tags map[string]string) {
	if name == limiter.MetricLatency {
		r.latency.Observe(value)
	}
}
