package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics records outbound payment gateway calls.
type GatewayMetrics struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// NewGatewayMetrics registers the gateway metrics on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stripe_request_duration_seconds",
		Help:    "Duration of Stripe API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stripe_request_failures_total",
		Help: "Failed Stripe API calls by gateway error code.",
	}, []string{"operation", "code"})
	reg.MustRegister(duration, failures)
	return &GatewayMetrics{duration: duration, failures: failures}
}

// Observe records one call. Failed calls are also counted under errCode.
func (g *GatewayMetrics) Observe(operation string, took time.Duration, errCode string, failed bool) {
	if g == nil || g.duration == nil {
		return
	}
	operation = normalizeLabel(operation)
	g.duration.WithLabelValues(operation).Observe(took.Seconds())
	if failed {
		g.failures.WithLabelValues(operation, normalizeLabel(errCode)).Inc()
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
