package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Inbound updates by kind (message/callback) and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Data-service requests by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	backendLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_latency_ms",
			Help:    "Data-service request latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
		},
		[]string{"op"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(updatesTotal, backendRequests, backendLatencyMs)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ObserveUpdate counts one handled inbound update.
func ObserveUpdate(kind, outcome string) {
	updatesTotal.WithLabelValues(norm(kind), norm(outcome)).Inc()
}

// ObserveBackend records one data-service call.
func ObserveBackend(op, outcome string, latencyMs float64) {
	backendRequests.WithLabelValues(norm(op), norm(outcome)).Inc()
	backendLatencyMs.WithLabelValues(norm(op)).Observe(latencyMs)
}
