package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agent",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	TokensInputTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent",
			Subsystem: "server",
			Name:      "tokens_input_total",
			Help:      "Total input tokens consumed",
		},
		[]string{"model"},
	)

	TokensOutputTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent",
			Subsystem: "server",
			Name:      "tokens_output_total",
			Help:      "Total output tokens generated",
		},
		[]string{"model"},
	)

	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent",
			Subsystem: "server",
			Name:      "provider_errors_total",
			Help:      "Total provider call failures",
		},
		[]string{"model", "error_type"},
	)

	SessionsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agent",
			Subsystem: "server",
			Name:      "sessions_swept_total",
			Help:      "Total expired sessions removed by the sweeper",
		},
	)
)
