package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements MetricsRecorder with an operation counter
// and a latency histogram, both labelled by operation and result.
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the service collectors on reg under
// namespace. A nil reg uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer, namespace string) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Total number of inventory service operations.",
		}, []string{"operation", "result"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Latency distribution of inventory service operations.",
			Buckets: []float64{
				0.0005, 0.001, 0.005,
				0.01, 0.05, 0.1,
				0.5, 1, 5,
			},
		}, []string{"operation", "result"}),
	}
}

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	result := string(AuditStatusError)
	if success {
		result = string(AuditStatusSuccess)
	}
	r.operations.WithLabelValues(operation, result).Inc()
	r.latency.WithLabelValues(operation, result).Observe(duration.Seconds())
}
