package runpod

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records API call outcomes. A nil *Metrics records nothing.
type Metrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMetrics creates the API metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "podkeeper",
				Subsystem: "runpod",
				Name:      "api_calls_total",
				Help:      "Total number of RunPod API calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "podkeeper",
				Subsystem: "runpod",
				Name:      "api_latency_seconds",
				Help:      "Latency of RunPod API calls in seconds, including retries",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{"operation"},
		),
	}
	reg.MustRegister(m.calls, m.latency)
	return m
}

func (m *Metrics) observe(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op, resultLabel(err)).Inc()
	m.latency.WithLabelValues(op).Observe(d.Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
