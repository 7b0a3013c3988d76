package orchestration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/podkeeper/internal/pod"
	"github.com/imamik/podkeeper/internal/readiness"
	"github.com/imamik/podkeeper/internal/reconcile"
)

// Metrics records ensure outcomes and readiness polling. A nil *Metrics
// records nothing.
type Metrics struct {
	ensures  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	ticks    *prometheus.CounterVec
}

// NewMetrics creates the orchestration metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ensures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "podkeeper",
				Subsystem: "orchestrator",
				Name:      "ensure_total",
				Help:      "Total number of ensure runs by planned action and result",
			},
			[]string{"action", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "podkeeper",
				Subsystem: "orchestrator",
				Name:      "ensure_duration_seconds",
				Help:      "Duration of ensure runs in seconds, including the readiness wait",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"action"},
		),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "podkeeper",
				Subsystem: "readiness",
				Name:      "poll_ticks_total",
				Help:      "Total number of readiness poll ticks by observed phase",
			},
			[]string{"phase"},
		),
	}
	reg.MustRegister(m.ensures, m.duration, m.ticks)
	return m
}

func (m *Metrics) observeEnsure(action reconcile.ActionType, err error, d time.Duration) {
	if m == nil {
		return
	}
	label := string(action)
	if label == "" {
		label = "none"
	}
	result := "success"
	if err != nil {
		result = string(pod.KindOf(err))
	}
	m.ensures.WithLabelValues(label, result).Inc()
	m.duration.WithLabelValues(label).Observe(d.Seconds())
}

func (m *Metrics) observeTick(phase readiness.Phase) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(string(phase)).Inc()
}
