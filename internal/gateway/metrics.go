package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts gateway outcomes.
type Metrics struct {
	simulations *prometheus.CounterVec
	submissions *prometheus.CounterVec
	polls       prometheus.Counter
	restores    prometheus.Counter
	latency     *prometheus.HistogramVec
}

// NewMetrics builds the gateway collectors under namespace and registers
// them with reg. A nil reg leaves them unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		simulations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_simulations_total",
				Help:      "Simulations by outcome: ok, restore, failed, error.",
			},
			[]string{"outcome"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_submissions_total",
				Help:      "sendTransaction responses by status.",
			},
			[]string{"status"},
		),
		polls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_poll_attempts_total",
				Help:      "getTransaction calls made while polling.",
			},
		),
		restores: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_restores_total",
				Help:      "Restore transactions confirmed.",
			},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_call_duration_seconds",
				Help:      "Ledger RPC call latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.simulations, m.submissions, m.polls, m.restores, m.latency)
	}
	return m
}

func (m *Metrics) observe(method string, start time.Time) {
	m.latency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
