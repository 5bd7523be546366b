package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors updated on the request path.
// Counter increments are cheap enough to stay synchronous.
type Metrics struct {
	Classifications *prometheus.CounterVec
	Steps           *prometheus.CounterVec
	StepLatency     prometheus.Histogram
	TierFailures    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatwright",
			Name:      "classifications_total",
			Help:      "Classifications by tier and intent.",
		}, []string{"method", "intent"}),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatwright",
			Name:      "flow_steps_total",
			Help:      "Engine steps by flow and resulting run status.",
		}, []string{"flow", "status"}),
		StepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatwright",
			Name:      "flow_step_duration_seconds",
			Help:      "Latency of one engine step.",
			Buckets:   prometheus.DefBuckets,
		}),
		TierFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatwright",
			Name:      "classifier_tier_failures_total",
			Help:      "Classifier tier timeouts and transport errors.",
		}, []string{"tier"}),
	}
	if reg != nil {
		reg.MustRegister(m.Classifications, m.Steps, m.StepLatency, m.TierFailures)
	}
	return m
}
