package metrics

import "github.com/prometheus/client_golang/prometheus"

// RoutingMetrics exposes counters/histograms for bot turns.
type RoutingMetrics struct {
	decisions      *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	turnLatency    *prometheus.HistogramVec
	activities     *prometheus.CounterVec
}

func NewRoutingMetrics(reg prometheus.Registerer) *RoutingMetrics {
	m := &RoutingMetrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "routing",
			Name:      "decisions_total",
			Help:      "Routing decisions by outcome",
		}, []string{"kind"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "routing",
			Name:      "source_failures_total",
			Help:      "Failed classifier, knowledge and scheduler calls",
		}, []string{"reason"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dental",
			Subsystem: "routing",
			Name:      "turn_latency_seconds",
			Help:      "Latency of a routed turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		activities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "bot",
			Name:      "activities_total",
			Help:      "Inbound activities by type and outcome",
		}, []string{"type", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.decisions, m.sourceFailures, m.turnLatency, m.activities)
	return m
}

// ObserveDecision records the outcome of one turn and how long it took.
func (m *RoutingMetrics) ObserveDecision(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(kind).Inc()
	m.turnLatency.WithLabelValues(kind).Observe(seconds)
}

func (m *RoutingMetrics) ObserveSourceFailure(reason string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(reason).Inc()
}

func (m *RoutingMetrics) ObserveActivity(activityType, outcome string) {
	if m == nil {
		return
	}
	m.activities.WithLabelValues(activityType, outcome).Inc()
}
