package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntegrationMetrics exposes counters for the reconciliation layer: patient
// cache effectiveness, per-branch fan-out outcomes, and mutation decisions.
type IntegrationMetrics struct {
	cacheLookups     *prometheus.CounterVec
	fanoutBranches   *prometheus.CounterVec
	mutationAttempts *prometheus.CounterVec
	mutationOutcomes *prometheus.CounterVec
	fanoutDuration   *prometheus.HistogramVec
}

func NewIntegrationMetrics(reg prometheus.Registerer) *IntegrationMetrics {
	m := &IntegrationMetrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic_gateway",
			Subsystem: "patient_cache",
			Name:      "lookups_total",
			Help:      "Patient cache lookups by result (hit, miss, fetch_error)",
		}, []string{"result"}),
		fanoutBranches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic_gateway",
			Subsystem: "fanout",
			Name:      "branches_total",
			Help:      "Fan-out branches by operation and outcome",
		}, []string{"operation", "outcome"}),
		mutationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic_gateway",
			Subsystem: "mutation",
			Name:      "attempts_total",
			Help:      "Candidate route attempts by operation and decision",
		}, []string{"operation", "decision"}),
		mutationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic_gateway",
			Subsystem: "mutation",
			Name:      "outcomes_total",
			Help:      "Terminal mutation outcomes by operation and result",
		}, []string{"operation", "result"}),
		fanoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic_gateway",
			Subsystem: "fanout",
			Name:      "duration_seconds",
			Help:      "Wall time of a complete fan-out",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.cacheLookups, m.fanoutBranches, m.mutationAttempts, m.mutationOutcomes, m.fanoutDuration)
	return m
}

func (m *IntegrationMetrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *IntegrationMetrics) ObserveFanoutBranch(operation, outcome string) {
	if m == nil {
		return
	}
	m.fanoutBranches.WithLabelValues(operation, outcome).Inc()
}

func (m *IntegrationMetrics) ObserveFanoutDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.fanoutDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *IntegrationMetrics) ObserveMutationAttempt(operation, decision string) {
	if m == nil {
		return
	}
	m.mutationAttempts.WithLabelValues(operation, decision).Inc()
}

func (m *IntegrationMetrics) ObserveMutationOutcome(operation, result string) {
	if m == nil {
		return
	}
	m.mutationOutcomes.WithLabelValues(operation, result).Inc()
}
