package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIntegrationMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIntegrationMetrics(reg)

	m.ObserveCacheLookup("hit")
	m.ObserveCacheLookup("hit")
	m.ObserveCacheLookup("miss")
	m.ObserveFanoutBranch("schedule", "failed")
	m.ObserveFanoutDuration("schedule", 0.2)
	m.ObserveMutationAttempt("update", "try_next")
	m.ObserveMutationOutcome("update", "exhausted")

	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")); got != 2 {
		t.Fatalf("expected 2 cache hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.fanoutBranches.WithLabelValues("schedule", "failed")); got != 1 {
		t.Fatalf("expected 1 failed branch, got %v", got)
	}
	if got := testutil.ToFloat64(m.mutationOutcomes.WithLabelValues("update", "exhausted")); got != 1 {
		t.Fatalf("expected 1 exhausted outcome, got %v", got)
	}
}

func TestIntegrationMetricsDoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewIntegrationMetrics(reg)
	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration to panic")
		}
	}()
	NewIntegrationMetrics(reg)
}

func TestIntegrationMetricsNilSafe(t *testing.T) {
	var m *IntegrationMetrics
	m.ObserveCacheLookup("hit")
	m.ObserveFanoutBranch("enrich", "ok")
	m.ObserveFanoutDuration("enrich", 0.1)
	m.ObserveMutationAttempt("cancel", "fatal")
	m.ObserveMutationOutcome("cancel", "forbidden")
}
