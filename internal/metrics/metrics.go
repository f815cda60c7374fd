// Package metrics exposes Prometheus counters for the readiness engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mri_engine"

var (
	providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Provider API requests by provider and outcome.",
	}, []string{"provider", "outcome"})

	ladderStageSuccess = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ladder_stage_success_total",
		Help:      "Benchmark degradation-ladder successes by query mode.",
	}, []string{"mode"})

	snapshotLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_lookups_total",
		Help:      "Snapshot store lookups by source kind and outcome.",
	}, []string{"source_kind", "outcome"})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_evictions_total",
		Help:      "Entries evicted from bounded in-memory caches.",
	})

	automationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "automation_runs_total",
		Help:      "Signal-ingestion cycles by outcome.",
	}, []string{"outcome"})

	stressComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stress_results_total",
		Help:      "Market stress-test results by source mode.",
	}, []string{"source_mode"})
)

// ProviderRequest records one provider API call.
func ProviderRequest(provider, outcome string) {
	providerRequests.WithLabelValues(provider, outcome).Inc()
}

// LadderStageSuccess records which query mode won the degradation ladder.
func LadderStageSuccess(mode string) {
	ladderStageSuccess.WithLabelValues(mode).Inc()
}

// SnapshotLookup records a snapshot store lookup outcome ("hit", "miss" or "expired").
func SnapshotLookup(sourceKind, outcome string) {
	snapshotLookups.WithLabelValues(sourceKind, outcome).Inc()
}

// CacheEviction records one bounded-cache eviction.
func CacheEviction() {
	cacheEvictions.Inc()
}

// AutomationRun records one ingestion cycle outcome ("ok", "error" or "rejected").
func AutomationRun(outcome string) {
	automationRuns.WithLabelValues(outcome).Inc()
}

// StressResult records a computed stress-test result by source mode.
func StressResult(sourceMode string) {
	stressComputed.WithLabelValues(sourceMode).Inc()
}
