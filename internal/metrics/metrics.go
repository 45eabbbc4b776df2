// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so instrumentation stays optional.
type Metrics struct {
	MemoriesIngested      prometheus.Counter
	MemoriesDeduplicated  prometheus.Counter
	Searches              prometheus.Counter
	WaypointExpansions    prometheus.Counter
	ReinforcementFailures prometheus.Counter
	SearchLatency         prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MemoriesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "unimemory",
			Name:      "memories_ingested_total",
			Help:      "Memories stored as new entries.",
		}),
		MemoriesDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "unimemory",
			Name:      "memories_deduplicated_total",
			Help:      "Ingest attempts folded into an existing memory.",
		}),
		Searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "unimemory",
			Name:      "searches_total",
			Help:      "Search operations served.",
		}),
		WaypointExpansions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "unimemory",
			Name:      "waypoint_expansions_total",
			Help:      "Searches that fell back to waypoint graph expansion.",
		}),
		ReinforcementFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "unimemory",
			Name:      "reinforcement_failures_total",
			Help:      "Retrieval reinforcement writes that failed.",
		}),
		SearchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "unimemory",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.MemoriesIngested,
			m.MemoriesDeduplicated,
			m.Searches,
			m.WaypointExpansions,
			m.ReinforcementFailures,
			m.SearchLatency,
		)
	}
	return m
}

// IncIngested records a stored memory.
func (m *Metrics) IncIngested() {
	if m != nil {
		m.MemoriesIngested.Inc()
	}
}

// IncDeduplicated records a duplicate fold.
func (m *Metrics) IncDeduplicated() {
	if m != nil {
		m.MemoriesDeduplicated.Inc()
	}
}

// IncSearches records a search.
func (m *Metrics) IncSearches() {
	if m != nil {
		m.Searches.Inc()
	}
}

// IncExpansions records a graph expansion fallback.
func (m *Metrics) IncExpansions() {
	if m != nil {
		m.WaypointExpansions.Inc()
	}
}

// IncReinforcementFailures records a failed reinforcement write.
func (m *Metrics) IncReinforcementFailures() {
	if m != nil {
		m.ReinforcementFailures.Inc()
	}
}

// ObserveSearchLatency records one search duration in seconds.
func (m *Metrics) ObserveSearchLatency(seconds float64) {
	if m != nil {
		m.SearchLatency.Observe(seconds)
	}
}
