// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FusionTotal counts fusion decisions by outcome ("accepted" | "rejected").
	FusionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triad_fusion_total",
		Help: "Fusion decisions by outcome",
	}, []string{"outcome"})

	// Coherence tracks coherence scores of accepted interactions.
	Coherence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triad_fusion_coherence",
		Help:    "Coherence score of accepted interactions",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	// Violations counts compliance violations by type.
	Violations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triad_compliance_violations_total",
		Help: "Compliance violations by type",
	}, []string{"type"})

	// Warnings counts compliance warnings by type.
	Warnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triad_compliance_warnings_total",
		Help: "Compliance warnings by type",
	}, []string{"type"})

	// TriadDuration tracks per-triad latency.
	TriadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "triad_duration_seconds",
		Help:    "Triad execution time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"triad"})

	// SoulUpdates counts soul updates by decision action.
	SoulUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triad_soul_updates_total",
		Help: "Soul updates by decision",
	}, []string{"action"})

	// PersistErrors counts persistence failures by store.
	PersistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triad_persist_errors_total",
		Help: "Persistence failures by store",
	}, []string{"store"})

	// MaintenanceRuns counts maintenance cycles by result.
	MaintenanceRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triad_maintenance_runs_total",
		Help: "Maintenance cycles by result",
	}, []string{"result"})

	// RuleReloads counts rule-file reloads by result.
	RuleReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triad_rule_reloads_total",
		Help: "Rule reloads by result",
	}, []string{"result"})

	// VectorCount is the number of records in the vector store.
	VectorCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triad_vector_records",
		Help: "Records held by the vector store",
	})

	// SoulCount is the number of known users.
	SoulCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triad_soul_users",
		Help: "Users with a soul record",
	})

	// SourceWeight exposes the current fusion weight per source.
	SourceWeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "triad_fusion_weight",
		Help: "Current fusion weight per source",
	}, []string{"source"})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
