// Package metrics exposes Prometheus instrumentation for the cache, flush, session
// and workflow subsystems.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache Metrics
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsadf_cache_requests_total",
			Help: "Cache reads by resource kind and result (hit, miss, error)",
		},
		[]string{"kind", "result"},
	)

	CacheFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsadf_cache_fallbacks_total",
			Help: "Operations that degraded to the durable store because the cache was unavailable",
		},
		[]string{"kind", "op"},
	)

	// Flush Metrics
	FlushResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsadf_flush_total",
			Help: "Dirty entry flushes by resource kind and result (flushed, clean, error)",
		},
		[]string{"kind", "result"},
	)

	FlushScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lsadf_flush_scan_duration_seconds",
			Help:    "Duration of a full dirty-entry scan",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Session Metrics
	SessionOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsadf_session_operations_total",
			Help: "Game session operations by operation and result",
		},
		[]string{"op", "result"},
	)

	// Workflow Metrics
	CheckpointSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsadf_workflow_checkpoint_steps_total",
			Help: "Checkpoint step executions by step and result (ok, failed)",
		},
		[]string{"step", "result"},
	)

	CheckpointDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lsadf_workflow_checkpoint_duration_seconds",
			Help:    "Duration of a complete checkpoint",
			Buckets: prometheus.DefBuckets,
		},
	)

	WorkflowRunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lsadf_workflow_runs_active",
			Help: "Number of session workflow runs currently supervised",
		},
	)

	// Event Metrics
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsadf_events_dispatched_total",
			Help: "Events dispatched by type, mode (sync, async) and result",
		},
		[]string{"type", "mode", "result"},
	)
)
