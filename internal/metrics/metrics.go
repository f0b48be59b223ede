package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_predictions_total",
			Help: "Total number of prediction ingestion attempts",
		},
		[]string{"status"},
	)

	FeedbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_feedback_total",
			Help: "Total number of feedback submission attempts",
		},
		[]string{"status"},
	)

	// Storage metrics
	StorageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driftwatch_storage_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StorageTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driftwatch_storage_timeouts_total",
			Help: "Total number of storage operations that hit the bounded timeout",
		},
	)

	// Dispatcher metrics
	JobsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_jobs_scheduled_total",
			Help: "Total number of analysis jobs accepted for execution",
		},
		[]string{"kind"},
	)

	JobsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_jobs_deduplicated_total",
			Help: "Total number of duplicate job submissions collapsed by dedupe key",
		},
		[]string{"kind"},
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_jobs_completed_total",
			Help: "Total number of analysis jobs that ran to completion",
		},
		[]string{"kind"},
	)

	JobsExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_jobs_exhausted_total",
			Help: "Total number of analysis jobs that hit the retry ceiling",
		},
		[]string{"kind"},
	)

	JobRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_job_retries_total",
			Help: "Total number of analysis job retry attempts",
		},
		[]string{"kind"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "driftwatch_dispatch_queue_depth",
			Help: "Current depth of the analysis job queue",
		},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driftwatch_analysis_duration_seconds",
			Help:    "Duration of collaborator analysis calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Report sink metrics
	ReportsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_reports_appended_total",
			Help: "Total number of reports appended to the sink",
		},
		[]string{"kind"},
	)

	// Reconciliation metrics
	SweepRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driftwatch_sweep_runs_total",
			Help: "Total number of reconciliation sweeps executed",
		},
	)

	SweepRescheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driftwatch_sweep_rescheduled_total",
			Help: "Total number of jobs re-scheduled by the reconciliation sweep",
		},
	)
)
