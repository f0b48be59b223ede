package models

import "time"

// JobKind identifies which analysis a job runs.
type JobKind string

const (
	JobDataDrift         JobKind = "data_drift"
	JobModelDrift        JobKind = "model_drift"
	JobMetricCalculation JobKind = "metric_calculation"
)

// Valid reports whether the kind is one of the known analysis kinds.
func (k JobKind) Valid() bool {
	switch k {
	case JobDataDrift, JobModelDrift, JobMetricCalculation:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// AnalysisJob is one unit of background analysis work. The job carries only
// the triggering prediction id, not record copies; the executor loads
// current records from storage when the job runs.
type AnalysisJob struct {
	DedupeKey    string    `json:"dedupe_key"`
	Kind         JobKind   `json:"kind"`
	PredictionID string    `json:"prediction_id"`
	Status       JobStatus `json:"status"`
	Attempts     int       `json:"attempts"`
	LastError    string    `json:"last_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DedupeKey derives the deterministic key that collapses duplicate
// submissions of the same logical job into a single execution.
func DedupeKey(kind JobKind, predictionID string) string {
	return string(kind) + ":" + predictionID
}

// NewAnalysisJob builds a pending job for the given kind and prediction.
func NewAnalysisJob(kind JobKind, predictionID string) *AnalysisJob {
	now := time.Now().UTC()
	return &AnalysisJob{
		DedupeKey:    DedupeKey(kind, predictionID),
		Kind:         kind,
		PredictionID: predictionID,
		Status:       JobStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
