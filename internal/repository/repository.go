// Package repository defines the storage contracts for the pipeline and
// provides in-memory and PostgreSQL implementations. All mutation of shared
// state goes through these narrow interfaces; no component reaches into
// another's storage directly.
package repository

import (
	"context"
	"time"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// PredictionStore owns PredictionRecord lifetime. Records are write-once:
// CreatePrediction never overwrites, and nothing here deletes.
type PredictionStore interface {
	// CreatePrediction durably persists a record. Returns
	// models.ErrAlreadyExists if the id is already present; concurrent
	// creates for the same id resolve deterministically with one winner.
	CreatePrediction(ctx context.Context, record *models.PredictionRecord) error

	// GetPrediction returns models.ErrNotFound if the id is absent.
	GetPrediction(ctx context.Context, id string) (*models.PredictionRecord, error)
}

// FeedbackStore owns FeedbackRecord lifetime. At most one feedback record
// exists per prediction id.
type FeedbackStore interface {
	// CreateFeedback persists feedback. Returns models.ErrAlreadyExists
	// if feedback for the prediction id is already present.
	CreateFeedback(ctx context.Context, record *models.FeedbackRecord) error

	// GetFeedback returns models.ErrNotFound if no feedback exists.
	GetFeedback(ctx context.Context, predictionID string) (*models.FeedbackRecord, error)
}

// ReportSink receives analysis results. Append-only: reports are never
// mutated or deleted by the pipeline.
type ReportSink interface {
	// AppendReport atomically appends a report; no partial write is
	// ever observable.
	AppendReport(ctx context.Context, report *models.Report) error

	// LatestReport returns the most recently generated report of a kind
	// without scanning unbounded history, or models.ErrNotFound.
	LatestReport(ctx context.Context, kind models.ReportKind) (*models.Report, error)
}

// JobStore is the durable dedupe-key registry behind the dispatcher.
// Claims are linearizable per key: of two concurrent claims for the same
// dedupe key, exactly one succeeds.
type JobStore interface {
	// ClaimJob records the job if its dedupe key is unclaimed. Returns
	// true when this call won the claim, false when the key was already
	// claimed (duplicate submission, a no-op for the caller).
	ClaimJob(ctx context.Context, job *models.AnalysisJob) (bool, error)

	// GetJob returns models.ErrNotFound for an unclaimed key.
	GetJob(ctx context.Context, dedupeKey string) (*models.AnalysisJob, error)

	// SetJobStatus transitions a claimed job's lifecycle state.
	SetJobStatus(ctx context.Context, dedupeKey string, status models.JobStatus, attempts int, lastError string) error

	// StaleJobs returns claimed jobs still pending or running whose last
	// update is older than the cutoff. These are jobs whose in-process
	// execution was lost to a crash and need re-enqueueing.
	StaleJobs(ctx context.Context, olderThan time.Time, limit int) ([]*models.AnalysisJob, error)

	// PredictionIDsWithoutJob returns ids of predictions with no claimed
	// job of the given kind, for the reconciliation sweep.
	PredictionIDsWithoutJob(ctx context.Context, kind models.JobKind, limit int) ([]string, error)

	// FeedbackIDsWithoutJob returns prediction ids of feedback records
	// with no claimed job of the given kind.
	FeedbackIDsWithoutJob(ctx context.Context, kind models.JobKind, limit int) ([]string, error)
}

// Store bundles every storage contract; both implementations satisfy it.
type Store interface {
	PredictionStore
	FeedbackStore
	ReportSink
	JobStore
}
