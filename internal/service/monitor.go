// Package service composes the monitoring pipeline behind a small
// boundary surface: ingest predictions, ingest feedback, read the
// latest report. Everything behind it (correlation, dispatch, analysis)
// is asynchronous and never fails a request that already succeeded.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/driftwatch-systems/driftwatch/internal/correlator"
	"github.com/driftwatch-systems/driftwatch/internal/dispatch"
	"github.com/driftwatch-systems/driftwatch/internal/identity"
	"github.com/driftwatch-systems/driftwatch/internal/logging"
	"github.com/driftwatch-systems/driftwatch/internal/metrics"
	"github.com/driftwatch-systems/driftwatch/internal/models"
	"github.com/driftwatch-systems/driftwatch/internal/repository"
)

// Monitor is the boundary surface of the pipeline.
type Monitor struct {
	store      repository.Store
	ids        *identity.Generator
	correlator *correlator.Correlator
	dispatcher *dispatch.Dispatcher
	opTimeout  time.Duration
	logger     *logging.Logger
}

// New creates a monitor. opTimeout bounds every storage operation on the
// request path; zero means the default of 5s.
func New(store repository.Store, d *dispatch.Dispatcher, opTimeout time.Duration, logger *logging.Logger) *Monitor {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Monitor{
		store:      store,
		ids:        identity.NewGenerator(),
		correlator: correlator.New(store, store),
		dispatcher: d,
		opTimeout:  opTimeout,
		logger:     logger,
	}
}

// IngestPrediction stores a prediction record and schedules its data
// drift analysis. Returns the record id, generating one when the caller
// did not supply it. A supplied id that already exists is rejected with
// ErrDuplicateIdentity; the stored record is never overwritten.
func (m *Monitor) IngestPrediction(ctx context.Context, record *models.PredictionRecord) (string, error) {
	if record.ModelVersion == "" {
		metrics.PredictionsTotal.WithLabelValues("invalid").Inc()
		return "", fmt.Errorf("model_version is required")
	}
	if record.ID == "" {
		record.ID = m.ids.NewID(record.ModelVersion)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	err := m.withTimeout(ctx, "create_prediction", func(ctx context.Context) error {
		return m.store.CreatePrediction(ctx, record)
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAlreadyExists):
			metrics.PredictionsTotal.WithLabelValues("duplicate").Inc()
			return "", fmt.Errorf("%w: %s", models.ErrDuplicateIdentity, record.ID)
		case errors.Is(err, models.ErrStorageTimeout):
			metrics.PredictionsTotal.WithLabelValues("timeout").Inc()
			return "", err
		default:
			metrics.PredictionsTotal.WithLabelValues("error").Inc()
			return "", fmt.Errorf("failed to store prediction: %w", err)
		}
	}
	metrics.PredictionsTotal.WithLabelValues("accepted").Inc()

	// The record is durable; scheduling failures are repaired by the
	// sweep and must not fail the already-successful ingestion.
	m.scheduleJob(ctx, models.JobDataDrift, record.ID)
	return record.ID, nil
}

// IngestFeedback correlates feedback with its prediction and schedules
// the pair analyses. Unknown prediction ids and repeat feedback are
// rejected; see the correlator for the exact policy.
func (m *Monitor) IngestFeedback(ctx context.Context, record *models.FeedbackRecord) error {
	var pair *models.CorrelatedPair
	err := m.withTimeout(ctx, "submit_feedback", func(ctx context.Context) error {
		var err error
		pair, err = m.correlator.Submit(ctx, record)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownPrediction):
			metrics.FeedbackTotal.WithLabelValues("unknown_prediction").Inc()
		case errors.Is(err, models.ErrDuplicateFeedback):
			metrics.FeedbackTotal.WithLabelValues("duplicate").Inc()
		case errors.Is(err, models.ErrStorageTimeout):
			metrics.FeedbackTotal.WithLabelValues("timeout").Inc()
		default:
			metrics.FeedbackTotal.WithLabelValues("error").Inc()
		}
		return err
	}
	metrics.FeedbackTotal.WithLabelValues("accepted").Inc()

	m.scheduleJob(ctx, models.JobModelDrift, pair.Prediction.ID)
	m.scheduleJob(ctx, models.JobMetricCalculation, pair.Prediction.ID)
	return nil
}

// LatestReport returns the most recent report of the given kind, or
// ErrNotFound when none has been generated yet.
func (m *Monitor) LatestReport(ctx context.Context, kind models.ReportKind) (*models.Report, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown report kind %q", models.ErrNotFound, kind)
	}
	var report *models.Report
	err := m.withTimeout(ctx, "latest_report", func(ctx context.Context) error {
		var err error
		report, err = m.store.LatestReport(ctx, kind)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (m *Monitor) scheduleJob(ctx context.Context, kind models.JobKind, predictionID string) {
	if err := m.dispatcher.Schedule(ctx, models.NewAnalysisJob(kind, predictionID)); err != nil {
		m.logger.ErrorContext(ctx, "failed to schedule analysis job",
			logging.JobKind(string(kind)),
			logging.PredictionID(predictionID),
			logging.Error(err))
	}
}

// withTimeout bounds a storage operation and maps a deadline hit to
// ErrStorageTimeout. The caller's context still governs cancellation.
func (m *Monitor) withTimeout(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	start := time.Now()
	err := fn(opCtx)
	metrics.StorageDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		metrics.StorageTimeouts.Inc()
		return fmt.Errorf("%w: %s exceeded %s", models.ErrStorageTimeout, operation, m.opTimeout)
	}
	return err
}
