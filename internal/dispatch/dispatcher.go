// Package dispatch schedules analysis jobs and runs them on a worker pool,
// decoupled from the request handlers that trigger them. Each dedupe key
// executes at most once: duplicate submissions are collapsed first by the
// fast-path registry, then authoritatively by the durable JobStore claim.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatch-systems/driftwatch/internal/analysis"
	"github.com/driftwatch-systems/driftwatch/internal/logging"
	"github.com/driftwatch-systems/driftwatch/internal/metrics"
	"github.com/driftwatch-systems/driftwatch/internal/models"
	"github.com/driftwatch-systems/driftwatch/internal/repository"
)

// Notifier is the operator-visible channel for terminal job states and
// detected drift. Failures here never propagate to the ingestion path.
type Notifier interface {
	JobExhausted(ctx context.Context, job *models.AnalysisJob, lastErr error)
	DriftDetected(ctx context.Context, report *models.Report)
}

// NoOpNotifier discards notifications. Used when NATS is disabled.
type NoOpNotifier struct{}

func (NoOpNotifier) JobExhausted(ctx context.Context, job *models.AnalysisJob, lastErr error) {}
func (NoOpNotifier) DriftDetected(ctx context.Context, report *models.Report)                {}

// Config tunes the worker pool and retry policy.
type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	JobTimeout  time.Duration
}

// DefaultConfig returns the dispatcher defaults used by tests and by the
// service when config values are unset.
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		QueueSize:   1024,
		MaxAttempts: 5,
		BaseBackoff: 200 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
		JobTimeout:  30 * time.Second,
	}
}

// Stores bundles the storage contracts the dispatcher needs. Jobs carry
// only prediction ids; records are loaded fresh when a job runs.
type Stores struct {
	Predictions repository.PredictionStore
	Feedback    repository.FeedbackStore
	Reports     repository.ReportSink
	Jobs        repository.JobStore
}

// Dispatcher owns the analysis job lifecycle.
type Dispatcher struct {
	cfg      Config
	stores   Stores
	registry DedupeRegistry
	suite    *analysis.Suite
	notifier Notifier
	logger   *logging.Logger

	queue  chan *models.AnalysisJob
	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel context.CancelFunc
	runCtx context.Context
}

// New creates a dispatcher. Call Start before scheduling.
func New(cfg Config, stores Stores, registry DedupeRegistry, suite *analysis.Suite, notifier Notifier, logger *logging.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultConfig().BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig().MaxBackoff
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultConfig().JobTimeout
	}
	if registry == nil {
		registry = &NoOpRegistry{}
	}
	if notifier == nil {
		notifier = NoOpNotifier{}
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Dispatcher{
		cfg:      cfg,
		stores:   stores,
		registry: registry,
		suite:    suite,
		notifier: notifier,
		logger:   logger,
		queue:    make(chan *models.AnalysisJob, cfg.QueueSize),
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.runCtx != nil {
		return fmt.Errorf("dispatcher already running")
	}
	d.runCtx, d.cancel = context.WithCancel(ctx)

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	d.logger.Info("analysis dispatcher started",
		slog.Int("workers", d.cfg.Workers),
		slog.Int("queue_size", d.cfg.QueueSize),
		slog.Int("max_attempts", d.cfg.MaxAttempts),
	)
	return nil
}

// Stop cancels in-flight jobs and waits for workers to exit. Jobs left
// pending or running stay claimed; the reconciliation sweep re-enqueues
// them after restart.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.cancel == nil {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("analysis dispatcher stopped")
}

// Schedule claims and enqueues a job. A duplicate submission for an
// already-claimed dedupe key is a no-op success. Never blocks on job
// execution; a full queue leaves the job claimed for the sweep to pick up.
func (d *Dispatcher) Schedule(ctx context.Context, job *models.AnalysisJob) error {
	if !job.Kind.Valid() {
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}

	// Fast path. Registry errors are logged and ignored: the durable
	// claim below is the authority.
	acquired, regErr := d.registry.TryAcquire(ctx, job.DedupeKey)
	if regErr != nil {
		d.logger.WarnContext(ctx, "dedupe registry unavailable, falling through to durable claim",
			logging.DedupeKey(job.DedupeKey), logging.Error(regErr))
	} else if !acquired {
		metrics.JobsDeduplicated.WithLabelValues(string(job.Kind)).Inc()
		return nil
	}

	claimed, err := d.stores.Jobs.ClaimJob(ctx, job)
	if err != nil {
		// Free the advisory key so the retried submission is not
		// suppressed until the dedupe window lapses.
		if acquired {
			if relErr := d.registry.Release(ctx, job.DedupeKey); relErr != nil {
				d.logger.WarnContext(ctx, "failed to release dedupe key",
					logging.DedupeKey(job.DedupeKey), logging.Error(relErr))
			}
		}
		return fmt.Errorf("failed to claim job: %w", err)
	}
	if !claimed {
		metrics.JobsDeduplicated.WithLabelValues(string(job.Kind)).Inc()
		return nil
	}

	metrics.JobsScheduled.WithLabelValues(string(job.Kind)).Inc()
	d.Enqueue(job)
	return nil
}

// Enqueue pushes an already-claimed job onto the worker queue. Used by
// Schedule and by the reconciliation sweep for re-discovered jobs.
func (d *Dispatcher) Enqueue(job *models.AnalysisJob) {
	select {
	case d.queue <- job:
		metrics.QueueDepth.Set(float64(len(d.queue)))
	default:
		// Queue full. The job is durably claimed and pending, so the
		// sweep will re-enqueue it; dropping here keeps Schedule
		// non-blocking.
		d.logger.Warn("job queue full, deferring to reconciliation sweep",
			logging.DedupeKey(job.DedupeKey))
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.runCtx.Done():
			return
		case job := <-d.queue:
			metrics.QueueDepth.Set(float64(len(d.queue)))
			d.execute(job)
		}
	}
}

// execute runs one job to a terminal state: completed, exhausted, or
// abandoned mid-flight by shutdown (stale, recovered by the sweep).
func (d *Dispatcher) execute(job *models.AnalysisJob) {
	ctx := d.runCtx
	log := d.logger.With(
		logging.JobKind(string(job.Kind)),
		logging.DedupeKey(job.DedupeKey),
		logging.PredictionID(job.PredictionID),
	)

	if err := d.stores.Jobs.SetJobStatus(ctx, job.DedupeKey, models.JobStatusRunning, job.Attempts, ""); err != nil {
		log.Error("failed to mark job running", logging.Error(err))
		return
	}

	var lastErr error
	for attempt := job.Attempts + 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		report, err := d.runAnalysis(ctx, job)
		if err == nil {
			// Shutdown between analysis and append must not leave a
			// partial result; the job stays stale and re-runs later.
			if ctx.Err() != nil {
				return
			}
			if err := d.stores.Reports.AppendReport(ctx, report); err != nil {
				lastErr = fmt.Errorf("failed to append report: %w", err)
			} else {
				metrics.ReportsAppended.WithLabelValues(string(report.Kind)).Inc()
				metrics.JobsCompleted.WithLabelValues(string(job.Kind)).Inc()
				if err := d.stores.Jobs.SetJobStatus(ctx, job.DedupeKey, models.JobStatusCompleted, attempt, ""); err != nil {
					log.Error("failed to mark job completed", logging.Error(err))
				}
				log.Info("analysis job completed", logging.Attempt(attempt))
				if drifted, _ := report.Body["drift_detected"].(bool); drifted {
					d.notifier.DriftDetected(ctx, report)
				}
				return
			}
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return
		}

		if attempt < d.cfg.MaxAttempts {
			metrics.JobRetries.WithLabelValues(string(job.Kind)).Inc()
			delay := backoffDelay(attempt, d.cfg.BaseBackoff, d.cfg.MaxBackoff)
			log.Warn("analysis job attempt failed, retrying",
				logging.Attempt(attempt), logging.Error(lastErr),
				slog.Duration("backoff", delay))
			if err := d.stores.Jobs.SetJobStatus(ctx, job.DedupeKey, models.JobStatusRunning, attempt, lastErr.Error()); err != nil {
				log.Error("failed to record job attempt", logging.Error(err))
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}

	// Retry ceiling hit: terminal failure, reported to the operator
	// channel, never to the caller that scheduled the job.
	exhausted := fmt.Errorf("%w after %d attempts: %v", models.ErrExhausted, d.cfg.MaxAttempts, lastErr)
	metrics.JobsExhausted.WithLabelValues(string(job.Kind)).Inc()
	if err := d.stores.Jobs.SetJobStatus(ctx, job.DedupeKey, models.JobStatusFailed, d.cfg.MaxAttempts, exhausted.Error()); err != nil {
		log.Error("failed to mark job failed", logging.Error(err))
	}
	log.Error("analysis job exhausted", logging.Error(exhausted))
	job.Attempts = d.cfg.MaxAttempts
	job.Status = models.JobStatusFailed
	d.notifier.JobExhausted(ctx, job, lastErr)
}

// runAnalysis loads current records and invokes the collaborator for the
// job's kind. Collaborator errors are wrapped as CollaboratorFailure.
func (d *Dispatcher) runAnalysis(ctx context.Context, job *models.AnalysisJob) (*models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.JobTimeout)
	defer cancel()

	prediction, err := d.stores.Predictions.GetPrediction(ctx, job.PredictionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prediction: %w", err)
	}

	start := time.Now()
	var body map[string]interface{}
	switch job.Kind {
	case models.JobDataDrift:
		body, err = d.checkDataDrift(ctx, prediction)
	case models.JobModelDrift, models.JobMetricCalculation:
		var feedback *models.FeedbackRecord
		feedback, err = d.stores.Feedback.GetFeedback(ctx, job.PredictionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load feedback: %w", err)
		}
		pair := &models.CorrelatedPair{Prediction: prediction, Feedback: feedback}
		if job.Kind == models.JobModelDrift {
			body, err = d.checkModelDrift(ctx, pair)
		} else {
			body, err = d.computeMetrics(ctx, pair)
		}
	default:
		return nil, fmt.Errorf("unknown job kind %q", job.Kind)
	}
	metrics.AnalysisDuration.WithLabelValues(string(job.Kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrCollaboratorFailure, err)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: collaborator returned no result", models.ErrCollaboratorFailure)
	}

	return &models.Report{
		ID:           uuid.New().String(),
		Kind:         models.ReportKindForJob(job.Kind),
		PredictionID: prediction.ID,
		ModelVersion: prediction.ModelVersion,
		GeneratedAt:  time.Now().UTC(),
		Body:         body,
	}, nil
}

// The collaborator wrappers convert panics into errors so a misbehaving
// implementation cannot take down a worker or its co-scheduled jobs.

func (d *Dispatcher) checkDataDrift(ctx context.Context, p *models.PredictionRecord) (body map[string]interface{}, err error) {
	defer recoverToError(&err)
	return d.suite.DataDrift.Check(ctx, p.Features)
}

func (d *Dispatcher) checkModelDrift(ctx context.Context, pair *models.CorrelatedPair) (body map[string]interface{}, err error) {
	defer recoverToError(&err)
	return d.suite.ModelDrift.Check(ctx, pair)
}

func (d *Dispatcher) computeMetrics(ctx context.Context, pair *models.CorrelatedPair) (body map[string]interface{}, err error) {
	defer recoverToError(&err)
	return d.suite.Metrics.Compute(ctx, pair)
}

func recoverToError(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("collaborator panic: %v", r)
	}
}
