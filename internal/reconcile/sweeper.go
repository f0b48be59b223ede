// Package reconcile runs the periodic sweep that re-discovers analysis
// work lost to queue overflow, crashes, or missed scheduling.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/driftwatch-systems/driftwatch/internal/dispatch"
	"github.com/driftwatch-systems/driftwatch/internal/logging"
	"github.com/driftwatch-systems/driftwatch/internal/metrics"
	"github.com/driftwatch-systems/driftwatch/internal/models"
	"github.com/driftwatch-systems/driftwatch/internal/repository"
)

const sweepBatchSize = 500

// staleAfter is how long a pending or running job may sit without a
// status update before the sweep assumes its executor is gone.
const staleAfter = 5 * time.Minute

// Scheduler is the slice of the dispatcher the sweep drives.
type Scheduler interface {
	Schedule(ctx context.Context, job *models.AnalysisJob) error
	Enqueue(job *models.AnalysisJob)
}

// Sweeper periodically scans storage for records whose analyses were
// never scheduled and for claimed jobs whose executor died, and hands
// them back to the dispatcher. Safe to run alongside live scheduling:
// the dispatcher's claim semantics make re-submission a no-op for work
// already done.
type Sweeper struct {
	jobs      repository.JobStore
	scheduler Scheduler
	interval  time.Duration
	logger    *logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a sweeper scanning at the given interval.
func New(jobs repository.JobStore, scheduler Scheduler, interval time.Duration, logger *logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		jobs:      jobs,
		scheduler: scheduler,
		interval:  interval,
		logger:    logger,
	}
}

// Start launches the sweep loop. The first sweep runs immediately so a
// restarted service recovers abandoned jobs without waiting a full
// interval.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info("reconciliation sweep started", slog.Duration("interval", s.interval))

		s.Sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("reconciliation sweep stopped")
}

// Sweep runs one reconciliation pass. Exported so tests and the service
// readiness path can trigger it directly.
func (s *Sweeper) Sweep(ctx context.Context) {
	metrics.SweepRuns.Inc()
	rescheduled := 0

	rescheduled += s.scheduleMissing(ctx, models.JobDataDrift, s.jobs.PredictionIDsWithoutJob)
	rescheduled += s.scheduleMissing(ctx, models.JobModelDrift, s.jobs.FeedbackIDsWithoutJob)
	rescheduled += s.scheduleMissing(ctx, models.JobMetricCalculation, s.jobs.FeedbackIDsWithoutJob)
	rescheduled += s.requeueStale(ctx)

	if rescheduled > 0 {
		metrics.SweepRescheduled.Add(float64(rescheduled))
		s.logger.Info("reconciliation sweep rescheduled jobs", slog.Int("count", rescheduled))
	}
}

type idLister func(ctx context.Context, kind models.JobKind, limit int) ([]string, error)

func (s *Sweeper) scheduleMissing(ctx context.Context, kind models.JobKind, list idLister) int {
	ids, err := list(ctx, kind, sweepBatchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep scan failed",
			logging.JobKind(string(kind)), logging.Error(err))
		return 0
	}

	scheduled := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return scheduled
		}
		if err := s.scheduler.Schedule(ctx, models.NewAnalysisJob(kind, id)); err != nil {
			s.logger.ErrorContext(ctx, "sweep failed to schedule job",
				logging.JobKind(string(kind)), logging.PredictionID(id), logging.Error(err))
			continue
		}
		scheduled++
	}
	return scheduled
}

// requeueStale re-enqueues claimed jobs that stopped making progress.
// These already hold their claim, so they bypass Schedule and go
// straight onto the queue.
func (s *Sweeper) requeueStale(ctx context.Context) int {
	stale, err := s.jobs.StaleJobs(ctx, time.Now().UTC().Add(-staleAfter), sweepBatchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep stale-job scan failed", logging.Error(err))
		return 0
	}

	for _, job := range stale {
		if ctx.Err() != nil {
			break
		}
		s.logger.Warn("requeueing stale analysis job",
			logging.DedupeKey(job.DedupeKey), logging.Attempt(job.Attempts))
		s.scheduler.Enqueue(job)
	}
	return len(stale)
}

var _ Scheduler = (*dispatch.Dispatcher)(nil)
