package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch-systems/driftwatch/internal/models"
	"github.com/driftwatch-systems/driftwatch/internal/repository"
)

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []*models.AnalysisJob
	enqueued  []*models.AnalysisJob
	repo      *repository.MemoryRepository
}

func (f *fakeScheduler) Schedule(ctx context.Context, job *models.AnalysisJob) error {
	f.mu.Lock()
	f.scheduled = append(f.scheduled, job)
	f.mu.Unlock()
	if f.repo != nil {
		_, err := f.repo.ClaimJob(ctx, job)
		return err
	}
	return nil
}

func (f *fakeScheduler) Enqueue(job *models.AnalysisJob) {
	f.mu.Lock()
	f.enqueued = append(f.enqueued, job)
	f.mu.Unlock()
}

func (f *fakeScheduler) scheduledKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.scheduled))
	for _, j := range f.scheduled {
		keys = append(keys, j.DedupeKey)
	}
	return keys
}

func seedPrediction(t *testing.T, repo *repository.MemoryRepository, id string) {
	t.Helper()
	require.NoError(t, repo.CreatePrediction(context.Background(), &models.PredictionRecord{
		ID:           id,
		ModelVersion: "v1",
		CreatedAt:    time.Now().UTC(),
	}))
}

func seedFeedback(t *testing.T, repo *repository.MemoryRepository, id string) {
	t.Helper()
	require.NoError(t, repo.CreateFeedback(context.Background(), &models.FeedbackRecord{
		PredictionID: id,
		ActualValue:  1.0,
		ReceivedAt:   time.Now().UTC(),
	}))
}

func TestSweepSchedulesMissingJobs(t *testing.T) {
	repo := repository.NewMemoryRepository()
	sched := &fakeScheduler{repo: repo}
	s := New(repo, sched, time.Minute, nil)

	seedPrediction(t, repo, "p-1")
	seedPrediction(t, repo, "p-2")
	seedFeedback(t, repo, "p-2")

	s.Sweep(context.Background())

	keys := sched.scheduledKeys()
	assert.Contains(t, keys, "data_drift:p-1")
	assert.Contains(t, keys, "data_drift:p-2")
	assert.Contains(t, keys, "model_drift:p-2")
	assert.Contains(t, keys, "metric_calculation:p-2")
	// p-1 has no feedback yet, so no pair analyses for it.
	assert.NotContains(t, keys, "model_drift:p-1")
	assert.NotContains(t, keys, "metric_calculation:p-1")
}

func TestSweepIsIdempotent(t *testing.T) {
	repo := repository.NewMemoryRepository()
	sched := &fakeScheduler{repo: repo}
	s := New(repo, sched, time.Minute, nil)

	seedPrediction(t, repo, "p-1")

	s.Sweep(context.Background())
	first := len(sched.scheduledKeys())
	s.Sweep(context.Background())

	// The first sweep claimed the job, so the second finds nothing new.
	assert.Equal(t, first, len(sched.scheduledKeys()))
}

func TestSweepSkipsRecordsWithExistingJobs(t *testing.T) {
	repo := repository.NewMemoryRepository()
	sched := &fakeScheduler{repo: repo}
	s := New(repo, sched, time.Minute, nil)

	seedPrediction(t, repo, "p-1")
	claimed, err := repo.ClaimJob(context.Background(), models.NewAnalysisJob(models.JobDataDrift, "p-1"))
	require.NoError(t, err)
	require.True(t, claimed)

	s.Sweep(context.Background())
	assert.NotContains(t, sched.scheduledKeys(), "data_drift:p-1")
}

func TestSweepRequeuesStaleJobs(t *testing.T) {
	repo := repository.NewMemoryRepository()
	sched := &fakeScheduler{repo: repo}
	s := New(repo, sched, time.Minute, nil)

	seedPrediction(t, repo, "p-1")
	job := models.NewAnalysisJob(models.JobDataDrift, "p-1")
	job.CreatedAt = time.Now().UTC().Add(-time.Hour)
	job.UpdatedAt = job.CreatedAt
	claimed, err := repo.ClaimJob(context.Background(), job)
	require.NoError(t, err)
	require.True(t, claimed)

	s.Sweep(context.Background())

	sched.mu.Lock()
	defer sched.mu.Unlock()
	require.Len(t, sched.enqueued, 1)
	assert.Equal(t, "data_drift:p-1", sched.enqueued[0].DedupeKey)
}

func TestSweepLeavesFreshAndTerminalJobsAlone(t *testing.T) {
	repo := repository.NewMemoryRepository()
	sched := &fakeScheduler{repo: repo}
	s := New(repo, sched, time.Minute, nil)

	seedPrediction(t, repo, "p-1")
	seedPrediction(t, repo, "p-2")

	// Fresh claim: recently updated, not stale yet.
	fresh := models.NewAnalysisJob(models.JobDataDrift, "p-1")
	claimed, err := repo.ClaimJob(context.Background(), fresh)
	require.NoError(t, err)
	require.True(t, claimed)

	// Terminal job: old but completed.
	done := models.NewAnalysisJob(models.JobDataDrift, "p-2")
	done.CreatedAt = time.Now().UTC().Add(-time.Hour)
	done.UpdatedAt = done.CreatedAt
	claimed, err = repo.ClaimJob(context.Background(), done)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, repo.SetJobStatus(context.Background(), done.DedupeKey, models.JobStatusCompleted, 1, ""))

	s.Sweep(context.Background())

	sched.mu.Lock()
	defer sched.mu.Unlock()
	assert.Empty(t, sched.enqueued)
}

func TestStartRunsImmediateSweep(t *testing.T) {
	repo := repository.NewMemoryRepository()
	sched := &fakeScheduler{repo: repo}
	s := New(repo, sched, time.Hour, nil)

	seedPrediction(t, repo, "p-1")

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sched.scheduledKeys()) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("startup sweep never ran")
}
