package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch-systems/driftwatch/internal/analysis"
	"github.com/driftwatch-systems/driftwatch/internal/dispatch"
	"github.com/driftwatch-systems/driftwatch/internal/logging"
	"github.com/driftwatch-systems/driftwatch/internal/models"
	"github.com/driftwatch-systems/driftwatch/internal/reconcile"
	"github.com/driftwatch-systems/driftwatch/internal/repository"
)

func newTestMonitor(t *testing.T, suite *analysis.Suite) (*Monitor, *repository.MemoryRepository, *dispatch.Dispatcher) {
	t.Helper()
	if suite == nil {
		suite = analysis.NewBuiltinSuite(analysis.DefaultThresholds())
	}
	repo := repository.NewMemoryRepository()
	cfg := dispatch.DefaultConfig()
	cfg.Workers = 2
	cfg.MaxAttempts = 2
	cfg.BaseBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	d := dispatch.New(cfg, dispatch.Stores{Predictions: repo, Feedback: repo, Reports: repo, Jobs: repo},
		&dispatch.NoOpRegistry{}, suite, nil, logging.Default())
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)
	return New(repo, d, 5*time.Second, logging.Default()), repo, d
}

func ingest(t *testing.T, m *Monitor, version string) string {
	t.Helper()
	id, err := m.IngestPrediction(context.Background(), &models.PredictionRecord{
		ModelVersion:    version,
		PredictionValue: 0.4,
		Features:        map[string]interface{}{"age": 30.0},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func TestIngestPredictionGeneratesID(t *testing.T) {
	m, repo, _ := newTestMonitor(t, nil)

	id := ingest(t, m, "fraud-v2")
	assert.True(t, strings.HasPrefix(id, "fraud-v2-"))

	stored, err := repo.GetPrediction(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "fraud-v2", stored.ModelVersion)
}

func TestIngestPredictionRequiresModelVersion(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)

	_, err := m.IngestPrediction(context.Background(), &models.PredictionRecord{})
	assert.Error(t, err)
}

func TestIngestPredictionDuplicateID(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)

	_, err := m.IngestPrediction(context.Background(), &models.PredictionRecord{
		ID:           "fixed-id",
		ModelVersion: "v1",
	})
	require.NoError(t, err)

	_, err = m.IngestPrediction(context.Background(), &models.PredictionRecord{
		ID:           "fixed-id",
		ModelVersion: "v1",
	})
	assert.ErrorIs(t, err, models.ErrDuplicateIdentity)
}

func TestConcurrentIngestUniqueIDs(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := m.IngestPrediction(context.Background(), &models.PredictionRecord{
				ModelVersion: "v1",
			})
			assert.NoError(t, err)
			mu.Lock()
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
}

func TestIngestFeedbackErrors(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)
	id := ingest(t, m, "v1")

	err := m.IngestFeedback(context.Background(), &models.FeedbackRecord{
		PredictionID: "no-such-prediction",
		ActualValue:  1.0,
	})
	assert.ErrorIs(t, err, models.ErrUnknownPrediction)

	require.NoError(t, m.IngestFeedback(context.Background(), &models.FeedbackRecord{
		PredictionID: id,
		ActualValue:  0.5,
	}))
	err = m.IngestFeedback(context.Background(), &models.FeedbackRecord{
		PredictionID: id,
		ActualValue:  0.7,
	})
	assert.ErrorIs(t, err, models.ErrDuplicateFeedback)
}

func waitForReport(t *testing.T, m *Monitor, kind models.ReportKind) *models.Report {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		report, err := m.LatestReport(context.Background(), kind)
		if err == nil {
			return report
		}
		require.ErrorIs(t, err, models.ErrNotFound)
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no %s report appeared", kind)
	return nil
}

func TestEndToEndPipeline(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)

	id := ingest(t, m, "v1")
	require.NoError(t, m.IngestFeedback(context.Background(), &models.FeedbackRecord{
		PredictionID: id,
		ActualValue:  0.5,
	}))

	metric := waitForReport(t, m, models.ReportMetricCalculation)
	assert.Equal(t, id, metric.PredictionID)
	assert.Equal(t, "v1", metric.ModelVersion)
	assert.Contains(t, metric.Body, "absolute_error")

	drift := waitForReport(t, m, models.ReportDataDrift)
	assert.Equal(t, id, drift.PredictionID)
}

func TestLatestReportUnknownKind(t *testing.T) {
	m, _, _ := newTestMonitor(t, nil)

	_, err := m.LatestReport(context.Background(), models.ReportKind("bogus"))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

type failingMetrics struct{}

func (failingMetrics) Compute(ctx context.Context, pair *models.CorrelatedPair) (map[string]interface{}, error) {
	return nil, fmt.Errorf("metrics backend unavailable")
}

func TestAnalysisFailureNeverFailsIngestion(t *testing.T) {
	suite := analysis.NewBuiltinSuite(analysis.DefaultThresholds())
	suite.Metrics = failingMetrics{}
	m, repo, _ := newTestMonitor(t, suite)

	id := ingest(t, m, "v1")
	// Feedback succeeds even though the metric job will exhaust.
	require.NoError(t, m.IngestFeedback(context.Background(), &models.FeedbackRecord{
		PredictionID: id,
		ActualValue:  0.5,
	}))

	key := models.DedupeKey(models.JobMetricCalculation, id)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.GetJob(context.Background(), key)
		if err == nil && job.Status == models.JobStatusFailed {
			// The sibling model-drift job is unaffected.
			waitForReport(t, m, models.ReportModelDrift)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("metric job never reached failed state")
}

type slowStore struct {
	repository.Store
	delay time.Duration
}

func (s *slowStore) CreatePrediction(ctx context.Context, record *models.PredictionRecord) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.delay):
	}
	return s.Store.CreatePrediction(ctx, record)
}

func TestStorageTimeoutSurfaces(t *testing.T) {
	repo := repository.NewMemoryRepository()
	slow := &slowStore{Store: repo, delay: 500 * time.Millisecond}
	d := dispatch.New(dispatch.DefaultConfig(),
		dispatch.Stores{Predictions: repo, Feedback: repo, Reports: repo, Jobs: repo},
		&dispatch.NoOpRegistry{}, analysis.NewBuiltinSuite(analysis.DefaultThresholds()), nil, logging.Default())
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)
	m := New(slow, d, 20*time.Millisecond, logging.Default())

	_, err := m.IngestPrediction(context.Background(), &models.PredictionRecord{ModelVersion: "v1"})
	assert.ErrorIs(t, err, models.ErrStorageTimeout)
}

// Simulates a crash between feedback persistence and job scheduling: the
// feedback row exists but no analysis job was ever claimed. One sweep
// repairs it and the pipeline completes.
func TestSweepRecoversUnscheduledFeedback(t *testing.T) {
	m, repo, d := newTestMonitor(t, nil)

	id := ingest(t, m, "v1")
	require.NoError(t, repo.CreateFeedback(context.Background(), &models.FeedbackRecord{
		PredictionID: id,
		ActualValue:  0.5,
		ReceivedAt:   time.Now().UTC(),
	}))

	sweeper := reconcile.New(repo, d, time.Minute, logging.Default())
	sweeper.Sweep(context.Background())

	metric := waitForReport(t, m, models.ReportMetricCalculation)
	assert.Equal(t, id, metric.PredictionID)
}
