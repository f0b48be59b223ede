package repository

import (
	"context"
	"sync"
	"time"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// MemoryRepository is an in-memory Store for development and tests.
// No durability; a restart loses everything.
type MemoryRepository struct {
	mu          sync.RWMutex
	predictions map[string]*models.PredictionRecord
	feedback    map[string]*models.FeedbackRecord
	jobs        map[string]*models.AnalysisJob
	reports     []*models.Report
	// latest holds a per-kind tail pointer so LatestReport never scans.
	latest map[models.ReportKind]*models.Report
}

// NewMemoryRepository creates an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		predictions: make(map[string]*models.PredictionRecord),
		feedback:    make(map[string]*models.FeedbackRecord),
		jobs:        make(map[string]*models.AnalysisJob),
		latest:      make(map[models.ReportKind]*models.Report),
	}
}

func (r *MemoryRepository) CreatePrediction(ctx context.Context, record *models.PredictionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.predictions[record.ID]; exists {
		return models.ErrAlreadyExists
	}
	clone := *record
	r.predictions[record.ID] = &clone
	return nil
}

func (r *MemoryRepository) GetPrediction(ctx context.Context, id string) (*models.PredictionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.predictions[id]
	if !exists {
		return nil, models.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (r *MemoryRepository) CreateFeedback(ctx context.Context, record *models.FeedbackRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.feedback[record.PredictionID]; exists {
		return models.ErrAlreadyExists
	}
	clone := *record
	r.feedback[record.PredictionID] = &clone
	return nil
}

func (r *MemoryRepository) GetFeedback(ctx context.Context, predictionID string) (*models.FeedbackRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.feedback[predictionID]
	if !exists {
		return nil, models.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (r *MemoryRepository) AppendReport(ctx context.Context, report *models.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports = append(r.reports, report)
	if cur, ok := r.latest[report.Kind]; !ok || !report.GeneratedAt.Before(cur.GeneratedAt) {
		r.latest[report.Kind] = report
	}
	return nil
}

func (r *MemoryRepository) LatestReport(ctx context.Context, kind models.ReportKind) (*models.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.latest[kind]
	if !ok {
		return nil, models.ErrNotFound
	}
	return report, nil
}

// ReportCount returns the total number of appended reports. Test helper.
func (r *MemoryRepository) ReportCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.reports)
}

func (r *MemoryRepository) ClaimJob(ctx context.Context, job *models.AnalysisJob) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.DedupeKey]; exists {
		return false, nil
	}
	clone := *job
	r.jobs[job.DedupeKey] = &clone
	return true, nil
}

func (r *MemoryRepository) GetJob(ctx context.Context, dedupeKey string) (*models.AnalysisJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, exists := r.jobs[dedupeKey]
	if !exists {
		return nil, models.ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (r *MemoryRepository) SetJobStatus(ctx context.Context, dedupeKey string, status models.JobStatus, attempts int, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[dedupeKey]
	if !exists {
		return models.ErrNotFound
	}
	job.Status = status
	job.Attempts = attempts
	job.LastError = lastError
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) StaleJobs(ctx context.Context, olderThan time.Time, limit int) ([]*models.AnalysisJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []*models.AnalysisJob
	for _, job := range r.jobs {
		if len(stale) >= limit {
			break
		}
		if job.Status != models.JobStatusPending && job.Status != models.JobStatusRunning {
			continue
		}
		if job.UpdatedAt.Before(olderThan) {
			clone := *job
			stale = append(stale, &clone)
		}
	}
	return stale, nil
}

func (r *MemoryRepository) PredictionIDsWithoutJob(ctx context.Context, kind models.JobKind, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id := range r.predictions {
		if len(ids) >= limit {
			break
		}
		if _, exists := r.jobs[models.DedupeKey(kind, id)]; !exists {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *MemoryRepository) FeedbackIDsWithoutJob(ctx context.Context, kind models.JobKind, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id := range r.feedback {
		if len(ids) >= limit {
			break
		}
		if _, exists := r.jobs[models.DedupeKey(kind, id)]; !exists {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
