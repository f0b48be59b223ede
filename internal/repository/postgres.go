package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// PostgresRepository implements Store using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// Ping verifies database connectivity, for readiness checks.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) CreatePrediction(ctx context.Context, record *models.PredictionRecord) error {
	features, err := json.Marshal(record.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}
	metadata, err := marshalMetadata(record.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO predictions (id, model_version, prediction_value, features, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		record.ID, record.ModelVersion, record.PredictionValue,
		features, record.CreatedAt, metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to create prediction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAlreadyExists
	}

	return nil
}

func (r *PostgresRepository) GetPrediction(ctx context.Context, id string) (*models.PredictionRecord, error) {
	query := `
		SELECT id, model_version, prediction_value, features, created_at, metadata
		FROM predictions
		WHERE id = $1
	`

	record := &models.PredictionRecord{}
	var features, metadata []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&record.ID, &record.ModelVersion, &record.PredictionValue,
		&features, &record.CreatedAt, &metadata,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	if err := json.Unmarshal(features, &record.Features); err != nil {
		return nil, fmt.Errorf("failed to unmarshal features: %w", err)
	}
	if err := unmarshalMetadata(metadata, &record.Metadata); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *PostgresRepository) CreateFeedback(ctx context.Context, record *models.FeedbackRecord) error {
	metadata, err := marshalMetadata(record.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO feedback (prediction_id, actual_value, received_at, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (prediction_id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		record.PredictionID, record.ActualValue, record.ReceivedAt, metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAlreadyExists
	}

	return nil
}

func (r *PostgresRepository) GetFeedback(ctx context.Context, predictionID string) (*models.FeedbackRecord, error) {
	query := `
		SELECT prediction_id, actual_value, received_at, metadata
		FROM feedback
		WHERE prediction_id = $1
	`

	record := &models.FeedbackRecord{}
	var metadata []byte
	err := r.pool.QueryRow(ctx, query, predictionID).Scan(
		&record.PredictionID, &record.ActualValue, &record.ReceivedAt, &metadata,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}

	if err := unmarshalMetadata(metadata, &record.Metadata); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *PostgresRepository) AppendReport(ctx context.Context, report *models.Report) error {
	body, err := json.Marshal(report.Body)
	if err != nil {
		return fmt.Errorf("failed to marshal report body: %w", err)
	}

	query := `
		INSERT INTO reports (id, kind, prediction_id, model_version, generated_at, body)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.pool.Exec(ctx, query,
		report.ID, string(report.Kind), report.PredictionID,
		report.ModelVersion, report.GeneratedAt, body,
	)
	if err != nil {
		return fmt.Errorf("failed to append report: %w", err)
	}

	return nil
}

func (r *PostgresRepository) LatestReport(ctx context.Context, kind models.ReportKind) (*models.Report, error) {
	// Served by the (kind, generated_at DESC) index; no history scan.
	query := `
		SELECT id, kind, prediction_id, model_version, generated_at, body
		FROM reports
		WHERE kind = $1
		ORDER BY generated_at DESC, id DESC
		LIMIT 1
	`

	report := &models.Report{}
	var body []byte
	err := r.pool.QueryRow(ctx, query, string(kind)).Scan(
		&report.ID, &report.Kind, &report.PredictionID,
		&report.ModelVersion, &report.GeneratedAt, &body,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}

	if err := json.Unmarshal(body, &report.Body); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report body: %w", err)
	}

	return report, nil
}

func (r *PostgresRepository) ClaimJob(ctx context.Context, job *models.AnalysisJob) (bool, error) {
	query := `
		INSERT INTO analysis_jobs (dedupe_key, kind, prediction_id, status, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dedupe_key) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		job.DedupeKey, string(job.Kind), job.PredictionID, string(job.Status),
		job.Attempts, job.LastError, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) GetJob(ctx context.Context, dedupeKey string) (*models.AnalysisJob, error) {
	query := `
		SELECT dedupe_key, kind, prediction_id, status, attempts, last_error, created_at, updated_at
		FROM analysis_jobs
		WHERE dedupe_key = $1
	`

	job := &models.AnalysisJob{}
	err := r.pool.QueryRow(ctx, query, dedupeKey).Scan(
		&job.DedupeKey, &job.Kind, &job.PredictionID, &job.Status,
		&job.Attempts, &job.LastError, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

func (r *PostgresRepository) SetJobStatus(ctx context.Context, dedupeKey string, status models.JobStatus, attempts int, lastError string) error {
	query := `
		UPDATE analysis_jobs
		SET status = $2, attempts = $3, last_error = $4, updated_at = $5
		WHERE dedupe_key = $1
	`

	tag, err := r.pool.Exec(ctx, query, dedupeKey, string(status), attempts, lastError, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) StaleJobs(ctx context.Context, olderThan time.Time, limit int) ([]*models.AnalysisJob, error) {
	query := `
		SELECT dedupe_key, kind, prediction_id, status, attempts, last_error, created_at, updated_at
		FROM analysis_jobs
		WHERE status IN ('pending', 'running') AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.AnalysisJob{}
	for rows.Next() {
		job := &models.AnalysisJob{}
		if err := rows.Scan(
			&job.DedupeKey, &job.Kind, &job.PredictionID, &job.Status,
			&job.Attempts, &job.LastError, &job.CreatedAt, &job.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

func (r *PostgresRepository) PredictionIDsWithoutJob(ctx context.Context, kind models.JobKind, limit int) ([]string, error) {
	query := `
		SELECT p.id
		FROM predictions p
		LEFT JOIN analysis_jobs j ON j.dedupe_key = $1 || ':' || p.id
		WHERE j.dedupe_key IS NULL
		ORDER BY p.created_at ASC
		LIMIT $2
	`
	return r.queryIDs(ctx, query, string(kind), limit)
}

func (r *PostgresRepository) FeedbackIDsWithoutJob(ctx context.Context, kind models.JobKind, limit int) ([]string, error) {
	query := `
		SELECT f.prediction_id
		FROM feedback f
		LEFT JOIN analysis_jobs j ON j.dedupe_key = $1 || ':' || f.prediction_id
		WHERE j.dedupe_key IS NULL
		ORDER BY f.received_at ASC
		LIMIT $2
	`
	return r.queryIDs(ctx, query, string(kind), limit)
}

func (r *PostgresRepository) queryIDs(ctx context.Context, query string, kind string, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

func marshalMetadata(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		m = map[string]interface{}{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return data, nil
}

func unmarshalMetadata(data []byte, dst *map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return nil
}
