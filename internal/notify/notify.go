// Package notify publishes operator-facing pipeline events to NATS:
// jobs that hit their retry ceiling and drift detections. Publishing is
// best-effort; a broken broker never blocks the pipeline.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/driftwatch-systems/driftwatch/internal/logging"
	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// NATS subjects for operator notifications.
const (
	SubjectJobsFailed    = "monitor.jobs.failed"
	SubjectDriftDetected = "monitor.drift.detected"
)

// JobFailedEvent is published when an analysis job exhausts its retries.
type JobFailedEvent struct {
	DedupeKey    string    `json:"dedupe_key"`
	Kind         string    `json:"kind"`
	PredictionID string    `json:"prediction_id"`
	Attempts     int       `json:"attempts"`
	LastError    string    `json:"last_error"`
	FailedAt     time.Time `json:"failed_at"`
}

// DriftEvent is published when an analysis report flags drift.
type DriftEvent struct {
	ReportID     string    `json:"report_id"`
	Kind         string    `json:"kind"`
	PredictionID string    `json:"prediction_id"`
	ModelVersion string    `json:"model_version,omitempty"`
	DetectedAt   time.Time `json:"detected_at"`
}

// Publisher sends pipeline events to NATS. It implements the
// dispatcher's Notifier contract.
type Publisher struct {
	conn   *nats.Conn
	logger *logging.Logger
}

// NewPublisher connects to the NATS server at url.
func NewPublisher(url string, logger *logging.Logger) (*Publisher, error) {
	if logger == nil {
		logger = logging.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("driftwatch-monitor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", logging.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{conn: conn, logger: logger}, nil
}

// JobExhausted publishes a terminal job failure.
func (p *Publisher) JobExhausted(ctx context.Context, job *models.AnalysisJob, lastErr error) {
	event := JobFailedEvent{
		DedupeKey:    job.DedupeKey,
		Kind:         string(job.Kind),
		PredictionID: job.PredictionID,
		Attempts:     job.Attempts,
		FailedAt:     time.Now().UTC(),
	}
	if lastErr != nil {
		event.LastError = lastErr.Error()
	}
	p.publish(ctx, SubjectJobsFailed, event)
}

// DriftDetected publishes a drift alert for a generated report.
func (p *Publisher) DriftDetected(ctx context.Context, report *models.Report) {
	p.publish(ctx, SubjectDriftDetected, DriftEvent{
		ReportID:     report.ID,
		Kind:         string(report.Kind),
		PredictionID: report.PredictionID,
		ModelVersion: report.ModelVersion,
		DetectedAt:   time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, subject string, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal notification", logging.Error(err))
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish notification",
			logging.Error(err))
	}
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
