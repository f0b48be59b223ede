// Package correlator matches arriving ground-truth feedback to the
// prediction it describes.
package correlator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/driftwatch-systems/driftwatch/internal/models"
	"github.com/driftwatch-systems/driftwatch/internal/repository"
)

// Correlator joins feedback records to stored predictions. Feedback is
// write-once per prediction: the first submission wins, later ones are
// rejected so downstream analyses always see a stable pair.
type Correlator struct {
	predictions repository.PredictionStore
	feedback    repository.FeedbackStore
}

// New creates a correlator over the given stores.
func New(predictions repository.PredictionStore, feedback repository.FeedbackStore) *Correlator {
	return &Correlator{predictions: predictions, feedback: feedback}
}

// Submit records feedback for a stored prediction and returns the
// correlated pair. Feedback for an id that was never ingested is
// rejected with ErrUnknownPrediction; a second submission for the same
// prediction is rejected with ErrDuplicateFeedback.
func (c *Correlator) Submit(ctx context.Context, record *models.FeedbackRecord) (*models.CorrelatedPair, error) {
	if record.PredictionID == "" {
		return nil, fmt.Errorf("%w: empty prediction id", models.ErrUnknownPrediction)
	}

	prediction, err := c.predictions.GetPrediction(ctx, record.PredictionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownPrediction, record.PredictionID)
		}
		return nil, fmt.Errorf("failed to look up prediction: %w", err)
	}

	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = time.Now().UTC()
	}

	if err := c.feedback.CreateFeedback(ctx, record); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", models.ErrDuplicateFeedback, record.PredictionID)
		}
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}

	return &models.CorrelatedPair{Prediction: prediction, Feedback: record}, nil
}
