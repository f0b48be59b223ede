package models

import "time"

// PredictionRecord is a single model prediction captured at serving time.
// Records are immutable once stored; retention is an external policy.
type PredictionRecord struct {
	ID              string                 `json:"id"`
	ModelVersion    string                 `json:"model_version"`
	PredictionValue float64                `json:"prediction_value"`
	Features        map[string]interface{} `json:"features"`
	CreatedAt       time.Time              `json:"created_at"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// FeedbackRecord is the ground-truth outcome for a prediction. At most one
// feedback record exists per prediction id.
type FeedbackRecord struct {
	PredictionID string                 `json:"prediction_id"`
	ActualValue  float64                `json:"actual_value"`
	ReceivedAt   time.Time              `json:"received_at"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// CorrelatedPair joins a feedback record to its originating prediction.
// It is derived, never persisted; it exists to be handed to the dispatcher.
type CorrelatedPair struct {
	Prediction *PredictionRecord `json:"prediction"`
	Feedback   *FeedbackRecord   `json:"feedback"`
}
