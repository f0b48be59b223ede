// Package analysis defines the collaborator contracts the dispatcher
// invokes, plus built-in threshold-based implementations. The statistical
// methodology is pluggable: any implementation of these interfaces can be
// wired in at construction, and the pipeline treats every call as fallible.
package analysis

import (
	"context"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// DataDriftDetector checks the feature vector of a single ingested
// prediction against the training distribution. Invoked once per
// ingested prediction.
type DataDriftDetector interface {
	Check(ctx context.Context, features map[string]interface{}) (map[string]interface{}, error)
}

// ModelDriftDetector compares a prediction with its ground-truth outcome.
// Invoked once per correlated pair.
type ModelDriftDetector interface {
	Check(ctx context.Context, pair *models.CorrelatedPair) (map[string]interface{}, error)
}

// MetricCalculator computes performance metrics for a correlated pair.
// Invoked once per correlated pair.
type MetricCalculator interface {
	Compute(ctx context.Context, pair *models.CorrelatedPair) (map[string]interface{}, error)
}

// Suite bundles the three collaborators handed to the dispatcher.
type Suite struct {
	DataDrift  DataDriftDetector
	ModelDrift ModelDriftDetector
	Metrics    MetricCalculator
}

// NewBuiltinSuite returns a suite backed by the built-in threshold
// implementations configured by t.
func NewBuiltinSuite(t *Thresholds) *Suite {
	return &Suite{
		DataDrift:  NewRangeDriftDetector(t),
		ModelDrift: NewErrorDriftDetector(t),
		Metrics:    NewBasicMetricCalculator(t),
	}
}
