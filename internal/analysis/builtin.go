package analysis

import (
	"context"
	"encoding/json"
	"math"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// RangeDriftDetector flags numeric features that fall outside their
// configured expected ranges. Features without a configured range pass.
type RangeDriftDetector struct {
	thresholds *Thresholds
}

// NewRangeDriftDetector creates a range-based data drift detector.
func NewRangeDriftDetector(t *Thresholds) *RangeDriftDetector {
	return &RangeDriftDetector{thresholds: t}
}

func (d *RangeDriftDetector) Check(ctx context.Context, features map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outOfRange := []string{}
	checked := 0
	for name, bounds := range d.thresholds.DataDrift.FeatureRanges {
		raw, ok := features[name]
		if !ok {
			continue
		}
		value, ok := asFloat(raw)
		if !ok {
			continue
		}
		checked++
		if value < bounds.Min || value > bounds.Max {
			outOfRange = append(outOfRange, name)
		}
	}

	return map[string]interface{}{
		"method":                "feature_range",
		"features_checked":      checked,
		"features_out_of_range": outOfRange,
		"drift_detected":        len(outOfRange) > 0,
	}, nil
}

// ErrorDriftDetector flags correlated pairs whose absolute prediction
// error exceeds the configured threshold.
type ErrorDriftDetector struct {
	thresholds *Thresholds
}

// NewErrorDriftDetector creates an error-threshold model drift detector.
func NewErrorDriftDetector(t *Thresholds) *ErrorDriftDetector {
	return &ErrorDriftDetector{thresholds: t}
}

func (d *ErrorDriftDetector) Check(ctx context.Context, pair *models.CorrelatedPair) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	absError := math.Abs(pair.Prediction.PredictionValue - pair.Feedback.ActualValue)
	threshold := d.thresholds.ModelDrift.ErrorThreshold

	return map[string]interface{}{
		"method":         "error_threshold",
		"absolute_error": absError,
		"threshold":      threshold,
		"drift_detected": absError > threshold,
	}, nil
}

// BasicMetricCalculator computes simple per-pair performance metrics.
type BasicMetricCalculator struct {
	thresholds *Thresholds
}

// NewBasicMetricCalculator creates the built-in metric calculator.
func NewBasicMetricCalculator(t *Thresholds) *BasicMetricCalculator {
	return &BasicMetricCalculator{thresholds: t}
}

func (c *BasicMetricCalculator) Compute(ctx context.Context, pair *models.CorrelatedPair) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	absError := math.Abs(pair.Prediction.PredictionValue - pair.Feedback.ActualValue)

	return map[string]interface{}{
		"absolute_error": absError,
		"squared_error":  absError * absError,
		"correct":        absError <= c.thresholds.Metrics.CorrectTolerance,
		"predicted":      pair.Prediction.PredictionValue,
		"actual":         pair.Feedback.ActualValue,
	}, nil
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
