package analysis

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FeatureRange bounds the expected values of a numeric feature.
type FeatureRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Thresholds configures the built-in detectors. Loaded from the monitor
// thresholds YAML file; zero values fall back to defaults.
type Thresholds struct {
	DataDrift struct {
		// FeatureRanges maps feature names to their expected ranges.
		// Features absent from the map are not range-checked.
		FeatureRanges map[string]FeatureRange `yaml:"feature_ranges"`
	} `yaml:"data_drift"`

	ModelDrift struct {
		// ErrorThreshold is the absolute prediction error above which a
		// pair counts as drifting.
		ErrorThreshold float64 `yaml:"error_threshold"`
	} `yaml:"model_drift"`

	Metrics struct {
		// CorrectTolerance is the absolute error within which a
		// prediction counts as correct.
		CorrectTolerance float64 `yaml:"correct_tolerance"`
	} `yaml:"metrics"`
}

// DefaultThresholds returns the thresholds used when no file is configured.
func DefaultThresholds() *Thresholds {
	t := &Thresholds{}
	t.ModelDrift.ErrorThreshold = 0.5
	t.Metrics.CorrectTolerance = 0.5
	return t
}

// LoadThresholds reads a thresholds YAML file. Missing optional fields
// keep their defaults.
func LoadThresholds(path string) (*Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	t := DefaultThresholds()
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse thresholds file: %w", err)
	}

	if t.ModelDrift.ErrorThreshold <= 0 {
		t.ModelDrift.ErrorThreshold = 0.5
	}
	if t.Metrics.CorrectTolerance <= 0 {
		t.Metrics.CorrectTolerance = 0.5
	}

	return t, nil
}
