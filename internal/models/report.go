package models

import "time"

// ReportKind identifies which analysis produced a report. Kinds mirror the
// job kinds so a report can always be traced back to its trigger.
type ReportKind string

const (
	ReportDataDrift         ReportKind = "data_drift"
	ReportModelDrift        ReportKind = "model_drift"
	ReportMetricCalculation ReportKind = "metric_calculation"
)

// Valid reports whether the kind is one of the known report kinds.
func (k ReportKind) Valid() bool {
	switch k {
	case ReportDataDrift, ReportModelDrift, ReportMetricCalculation:
		return true
	}
	return false
}

// ReportKindForJob maps a job kind to the report kind it produces.
func ReportKindForJob(kind JobKind) ReportKind {
	return ReportKind(kind)
}

// Report is an analysis result produced by a collaborator. The body is
// opaque to the pipeline; the envelope stamps the generation time and the
// identifiers of the inputs that produced it. Reports are append-only.
type Report struct {
	ID           string                 `json:"id"`
	Kind         ReportKind             `json:"kind"`
	PredictionID string                 `json:"prediction_id"`
	ModelVersion string                 `json:"model_version,omitempty"`
	GeneratedAt  time.Time              `json:"generated_at"`
	Body         map[string]interface{} `json:"body"`
}
