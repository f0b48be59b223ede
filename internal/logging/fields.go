package logging

import "log/slog"

// Common field names for consistent logging across the pipeline.
const (
	FieldService      = "service"
	FieldPredictionID = "prediction_id"
	FieldModelVersion = "model_version"
	FieldJobKind      = "job_kind"
	FieldDedupeKey    = "dedupe_key"
	FieldReportKind   = "report_kind"
	FieldAttempt      = "attempt"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// PredictionID returns a slog attribute for a prediction id.
func PredictionID(id string) slog.Attr {
	return slog.String(FieldPredictionID, id)
}

// ModelVersion returns a slog attribute for a model version.
func ModelVersion(v string) slog.Attr {
	return slog.String(FieldModelVersion, v)
}

// JobKind returns a slog attribute for an analysis job kind.
func JobKind(kind string) slog.Attr {
	return slog.String(FieldJobKind, kind)
}

// DedupeKey returns a slog attribute for a job dedupe key.
func DedupeKey(key string) slog.Attr {
	return slog.String(FieldDedupeKey, key)
}

// ReportKind returns a slog attribute for a report kind.
func ReportKind(kind string) slog.Attr {
	return slog.String(FieldReportKind, kind)
}

// Attempt returns a slog attribute for a job attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(FieldAttempt, n)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
