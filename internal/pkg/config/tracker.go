package config

import "log/slog"

// Tracker collects the fallbacks of a group of loads so that one component
// logs and reports them consistently. A nil metrics disables reporting.
type Tracker struct {
	logger  *slog.Logger
	metrics *ConfigMetrics
	applied []string
}

// NewTracker returns a Tracker logging to logger (slog.Default when nil).
func NewTracker(logger *slog.Logger, metrics *ConfigMetrics) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{logger: logger, metrics: metrics}
}

// Track unwraps r, logging and counting a fallback against field.
func Track[T any](t *Tracker, field string, r LoadResult[T]) T {
	if r.FallbackApplied {
		t.applied = append(t.applied, field)
		if t.metrics != nil {
			t.metrics.RecordValidationError(field)
			t.metrics.RecordFallback(field)
		}
		for _, warning := range r.Warnings {
			t.logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}
	return r.Value
}

// Fallbacks returns the fields that fell back to their default.
func (t *Tracker) Fallbacks() []string {
	return t.applied
}

// Finish updates the load timestamp and the fallback-active gauge.
func (t *Tracker) Finish() {
	if t.metrics == nil {
		return
	}
	t.metrics.SetFallbackActive(len(t.applied) > 0)
	t.metrics.RecordLoadTimestamp()
}
