package metrics

import (
	"time"
)

// Cycle outcomes.
const (
	OutcomeSuccess        = "success"
	OutcomeAnalysisFailed = "analysis_failed"
	OutcomeAborted        = "aborted"
)

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordCycle records a finished cycle.
func RecordCycle(outcome string, duration time.Duration) {
	CyclesTotal.WithLabelValues(outcome).Inc()
	CycleDuration.Observe(duration.Seconds())
	if outcome == OutcomeSuccess {
		LastCycleSuccess.SetToCurrentTime()
	}
}

// RecordPhase records the duration of one cycle phase.
func RecordPhase(phase string, duration time.Duration, err error) {
	PhaseDuration.WithLabelValues(phase, status(err)).Observe(duration.Seconds())
}

// RecordAnalysisResult counts one analysis call. result is a status class
// such as "2xx" or a failure kind such as "timeout".
func RecordAnalysisResult(result string) {
	AnalysisRequestsTotal.WithLabelValues(result).Inc()
}

// RecordCredentialResolution counts a resolved credential by source, or
// "failed".
func RecordCredentialResolution(source string) {
	CredentialResolutionsTotal.WithLabelValues(source).Inc()
}

// RecordHeadlines records the outcome of a headline fetch.
func RecordHeadlines(count int, err error) {
	if err != nil {
		HeadlineFetchErrors.Inc()
		return
	}
	HeadlinesFetchedTotal.Add(float64(count))
}

// RecordPublish counts one publish call.
func RecordPublish(err error) {
	DocumentsPublishedTotal.WithLabelValues(status(err)).Inc()
}

// RecordDocumentsDeleted adds n documents deleted by quota recovery.
func RecordDocumentsDeleted(n int) {
	DocumentsDeletedTotal.Add(float64(n))
}

// RecordQuotaRecovery counts a quota recovery by result.
func RecordQuotaRecovery(result string) {
	QuotaRecoveriesTotal.WithLabelValues(result).Inc()
}

// RecordPostPublish counts a post-publish step. Skipped steps are counted
// with status "skipped".
func RecordPostPublish(mode string, skipped bool, err error) {
	s := status(err)
	if skipped {
		s = "skipped"
	}
	PostPublishTotal.WithLabelValues(mode, s).Inc()
}
