package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kairos"

// Cycle metrics
var (
	// CyclesTotal counts finished cycles by outcome
	// (success, analysis_failed, aborted).
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of cycles by outcome",
		},
		[]string{"outcome"},
	)

	// CycleDuration measures complete cycle duration in seconds.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete cycle in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
	)

	// PhaseDuration measures each cycle phase by status.
	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of a cycle phase in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"phase", "status"},
	)

	// LastCycleSuccess is the Unix timestamp of the last successful cycle.
	LastCycleSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_success_timestamp",
			Help:      "Unix timestamp of the last cycle that reached DONE without failure",
		},
	)
)

// Dependency metrics
var (
	// AnalysisRequestsTotal counts analysis calls by result
	// (2xx, 4xx, 5xx, timeout, error, malformed).
	AnalysisRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_requests_total",
			Help:      "Total number of analysis service requests by result",
		},
		[]string{"result"},
	)

	// CredentialResolutionsTotal counts credential resolutions by source.
	CredentialResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_resolutions_total",
			Help:      "Total number of credential resolutions by source",
		},
		[]string{"source"},
	)

	// HeadlinesFetchedTotal counts headlines handed to the news prompt.
	HeadlinesFetchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "headlines_fetched_total",
			Help:      "Total number of feed headlines used as news context",
		},
	)

	// HeadlineFetchErrors counts failed headline fetches.
	HeadlineFetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "headline_fetch_errors_total",
			Help:      "Total number of failed headline feed fetches",
		},
	)
)

// Document metrics
var (
	// DocumentsPublishedTotal counts publish calls by status (success, failure).
	DocumentsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_published_total",
			Help:      "Total number of publish calls by status",
		},
		[]string{"status"},
	)

	// DocumentsDeletedTotal counts documents removed by quota recovery.
	DocumentsDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_deleted_total",
			Help:      "Total number of documents deleted by quota recovery",
		},
	)

	// QuotaRecoveriesTotal counts quota recoveries by result
	// (recovered, failed, disabled).
	QuotaRecoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_recoveries_total",
			Help:      "Total number of storage quota recoveries by result",
		},
		[]string{"result"},
	)

	// PostPublishTotal counts share/transfer/copy steps by mode and status.
	PostPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_publish_total",
			Help:      "Total number of post-publish steps by mode and status",
		},
		[]string{"mode", "status"},
	)
)
