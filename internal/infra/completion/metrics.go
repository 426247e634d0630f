package completion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder records completion calls. Tests swap in a fake.
type MetricsRecorder interface {
	RecordCompletion(provider string, duration time.Duration, outputLength int, err error)
}

// PrometheusMetrics implements MetricsRecorder with Prometheus collectors.
type PrometheusMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	length   *prometheus.HistogramVec
}

var (
	prometheusMetricsInstance *PrometheusMetrics
	prometheusMetricsOnce     sync.Once
)

// getOrCreateCounterVec returns the already registered collector when one
// with the same descriptor exists.
func getOrCreateCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return c
}

func getOrCreateHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	if err := prometheus.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
		panic(err)
	}
	return h
}

// NewPrometheusMetrics returns the process-wide recorder.
func NewPrometheusMetrics() *PrometheusMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetricsInstance = &PrometheusMetrics{
			requests: getOrCreateCounterVec(prometheus.CounterOpts{
				Namespace: "kairos",
				Name:      "completions_total",
				Help:      "Total number of completion calls by provider and status",
			}, []string{"provider", "status"}),
			duration: getOrCreateHistogramVec(prometheus.HistogramOpts{
				Namespace: "kairos",
				Name:      "completion_duration_seconds",
				Help:      "Time taken by one completion call",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			}, []string{"provider"}),
			length: getOrCreateHistogramVec(prometheus.HistogramOpts{
				Namespace: "kairos",
				Name:      "completion_output_characters",
				Help:      "Length of completion output in characters (Unicode runes)",
				Buckets:   []float64{50, 100, 200, 400, 800, 1600, 3200},
			}, []string{"provider"}),
		}
	})
	return prometheusMetricsInstance
}

// RecordCompletion implements MetricsRecorder.
func (p *PrometheusMetrics) RecordCompletion(provider string, duration time.Duration, outputLength int, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	p.requests.WithLabelValues(provider, status).Inc()
	p.duration.WithLabelValues(provider).Observe(duration.Seconds())
	if err == nil {
		p.length.WithLabelValues(provider).Observe(float64(outputLength))
	}
}
