package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchesTotal  *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	reportLatency prometheus.Histogram
	reportWarns   prometheus.Histogram
	eventsSent    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenlens_provider_fetches_total",
				Help: "Provider calls by capability, provider, cache status and outcome",
			},
			[]string{"capability", "provider", "cache_status", "outcome"},
		),
		fetchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokenlens_provider_fetch_seconds",
				Help:    "Provider call latency including cache lookups",
				Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"capability", "provider"},
		),
		reportLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tokenlens_report_build_seconds",
				Help:    "Wall time of BuildReport",
				Buckets: prometheus.DefBuckets,
			},
		),
		reportWarns: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tokenlens_report_warnings",
				Help:    "Number of unavailable capabilities per report",
				Buckets: []float64{0, 1, 2, 3, 4, 5},
			},
		),
		eventsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenlens_events_sent_total",
				Help: "Fetch events delivered to an event backend",
			},
			[]string{"backend", "capability"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenlens_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokenlens_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch records one provider attempt.
func (r *Recorder) RecordFetch(capability, provider, cacheStatus, outcome string, seconds float64) {
	r.fetchesTotal.WithLabelValues(capability, provider, cacheStatus, outcome).Inc()
	r.fetchLatency.WithLabelValues(capability, provider).Observe(seconds)
}

// RecordReport records a finished report.
func (r *Recorder) RecordReport(seconds float64, warnings int) {
	r.reportLatency.Observe(seconds)
	r.reportWarns.Observe(float64(warnings))
}

// RecordEventSent records an event delivered to a backend.
func (r *Recorder) RecordEventSent(backend, capability string) {
	r.eventsSent.WithLabelValues(backend, capability).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
