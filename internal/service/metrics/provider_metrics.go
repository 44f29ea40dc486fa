package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProviderMetrics counts provider guard activity: cooldowns tripped by
// upstream rate limits and calls answered locally without I/O.
type ProviderMetrics struct {
	trips      *prometheus.CounterVec
	suppressed *prometheus.CounterVec
}

func NewProviderMetrics(reg prometheus.Registerer) *ProviderMetrics {
	f := promauto.With(reg)
	return &ProviderMetrics{
		trips: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tokenlens",
				Subsystem: "provider",
				Name:      "cooldown_trips_total",
				Help:      "Cooldowns started after an upstream rate limit",
			},
			[]string{"provider"},
		),
		suppressed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tokenlens",
				Subsystem: "provider",
				Name:      "suppressed_calls_total",
				Help:      "Calls answered without reaching the upstream",
			},
			[]string{"provider", "reason"},
		),
	}
}

func (m *ProviderMetrics) Tripped(provider string) {
	m.trips.WithLabelValues(provider).Inc()
}

func (m *ProviderMetrics) Suppressed(provider, reason string) {
	m.suppressed.WithLabelValues(provider, reason).Inc()
}
