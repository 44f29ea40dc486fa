package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestProviderMetrics(t *testing.T) {
	m := NewProviderMetrics(prometheus.NewRegistry())

	m.Tripped("coingecko")
	m.Suppressed("coingecko", "cooldown")
	m.Suppressed("coingecko", "cooldown")
	m.Suppressed("reddit", "budget")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.trips.WithLabelValues("coingecko")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.suppressed.WithLabelValues("coingecko", "cooldown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.suppressed.WithLabelValues("reddit", "budget")))
}
