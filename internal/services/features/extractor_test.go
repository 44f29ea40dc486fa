package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestRSIExtremes(t *testing.T) {
	up, ok := RSI(linear(30, 100, 1), 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, up)

	down, ok := RSI(linear(30, 100, -1), 14)
	require.True(t, ok)
	assert.InDelta(t, 0, down, 1e-9)

	flat, ok := RSI(linear(30, 100, 0), 14)
	require.True(t, ok)
	assert.Equal(t, 50.0, flat)

	_, ok = RSI(linear(10, 100, 1), 14)
	assert.False(t, ok)
}

func TestSMAAndReturns(t *testing.T) {
	assert.Equal(t, 4.0, SMA([]float64{1, 2, 3, 4, 5}, 3))
	assert.Equal(t, 0.0, SMA([]float64{1, 2}, 3))

	r := ComputeLogReturns([]float64{100, 110, 0, 121})
	require.Len(t, r, 3)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-12)
	assert.Equal(t, 0.0, r[1], "non-positive prices yield zero return")
}

func TestRealizedVolatilityConstantReturns(t *testing.T) {
	returns := []float64{0.01, 0.01, 0.01, 0.01}
	assert.InDelta(t, 0, RealizedVolatility(returns, 4, BarsPerYearDaily), 1e-9)
	assert.Equal(t, 0.0, RealizedVolatility(returns, 10, BarsPerYearDaily))
}

func TestTechnicalsUptrend(t *testing.T) {
	closes := linear(60, 100, 2)
	ts, ok := Technicals(closes, BarsPerYearDaily)
	require.True(t, ok)

	assert.Equal(t, "up", ts.Trend)
	assert.Greater(t, ts.MACD, 0.0)
	assert.Greater(t, ts.SMA20, ts.SMA50)
	assert.Equal(t, 100.0, ts.RSI14)

	_, ok = Technicals(closes[:MinCloses-1], BarsPerYearDaily)
	assert.False(t, ok)
}

func TestTrendWithoutLongAverage(t *testing.T) {
	assert.Equal(t, "down", Trend(90, 100, 0))
	assert.Equal(t, "sideways", Trend(100, 0, 0))
}
