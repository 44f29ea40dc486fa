package features

import (
	"math"

	"TokenLens/internal/domain/models"
)

// MinCloses is the shortest series Technicals accepts (MACD 26 + signal 9).
const MinCloses = 35

// BarsPerYearDaily annualizes daily bars.
const BarsPerYearDaily = 365.0

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(closes)-1, or nil if insufficient data.
func ComputeLogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over the last
// window returns.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum, sum2 := 0.0, 0.0
	for _, r := range logReturns[len(logReturns)-window:] {
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// SMA is the mean of the last period values, or 0 when there are fewer.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMASeries returns the exponential moving average, seeded with the first value.
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	if period <= 1 {
		copy(out, values)
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI is Wilder's relative strength index of the final bar.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) <= period {
		return 0, false
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		avgGain = (avgGain*float64(period-1) + math.Max(d, 0)) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + math.Max(-d, 0)) / float64(period)
	}
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// MACD returns the final MACD and signal line values (12/26/9).
func MACD(closes []float64) (macd, signal float64, ok bool) {
	if len(closes) < MinCloses {
		return 0, 0, false
	}
	fast := EMASeries(closes, 12)
	slow := EMASeries(closes, 26)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fast[i] - slow[i]
	}
	sig := EMASeries(line, 9)
	return line[len(line)-1], sig[len(sig)-1], true
}

// Trend classifies the series from price against its moving averages.
func Trend(last, sma20, sma50 float64) string {
	if sma20 == 0 {
		return "sideways"
	}
	ref := sma50
	if ref == 0 {
		ref = sma20
	}
	switch {
	case last > sma20 && sma20 >= ref:
		return "up"
	case last < sma20 && sma20 <= ref:
		return "down"
	default:
		return "sideways"
	}
}

// Technicals derives the technical signal payload from closing prices,
// oldest first. ok is false when the series is too short.
func Technicals(closes []float64, barsPerYear float64) (models.TechnicalSignals, bool) {
	if len(closes) < MinCloses {
		return models.TechnicalSignals{}, false
	}
	rsi, _ := RSI(closes, 14)
	macd, sig, _ := MACD(closes)
	sma20 := SMA(closes, 20)
	sma50 := SMA(closes, 50)

	window := 30
	returns := ComputeLogReturns(closes)
	if len(returns) < window {
		window = len(returns)
	}

	return models.TechnicalSignals{
		RSI14:      rsi,
		MACD:       macd,
		MACDSignal: sig,
		SMA20:      sma20,
		SMA50:      sma50,
		Volatility: RealizedVolatility(returns, window, barsPerYear),
		Trend:      Trend(closes[len(closes)-1], sma20, sma50),
	}, true
}
