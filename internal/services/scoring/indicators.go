package scoring

import (
	"math"

	"TokenLens/internal/domain/models"
)

// Inputs holds the payloads a report managed to obtain. A nil field means
// the capability is unavailable and none of its factors may contribute.
type Inputs struct {
	Market    *models.MarketSnapshot
	Social    *models.SocialMentions
	Whale     *models.WhaleActivity
	Technical *models.TechnicalSignals
	Holders   *models.HolderDistribution
}

// InputsFrom picks the Success payloads out of a report's outcomes.
func InputsFrom(outcomes map[models.Capability]models.FetchOutcome) Inputs {
	var in Inputs
	if v, ok := payload[models.MarketSnapshot](outcomes, models.CapabilityMarketSnapshot); ok {
		in.Market = &v
	}
	if v, ok := payload[models.SocialMentions](outcomes, models.CapabilitySocialMentions); ok {
		in.Social = &v
	}
	if v, ok := payload[models.WhaleActivity](outcomes, models.CapabilityWhaleActivity); ok {
		in.Whale = &v
	}
	if v, ok := payload[models.TechnicalSignals](outcomes, models.CapabilityTechnicalSignals); ok {
		in.Technical = &v
	}
	if v, ok := payload[models.HolderDistribution](outcomes, models.CapabilityHolderDistribution); ok {
		in.Holders = &v
	}
	return in
}

func payload[T any](outcomes map[models.Capability]models.FetchOutcome, c models.Capability) (T, bool) {
	o, ok := outcomes[c]
	if !ok {
		var zero T
		return zero, false
	}
	return models.PayloadAs[T](o.Result)
}

// Risk factor weights. Whale pressure carries the most weight when known.
var RiskWeights = map[string]float64{
	"volatility":     0.20,
	"liquidity":      0.20,
	"concentration":  0.20,
	"technical":      0.15,
	"whale_pressure": 0.25,
}

var LiquidityWeights = map[string]float64{
	"volume_to_mcap": 0.40,
	"depth":          0.35,
	"holder_breadth": 0.25,
}

var SocialWeights = map[string]float64{
	"volume":    0.40,
	"growth":    0.35,
	"sentiment": 0.25,
}

var MomentumWeights = map[string]float64{
	"rsi":   0.35,
	"macd":  0.35,
	"trend": 0.30,
}

var (
	riskLabels = map[models.Level]string{
		models.LevelHigh:   "high risk",
		models.LevelMedium: "moderate risk",
		models.LevelLow:    "low risk",
	}
	liquidityLabels = map[models.Level]string{
		models.LevelHigh:   "deep liquidity",
		models.LevelMedium: "moderate liquidity",
		models.LevelLow:    "thin liquidity",
	}
	socialLabels = map[models.Level]string{
		models.LevelHigh:   "high buzz",
		models.LevelMedium: "moderate buzz",
		models.LevelLow:    "quiet",
	}
	momentumLabels = map[models.Level]string{
		models.LevelHigh:   "bullish",
		models.LevelMedium: "neutral",
		models.LevelLow:    "bearish",
	}
)

// Score computes every indicator that has at least one present factor.
func Score(in Inputs) map[models.IndicatorName]models.Indicator {
	out := make(map[models.IndicatorName]models.Indicator, 4)
	add := func(ind models.Indicator, ok bool) {
		if ok {
			out[ind.Name] = ind
		}
	}
	add(Risk(in))
	add(Liquidity(in))
	add(Social(in))
	add(Momentum(in))
	return out
}

// Risk: higher is riskier.
func Risk(in Inputs) (models.Indicator, bool) {
	factors := []Factor{
		absent("volatility", RiskWeights["volatility"]),
		absent("liquidity", RiskWeights["liquidity"]),
		absent("concentration", RiskWeights["concentration"]),
		absent("technical", RiskWeights["technical"]),
		absent("whale_pressure", RiskWeights["whale_pressure"]),
	}

	switch {
	case in.Technical != nil:
		// annualized volatility of 100% or more saturates
		factors[0] = present("volatility", RiskWeights["volatility"], in.Technical.Volatility*100)
	case in.Market != nil:
		// a 20% daily move saturates
		factors[0] = present("volatility", RiskWeights["volatility"], math.Abs(in.Market.Change24hPct)*5)
	}
	if in.Market != nil && in.Market.MarketCapUSD > 0 {
		factors[1] = present("liquidity", RiskWeights["liquidity"], 100-turnoverScore(in.Market))
	}
	if in.Holders != nil {
		factors[2] = present("concentration", RiskWeights["concentration"],
			0.5*in.Holders.Top10Pct+0.5*in.Holders.Gini*100)
	}
	if in.Technical != nil {
		factors[3] = present("technical", RiskWeights["technical"], math.Abs(in.Technical.RSI14-50)*2)
	}
	if in.Whale != nil {
		factors[4] = present("whale_pressure", RiskWeights["whale_pressure"], whalePressure(in.Whale))
	}
	return Combine(models.IndicatorRisk, riskLabels, factors)
}

// whalePressure is 0 with no flows, 50 when balanced and 100 when every
// tracked dollar moved onto exchanges.
func whalePressure(w *models.WhaleActivity) float64 {
	total := w.InflowUSD + w.OutflowUSD
	if total <= 0 {
		return 0
	}
	return 50 + 50*(w.InflowUSD-w.OutflowUSD)/total
}

// turnoverScore saturates at a 20% daily volume to market cap ratio.
func turnoverScore(m *models.MarketSnapshot) float64 {
	if m.MarketCapUSD <= 0 {
		return 0
	}
	return Clamp(m.Volume24hUSD/m.MarketCapUSD*500, 0, 100)
}

// Liquidity: higher is more liquid.
func Liquidity(in Inputs) (models.Indicator, bool) {
	factors := []Factor{
		absent("volume_to_mcap", LiquidityWeights["volume_to_mcap"]),
		absent("depth", LiquidityWeights["depth"]),
		absent("holder_breadth", LiquidityWeights["holder_breadth"]),
	}
	if in.Market != nil {
		if in.Market.MarketCapUSD > 0 {
			factors[0] = present("volume_to_mcap", LiquidityWeights["volume_to_mcap"], turnoverScore(in.Market))
		}
		depth := in.Market.LiquidityUSD
		if depth <= 0 {
			depth = in.Market.Volume24hUSD
		}
		if depth > 0 {
			// $10k floor, $1B ceiling
			factors[1] = present("depth", LiquidityWeights["depth"], logScale(depth, 4, 9))
		}
	}
	if in.Holders != nil && in.Holders.TotalHolders > 0 {
		factors[2] = present("holder_breadth", LiquidityWeights["holder_breadth"],
			logScale(float64(in.Holders.TotalHolders), 0, 5))
	}
	return Combine(models.IndicatorLiquidity, liquidityLabels, factors)
}

// Social: higher means more and warmer attention.
func Social(in Inputs) (models.Indicator, bool) {
	if in.Social == nil {
		return models.Indicator{}, false
	}
	s := in.Social
	factors := []Factor{
		present("volume", SocialWeights["volume"], logScale(float64(s.Current24h)+1, 0, 2.5)),
		present("growth", SocialWeights["growth"], mentionGrowth(s.Current24h, s.Previous24h)),
		present("sentiment", SocialWeights["sentiment"], (Clamp(s.Sentiment, -1, 1)+1)*50),
	}
	return Combine(models.IndicatorSocial, socialLabels, factors)
}

// mentionGrowth is 50 when flat, 100 at doubling or better, 0 at silence.
func mentionGrowth(cur, prev int) float64 {
	if prev == 0 {
		if cur > 0 {
			return 100
		}
		return 50
	}
	change := float64(cur-prev) / float64(prev)
	return Clamp(50+change*50, 0, 100)
}

// Momentum: high is bullish, low is bearish.
func Momentum(in Inputs) (models.Indicator, bool) {
	factors := []Factor{
		absent("rsi", MomentumWeights["rsi"]),
		absent("macd", MomentumWeights["macd"]),
		absent("trend", MomentumWeights["trend"]),
	}
	if t := in.Technical; t != nil {
		factors[0] = present("rsi", MomentumWeights["rsi"], t.RSI14)
		macd := 50.0
		if t.SMA20 > 0 {
			// a histogram of 1% of price saturates
			macd = 50 + 5000*(t.MACD-t.MACDSignal)/t.SMA20
		}
		factors[1] = present("macd", MomentumWeights["macd"], macd)
		factors[2] = present("trend", MomentumWeights["trend"], trendScore(t.Trend))
	}
	return Combine(models.IndicatorMomentum, momentumLabels, factors)
}

func trendScore(trend string) float64 {
	switch trend {
	case "up":
		return 100
	case "down":
		return 0
	default:
		return 50
	}
}
