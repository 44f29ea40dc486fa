package models

import (
	"encoding/json"
	"fmt"
)

// MarketSnapshot is the current market state of a token.
type MarketSnapshot struct {
	PriceUSD     float64 `json:"price_usd"`
	MarketCapUSD float64 `json:"market_cap_usd"`
	Volume24hUSD float64 `json:"volume_24h_usd"`
	Change24hPct float64 `json:"change_24h_pct"`
	LiquidityUSD float64 `json:"liquidity_usd,omitempty"`
}

// SocialMentions counts recent mentions and their tone.
type SocialMentions struct {
	Current24h  int      `json:"current_24h"`
	Previous24h int      `json:"previous_24h"`
	Sentiment   float64  `json:"sentiment"` // -1..1
	Sources     []string `json:"sources,omitempty"`
}

// WhaleActivity summarizes large transfers over the last day.
type WhaleActivity struct {
	Transfers24h int     `json:"transfers_24h"`
	InflowUSD    float64 `json:"inflow_usd"`  // towards exchanges
	OutflowUSD   float64 `json:"outflow_usd"` // away from exchanges
	LargestUSD   float64 `json:"largest_usd"`
}

// TechnicalSignals are indicators derived from recent closes.
type TechnicalSignals struct {
	RSI14      float64 `json:"rsi_14"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	SMA20      float64 `json:"sma_20"`
	SMA50      float64 `json:"sma_50"`
	Volatility float64 `json:"volatility"` // annualized
	Trend      string  `json:"trend"`      // up, down, sideways
}

// HolderDistribution describes how supply is spread across holders.
type HolderDistribution struct {
	TotalHolders int     `json:"total_holders"`
	Top10Pct     float64 `json:"top10_pct"`
	Top50Pct     float64 `json:"top50_pct"`
	Gini         float64 `json:"gini"`
}

// DecodePayload decodes raw JSON into the payload type owned by c.
func DecodePayload(c Capability, raw []byte) (interface{}, error) {
	switch c {
	case CapabilityMarketSnapshot:
		return decodeAs[MarketSnapshot](raw)
	case CapabilitySocialMentions:
		return decodeAs[SocialMentions](raw)
	case CapabilityWhaleActivity:
		return decodeAs[WhaleActivity](raw)
	case CapabilityTechnicalSignals:
		return decodeAs[TechnicalSignals](raw)
	case CapabilityHolderDistribution:
		return decodeAs[HolderDistribution](raw)
	default:
		return nil, fmt.Errorf("decode payload: unknown capability %q", c)
	}
}

func decodeAs[T any](raw []byte) (interface{}, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
