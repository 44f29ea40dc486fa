package models

import "time"

// CacheStatus tells whether an outcome was served from cache.
type CacheStatus string

const (
	CacheHit    CacheStatus = "hit"
	CacheMiss   CacheStatus = "miss"
	CacheBypass CacheStatus = "bypass"
	// CacheShared marks a provider event whose caller joined another
	// caller's in-flight fetch. Reports record it as a miss.
	CacheShared CacheStatus = "shared"
)

// FetchOutcome records the source, cache status and result of one
// capability within one report.
type FetchOutcome struct {
	Capability  Capability
	Provider    string // empty when no provider produced the result
	Result      ProviderResult
	CacheStatus CacheStatus
	ElapsedMs   int64
}

// Data returns the Success payload, or nil.
func (o FetchOutcome) Data() interface{} {
	if o.Result.IsSuccess() {
		return o.Result.Data
	}
	return nil
}

// Level buckets an indicator score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// IndicatorName identifies a scored indicator.
type IndicatorName string

const (
	IndicatorRisk      IndicatorName = "risk"
	IndicatorLiquidity IndicatorName = "liquidity"
	IndicatorSocial    IndicatorName = "social"
	IndicatorMomentum  IndicatorName = "momentum"
)

// Indicator is a normalized, leveled summary of available raw data.
type Indicator struct {
	Name                IndicatorName      `json:"name"`
	Score               float64            `json:"score"`
	Level               Level              `json:"level"`
	Label               string             `json:"label"`
	ContributingFactors map[string]float64 `json:"contributing_factors"`
	Weights             map[string]float64 `json:"weights"`
}

// Warning explains why a capability is unavailable in a report.
type Warning struct {
	Capability Capability `json:"capability"`
	Reason     ErrorKind  `json:"reason"`
	Detail     string     `json:"detail,omitempty"`
}

// Report is the consolidated research result for one token.
type Report struct {
	ID            string
	TokenKey      string
	GeneratedAt   time.Time
	PerCapability map[Capability]FetchOutcome
	Indicators    map[IndicatorName]Indicator
	Warnings      []Warning
}

// Outcome returns the outcome recorded for c.
func (r *Report) Outcome(c Capability) (FetchOutcome, bool) {
	o, ok := r.PerCapability[c]
	return o, ok
}
