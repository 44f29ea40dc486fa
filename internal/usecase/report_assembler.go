package usecase

import (
	"time"

	"TokenLens/internal/domain/models"
)

// AssembleReport merges settled outcomes and indicators into a Report with
// one warning per failed capability, in canonical capability order.
func AssembleReport(
	id, tokenKey string,
	generatedAt time.Time,
	outcomes map[models.Capability]models.FetchOutcome,
	indicators map[models.IndicatorName]models.Indicator,
) *models.Report {
	per := make(map[models.Capability]models.FetchOutcome, len(outcomes))
	for c, o := range outcomes {
		per[c] = o
	}
	if indicators == nil {
		indicators = map[models.IndicatorName]models.Indicator{}
	}

	var warnings []models.Warning
	for _, c := range models.AllCapabilities() {
		o, ok := per[c]
		if !ok || !o.Result.IsFailure() {
			continue
		}
		w := models.Warning{Capability: c, Reason: o.Result.Kind()}
		if o.Result.Err != nil {
			w.Detail = o.Result.Err.Error()
		}
		if w.Reason == "" {
			w.Reason = models.ErrUnknown
		}
		warnings = append(warnings, w)
	}

	return &models.Report{
		ID:            id,
		TokenKey:      tokenKey,
		GeneratedAt:   generatedAt,
		PerCapability: per,
		Indicators:    indicators,
		Warnings:      warnings,
	}
}
