package api

import (
	"time"

	"TokenLens/internal/domain/models"
)

// Capability states as rendered to clients.
const (
	stateOK          = "ok"
	stateEmpty       = "empty"
	stateUnavailable = "unavailable"
)

// ReportDTO is the JSON view of a report.
type ReportDTO struct {
	ID           string                                    `json:"id"`
	Token        string                                    `json:"token"`
	GeneratedAt  time.Time                                 `json:"generated_at"`
	Capabilities map[models.Capability]CapabilityDTO       `json:"capabilities"`
	Indicators   map[models.IndicatorName]models.Indicator `json:"indicators"`
	Warnings     []models.Warning                          `json:"warnings"`
}

// CapabilityDTO is one capability's outcome. Failures carry only a reason.
type CapabilityDTO struct {
	Status      string             `json:"status"`
	Reason      models.ErrorKind   `json:"reason,omitempty"`
	Provider    string             `json:"provider,omitempty"`
	CacheStatus models.CacheStatus `json:"cache_status"`
	ElapsedMs   int64              `json:"elapsed_ms"`
	Data        interface{}        `json:"data,omitempty"`
}

func NewReportDTO(r *models.Report) ReportDTO {
	dto := ReportDTO{
		ID:           r.ID,
		Token:        r.TokenKey,
		GeneratedAt:  r.GeneratedAt.UTC(),
		Capabilities: make(map[models.Capability]CapabilityDTO, len(r.PerCapability)),
		Indicators:   r.Indicators,
		Warnings:     r.Warnings,
	}
	if dto.Indicators == nil {
		dto.Indicators = map[models.IndicatorName]models.Indicator{}
	}
	if dto.Warnings == nil {
		dto.Warnings = []models.Warning{}
	}
	for c, o := range r.PerCapability {
		dto.Capabilities[c] = newCapabilityDTO(o)
	}
	return dto
}

func newCapabilityDTO(o models.FetchOutcome) CapabilityDTO {
	d := CapabilityDTO{
		Provider:    o.Provider,
		CacheStatus: o.CacheStatus,
		ElapsedMs:   o.ElapsedMs,
	}
	switch o.Result.Status {
	case models.StatusSuccess:
		d.Status = stateOK
		d.Data = o.Result.Data
	case models.StatusEmpty:
		d.Status = stateEmpty
	default:
		d.Status = stateUnavailable
		d.Reason = o.Result.Kind()
		if d.Reason == "" {
			d.Reason = models.ErrUnknown
		}
	}
	return d
}
