package providers

import (
	"context"
	"fmt"
	"time"

	"TokenLens/internal/domain/models"

	"go.opentelemetry.io/otel/trace"
)

const NameAnalytics = "analytics"

// AnalyticsConfig points at an external analytics service exposing
// POST /technicals.
type AnalyticsConfig struct {
	ServiceURL string
	Retries    int
	Timeout    time.Duration
}

// AnalyticsProvider serves TechnicalSignals from the analytics service.
type AnalyticsProvider struct {
	httpBase
	attempts int
}

func NewAnalyticsProvider(cfg AnalyticsConfig, tracer trace.Tracer) *AnalyticsProvider {
	return &AnalyticsProvider{
		httpBase: newHTTPBase(cfg.ServiceURL, cfg.Timeout, tracer),
		attempts: cfg.Retries + 1,
	}
}

func (p *AnalyticsProvider) Name() string                  { return NameAnalytics }
func (p *AnalyticsProvider) Capability() models.Capability { return models.CapabilityTechnicalSignals }

type technicalsRequest struct {
	Token    string `json:"token"`
	Interval string `json:"interval"`
}

type technicalsResponse struct {
	Available bool                    `json:"available"`
	Signals   models.TechnicalSignals `json:"signals"`
}

func (p *AnalyticsProvider) Fetch(ctx context.Context, tokenKey string) models.ProviderResult {
	ctx, span := p.tracer.Start(ctx, "analytics.technicals")
	defer span.End()

	if p.baseURL == "" {
		return Classify(p.Capability(), p.Name(), fmt.Errorf("analytics service url: %w", ErrUnconfigured))
	}

	var resp technicalsResponse
	err := p.postJSONWithRetry(ctx, "/technicals", technicalsRequest{Token: tokenKey, Interval: "1d"}, &resp, p.attempts)
	if err != nil {
		return Classify(p.Capability(), p.Name(), err)
	}
	if !resp.Available {
		return models.Empty(p.Capability())
	}
	return models.Success(p.Capability(), resp.Signals)
}
