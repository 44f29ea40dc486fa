package service

import (
	"context"
	"time"

	"TokenLens/internal/domain/models"
)

// Provider is one external data source for one capability.
// Fetch must not panic and reports every problem as a Failure result.
type Provider interface {
	Name() string
	Capability() models.Capability
	Fetch(ctx context.Context, tokenKey string) models.ProviderResult
}

// ChainSpec is the static fallback chain of one capability.
type ChainSpec struct {
	Capability models.Capability
	Providers  []Provider
	SuccessTTL time.Duration
	ErrorTTL   time.Duration
	// Timeout bounds each provider attempt.
	Timeout time.Duration
}

// ProviderNames lists the chain in priority order.
func (s ChainSpec) ProviderNames() []string {
	names := make([]string, len(s.Providers))
	for i, p := range s.Providers {
		names[i] = p.Name()
	}
	return names
}
