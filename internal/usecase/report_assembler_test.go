package usecase

import (
	"testing"
	"time"

	"TokenLens/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleReportWarningsFollowCanonicalOrder(t *testing.T) {
	outcomes := map[models.Capability]models.FetchOutcome{
		models.CapabilityHolderDistribution: {
			Capability: models.CapabilityHolderDistribution,
			Result:     models.Failure(models.CapabilityHolderDistribution, models.ErrUnconfigured, "blockscout", "no contract address"),
		},
		models.CapabilityMarketSnapshot: {
			Capability: models.CapabilityMarketSnapshot,
			Result:     models.Failure(models.CapabilityMarketSnapshot, models.ErrRateLimited, "coingecko", ""),
		},
		models.CapabilitySocialMentions: {
			Capability: models.CapabilitySocialMentions,
			Result:     models.Empty(models.CapabilitySocialMentions),
		},
	}
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	r := AssembleReport("id-1", "BTC", at, outcomes, nil)

	assert.Equal(t, "id-1", r.ID)
	assert.Equal(t, at, r.GeneratedAt)
	assert.NotNil(t, r.Indicators)
	require.Len(t, r.Warnings, 2)
	assert.Equal(t, models.CapabilityMarketSnapshot, r.Warnings[0].Capability)
	assert.Equal(t, models.ErrRateLimited, r.Warnings[0].Reason)
	assert.Equal(t, models.CapabilityHolderDistribution, r.Warnings[1].Capability)
	assert.Contains(t, r.Warnings[1].Detail, "no contract address")

	outcomes[models.CapabilityWhaleActivity] = models.FetchOutcome{}
	assert.NotContains(t, r.PerCapability, models.CapabilityWhaleActivity, "report owns its own map")
}
