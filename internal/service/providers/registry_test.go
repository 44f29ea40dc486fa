package providers

import (
	"testing"

	"TokenLens/internal/domain/models"
	"TokenLens/internal/service/ratelimit"
	"TokenLens/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildChainsFollowsConfig(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	specs, err := BuildChains(Deps{Config: cfg, Tracer: testTracer, Limiter: ratelimit.New()})
	require.NoError(t, err)
	require.Len(t, specs, 5)

	assert.Equal(t, models.CapabilityMarketSnapshot, specs[0].Capability)
	assert.Equal(t, []string{NameCoinGecko, NameFinnhub, NameDemo}, specs[0].ProviderNames())
	assert.Equal(t, []string{NameCoinGeckoTA, NameAnalytics, NameDemo}, specs[3].ProviderNames())

	_, guarded := specs[0].Providers[0].(*Guarded)
	assert.True(t, guarded)
	_, demo := specs[0].Providers[2].(*DemoProvider)
	assert.True(t, demo, "demo is never guarded")
}

func TestBuildChainsDropsDemoWhenDisabled(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Providers.Demo.Enabled = false

	specs, err := BuildChains(Deps{Config: cfg, Tracer: testTracer})
	require.NoError(t, err)
	for _, s := range specs {
		assert.NotContains(t, s.ProviderNames(), NameDemo)
	}
}

func TestBuildChainsRejectsMismatchedProvider(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cc := cfg.Capabilities["whale_activity"]
	cc.Providers = []string{NameReddit}
	cfg.Capabilities["whale_activity"] = cc

	_, err = BuildChains(Deps{Config: cfg, Tracer: testTracer})
	assert.Error(t, err)
}
