package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"TokenLens/internal/di"
	"TokenLens/internal/domain/models"
	"TokenLens/internal/domain/service"
	mid "TokenLens/internal/middleware"
	"TokenLens/internal/service/providers"
	"TokenLens/internal/usecase"
	"TokenLens/pkg/cache"
	"TokenLens/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoReporter(t *testing.T) *di.Reporter {
	t.Helper()
	mem := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	t.Cleanup(func() { _ = mem.Close() })
	rc := cache.NewLayered[models.ProviderResult](mem, nil)

	var chains []*usecase.Chain
	for _, c := range models.AllCapabilities() {
		chains = append(chains, usecase.NewChain(service.ChainSpec{
			Capability: c,
			Providers:  []service.Provider{providers.NewDemoProvider(c)},
			SuccessTTL: time.Minute,
			ErrorTTL:   time.Second,
			Timeout:    time.Second,
		}, rc))
	}
	proc, err := usecase.NewEventProcessor(usecase.BackendNone, nil, nil, nil, nil)
	require.NoError(t, err)
	return &di.Reporter{
		Agg:      usecase.NewReportAggregateUseCase(chains, 2*time.Second),
		Pipeline: mid.NewEventPipeline(proc, nil),
	}
}

func TestRunReportPrintsJSON(t *testing.T) {
	var out bytes.Buffer
	caps := []models.Capability{models.CapabilityMarketSnapshot, models.CapabilityTechnicalSignals}

	err := runReport(context.Background(), demoReporter(t), "uni", caps, reportFlags{compact: true}, &out)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "UNI", got["token"])
	assert.Len(t, got["capabilities"], 2)
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("\n")), "compact output is one line")
}

func TestRunReportRejectsEmptyToken(t *testing.T) {
	var out bytes.Buffer
	err := runReport(context.Background(), demoReporter(t), " ", models.AllCapabilities(), reportFlags{}, &out)
	assert.ErrorIs(t, err, usecase.ErrInvalidRequest)
	assert.Zero(t, out.Len())
}

func TestOneShotKeepsStdoutForTheReport(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Events.Consume = true
	cfg.Prefetch.Enabled = true

	oneShot(cfg)
	assert.Equal(t, "stderr", cfg.Log.Output)
	assert.False(t, cfg.Events.Consume)
	assert.False(t, cfg.Prefetch.Enabled)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["report"])
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
