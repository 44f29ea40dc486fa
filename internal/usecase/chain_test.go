package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"TokenLens/internal/domain/models"
	"TokenLens/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/singleflight"
)

const market = models.CapabilityMarketSnapshot

func chainSpec(ps ...service.Provider) service.ChainSpec {
	return service.ChainSpec{
		Capability: market,
		Providers:  ps,
		SuccessTTL: time.Minute,
		ErrorTTL:   10 * time.Second,
		Timeout:    time.Second,
	}
}

func TestChainShortCircuitsOnFirstSuccess(t *testing.T) {
	p1 := failing("p1", market, models.ErrNetwork)
	p2 := succeeding("p2", market, models.MarketSnapshot{PriceUSD: 2})
	p3 := succeeding("p3", market, models.MarketSnapshot{PriceUSD: 3})

	sink := &recordingSink{}
	chain := NewChain(chainSpec(p1, p2, p3), newResultCache(t, nil), WithEventSink(sink))
	out := chain.Resolve(context.Background(), "BTC", "r1")

	require.True(t, out.Result.IsSuccess())
	assert.Equal(t, "p2", out.Provider)
	assert.Equal(t, models.CacheMiss, out.CacheStatus)
	snap, ok := models.PayloadAs[models.MarketSnapshot](out.Result)
	require.True(t, ok)
	assert.Equal(t, 2.0, snap.PriceUSD)

	assert.EqualValues(t, 1, p1.calls.Load())
	assert.EqualValues(t, 1, p2.calls.Load())
	assert.EqualValues(t, 0, p3.calls.Load(), "providers after a success are never invoked")

	events := sink.Stage(models.StageProvider)
	require.Len(t, events, 2)
	assert.Equal(t, "p1", events[0].Provider)
	assert.Equal(t, models.ErrNetwork, events[0].ErrorKind)
	assert.Equal(t, models.StatusSuccess, events[1].Outcome)
	assert.Equal(t, "r1", events[1].ReportID)
}

func TestChainEmptyShortCircuits(t *testing.T) {
	p1 := &stubProvider{name: "p1", c: market, fn: func(context.Context, string) models.ProviderResult {
		return models.Empty(market)
	}}
	p2 := succeeding("p2", market, models.MarketSnapshot{})

	out := NewChain(chainSpec(p1, p2), newResultCache(t, nil)).Resolve(context.Background(), "BTC", "")
	assert.True(t, out.Result.IsEmpty())
	assert.Equal(t, "p1", out.Provider)
	assert.EqualValues(t, 0, p2.calls.Load())
}

func TestChainServesCachedResults(t *testing.T) {
	p1 := failing("p1", market, models.ErrUnauthorized)
	p2 := succeeding("p2", market, models.MarketSnapshot{PriceUSD: 2})
	chain := NewChain(chainSpec(p1, p2), newResultCache(t, nil))

	chain.Resolve(context.Background(), "BTC", "")
	out := chain.Resolve(context.Background(), "btc ", "")

	require.True(t, out.Result.IsSuccess())
	assert.Equal(t, models.CacheHit, out.CacheStatus)
	assert.EqualValues(t, 1, p1.calls.Load(), "cached failure is served without I/O")
	assert.EqualValues(t, 1, p2.calls.Load())
}

func TestChainFailureExpiresBeforeSuccess(t *testing.T) {
	clock := newFakeClock()
	rc := newResultCache(t, clock)

	bad := failing("bad", market, models.ErrTimeout)
	good := succeeding("good", market, models.MarketSnapshot{PriceUSD: 1})
	badChain := NewChain(chainSpec(bad), rc)
	goodChain := NewChain(chainSpec(good), rc)

	ctx := context.Background()
	badChain.Resolve(ctx, "ETH", "")
	goodChain.Resolve(ctx, "ETH", "")

	// between errorTTL (10s) and successTTL (1m)
	clock.Advance(30 * time.Second)
	badChain.Resolve(ctx, "ETH", "")
	goodChain.Resolve(ctx, "ETH", "")

	assert.EqualValues(t, 2, bad.calls.Load(), "failure is re-fetched after errorTTL")
	assert.EqualValues(t, 1, good.calls.Load(), "success is still cached")

	clock.Advance(31 * time.Second)
	goodChain.Resolve(ctx, "ETH", "")
	assert.EqualValues(t, 2, good.calls.Load())
}

func TestChainWithoutProvidersIsUnconfigured(t *testing.T) {
	out := NewChain(chainSpec(), newResultCache(t, nil)).Resolve(context.Background(), "BTC", "")
	require.True(t, out.Result.IsFailure())
	assert.Equal(t, models.ErrUnconfigured, out.Result.Kind())
	assert.Equal(t, models.CacheBypass, out.CacheStatus)
	assert.Empty(t, out.Provider)
}

func TestChainSingleProviderPassesFailureThrough(t *testing.T) {
	p := failing("only", market, models.ErrRateLimited)
	out := NewChain(chainSpec(p), newResultCache(t, nil)).Resolve(context.Background(), "BTC", "")
	require.True(t, out.Result.IsFailure())
	assert.Equal(t, models.ErrRateLimited, out.Result.Kind())
	assert.Equal(t, "only", out.Provider)
}

func TestChainAllProvidersFailed(t *testing.T) {
	p1 := failing("p1", market, models.ErrUnauthorized)
	p2 := failing("p2", market, models.ErrNetwork)
	chain := NewChain(chainSpec(p1, p2), newResultCache(t, nil))

	out := chain.Resolve(context.Background(), "BTC", "")
	require.True(t, out.Result.IsFailure())
	assert.Equal(t, models.ErrAllProvidersFailed, out.Result.Kind())
	assert.Empty(t, out.Provider)
	assert.Equal(t, models.CacheMiss, out.CacheStatus)
	require.Len(t, out.Result.Err.Causes, 2)
	assert.Equal(t, models.ErrUnauthorized, out.Result.Err.Causes[0].Kind)
	assert.Equal(t, models.ErrNetwork, out.Result.Err.Causes[1].Kind)

	again := chain.Resolve(context.Background(), "BTC", "")
	assert.Equal(t, models.CacheHit, again.CacheStatus)
}

func TestChainStopsCallingAfterCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := hanging("slow", market, release)
	next := succeeding("next", market, models.MarketSnapshot{})

	rc := newResultCache(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out := NewChain(chainSpec(slow, next), rc).Resolve(ctx, "BTC", "")

	require.True(t, out.Result.IsFailure())
	assert.Equal(t, models.ErrAllProvidersFailed, out.Result.Kind())
	assert.EqualValues(t, 0, next.calls.Load())
	for _, cause := range out.Result.Err.Causes {
		assert.Equal(t, models.ErrTimeout, cause.Kind)
	}

	_, cached := rc.Get(context.Background(), CacheKey(market, "slow", "BTC"))
	assert.False(t, cached, "failures of an abandoned report are not cached")
}

func TestChainSingleFlightCollapsesMisses(t *testing.T) {
	release := make(chan struct{})
	p := hanging("p", market, release)
	chain := NewChain(chainSpec(p), newResultCache(t, nil), WithSingleFlight(&singleflight.Group{}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chain.Resolve(context.Background(), "BTC", "")
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, p.calls.Load())
}

func TestChainSingleFlightCallerKeepsOwnDeadline(t *testing.T) {
	slow := &stubProvider{name: "slow", c: market, fn: func(context.Context, string) models.ProviderResult {
		time.Sleep(100 * time.Millisecond)
		return models.Success(market, models.MarketSnapshot{PriceUSD: 7})
	}}
	rc := newResultCache(t, nil)
	chain := NewChain(chainSpec(slow), rc, WithSingleFlight(&singleflight.Group{}))

	var (
		wg      sync.WaitGroup
		hurried models.FetchOutcome
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		hurried = chain.Resolve(ctx, "BTC", "r1")
	}()
	time.Sleep(5 * time.Millisecond)
	patient := chain.Resolve(context.Background(), "BTC", "r2")
	wg.Wait()

	require.True(t, hurried.Result.IsFailure())
	assert.Equal(t, models.ErrTimeout, hurried.Result.Kind())
	require.True(t, patient.Result.IsSuccess(), "a joined caller is bound by its own deadline only")
	assert.EqualValues(t, 1, slow.calls.Load())

	again := chain.Resolve(context.Background(), "BTC", "r3")
	assert.Equal(t, models.CacheHit, again.CacheStatus, "the shared fetch is cached after its first caller left")
}

func TestChainSingleFlightMarksJoinedCalls(t *testing.T) {
	release := make(chan struct{})
	p := hanging("p", market, release)
	sink := &recordingSink{}
	chain := NewChain(chainSpec(p), newResultCache(t, nil), WithSingleFlight(&singleflight.Group{}), WithEventSink(sink))

	var wg sync.WaitGroup
	outs := make([]models.FetchOutcome, 3)
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i] = chain.Resolve(context.Background(), "ETH", "")
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	statuses := map[models.CacheStatus]int{}
	for _, e := range sink.Stage(models.StageProvider) {
		statuses[e.CacheStatus]++
	}
	assert.Equal(t, map[models.CacheStatus]int{models.CacheMiss: 1, models.CacheShared: 2}, statuses)
	for _, out := range outs {
		assert.Equal(t, models.CacheMiss, out.CacheStatus)
	}
}

func TestCacheKeyIsNormalized(t *testing.T) {
	assert.Equal(t, CacheKey(market, "CoinGecko", " btc"), CacheKey(market, "coingecko", "BTC"))
	assert.NotEqual(t, CacheKey(market, "coingecko", "BTC"), CacheKey(models.CapabilitySocialMentions, "coingecko", "BTC"))
}
