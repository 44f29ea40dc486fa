package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, clock *fakeClock, size int) *MemoryCache {
	t.Helper()
	mc := NewMemoryCache(WithMemoryMaxSize(size), WithMemoryCleanup(0), WithClock(clock.Now))
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func TestMemoryCacheTTLBoundary(t *testing.T) {
	clock := newFakeClock()
	mc := newTestCache(t, clock, 10)

	mc.Set("k", "v", 100*time.Millisecond)
	got, ok := mc.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	clock.Advance(99 * time.Millisecond)
	assert.True(t, mc.Has("k"))

	clock.Advance(1 * time.Millisecond)
	_, ok = mc.Get("k")
	assert.False(t, ok, "entry must be absent exactly at expiry")
	assert.Equal(t, 0, mc.Len(), "expired entry is removed on access")
}

func TestMemoryCacheAbsentAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	mc := newTestCache(t, clock, 10)

	mc.Set("k", 1, 100*time.Millisecond)
	clock.Advance(101 * time.Millisecond)
	_, ok := mc.Get("k")
	assert.False(t, ok)
}

func TestMemoryCacheEvictsOldestInserted(t *testing.T) {
	clock := newFakeClock()
	mc := newTestCache(t, clock, 3)

	for i := 0; i < 3; i++ {
		mc.Set(fmt.Sprintf("k%d", i), i, time.Minute)
		clock.Advance(time.Millisecond)
	}
	// reading k0 must not protect it: eviction is by insertion, not access
	_, _ = mc.Get("k0")

	mc.Set("k3", 3, time.Minute)
	assert.Equal(t, 3, mc.Len())
	assert.False(t, mc.Has("k0"))
	assert.True(t, mc.Has("k1"))
	assert.True(t, mc.Has("k3"))

	mc.Set("k4", 4, time.Minute)
	assert.False(t, mc.Has("k1"))
	assert.LessOrEqual(t, mc.Len(), 3)
}

func TestMemoryCachePurgesExpiredBeforeEvicting(t *testing.T) {
	clock := newFakeClock()
	mc := newTestCache(t, clock, 3)

	mc.Set("old-live", 0, time.Hour)
	mc.Set("short-1", 1, 10*time.Millisecond)
	mc.Set("short-2", 2, 10*time.Millisecond)
	clock.Advance(20 * time.Millisecond)

	mc.Set("new", 3, time.Hour)

	assert.True(t, mc.Has("old-live"), "live entry survives while expired ones exist")
	assert.True(t, mc.Has("new"))
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCacheOverwriteRefreshesPosition(t *testing.T) {
	clock := newFakeClock()
	mc := newTestCache(t, clock, 2)

	mc.Set("a", 1, time.Hour)
	mc.Set("b", 2, time.Hour)
	mc.Set("a", 10, time.Hour)
	mc.Set("c", 3, time.Hour)

	v, ok := mc.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	assert.False(t, mc.Has("b"))
}

func TestMemoryCacheSizeNeverExceedsCapacity(t *testing.T) {
	clock := newFakeClock()
	mc := newTestCache(t, clock, 50)

	for i := 0; i < 500; i++ {
		mc.Set(fmt.Sprintf("k%d", i), i, time.Minute)
		require.LessOrEqual(t, mc.Len(), 50)
	}
}

func TestMemoryCacheDeleteAndClear(t *testing.T) {
	clock := newFakeClock()
	mc := newTestCache(t, clock, 10)

	mc.Set("a", 1, time.Minute)
	mc.Set("b", 2, time.Minute)
	mc.Delete("a")
	assert.False(t, mc.Has("a"))
	assert.True(t, mc.Has("b"))

	mc.Clear()
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheDefaultTTL(t *testing.T) {
	clock := newFakeClock()
	mc := NewMemoryCache(WithMemoryCleanup(0), WithClock(clock.Now), WithMemoryDefaultTTL(time.Second))
	defer mc.Close()

	mc.Set("a", 1, 0)
	ttl, ok := mc.TTL("a")
	require.True(t, ok)
	assert.Equal(t, time.Second, ttl)
}

func TestMemoryCacheHousekeeping(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(5 * time.Millisecond))
	defer mc.Close()

	mc.Set("a", 1, time.Millisecond)
	assert.Eventually(t, func() bool { return mc.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(64), WithMemoryCleanup(0))
	defer mc.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("w%d-%d", w, i%20)
				mc.Set(key, i, time.Minute)
				_, _ = mc.Get(key)
			}
		}(w)
	}
	wg.Wait()
	assert.LessOrEqual(t, mc.Len(), 64)
}

func TestGenerateKeyWithParamsNormalizes(t *testing.T) {
	a := GenerateKeyWithParams("provider", "market_snapshot", "CoinGecko", " BTC ")
	b := GenerateKeyWithParams("Provider", "MARKET_SNAPSHOT", "coingecko", "btc")
	assert.Equal(t, a, b)
	assert.Equal(t, "provider:market_snapshot:coingecko:btc", a)

	other := GenerateKeyWithParams("report", "market_snapshot", "coingecko", "btc")
	assert.NotEqual(t, a, other, "namespaces must not collide")
}
