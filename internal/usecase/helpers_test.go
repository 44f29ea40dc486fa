package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"TokenLens/internal/domain/models"
	"TokenLens/pkg/cache"
)

type stubProvider struct {
	name  string
	c     models.Capability
	fn    func(ctx context.Context, token string) models.ProviderResult
	calls atomic.Int32
}

func (s *stubProvider) Name() string                  { return s.name }
func (s *stubProvider) Capability() models.Capability { return s.c }
func (s *stubProvider) Fetch(ctx context.Context, token string) models.ProviderResult {
	s.calls.Add(1)
	return s.fn(ctx, token)
}

func succeeding(name string, c models.Capability, data interface{}) *stubProvider {
	return &stubProvider{name: name, c: c, fn: func(context.Context, string) models.ProviderResult {
		return models.Success(c, data)
	}}
}

func failing(name string, c models.Capability, kind models.ErrorKind) *stubProvider {
	return &stubProvider{name: name, c: c, fn: func(context.Context, string) models.ProviderResult {
		return models.Failure(c, kind, name, "stub failure")
	}}
}

// hanging ignores cancellation and returns Empty only once release closes.
func hanging(name string, c models.Capability, release <-chan struct{}) *stubProvider {
	return &stubProvider{name: name, c: c, fn: func(context.Context, string) models.ProviderResult {
		<-release
		return models.Empty(c)
	}}
}

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

func newResultCache(t *testing.T, clock *fakeClock) *cache.Layered[models.ProviderResult] {
	t.Helper()
	opts := []cache.MemoryOption{cache.WithMemoryMaxSize(100), cache.WithMemoryCleanup(0)}
	if clock != nil {
		opts = append(opts, cache.WithClock(clock.Now))
	}
	mem := cache.NewMemoryCache(opts...)
	t.Cleanup(func() { _ = mem.Close() })
	return cache.NewLayered[models.ProviderResult](mem, nil)
}

type recordingSink struct {
	mu     sync.Mutex
	events []*models.Event
}

func (r *recordingSink) Emit(_ context.Context, e *models.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingSink) Stage(stage string) []*models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Event
	for _, e := range r.events {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}
