package usecase

import (
	"context"
	"time"

	"TokenLens/internal/domain/models"
	domrepo "TokenLens/internal/domain/repository"
	"TokenLens/internal/domain/service"
	"TokenLens/internal/service/providers"
	"TokenLens/pkg/cache"
	"TokenLens/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ChainOption configures Chain.
type ChainOption func(*Chain)

// Chain resolves one capability by trying its providers in order, each
// behind the shared result cache.
type Chain struct {
	spec    service.ChainSpec
	cache   domrepo.ResultCache
	sink    domrepo.EventSink
	metrics domrepo.Metrics
	log     *logger.Logger
	group   *singleflight.Group
	now     func() time.Time
}

func NewChain(spec service.ChainSpec, rc domrepo.ResultCache, opts ...ChainOption) *Chain {
	c := &Chain{spec: spec, cache: rc, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithEventSink(s domrepo.EventSink) ChainOption { return func(c *Chain) { c.sink = s } }

func WithChainMetrics(m domrepo.Metrics) ChainOption { return func(c *Chain) { c.metrics = m } }

func WithChainLogger(l *logger.Logger) ChainOption {
	return func(c *Chain) {
		if l != nil {
			c.log = l
		}
	}
}

// WithSingleFlight collapses concurrent misses on the same key into one
// provider call. Groups may be shared between chains.
func WithSingleFlight(g *singleflight.Group) ChainOption { return func(c *Chain) { c.group = g } }

func (c *Chain) Spec() service.ChainSpec { return c.spec }

// CacheKey is the result cache key of one provider for one token.
func CacheKey(capability models.Capability, provider, tokenKey string) string {
	return cache.GenerateKeyWithParams("provider", string(capability), provider, tokenKey)
}

// Resolve returns the first Success or Empty of the chain. When every
// provider fails, a single provider's failure is passed through and two or
// more are folded into AllProvidersFailed.
func (c *Chain) Resolve(ctx context.Context, tokenKey, reportID string) models.FetchOutcome {
	start := c.now()
	capability := c.spec.Capability

	if len(c.spec.Providers) == 0 {
		return models.FetchOutcome{
			Capability:  capability,
			Result:      models.Failure(capability, models.ErrUnconfigured, "", "no providers configured"),
			CacheStatus: models.CacheBypass,
		}
	}

	var (
		causes   []*models.FetchError
		last     models.FetchOutcome
		allHits  = true
		attempts int
	)
	for _, p := range c.spec.Providers {
		if ctx.Err() != nil {
			causes = append(causes, &models.FetchError{Kind: models.ErrTimeout, Provider: p.Name(), Message: "report deadline reached"})
			allHits = false
			continue
		}

		res, status := c.call(ctx, p, tokenKey, reportID)
		attempts++
		out := models.FetchOutcome{
			Capability:  capability,
			Provider:    p.Name(),
			Result:      res,
			CacheStatus: status,
			ElapsedMs:   c.now().Sub(start).Milliseconds(),
		}
		if !res.IsFailure() {
			return out
		}
		causes = append(causes, res.Err)
		if status != models.CacheHit {
			allHits = false
		}
		last = out
	}

	if len(causes) == 1 && attempts == 1 {
		return last
	}

	status := models.CacheMiss
	if allHits {
		status = models.CacheHit
	}
	return models.FetchOutcome{
		Capability: capability,
		Result: models.FailureFrom(capability, &models.FetchError{
			Kind:    models.ErrAllProvidersFailed,
			Message: "every provider in the chain failed",
			Causes:  causes,
		}),
		CacheStatus: status,
		ElapsedMs:   c.now().Sub(start).Milliseconds(),
	}
}

// call is the cache-wrapped provider invocation. Cached failures are
// served like any other result; failures produced after the caller gave up
// are not cached.
//
// With single-flight, the shared fetch is detached from every caller's
// context and bounded by the chain timeout only, so each caller stops
// waiting at its own deadline without failing the others.
func (c *Chain) call(ctx context.Context, p service.Provider, tokenKey, reportID string) (models.ProviderResult, models.CacheStatus) {
	start := c.now()
	key := CacheKey(c.spec.Capability, p.Name(), tokenKey)

	if res, ok := c.cache.Get(ctx, key); ok {
		c.observe(ctx, p.Name(), tokenKey, reportID, res, models.CacheHit, start)
		return res, models.CacheHit
	}

	var (
		res      models.ProviderResult
		observed = models.CacheMiss
	)
	if c.group == nil {
		res = c.fetch(ctx, p, tokenKey, key)
	} else {
		var leader bool
		ch := c.group.DoChan(key, func() (interface{}, error) {
			leader = true
			return c.fetch(context.WithoutCancel(ctx), p, tokenKey, key), nil
		})
		select {
		case r := <-ch:
			res = r.Val.(models.ProviderResult)
			if !leader {
				observed = models.CacheShared
			}
		case <-ctx.Done():
			res = providers.ContextFailure(c.spec.Capability, p.Name(), ctx.Err())
		}
	}

	if res.Kind() == models.ErrUnknown {
		c.log.Error("provider failed with unknown error",
			logger.String("capability", string(c.spec.Capability)),
			logger.String("provider", p.Name()),
			logger.String("token", tokenKey),
			logger.Error(res.Err),
		)
	}
	c.observe(ctx, p.Name(), tokenKey, reportID, res, observed, start)
	return res, models.CacheMiss
}

// fetch invokes p and stores the result unless ctx ended first.
func (c *Chain) fetch(ctx context.Context, p service.Provider, tokenKey, key string) models.ProviderResult {
	res := providers.Invoke(ctx, p, tokenKey, c.spec.Timeout)
	if res.IsFailure() && ctx.Err() != nil {
		return res
	}
	ttl := c.spec.SuccessTTL
	if res.IsFailure() {
		ttl = c.spec.ErrorTTL
	}
	c.cache.Set(ctx, key, res, ttl)
	return res
}

func (c *Chain) observe(ctx context.Context, provider, tokenKey, reportID string, res models.ProviderResult, status models.CacheStatus, start time.Time) {
	elapsed := c.now().Sub(start)
	if c.metrics != nil {
		c.metrics.RecordFetch(string(c.spec.Capability), provider, string(status), string(res.Status), elapsed.Seconds())
	}
	if c.sink != nil {
		c.sink.Emit(ctx, &models.Event{
			ID:          uuid.NewString(),
			ReportID:    reportID,
			TokenKey:    tokenKey,
			Stage:       models.StageProvider,
			Capability:  c.spec.Capability,
			Provider:    provider,
			CacheStatus: status,
			ElapsedMs:   elapsed.Milliseconds(),
			Outcome:     res.Status,
			ErrorKind:   res.Kind(),
			At:          c.now(),
		})
	}
}
