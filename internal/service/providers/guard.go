package providers

import (
	"context"
	"time"

	"TokenLens/internal/domain/models"
	"TokenLens/internal/domain/service"
	"TokenLens/internal/service/ratelimit"
)

// DefaultCooldown is how long a provider stays parked after a rate limit.
const DefaultCooldown = 15 * time.Minute

// GuardOption configures Guarded.
type GuardOption func(*Guarded)

// GuardObserver is told when a guard trips a cooldown or answers a call
// without reaching the upstream.
type GuardObserver interface {
	Tripped(provider string)
	Suppressed(provider, reason string)
}

// Guarded wraps a provider with upstream backoff and local pacing.
// After the inner provider reports RateLimited it answers RateLimited
// without I/O until the cooldown passes.
type Guarded struct {
	inner    service.Provider
	cooldown *ratelimit.Cooldown
	backoff  time.Duration
	limiter  *ratelimit.Limiter
	paceKey  string
	burst    float64
	perSec   float64
	observer GuardObserver
}

var _ service.Provider = (*Guarded)(nil)

func Guard(p service.Provider, cd *ratelimit.Cooldown, opts ...GuardOption) *Guarded {
	g := &Guarded{inner: p, cooldown: cd, backoff: DefaultCooldown}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithBackoff sets the cooldown applied after RateLimited.
func WithBackoff(d time.Duration) GuardOption {
	return func(g *Guarded) {
		if d > 0 {
			g.backoff = d
		}
	}
}

// WithPacing limits calls to perMinute with the given burst. Providers
// sharing a limiter and key share one budget.
func WithPacing(l *ratelimit.Limiter, key string, perMinute float64, burst int) GuardOption {
	return func(g *Guarded) {
		if l == nil || perMinute <= 0 {
			return
		}
		g.limiter = l
		g.paceKey = key
		g.perSec = perMinute / 60
		g.burst = float64(burst)
	}
}

// WithObserver reports trips and suppressed calls to o.
func WithObserver(o GuardObserver) GuardOption {
	return func(g *Guarded) { g.observer = o }
}

func (g *Guarded) Name() string                  { return g.inner.Name() }
func (g *Guarded) Capability() models.Capability { return g.inner.Capability() }

// Unwrap returns the guarded provider.
func (g *Guarded) Unwrap() service.Provider { return g.inner }

func (g *Guarded) Fetch(ctx context.Context, tokenKey string) models.ProviderResult {
	name := g.inner.Name()
	if left := g.cooldown.Remaining(name); left > 0 {
		g.suppressed(name, "cooldown")
		return models.Failure(g.Capability(), models.ErrRateLimited, name, "cooling down for %s", left.Round(time.Second))
	}
	if g.limiter != nil && !g.limiter.Allow(g.paceKey, g.burst, g.perSec) {
		g.suppressed(name, "budget")
		return models.Failure(g.Capability(), models.ErrRateLimited, name, "local request budget exhausted")
	}

	res := g.inner.Fetch(ctx, tokenKey)
	if res.Kind() == models.ErrRateLimited {
		g.cooldown.Trip(name, g.backoff)
		if g.observer != nil {
			g.observer.Tripped(name)
		}
	}
	return res
}

func (g *Guarded) suppressed(name, reason string) {
	if g.observer != nil {
		g.observer.Suppressed(name, reason)
	}
}
