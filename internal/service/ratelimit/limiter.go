package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out one token bucket per key.
type Limiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func New() *Limiter { return &Limiter{m: make(map[string]*rate.Limiter)} }

func (l *Limiter) get(key string, capacity, refillPerSec float64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[key]
	if !ok {
		burst := int(capacity)
		if burst < 1 {
			burst = 1
		}
		b = rate.NewLimiter(rate.Limit(refillPerSec), burst)
		l.m[key] = b
	}
	return b
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	return l.get(key, capacity, refillPerSec).Allow()
}

// AllowAt is Allow evaluated at a given instant.
func (l *Limiter) AllowAt(key string, capacity, refillPerSec float64, now time.Time) bool {
	return l.get(key, capacity, refillPerSec).AllowN(now, 1)
}

// Cooldown remembers keys that must not be tried until a deadline passes.
// Providers that answered with a rate limit are parked here.
type Cooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewCooldown(now func() time.Time) *Cooldown {
	if now == nil {
		now = time.Now
	}
	return &Cooldown{until: make(map[string]time.Time), now: now}
}

// Trip parks key for d.
func (c *Cooldown) Trip(key string, d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.until[key] = c.now().Add(d)
	c.mu.Unlock()
}

// Remaining reports how long key stays parked; zero means usable.
func (c *Cooldown) Remaining(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.until[key]
	if !ok {
		return 0
	}
	left := t.Sub(c.now())
	if left <= 0 {
		delete(c.until, key)
		return 0
	}
	return left
}

// Active is true while key is parked.
func (c *Cooldown) Active(key string) bool { return c.Remaining(key) > 0 }
