package cache

import (
	"context"
	"errors"
	"time"
)

// Layered is a two-level cache of T values (L1: Memory, L2: optional shared
// Service). L2 problems are reported to the error handler and otherwise
// behave like a miss, so Get and Set never fail.
type Layered[T any] struct {
	mem    *MemoryCache
	remote Service
	cfg    *LayeredConfig
}

// NewLayered creates a layered cache. remote may be nil for L1-only use.
func NewLayered[T any](mem *MemoryCache, remote Service, opts ...LayeredOption) *Layered[T] {
	cfg := &LayeredConfig{
		RemoteTimeout: 250 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Layered[T]{mem: mem, remote: remote, cfg: cfg}
}

// Get looks up L1 then L2, backfilling L1 with the remaining L2 lifetime.
func (lc *Layered[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	if v, ok := lc.mem.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, true
		}
	}
	if lc.remote == nil {
		return zero, false
	}

	rctx, cancel := context.WithTimeout(ctx, lc.cfg.RemoteTimeout)
	defer cancel()

	var out T
	if err := lc.remote.Get(rctx, key, &out); err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			lc.report("get", err)
		}
		return zero, false
	}

	ttl, err := lc.remote.TTL(rctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			// expired between GET and PTTL
			return zero, false
		}
		lc.report("ttl", err)
		return out, true
	}
	if ttl > 0 {
		lc.mem.Set(key, out, ttl)
	}
	return out, true
}

// Set writes through both layers.
func (lc *Layered[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) {
	lc.mem.Set(key, value, ttl)
	if lc.remote == nil {
		return
	}

	rctx, cancel := context.WithTimeout(ctx, lc.cfg.RemoteTimeout)
	defer cancel()
	if err := lc.remote.Set(rctx, key, value, ttl); err != nil {
		lc.report("set", err)
	}
}

// Delete removes keys from both layers.
func (lc *Layered[T]) Delete(ctx context.Context, keys ...string) {
	lc.mem.Delete(keys...)
	if lc.remote == nil {
		return
	}
	if err := lc.remote.Delete(ctx, keys...); err != nil {
		lc.report("delete", err)
	}
}

// Memory exposes the L1 store.
func (lc *Layered[T]) Memory() *MemoryCache { return lc.mem }

// Close closes both cache layers.
func (lc *Layered[T]) Close() error {
	_ = lc.mem.Close()
	if lc.remote != nil {
		return lc.remote.Close()
	}
	return nil
}

func (lc *Layered[T]) report(op string, err error) {
	if lc.cfg.OnRemoteError != nil {
		lc.cfg.OnRemoteError(op, err)
	}
}
