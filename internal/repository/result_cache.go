package repository

import (
	"time"

	"TokenLens/internal/domain/models"
	domrepo "TokenLens/internal/domain/repository"
	"TokenLens/pkg/cache"
	applogger "TokenLens/pkg/logger"
)

// ResultCache is the provider result cache: process memory in front of an
// optional shared Redis tier.
type ResultCache = cache.Layered[models.ProviderResult]

var _ domrepo.ResultCache = (*ResultCache)(nil)

// NewResultCache builds the result cache. remote may be nil. Redis failures
// are logged and otherwise behave as misses.
func NewResultCache(mem *cache.MemoryCache, remote cache.Service, remoteTimeout time.Duration, l *applogger.Logger) *ResultCache {
	if l == nil {
		l = applogger.Nop()
	}
	return cache.NewLayered[models.ProviderResult](mem, remote,
		cache.WithLayeredRemoteTimeout(remoteTimeout),
		cache.WithLayeredErrorHandler(func(op string, err error) {
			l.Warn("result cache remote tier failed", applogger.String("op", op), applogger.Error(err))
		}),
	)
}
