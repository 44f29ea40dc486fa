package repository

import (
	"context"
	"time"

	"TokenLens/internal/domain/models"
)

// ResultCache stores provider results under deterministic keys.
// Implementations never fail; unavailable tiers behave as misses.
type ResultCache interface {
	Get(ctx context.Context, key string) (models.ProviderResult, bool)
	Set(ctx context.Context, key string, r models.ProviderResult, ttl time.Duration)
}

// EventSink receives structured fetch events. Emit must not block the caller.
type EventSink interface {
	Emit(ctx context.Context, e *models.Event)
}

// Publisher ships events to a broker. It does not own the connection.
type Publisher interface {
	PublishBatch(ctx context.Context, events []*models.Event) error
}

type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, e *models.Event) error
	StoreBatch(ctx context.Context, events []*models.Event) error
	Query(ctx context.Context, tokenKey string, from, to time.Time, limit int) ([]*models.Event, error)
	Health(ctx context.Context) error // ping
}

type Metrics interface {
	RecordFetch(capability, provider, cacheStatus, outcome string, seconds float64)
	RecordReport(seconds float64, warnings int)
	RecordEventSent(backend, capability string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
